package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/effectnode/internal/api/models"
)

// registerInfraredRoutes registers the IR transceiver endpoints. The /ir
// paths keep the URLs existing remote-control clients already call.
func (s *Server) registerInfraredRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "ir-send",
		Method:      http.MethodPost,
		Path:        "/ir/send",
		Summary:     "Send IR Code",
		Description: "Transmit an IR code through the serial transceiver",
		Tags:        []string{"infrared"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 503},
	}, func(_ context.Context, input *models.IRSendRequest) (*models.IRSendResponse, error) {
		if err := s.board.Infrared().Send(input.Body.IRCode); err != nil {
			return nil, toHTTPError("Failed to send IR code", err)
		}
		return &models.IRSendResponse{
			Body: models.IRSendData{Status: "success", Message: "IR code sent"},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "ir-read",
		Method:      http.MethodGet,
		Path:        "/ir/read",
		Summary:     "Read IR Code",
		Description: "Return the most recently received IR code without consuming it",
		Tags:        []string{"infrared"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.IRReadResponse, error) {
		ir := s.board.Infrared()
		codes := ir.Received()
		data := models.IRReadData{Status: "empty", Codes: codes, Count: len(codes)}
		if latest, ok := ir.Latest(); ok {
			data.Status = "success"
			data.IRData = latest
		}
		return &models.IRReadResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "ir-clear",
		Method:      http.MethodDelete,
		Path:        "/ir/read",
		Summary:     "Clear IR Codes",
		Description: "Discard every pending received IR code",
		Tags:        []string{"infrared"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.IRClearResponse, error) {
		s.board.Infrared().Clear()
		resp := &models.IRClearResponse{}
		resp.Body.Status = "success"
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "ir-status",
		Method:      http.MethodGet,
		Path:        "/api/ir/status",
		Summary:     "IR Status",
		Description: "Serial port, mailbox and listener state of the IR transceiver",
		Tags:        []string{"infrared"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.IRStatusResponse, error) {
		return &models.IRStatusResponse{Body: s.board.Infrared().Status()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "ir-restart",
		Method:      http.MethodPost,
		Path:        "/api/ir/restart",
		Summary:     "Restart IR Listener",
		Description: "Restart the receive loop after a serial stream error",
		Tags:        []string{"infrared"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
	}, func(_ context.Context, _ *struct{}) (*models.IRStatusResponse, error) {
		if err := s.board.RestartInfrared(); err != nil {
			return nil, toHTTPError("Failed to restart IR listener", err)
		}
		return &models.IRStatusResponse{Body: s.board.Infrared().Status()}, nil
	})
}
