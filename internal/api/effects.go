package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/effectnode/internal/api/models"
	"github.com/smazurov/effectnode/internal/effect"
)

// registerEffectRoutes registers effect listing and control endpoints.
func (s *Server) registerEffectRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-effects",
		Method:      http.MethodGet,
		Path:        "/api/effects",
		Summary:     "List Effects",
		Description: "List every configured effect with its current state",
		Tags:        []string{"effects"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.EffectListResponse, error) {
		names := s.board.EffectNames()
		list := make([]models.EffectData, 0, len(names))
		for _, name := range names {
			ctrl, err := s.board.Controller(name)
			if err != nil {
				continue
			}
			list = append(list, s.effectData(ctrl))
		}
		return &models.EffectListResponse{
			Body: models.EffectListData{Effects: list, Count: len(list)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-effect",
		Method:      http.MethodGet,
		Path:        "/api/effects/{name}",
		Summary:     "Get Effect",
		Description: "Get the state of one effect",
		Tags:        []string{"effects"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *models.EffectRequest) (*models.EffectResponse, error) {
		ctrl, err := s.board.Controller(input.Name)
		if err != nil {
			return nil, toHTTPError("Effect not found", err)
		}
		return &models.EffectResponse{Body: s.effectData(ctrl)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "control-effect",
		Method:      http.MethodPost,
		Path:        "/api/effects/{name}/{action}",
		Summary:     "Control Effect",
		Description: "Start, pause, resume or stop an effect, hold its output on or off, " +
			"force-restart a stuck effect or reset the driver behind it",
		Tags:     []string{"effects"},
		Security: withAuth(),
		Errors:   []int{400, 401, 404, 409, 503},
	}, func(_ context.Context, input *models.EffectActionRequest) (*models.EffectResponse, error) {
		ctrl, err := s.board.Controller(input.Name)
		if err != nil {
			return nil, toHTTPError("Effect not found", err)
		}

		switch input.Action {
		case "start":
			err = ctrl.Start()
		case "pause":
			err = ctrl.Pause()
		case "resume":
			err = ctrl.Resume()
		case "stop":
			err = ctrl.Stop()
		case "force-restart":
			err = ctrl.ForceRestart()
		case "on":
			err = ctrl.On()
		case "off":
			err = ctrl.Off()
		case "reset-driver":
			err = s.board.ResetDriver(input.Name)
		default:
			return nil, huma.Error400BadRequest(fmt.Sprintf("Unknown action %q", input.Action))
		}
		if err != nil {
			return nil, toHTTPError(fmt.Sprintf("Failed to %s effect", input.Action), err)
		}

		s.logger.Info("Effect action applied", "effect", input.Name, "action", input.Action)
		return &models.EffectResponse{Body: s.effectData(ctrl)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-registers",
		Method:      http.MethodGet,
		Path:        "/api/registers",
		Summary:     "List Registers",
		Description: "List output registers and the value last written to each",
		Tags:        []string{"effects"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.RegisterListResponse, error) {
		resp := &models.RegisterListResponse{}
		for _, r := range s.board.Registers() {
			resp.Body.Registers = append(resp.Body.Registers, models.RegisterData{
				Name:  r.Name,
				Width: r.Width,
				Value: r.Value,
			})
		}
		return resp, nil
	})
}

func (s *Server) effectData(ctrl *effect.Controller) models.EffectData {
	data := models.EffectData{
		Snapshot: ctrl.Status(),
		Mask:     ctrl.Mask(),
	}
	if ec, ok := s.board.Hardware().Effects[ctrl.Name()]; ok {
		data.Register = ec.Register
		data.Kind = ec.Kind
	}
	return data
}
