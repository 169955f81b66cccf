package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/effectnode/internal/api/models"
)

// registerMotorRoutes registers stepper axis endpoints.
func (s *Server) registerMotorRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-motors",
		Method:      http.MethodGet,
		Path:        "/api/motors",
		Summary:     "List Motors",
		Description: "List stepper axes and whether a rotation is in progress",
		Tags:        []string{"motors"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.MotorListResponse, error) {
		hw := s.board.Hardware()
		names := s.board.Effects().AxisNames()
		motors := make([]models.MotorData, 0, len(names))
		for _, name := range names {
			axis, ok := s.board.Effects().Axis(name)
			if !ok {
				continue
			}
			cfg := hw.Axes[name]
			motors = append(motors, models.MotorData{
				Name:               name,
				Register:           cfg.Register,
				StepsPerRevolution: axis.Steps(360),
				State:              axis.Controller().Status().State,
			})
		}
		return &models.MotorListResponse{
			Body: models.MotorListData{Motors: motors, Count: len(motors)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "rotate-motor",
		Method:      http.MethodPost,
		Path:        "/api/motors/{axis}/rotate",
		Summary:     "Rotate Motor",
		Description: "Rotate an axis by a relative angle. A new rotation replaces one still in progress.",
		Tags:        []string{"motors"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404, 409, 503},
	}, func(_ context.Context, input *models.RotateRequest) (*models.RotateResponse, error) {
		steps, err := s.board.Rotate(input.Axis, float64(input.Body.Angle))
		if err != nil {
			return nil, toHTTPError(fmt.Sprintf("Failed to rotate %s", input.Axis), err)
		}
		return &models.RotateResponse{
			Body: models.RotateData{Axis: input.Axis, Angle: input.Body.Angle, Steps: steps},
		}, nil
	})
}
