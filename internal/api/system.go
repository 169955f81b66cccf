package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// ServiceController is the service manager view of this node.
type ServiceController interface {
	Unit() string
	Status(ctx context.Context) (string, error)
	Restart(ctx context.Context) error
}

type serviceStatusResponse struct {
	Body struct {
		Unit   string `json:"unit" example:"effectnode.service" doc:"Systemd unit"`
		Status string `json:"status" example:"active" doc:"Unit ActiveState"`
	}
}

type serviceRestartResponse struct {
	Body struct {
		Unit    string `json:"unit" example:"effectnode.service" doc:"Systemd unit"`
		Message string `json:"message" example:"restart scheduled" doc:"Status message"`
	}
}

// registerSystemRoutes registers service management endpoints. Register or
// mask changes in the hardware file only take effect after a restart.
func (s *Server) registerSystemRoutes() {
	svc := s.options.Service
	if svc == nil {
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-service-status",
		Method:      http.MethodGet,
		Path:        "/api/system/service",
		Summary:     "Service Status",
		Description: "Get the systemd state of the node service",
		Tags:        []string{"system"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(ctx context.Context, _ *struct{}) (*serviceStatusResponse, error) {
		status, err := svc.Status(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to get service status", err)
		}
		resp := &serviceStatusResponse{}
		resp.Body.Unit = svc.Unit()
		resp.Body.Status = status
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "restart-service",
		Method:      http.MethodPost,
		Path:        "/api/system/restart",
		Summary:     "Restart Service",
		Description: "Restart the node service, e.g. after register layout changes",
		Tags:        []string{"system"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(ctx context.Context, _ *struct{}) (*serviceRestartResponse, error) {
		if err := svc.Restart(ctx); err != nil {
			return nil, huma.Error500InternalServerError("Failed to restart service", err)
		}
		s.logger.Info("Service restart requested", "unit", svc.Unit())
		resp := &serviceRestartResponse{}
		resp.Body.Unit = svc.Unit()
		resp.Body.Message = "restart scheduled"
		return resp, nil
	})
}
