package api

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/effectnode/internal/device"
	"github.com/smazurov/effectnode/internal/effect"
	"github.com/smazurov/effectnode/internal/infrared"
)

// toHTTPError maps device errors onto status codes.
func toHTTPError(msg string, err error) error {
	switch {
	case errors.Is(err, device.ErrUnknown):
		return huma.Error404NotFound(msg, err)
	case errors.Is(err, infrared.ErrEmptyCode):
		return huma.Error400BadRequest(msg, err)
	case effect.IsCode(err, effect.ErrCodeNotActive),
		effect.IsCode(err, effect.ErrCodeAlreadyActive):
		return huma.Error409Conflict(msg, err)
	case effect.IsCode(err, effect.ErrCodeNotInitialized),
		effect.IsCode(err, effect.ErrCodeSpawnFailed):
		return huma.Error503ServiceUnavailable(msg, err)
	default:
		return huma.Error500InternalServerError(msg, err)
	}
}
