package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Angles beyond one full turn in either direction are rejected.
const maxAngle = 360

func (r *Registry) motorTool(axes []string) server.ServerTool {
	tool := mcp.NewTool("self.motor.control",
		mcp.WithDescription("Rotates a stepper motor by a relative angle in degrees. "+
			"Positive angles turn clockwise, negative counter-clockwise. "+
			"A new command replaces a rotation still in progress."),
		mcp.WithString("motor", mcp.Required(), mcp.Enum(axes...),
			mcp.Description("Motor axis")),
		mcp.WithNumber("angle", mcp.Required(), mcp.Min(-maxAngle), mcp.Max(maxAngle),
			mcp.Description("Relative angle in whole degrees")),
	)

	handler := func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		motor, err := req.RequireString("motor")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		angle, err := req.RequireInt("angle")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if angle < -maxAngle || angle > maxAngle {
			return mcp.NewToolResultErrorf("angle %d out of range [-%d, %d]", angle, maxAngle, maxAngle), nil
		}

		steps, err := r.board.Rotate(motor, float64(angle))
		if err != nil {
			return mcp.NewToolResultError(describe(err)), nil
		}
		r.logger.Info("Motor rotation requested", "motor", motor, "angle", angle, "steps", steps)

		return mcp.NewToolResultStructured(
			map[string]any{"motor": motor, "angle": angle, "steps": steps},
			fmt.Sprintf("%s motor rotating %d degrees (%d steps)", motor, angle, steps),
		), nil
	}

	return server.ServerTool{Tool: tool, Handler: handler}
}
