// Package tools exposes the board to MCP clients. Tools are built from the
// board at startup and added to a server explicitly.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/smazurov/effectnode/internal/effect"
	"github.com/smazurov/effectnode/internal/infrared"
	"github.com/smazurov/effectnode/internal/logging"
)

// Effect names the lamp tools look up on the board.
const (
	LampEye = "lamp_eye"
	LampBar = "lamp_bar"
)

// Board is the device surface the tools drive.
type Board interface {
	Controller(name string) (*effect.Controller, error)
	Effects() *effect.Manager
	Rotate(axis string, degrees float64) (int, error)
	ResetDriver(effectName string) error
	Infrared() *infrared.Device
}

// Registry builds the tool set for one board.
type Registry struct {
	board  Board
	logger *slog.Logger
}

// NewRegistry creates a registry. If logger is nil the "tools" module
// logger is used.
func NewRegistry(board Board, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = logging.GetLogger("tools")
	}
	return &Registry{board: board, logger: logger}
}

// Tools returns every tool the board can serve. Lamp tools are omitted when
// the board has no effect of that name, the motor tool when it has no axes.
func (r *Registry) Tools() []server.ServerTool {
	var out []server.ServerTool

	if ctrl, err := r.board.Controller(LampEye); err == nil {
		out = append(out, r.lampEyeTool(ctrl))
	} else {
		r.logger.Info("Skipping tool", "tool", "self.lamp_eye.control", "reason", err)
	}
	if ctrl, err := r.board.Controller(LampBar); err == nil {
		out = append(out, r.lampBarTool(ctrl))
	} else {
		r.logger.Info("Skipping tool", "tool", "self.lamp_bar.control", "reason", err)
	}
	if axes := r.board.Effects().AxisNames(); len(axes) > 0 {
		out = append(out, r.motorTool(axes))
	}
	out = append(out, r.infraredTool())

	return out
}

// Register adds every tool to s.
func (r *Registry) Register(s *server.MCPServer) {
	tools := r.Tools()
	s.AddTools(tools...)

	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Tool.Name
	}
	r.logger.Info("MCP tools registered", "tools", names)
}

// NewServer creates an MCP server carrying the board's tools.
func NewServer(board Board, version string, logger *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer(
		"effectnode",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Controls the lamps, stepper motors and infrared transceiver of an effectnode device."),
	)
	NewRegistry(board, logger).Register(s)
	return s
}

// actionHandler dispatches on the required "action" argument.
type actionHandler func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)

func dispatch(tool string, actions map[string]actionHandler, order []string, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		action, err := req.RequireString("action")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		h, ok := actions[action]
		if !ok {
			return mcp.NewToolResultErrorf("unknown action %q, supported actions: %s", action, strings.Join(order, ", ")), nil
		}

		logger.Debug("Tool call", "tool", tool, "action", action)
		return h(ctx, req)
	}
}

// result maps a controller error to a tool result.
func result(err error, okText string) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(describe(err)), nil
	}
	return mcp.NewToolResultText(okText), nil
}

func describe(err error) string {
	switch {
	case effect.IsCode(err, effect.ErrCodeNotInitialized):
		return fmt.Sprintf("device not initialized: %v", err)
	case effect.IsCode(err, effect.ErrCodeNotActive):
		return fmt.Sprintf("effect is not running: %v", err)
	case effect.IsCode(err, effect.ErrCodeAlreadyActive):
		return fmt.Sprintf("effect is busy stopping, try again: %v", err)
	case effect.IsCode(err, effect.ErrCodeSpawnFailed):
		return fmt.Sprintf("too many effects running: %v", err)
	default:
		return err.Error()
	}
}

func statusText(title string, s effect.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s status:\n", title)
	fmt.Fprintf(&b, "power: %s\n", onOff(s.Powered))
	fmt.Fprintf(&b, "state: %s\n", s.State)
	fmt.Fprintf(&b, "task: %s\n", validity(s.TaskAlive))
	if s.Forced > 0 {
		fmt.Fprintf(&b, "forced stops: %d\n", s.Forced)
	}
	if s.LastError != "" {
		fmt.Fprintf(&b, "last error: %s\n", s.LastError)
	}
	return b.String()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func validity(v bool) string {
	if v {
		return "alive"
	}
	return "none"
}
