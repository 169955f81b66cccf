package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/smazurov/effectnode/internal/effect"
)

var lampEyeActions = []string{
	"turn_on", "turn_off",
	"start_breathing", "pause_breathing", "resume_breathing", "stop_breathing",
	"get_status",
}

func (r *Registry) lampEyeTool(ctrl *effect.Controller) server.ServerTool {
	simple := func(op func() error, okText string) actionHandler {
		return func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return result(op(), okText)
		}
	}

	actions := map[string]actionHandler{
		"turn_on":          simple(ctrl.On, "eye lamp turned on"),
		"turn_off":         simple(ctrl.Off, "eye lamp turned off"),
		"start_breathing":  simple(ctrl.Start, "breathing effect started"),
		"pause_breathing":  simple(ctrl.Pause, "breathing effect paused"),
		"resume_breathing": simple(ctrl.Resume, "breathing effect resumed"),
		"stop_breathing":   simple(ctrl.Stop, "breathing effect stopped"),
		"get_status": func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			s := ctrl.Status()
			return mcp.NewToolResultStructured(s, statusText("eye lamp", s)), nil
		},
	}

	tool := mcp.NewTool("self.lamp_eye.control",
		mcp.WithDescription("Controls the eye lamp.\n"+
			"- turn_on / turn_off: steady light\n"+
			"- start_breathing / pause_breathing / resume_breathing / stop_breathing: breathing effect\n"+
			"- get_status: power and effect state"),
		mcp.WithString("action", mcp.Required(), mcp.Enum(lampEyeActions...),
			mcp.Description("Action to perform")),
	)
	return server.ServerTool{Tool: tool, Handler: dispatch(tool.Name, actions, lampEyeActions, r.logger)}
}

var lampBarActions = []string{"start_flow", "stop_flow", "get_status", "reset_driver", "force_restart"}

func (r *Registry) lampBarTool(ctrl *effect.Controller) server.ServerTool {
	actions := map[string]actionHandler{
		"start_flow": func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return result(ctrl.Start(), "flow effect started")
		},
		"stop_flow": func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return result(ctrl.Stop(), "flow effect stopped")
		},
		"get_status": func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			s := ctrl.Status()
			return mcp.NewToolResultStructured(s, statusText("light bar", s)), nil
		},
		"reset_driver": func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return result(r.board.ResetDriver(ctrl.Name()), "light bar driver reset")
		},
		"force_restart": func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return result(ctrl.ForceRestart(), "light bar force restarted, all state reset")
		},
	}

	tool := mcp.NewTool("self.lamp_bar.control",
		mcp.WithDescription("Controls the flowing light bar.\n"+
			"- start_flow / stop_flow: flowing pattern\n"+
			"- get_status: power and effect state\n"+
			"- reset_driver: re-initialise the shift register\n"+
			"- force_restart: drop the running task and reset the outputs"),
		mcp.WithString("action", mcp.Required(), mcp.Enum(lampBarActions...),
			mcp.Description("Action to perform")),
		mcp.WithDestructiveHintAnnotation(false),
	)
	return server.ServerTool{Tool: tool, Handler: dispatch(tool.Name, actions, lampBarActions, r.logger)}
}
