package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

var infraredActions = []string{"send", "read", "clear", "restart"}

// infraredRead is the structured result of the read action.
type infraredRead struct {
	Status string   `json:"status"`
	IRData string   `json:"ir_data"`
	Codes  []string `json:"codes"`
	Count  int      `json:"count"`
}

func (r *Registry) infraredTool() server.ServerTool {
	ir := r.board.Infrared()

	actions := map[string]actionHandler{
		"send": func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			code, err := req.RequireString("code")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return result(ir.Send(code), fmt.Sprintf("ir code %s sent", code))
		},
		"read": func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			codes := ir.Received()
			out := infraredRead{Status: "empty", Codes: codes, Count: len(codes)}
			text := "no ir code received"
			if latest, ok := ir.Latest(); ok {
				out.Status = "success"
				out.IRData = latest
				text = "latest ir code: " + latest
			}
			return mcp.NewToolResultStructured(out, text), nil
		},
		"clear": func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			ir.Clear()
			return mcp.NewToolResultText("received ir codes cleared"), nil
		},
		"restart": func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return result(ir.Restart(), "ir receiver restarted")
		},
	}

	tool := mcp.NewTool("self.infrared.control",
		mcp.WithDescription("Sends and reads infrared remote codes.\n"+
			"- send: transmit the given code\n"+
			"- read: the most recently received code\n"+
			"- clear: discard received codes\n"+
			"- restart: restart the receiver after a serial error"),
		mcp.WithString("action", mcp.Required(), mcp.Enum(infraredActions...),
			mcp.Description("Action to perform")),
		mcp.WithString("code", mcp.Description("IR code to send, required for send")),
	)
	return server.ServerTool{Tool: tool, Handler: dispatch(tool.Name, actions, infraredActions, r.logger)}
}
