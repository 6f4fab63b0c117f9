package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/baextract/portal/record"
)

// RegisterMCP registers the baextract tools on an MCP server.
func (e *Engine) RegisterMCP(srv *mcp.Server) {
	e.registerLookupTool(srv)
	e.registerStoredTool(srv)
}

// ServeMCP runs an MCP server over stdin/stdout until ctx is cancelled.
func (e *Engine) ServeMCP(ctx context.Context, version string) error {
	srv := mcp.NewServer(&mcp.Implementation{Name: "baextract", Version: version}, nil)
	e.RegisterMCP(srv)
	return srv.Run(ctx, &mcp.StdioTransport{})
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

type codeRequest struct {
	Code string `json:"code"`
}

// addTool registers a tool taking a code and answering with JSON text.
func addTool(srv *mcp.Server, tool *mcp.Tool, endpoint func(ctx context.Context, code string) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r codeRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("invalid arguments: %w", err))
			return &res, nil
		}
		code := record.DigitsOnly(r.Code)
		if code == "" {
			var res mcp.CallToolResult
			res.SetError(errors.New("a numeric activity code is required"))
			return &res, nil
		}
		out, err := endpoint(ctx, code)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(err)
			return &res, nil
		}
		data, err := json.Marshal(out)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

var codeSchema = inputSchema(map[string]any{
	"code": map[string]any{"type": "string", "description": "Business activity code, digits only (leading zeros are kept)"},
}, []string{"code"})

func (e *Engine) registerLookupTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name: "baextract_lookup",
		Description: "Look up a business activity on the investor portal. Returns its names in both " +
			"languages, locations with fees, eligibility and required approvals, or a classified error.",
		InputSchema: codeSchema,
	}
	addTool(srv, tool, func(ctx context.Context, code string) (any, error) {
		return e.Output(e.Lookup(ctx, code)), nil
	})
}

func (e *Engine) registerStoredTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "baextract_stored",
		Description: "Return the last extracted record of a business activity from the local database, without visiting the portal.",
		InputSchema: codeSchema,
	}
	addTool(srv, tool, func(ctx context.Context, code string) (any, error) {
		rec, err := e.Stored(ctx, code)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return e.Output(record.Failed(code, record.KindElementAbsent, "not extracted yet")), nil
		}
		return e.Output(record.Succeeded(*rec, record.StrategyNone)), nil
	})
}
