package tools

import (
	"context"
	"fmt"
	"net/rpc"
	"time"

	hcplugin "github.com/hashicorp/go-plugin"
)

// McpHandshake is the handshake protocol for Model Context Protocol tool
// adapters loaded as go-plugin clients, grounded on
// Yoriyoi-drop-citadel-agent's NodePlugin handshake.
var McpHandshake = hcplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "FEC_MCP_PLUGIN",
	MagicCookieValue: "fec_mcp",
}

// McpTool is the interface an out-of-process MCP adapter plugin exposes.
type McpTool interface {
	InvokeTool(ctx context.Context, tool string, args map[string]interface{}) (map[string]interface{}, error)
}

// McpToolArgs/McpToolReply are the net/rpc wire structs for McpTool.InvokeTool.
type McpToolArgs struct {
	Tool string
	Args map[string]interface{}
}

type McpToolReply struct {
	Result map[string]interface{}
	Error  string
}

// McpToolRPCServer adapts a local McpTool implementation to go-plugin's
// net/rpc transport.
type McpToolRPCServer struct {
	Impl McpTool
}

func (s *McpToolRPCServer) InvokeTool(args *McpToolArgs, reply *McpToolReply) error {
	result, err := s.Impl.InvokeTool(context.Background(), args.Tool, args.Args)
	if err != nil {
		reply.Error = err.Error()
		return nil
	}
	reply.Result = result
	return nil
}

// McpToolRPCClient is the client stub consumed by the Tool Registry.
type McpToolRPCClient struct {
	client *rpc.Client
}

func (c *McpToolRPCClient) InvokeTool(ctx context.Context, tool string, args map[string]interface{}) (map[string]interface{}, error) {
	reply := &McpToolReply{}
	if err := c.client.Call("Plugin.InvokeTool", &McpToolArgs{Tool: tool, Args: args}, reply); err != nil {
		return nil, err
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("tools: mcp tool %q: %s", tool, reply.Error)
	}
	return reply.Result, nil
}

// McpToolPlugin implements hcplugin.Plugin so an MCP adapter can be
// served or consumed over go-plugin's net/rpc transport.
type McpToolPlugin struct {
	Impl McpTool
}

func (p *McpToolPlugin) Server(*hcplugin.MuxBroker) (interface{}, error) {
	return &McpToolRPCServer{Impl: p.Impl}, nil
}

func (McpToolPlugin) Client(b *hcplugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &McpToolRPCClient{client: c}, nil
}

// McpHandler implements the `mcp` tool type: dispatch to an MCP client
// identified by `server`, invoke `tool` with `args`.
type McpHandler struct{}

func (McpHandler) Invoke(ctx context.Context, handle *ServiceHandle, spec ToolSpec, args map[string]interface{}, deadline time.Time) (interface{}, error) {
	tool, ok := handle.McpAdapter.(McpTool)
	if !ok || tool == nil {
		return nil, fmt.Errorf("tools: mcp handle for service %q has no adapter wired", handle.Service)
	}

	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	result, err := tool.InvokeTool(ctx, spec.Code, args)
	if err != nil {
		select {
		case <-ctx.Done():
			return nil, &TimeoutError{URI: handle.Service}
		default:
			return nil, fmt.Errorf("tools: mcp invoke %s: %w", spec.Code, err)
		}
	}
	return result, nil
}
