// Package mcp exposes token rotation and session state to agents as an MCP
// server over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/salmonumbrella/llmctl/internal/notify"
	"github.com/salmonumbrella/llmctl/internal/provider"
	"github.com/salmonumbrella/llmctl/internal/rotation"
	"github.com/salmonumbrella/llmctl/internal/session"
)

const serverName = "llmctl"

// Sessions lists live sessions.
type Sessions interface {
	GetActiveSessions() ([]session.Session, error)
}

// Signals reports pending token updates.
type Signals interface {
	CheckTokenUpdateSignal(providerID string) notify.Update
}

// Config wires the server to llmctl state.
type Config struct {
	Store    provider.Store
	Engine   *rotation.Engine
	Sessions Sessions
	Signals  Signals
	// ActiveProvider returns the provider used when a tool call names none.
	ActiveProvider func() (string, error)
	Version        string
}

// Server is the llmctl MCP server.
type Server struct {
	cfg Config
	mcp *server.MCPServer
}

// NewServer registers all tools.
func NewServer(cfg Config) *Server {
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	s := &Server{
		cfg: cfg,
		mcp: server.NewMCPServer(serverName, cfg.Version, server.WithToolCapabilities(false)),
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcp }

// Serve speaks MCP on in and out until ctx is done or in closes.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// providerFor resolves the provider_id argument, falling back to the active provider.
func (s *Server) providerFor(req mcp.CallToolRequest) (*provider.Provider, error) {
	id := req.GetString("provider_id", "")
	if id == "" && s.cfg.ActiveProvider != nil {
		active, err := s.cfg.ActiveProvider()
		if err != nil {
			return nil, err
		}
		id = active
	}
	if id == "" {
		return nil, fmt.Errorf("provider_id is required when no provider is active")
	}
	return s.cfg.Store.GetProvider(id)
}
