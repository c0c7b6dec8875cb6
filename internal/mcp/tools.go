package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/salmonumbrella/llmctl/internal/provider"
	"github.com/salmonumbrella/llmctl/internal/rotation"
	"github.com/salmonumbrella/llmctl/internal/session"
)

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("list_providers",
		mcp.WithDescription("List configured LLM providers with their token counts and rotation strategy"),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.listProviders)

	s.mcp.AddTool(mcp.NewTool("next_token",
		mcp.WithDescription("Rotate to the next usable token of a provider. The value is masked unless reveal is true"),
		mcp.WithString("provider_id", mcp.Description("Provider id; defaults to the active provider")),
		mcp.WithString("exclude", mcp.Description("Token value to skip, usually the one that just failed")),
		mcp.WithBoolean("reveal", mcp.Description("Include the full stored token value"), mcp.DefaultBool(false)),
	), s.nextToken)

	s.mcp.AddTool(mcp.NewTool("token_stats",
		mcp.WithDescription("Token counts and per-token state for a provider"),
		mcp.WithString("provider_id", mcp.Description("Provider id; defaults to the active provider")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.tokenStats)

	s.mcp.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List live llmctl sessions, optionally for one provider"),
		mcp.WithString("provider_id", mcp.Description("Only sessions of this provider")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.listSessions)

	s.mcp.AddTool(mcp.NewTool("check_token_update",
		mcp.WithDescription("Report whether a token switch was signalled for a provider in the last 30 seconds"),
		mcp.WithString("provider_id", mcp.Required(), mcp.Description("Provider id")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.checkTokenUpdate)
}

type providerSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	BaseURL  string `json:"baseUrl,omitempty"`
	Active   bool   `json:"active"`
	Strategy string `json:"strategy"`
	Tokens   int    `json:"tokens"`
	Enabled  int    `json:"enabled"`
	Healthy  int    `json:"healthy"`
}

func (s *Server) listProviders(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	providers, err := s.cfg.Store.GetAllProviders()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	active := ""
	if s.cfg.ActiveProvider != nil {
		active, _ = s.cfg.ActiveProvider()
	}

	out := make([]providerSummary, 0, len(providers))
	for _, p := range providers {
		total, enabled, healthy := p.Counts()
		out = append(out, providerSummary{
			ID:       p.ID,
			Name:     p.DisplayName(),
			Type:     p.Type,
			BaseURL:  p.BaseURL,
			Active:   p.ID == active,
			Strategy: string(p.Strategy()),
			Tokens:   total,
			Enabled:  enabled,
			Healthy:  healthy,
		})
	}
	return jsonResult(map[string]any{"providers": out})
}

type nextTokenResult struct {
	ProviderID string `json:"providerId"`
	Alias      string `json:"alias"`
	Preview    string `json:"preview"`
	Value      string `json:"value,omitempty"`
}

func (s *Server) nextToken(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := s.providerFor(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	value, ok := s.cfg.Engine.GetNextToken(p, req.GetString("exclude", ""))
	if !ok {
		return mcp.NewToolResultError("no usable token for provider " + p.ID), nil
	}

	res := nextTokenResult{ProviderID: p.ID, Alias: provider.LegacyAlias, Preview: provider.Mask(value)}
	if i := p.TokenIndex(value); i >= 0 {
		res.Alias = p.Tokens[i].DisplayName()
	}
	if req.GetBool("reveal", false) {
		res.Value = value
	}
	return jsonResult(res)
}

func (s *Server) tokenStats(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := s.providerFor(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	stats := rotation.GetTokenStats(p)
	if stats == nil {
		return mcp.NewToolResultError("provider " + p.ID + " has no token list"), nil
	}
	return jsonResult(stats)
}

func (s *Server) listSessions(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions, err := s.cfg.Sessions.GetActiveSessions()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if id := req.GetString("provider_id", ""); id != "" {
		sessions = session.GroupByProvider(sessions)[id]
	}
	if sessions == nil {
		sessions = []session.Session{}
	}
	return jsonResult(map[string]any{"sessions": sessions})
}

func (s *Server) checkTokenUpdate(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("provider_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.cfg.Signals.CheckTokenUpdateSignal(id))
}
