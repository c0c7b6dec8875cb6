package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportVars(t *testing.T) {
	p := &Provider{
		ID:        "work",
		BaseURL:   "https://api.example.com",
		ModelName: "  ",
		EnvVars: map[string]string{
			EnvAuthToken: "sk-env-0123456789",
			"EXTRA_FLAG": "1",
		},
	}

	vars := p.ExportVars()
	assert.Equal(t, "sk-env-0123456789", vars[EnvAuthToken])
	assert.Equal(t, "https://api.example.com", vars[EnvBaseURL])
	assert.Equal(t, "1", vars["EXTRA_FLAG"])
	_, hasModel := vars[EnvModel]
	assert.False(t, hasModel, "blank model name must not be exported")

	p.ModelName = "glm-4.6"
	assert.Equal(t, "glm-4.6", p.ExportVars()[EnvModel])
}

func TestCurrentTokenPrefersEnvVars(t *testing.T) {
	p := &Provider{APIKey: "sk-legacy-0123456789", EnvVars: map[string]string{EnvAuthToken: "sk-env-0123456789"}}
	assert.Equal(t, "sk-env-0123456789", p.CurrentToken())
	assert.Equal(t, "sk-legacy-0123456789", p.LegacyCredential())

	p.EnvVars = nil
	assert.Equal(t, "sk-legacy-0123456789", p.CurrentToken())
}

func TestSetCurrentToken(t *testing.T) {
	withEnv := &Provider{EnvVars: map[string]string{EnvAuthToken: "old"}}
	withEnv.SetCurrentToken("new")
	assert.Equal(t, "new", withEnv.EnvVars[EnvAuthToken])
	assert.Empty(t, withEnv.APIKey)

	legacy := &Provider{APIKey: "old"}
	legacy.SetCurrentToken("new")
	assert.Equal(t, "new", legacy.APIKey)
}

func TestCloneIsDeep(t *testing.T) {
	p := &Provider{
		ID:      "work",
		EnvVars: map[string]string{EnvAuthToken: "a"},
		Tokens:  []Token{{Value: "sk-a-0123456789", Enabled: Bool(true)}},
	}
	c := p.Clone()
	c.EnvVars[EnvAuthToken] = "b"
	c.Tokens[0].LastUsed = 42
	*c.Tokens[0].Enabled = false

	assert.Equal(t, "a", p.EnvVars[EnvAuthToken])
	assert.Zero(t, p.Tokens[0].LastUsed)
	assert.True(t, p.Tokens[0].IsEnabled())
}

func TestStrategyDefault(t *testing.T) {
	assert.Equal(t, RoundRobin, (&Provider{}).Strategy())
	assert.Equal(t, LeastUsed, (&Provider{TokenStrategy: &TokenStrategy{Type: LeastUsed}}).Strategy())
}

func TestParseStrategy(t *testing.T) {
	st, err := ParseStrategy("Weighted")
	require.NoError(t, err)
	assert.Equal(t, Weighted, st)

	_, err = ParseStrategy("fastest")
	assert.Error(t, err)
}

func TestTokenDefaults(t *testing.T) {
	tok := Token{Value: "sk-ant-api03-abcdef"}
	assert.True(t, tok.IsEnabled())
	assert.True(t, tok.IsHealthy())
	assert.Equal(t, 1, tok.EffectiveWeight())
	assert.Equal(t, "sk-ant-a...", tok.DisplayName())

	tok.Alias = "primary"
	tok.Healthy = Bool(false)
	assert.Equal(t, "primary", tok.DisplayName())
	assert.False(t, tok.IsHealthy())
}

func TestAddTokenMigratesLegacy(t *testing.T) {
	p := &Provider{ID: "work", EnvVars: map[string]string{EnvAuthToken: "sk-legacy-0123456789"}}

	require.NoError(t, p.AddToken(Token{Value: "sk-second-0123456789", Alias: "second"}))
	require.Len(t, p.Tokens, 2)
	assert.Equal(t, "sk-legacy-0123456789", p.Tokens[0].Value)
	assert.Equal(t, LegacyAlias, p.Tokens[0].Alias)
	assert.Equal(t, 1, p.Tokens[1].Weight)
	assert.True(t, p.Tokens[1].IsEnabled())

	assert.Error(t, p.AddToken(Token{Value: "sk-second-0123456789"}), "duplicate")
	assert.Error(t, p.AddToken(Token{Value: "sk-legacy-0123456789"}), "legacy duplicate")
}

func TestMigrateLegacyIdempotent(t *testing.T) {
	p := &Provider{APIKey: "sk-legacy-0123456789"}
	assert.True(t, MigrateLegacy(p))
	assert.False(t, MigrateLegacy(p))
	assert.Len(t, p.Tokens, 1)

	assert.False(t, MigrateLegacy(&Provider{}))
}

func TestFindToken(t *testing.T) {
	p := &Provider{Tokens: []Token{
		{Value: "sk-aaaa-0000000001", Alias: "primary"},
		{Value: "sk-aaaa-0000000002"},
		{Value: "sk-bbbb-0000000003"},
	}}

	tests := []struct {
		ref    string
		want   int
		wantOK bool
	}{
		{"primary", 0, true},
		{"sk-aaaa-0000000002", 1, true},
		{"sk-bbbb", 2, true},
		{"sk-bbbb-...", 2, true},
		{"#2", 1, true},
		{"#9", -1, false},
		{"sk-aaaa", -1, false},
		{"nope", -1, false},
		{"", -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, ok := p.FindToken(tt.ref)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDisableToken(t *testing.T) {
	p := &Provider{ID: "work", Tokens: []Token{
		{Value: "sk-a-0123456789"},
		{Value: "sk-b-0123456789", Enabled: Bool(false)},
	}}

	require.NoError(t, p.DisableToken("sk-a-0123456789"))
	assert.False(t, p.Tokens[0].IsEnabled())
	assert.False(t, p.Tokens[1].IsEnabled())

	assert.Error(t, p.DisableToken("sk-missing-000000"))
}

func TestCounts(t *testing.T) {
	p := &Provider{Tokens: []Token{
		{Value: "a"},
		{Value: "b", Enabled: Bool(false)},
		{Value: "c", Healthy: Bool(false)},
	}}
	total, enabled, healthy := p.Counts()
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, enabled)
	assert.Equal(t, 2, healthy)
}

func TestNewFromTemplate(t *testing.T) {
	p, err := New("work", "Work", "", "sk-ant-0123456789")
	require.NoError(t, err)
	assert.Equal(t, DefaultType, p.Type)
	assert.Equal(t, "sk-ant-0123456789", p.CurrentToken())
	assert.NotEmpty(t, p.BaseURL)

	_, err = New("x", "X", "openai", "")
	assert.Error(t, err)
}

func TestCheck(t *testing.T) {
	good := &Provider{ID: "work", Type: DefaultType, BaseURL: "https://x", APIKey: "sk-0123456789"}
	assert.True(t, Check(good).OK())

	bad := &Provider{
		ID:      "bad",
		Type:    "mystery",
		BaseURL: "ftp://x",
		Tokens: []Token{
			{Value: "dup", Weight: 11},
			{Value: "dup", Enabled: Bool(false)},
		},
	}
	probs := Check(bad)
	assert.False(t, probs.OK())
	assert.Len(t, probs.Errors, 4)

	noToken := &Provider{ID: "empty", Type: DefaultType}
	assert.Contains(t, Check(noToken).Errors, "missing API token")

	allOff := &Provider{ID: "off", Type: DefaultType, Tokens: []Token{{Value: "sk-0123456789", Enabled: Bool(false)}}}
	assert.Contains(t, Check(allOff).Warnings, "all tokens are disabled")
}
