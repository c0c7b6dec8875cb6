package envexport

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = map[string]string{
	"ANTHROPIC_BASE_URL":   "https://api.example.com",
	"ANTHROPIC_AUTH_TOKEN": "sk-ant-0123456789",
}

func TestRender(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{FormatBash, "export ANTHROPIC_AUTH_TOKEN=\"sk-ant-0123456789\"\nexport ANTHROPIC_BASE_URL=\"https://api.example.com\""},
		{FormatPowerShell, "$env:ANTHROPIC_AUTH_TOKEN=\"sk-ant-0123456789\"\n$env:ANTHROPIC_BASE_URL=\"https://api.example.com\""},
		{FormatCmd, "set ANTHROPIC_AUTH_TOKEN=sk-ant-0123456789\nset ANTHROPIC_BASE_URL=https://api.example.com"},
		{FormatJSON, "{\n  \"ANTHROPIC_AUTH_TOKEN\": \"sk-ant-0123456789\",\n  \"ANTHROPIC_BASE_URL\": \"https://api.example.com\"\n}"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			got, err := Render(sample, tt.format)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Render(sample, "fish")
	assert.Error(t, err)
}

func TestRender_BashQuotesSpecialCharacters(t *testing.T) {
	got, err := Render(map[string]string{"X": `a"b`}, FormatBash)
	require.NoError(t, err)
	assert.Equal(t, `export X="a\"b"`, got)
}

func TestScript(t *testing.T) {
	got, err := Script(sample, FormatBash)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "#!/bin/bash"))
	assert.Contains(t, got, `echo "  ANTHROPIC_BASE_URL=$ANTHROPIC_BASE_URL"`)

	got, err = Script(sample, FormatCmd)
	require.NoError(t, err)
	assert.Contains(t, got, "echo   ANTHROPIC_AUTH_TOKEN=%ANTHROPIC_AUTH_TOKEN%")

	got, err = Script(sample, FormatJSON)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "{"))
}

func TestDetectShellFormat(t *testing.T) {
	env := func(m map[string]string) func(string) string {
		return func(k string) string { return m[k] }
	}
	tests := []struct {
		name string
		goos string
		env  map[string]string
		want Format
	}{
		{"linux", "linux", nil, FormatBash},
		{"darwin zsh", "darwin", map[string]string{"SHELL": "/bin/zsh"}, FormatBash},
		{"windows cmd", "windows", map[string]string{"COMSPEC": `C:\Windows\system32\cmd.exe`}, FormatCmd},
		{"windows pwsh", "windows", map[string]string{"SHELL": "pwsh"}, FormatPowerShell},
		{"windows powershell comspec", "windows", map[string]string{"COMSPEC": "PowerShell.exe"}, FormatPowerShell},
		{"windows nothing", "windows", nil, FormatCmd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectShellFormat(tt.goos, env(tt.env)))
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("auto")
	require.NoError(t, err)
	assert.Equal(t, DetectShellFormat(), f)

	_, err = ParseFormat("fish")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	p := Validate(map[string]string{
		"GOOD":      "x",
		"lowercase": "y",
		"EMPTY":     "",
		"MULTILINE": "a\nb",
		"":          "z",
	})
	assert.False(t, p.Valid)
	assert.Len(t, p.Errors, 2)
	assert.Len(t, p.Warnings, 2)

	assert.True(t, Validate(sample).Valid)
}

func TestApply(t *testing.T) {
	t.Setenv("LLMCTL_TEST_APPLY", "")
	res := ProcessApplier{}.Apply(map[string]string{"LLMCTL_TEST_APPLY": "on"})
	assert.True(t, res.Success)
	assert.Equal(t, "on", os.Getenv("LLMCTL_TEST_APPLY"))
	assert.Contains(t, res.Message, "1 environment variables")
}

func TestMasked(t *testing.T) {
	m := Masked(map[string]string{
		"ANTHROPIC_AUTH_TOKEN": "sk-ant-0123456789",
		"OPENAI_API_KEY":       "sk-openai-abcdef",
		"ANTHROPIC_BASE_URL":   "https://api.example.com",
	})
	assert.Equal(t, "sk-ant-0...", m["ANTHROPIC_AUTH_TOKEN"])
	assert.Equal(t, "sk-opena...", m["OPENAI_API_KEY"])
	assert.Equal(t, "https://api.example.com", m["ANTHROPIC_BASE_URL"])
}
