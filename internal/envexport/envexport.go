// Package envexport renders provider environment variables for shells and
// applies them to the current process.
package envexport

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"runtime"
	"slices"
	"strings"

	"github.com/salmonumbrella/llmctl/internal/provider"
	"github.com/salmonumbrella/llmctl/internal/validate"
)

// Format is a shell syntax for exported variables.
type Format string

const (
	FormatAuto       Format = "auto"
	FormatBash       Format = "bash"
	FormatPowerShell Format = "powershell"
	FormatCmd        Format = "cmd"
	FormatJSON       Format = "json"
)

// ParseFormat validates a --format value. "auto" detects the current shell.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatAuto:
		return DetectShellFormat(), nil
	case FormatBash, FormatPowerShell, FormatCmd, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (expected auto, bash, powershell, cmd, or json)", s)
	}
}

// DetectShellFormat picks the format for the running shell.
func DetectShellFormat() Format {
	return detectShellFormat(runtime.GOOS, os.Getenv)
}

func detectShellFormat(goos string, getenv func(string) string) Format {
	if goos != "windows" {
		return FormatBash
	}
	shell := getenv("SHELL")
	if shell == "" {
		shell = getenv("COMSPEC")
	}
	shell = strings.ToLower(shell)
	if strings.Contains(shell, "powershell") || strings.Contains(shell, "pwsh") {
		return FormatPowerShell
	}
	return FormatCmd
}

// Render produces the export commands for vars, one per line, keys sorted.
func Render(vars map[string]string, format Format) (string, error) {
	keys := slices.Sorted(maps.Keys(vars))
	lines := make([]string, 0, len(keys))

	switch format {
	case FormatBash:
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("export %s=%q", k, vars[k]))
		}
	case FormatPowerShell:
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf(`$env:%s="%s"`, k, strings.ReplaceAll(vars[k], `"`, "`\"")))
		}
	case FormatCmd:
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("set %s=%s", k, vars[k]))
		}
	case FormatJSON:
		data, err := json.MarshalIndent(vars, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}
	return strings.Join(lines, "\n"), nil
}

// Script wraps Render output in a sourceable script with a short echo summary.
func Script(vars map[string]string, format Format) (string, error) {
	commands, err := Render(vars, format)
	if err != nil {
		return "", err
	}
	keys := slices.Sorted(maps.Keys(vars))

	var b strings.Builder
	switch format {
	case FormatBash:
		b.WriteString("#!/bin/bash\n# Generated by llmctl\n# Usage: source llmctl-env.sh\n\n")
		b.WriteString(commands)
		b.WriteString("\n\necho \"Loaded llmctl environment:\"\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "echo \"  %s=$%s\"\n", k, k)
		}
	case FormatPowerShell:
		b.WriteString("# Generated by llmctl\n# Usage: . .\\llmctl-env.ps1\n\n")
		b.WriteString(commands)
		b.WriteString("\n\nWrite-Host \"Loaded llmctl environment:\"\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "Write-Host \"  %s=$env:%s\"\n", k, k)
		}
	case FormatCmd:
		b.WriteString("@echo off\nREM Generated by llmctl\nREM Usage: call llmctl-env.bat\n\n")
		b.WriteString(commands)
		b.WriteString("\n\necho Loaded llmctl environment:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "echo   %s=%%%s%%\n", k, k)
		}
	default:
		return commands, nil
	}
	return b.String(), nil
}

// Instructions returns how-to-load hints for a format.
func Instructions(format Format) []string {
	switch format {
	case FormatBash:
		return []string{
			`eval "$(llmctl export)"`,
			"llmctl export > llmctl-env.sh && source llmctl-env.sh",
		}
	case FormatPowerShell:
		return []string{
			"llmctl export --format powershell | Invoke-Expression",
			"llmctl export --format powershell > llmctl-env.ps1; . ./llmctl-env.ps1",
		}
	case FormatCmd:
		return []string{
			"llmctl export --format cmd > llmctl-env.bat && call llmctl-env.bat",
		}
	default:
		return []string{"llmctl export --format json > environment.json"}
	}
}

// Problems lists validation findings for a variable set.
type Problems struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Validate checks names and values before export.
func Validate(vars map[string]string) Problems {
	out := Problems{Errors: []string{}, Warnings: []string{}}
	for _, k := range slices.Sorted(maps.Keys(vars)) {
		v := vars[k]
		if k == "" {
			out.Errors = append(out.Errors, "environment variable name cannot be empty")
			continue
		}
		if !validate.EnvVarName(k) {
			out.Warnings = append(out.Warnings, fmt.Sprintf("%q does not follow the UPPER_SNAKE naming convention", k))
		}
		if v == "" {
			out.Warnings = append(out.Warnings, fmt.Sprintf("%q has an empty value", k))
		}
		if strings.ContainsAny(v, "\r\n") {
			out.Errors = append(out.Errors, fmt.Sprintf("%q value contains a newline", k))
		}
	}
	out.Valid = len(out.Errors) == 0
	return out
}

// Result describes an Apply call.
type Result struct {
	Success      bool              `json:"success"`
	Message      string            `json:"message"`
	Variables    map[string]string `json:"variables"`
	ShellCommand string            `json:"shellCommand,omitempty"`
}

// Applier sets variables in some environment. The process applier is the default.
type Applier interface {
	Apply(vars map[string]string) Result
}

// ProcessApplier sets variables with os.Setenv.
type ProcessApplier struct{}

func (ProcessApplier) Apply(vars map[string]string) Result {
	return Apply(vars)
}

// Apply sets vars in the current process environment.
func Apply(vars map[string]string) Result {
	for _, k := range slices.Sorted(maps.Keys(vars)) {
		if err := os.Setenv(k, vars[k]); err != nil {
			return Result{Success: false, Message: fmt.Sprintf("failed to set %s: %v", k, err), Variables: map[string]string{}}
		}
	}
	cmd, _ := Render(vars, DetectShellFormat())
	return Result{
		Success:      true,
		Message:      fmt.Sprintf("set %d environment variables in the current process", len(vars)),
		Variables:    vars,
		ShellCommand: cmd,
	}
}

// Masked returns a copy with credential-like values shortened for display.
func Masked(vars map[string]string) map[string]string {
	out := make(map[string]string, len(vars))
	for k, v := range vars {
		lower := strings.ToLower(k)
		if strings.Contains(lower, "key") || strings.Contains(lower, "token") {
			out[k] = provider.Mask(v)
			continue
		}
		out[k] = v
	}
	return out
}
