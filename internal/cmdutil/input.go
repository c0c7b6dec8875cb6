package cmdutil

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// stdin is swapped in tests.
var stdin io.Reader = os.Stdin

// ResolveSecretInput resolves a secret passed inline, as @file, or "-" for stdin.
// Passing secrets through @file or stdin keeps them out of shell history.
func ResolveSecretInput(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "-" {
		return ReadInputSource("-")
	}
	if strings.HasPrefix(trimmed, "@") {
		return ReadInputSource(trimmed[1:])
	}
	return trimmed, nil
}

// ReadInputSource reads input from a file path or stdin when path is "-".
func ReadInputSource(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("input file path is required")
	}
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file %q: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// MaskToken shows the first 8 characters of a credential followed by "...".
// Shorter values are returned unchanged.
func MaskToken(value string) string {
	if len(value) <= 8 {
		return value
	}
	return value[:8] + "..."
}
