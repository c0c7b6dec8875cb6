package cmdutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveSecretInput(t *testing.T) {
	tmpDir := t.TempDir()
	secretFile := filepath.Join(tmpDir, "token.txt")
	if err := os.WriteFile(secretFile, []byte("  sk-from-file-123456  \n"), 0o600); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	tests := []struct {
		name    string
		raw     string
		stdin   string
		want    string
		wantErr bool
	}{
		{name: "inline passthrough", raw: "sk-inline-123456", want: "sk-inline-123456"},
		{name: "inline trimmed", raw: "  sk-inline-123456\n", want: "sk-inline-123456"},
		{name: "at file", raw: "@" + secretFile, want: "sk-from-file-123456"},
		{name: "stdin", raw: "-", stdin: "sk-from-stdin-1234\n", want: "sk-from-stdin-1234"},
		{name: "missing file", raw: "@" + filepath.Join(tmpDir, "nope"), wantErr: true},
		{name: "bare at", raw: "@", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := stdin
			stdin = strings.NewReader(tt.stdin)
			t.Cleanup(func() { stdin = orig })

			got, err := ResolveSecretInput(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveSecretInput(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestMaskToken(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"sk-ant-api03-abcdef", "sk-ant-a..."},
		{"12345678", "12345678"},
		{"short", "short"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := MaskToken(tt.in); got != tt.want {
			t.Errorf("MaskToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
