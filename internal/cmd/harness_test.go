package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/salmonumbrella/llmctl/internal/auth"
	"github.com/salmonumbrella/llmctl/internal/config"
	"github.com/salmonumbrella/llmctl/internal/prompt"
)

const (
	testToken  = "sk-test-aaaaaaaaaaaa1111"
	testToken2 = "sk-test-bbbbbbbbbbbb2222"
	testToken3 = "sk-test-cccccccccccc3333"
)

// cliHarness runs the CLI against a throwaway config file and session dir.
type cliHarness struct {
	t        *testing.T
	dir      string
	out      *bytes.Buffer
	errOut   *bytes.Buffer
	prompter *prompt.Scripted
	app      *App
	keyring  *auth.MockKeyring
}

func newHarness(t *testing.T) *cliHarness {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("LLMCTL_CONFIG", filepath.Join(dir, "config.yaml"))
	t.Setenv("LLMCTL_SESSION_DIR", filepath.Join(dir, "sessions"))
	t.Setenv("LLMCTL_OUTPUT", "")

	ring := auth.NewMockKeyringProvider()
	auth.SetProviderFunc(func() (auth.KeyringProvider, error) { return ring, nil })
	t.Cleanup(func() { auth.SetProviderFunc(nil) })

	h := &cliHarness{
		t:        t,
		dir:      dir,
		out:      &bytes.Buffer{},
		errOut:   &bytes.Buffer{},
		prompter: &prompt.Scripted{},
		keyring:  ring,
	}
	h.app = &App{
		Stdout:   h.out,
		Stderr:   h.errOut,
		Stdin:    strings.NewReader(""),
		Version:  "test",
		Prompter: h.prompter,
	}
	return h
}

// run executes args with fresh output buffers.
func (h *cliHarness) run(args ...string) error {
	h.t.Helper()
	h.out.Reset()
	h.errOut.Reset()
	return h.app.Execute(context.Background(), args)
}

func (h *cliHarness) mustRun(args ...string) string {
	h.t.Helper()
	if err := h.run(args...); err != nil {
		h.t.Fatalf("%s: %v\nstderr=%s", strings.Join(args, " "), err, h.errOut.String())
	}
	return h.out.String()
}

func (h *cliHarness) decode(v any) {
	h.t.Helper()
	if err := json.Unmarshal(h.out.Bytes(), v); err != nil {
		h.t.Fatalf("decode stdout: %v\nstdout=%s", err, h.out.String())
	}
}

func (h *cliHarness) config() *config.Config {
	h.t.Helper()
	cfg, err := config.Load()
	if err != nil {
		h.t.Fatalf("load config: %v", err)
	}
	return cfg
}

// addProvider adds id with testToken and fails the test on error.
func (h *cliHarness) addProvider(id string, extra ...string) {
	h.t.Helper()
	args := append([]string{"provider", "add", id, "--token", testToken, "--yes"}, extra...)
	h.mustRun(args...)
}
