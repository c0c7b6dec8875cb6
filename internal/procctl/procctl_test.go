package procctl

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args []string
}

type fakeRunner struct {
	outputs map[string]string
	failing map[string]bool
	onPath  map[string]bool
	calls   []call
	started []call
}

func (f *fakeRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, call{name, args})
	if f.failing[name] {
		return nil, errors.New(name + " failed")
	}
	out, ok := f.outputs[name]
	if !ok {
		return nil, errors.New(name + ": not found")
	}
	return []byte(out), nil
}

func (f *fakeRunner) Start(_ context.Context, name string, args ...string) error {
	if f.failing[name] {
		return errors.New(name + " failed")
	}
	f.started = append(f.started, call{name, args})
	return nil
}

func (f *fakeRunner) StartCommandLine(_ context.Context, name, line string) error {
	if f.failing[name] {
		return errors.New(name + " failed")
	}
	f.started = append(f.started, call{name, []string{line}})
	return nil
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	if f.onPath[name] {
		return "/usr/bin/" + name, nil
	}
	return "", errors.New("not found")
}

func noLink(string) (string, error) { return "", errors.New("no /proc") }

func TestDetectWorkingDir_Posix(t *testing.T) {
	ctx := context.Background()

	t.Run("proc link", func(t *testing.T) {
		r := &fakeRunner{}
		c := New(WithGOOS("linux"), WithRunner(r), WithReadlink(func(p string) (string, error) {
			assert.Equal(t, "/proc/42/cwd", p)
			return "/home/me/project", nil
		}))
		dir, ok := c.DetectWorkingDir(ctx, 42)
		assert.True(t, ok)
		assert.Equal(t, "/home/me/project", dir)
		assert.Empty(t, r.calls)
	})

	t.Run("lsof", func(t *testing.T) {
		r := &fakeRunner{outputs: map[string]string{"lsof": strings.Join([]string{
			"COMMAND   PID USER   FD   TYPE DEVICE SIZE/OFF    NODE NAME",
			"claude     42 me    cwd    DIR    1,4      640 1234567 /Users/me/my project",
			"claude     42 me    txt    REG    1,4    90000 7654321 /usr/local/bin/claude",
		}, "\n")}}
		c := New(WithGOOS("darwin"), WithRunner(r), WithReadlink(noLink))
		dir, ok := c.DetectWorkingDir(ctx, 42)
		assert.True(t, ok)
		assert.Equal(t, "/Users/me/my project", dir)
	})

	t.Run("pwdx", func(t *testing.T) {
		r := &fakeRunner{
			failing: map[string]bool{"lsof": true},
			outputs: map[string]string{"pwdx": "42: /srv/app\n"},
		}
		c := New(WithGOOS("linux"), WithRunner(r), WithReadlink(noLink))
		dir, ok := c.DetectWorkingDir(ctx, 42)
		assert.True(t, ok)
		assert.Equal(t, "/srv/app", dir)
		require.Len(t, r.calls, 2)
		assert.Equal(t, call{"pwdx", []string{"42"}}, r.calls[1])
	})

	t.Run("nothing works", func(t *testing.T) {
		c := New(WithGOOS("linux"), WithRunner(&fakeRunner{}), WithReadlink(noLink))
		_, ok := c.DetectWorkingDir(ctx, 42)
		assert.False(t, ok)
	})
}

func TestDetectWorkingDir_Windows(t *testing.T) {
	ctx := context.Background()

	t.Run("wmic", func(t *testing.T) {
		r := &fakeRunner{outputs: map[string]string{"wmic": "\r\nNode,CommandLine,ExecutablePath\r\nPC,claude --resume,C:\\Users\\me\\tools\\claude.exe\r\n"}}
		c := New(WithGOOS("windows"), WithRunner(r))
		dir, ok := c.DetectWorkingDir(ctx, 7)
		assert.True(t, ok)
		assert.Equal(t, filepath.FromSlash("C:/Users/me/tools"), dir)
	})

	t.Run("wmic skips runtime dirs", func(t *testing.T) {
		r := &fakeRunner{outputs: map[string]string{"wmic": "Node,CommandLine,ExecutablePath\nPC,node claude.js,C:\\Program Files\\nodejs\\node.exe\n"}}
		c := New(WithGOOS("windows"), WithRunner(r))
		_, ok := c.DetectWorkingDir(ctx, 7)
		assert.False(t, ok)
	})

	t.Run("powershell command line", func(t *testing.T) {
		r := &fakeRunner{
			failing: map[string]bool{"wmic": true},
			outputs: map[string]string{"powershell": `claude.exe --cwd="D:\work\repo"` + "\r\n"},
		}
		c := New(WithGOOS("windows"), WithRunner(r))
		dir, ok := c.DetectWorkingDir(ctx, 7)
		assert.True(t, ok)
		assert.Equal(t, `D:\work\repo`, dir)
	})

	t.Run("powershell not found", func(t *testing.T) {
		r := &fakeRunner{
			failing: map[string]bool{"wmic": true},
			outputs: map[string]string{"powershell": "NotFound"},
		}
		c := New(WithGOOS("windows"), WithRunner(r))
		_, ok := c.DetectWorkingDir(ctx, 7)
		assert.False(t, ok)
	})
}

type signalLog struct {
	sent    []bool
	failAt  int
	slept   time.Duration
}

func (s *signalLog) signal(_ int, force bool) error {
	s.sent = append(s.sent, force)
	if len(s.sent) == s.failAt {
		return errors.New("no such process")
	}
	return nil
}

func (s *signalLog) sleep(_ context.Context, d time.Duration) error {
	s.slept += d
	return nil
}

func TestTerminate_Posix(t *testing.T) {
	tests := []struct {
		name   string
		failAt int
		want   TerminateOutcome
		sent   []bool
		slept  time.Duration
	}{
		{"kill after grace", 0, Killed, []bool{false, true}, KillGrace},
		{"exits on SIGTERM", 2, Exited, []bool{false, true}, KillGrace},
		{"already gone", 1, AlreadyGone, []bool{false}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &signalLog{failAt: tt.failAt}
			c := New(WithGOOS("linux"), WithSignal(log.signal), WithSleep(log.sleep))
			got, err := c.Terminate(context.Background(), 99)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.sent, log.sent)
			assert.Equal(t, tt.slept, log.slept)
		})
	}
}

func TestTerminate_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := New(WithGOOS("linux"), WithSignal(func(int, bool) error { return nil }))
	_, err := c.Terminate(ctx, 99)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTerminate_Windows(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{"taskkill": "SUCCESS"}}
	c := New(WithGOOS("windows"), WithRunner(r))
	got, err := c.Terminate(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, Killed, got)
	assert.Equal(t, call{"taskkill", []string{"/PID", "12", "/F"}}, r.calls[0])

	r.failing = map[string]bool{"taskkill": true}
	got, err = c.Terminate(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, AlreadyGone, got)
}

func TestRelaunchInTerminal(t *testing.T) {
	ctx := context.Background()

	t.Run("first available terminal", func(t *testing.T) {
		r := &fakeRunner{onPath: map[string]bool{"xterm": true, "Terminal": true}}
		c := New(WithGOOS("linux"), WithRunner(r))
		res := c.RelaunchInTerminal(ctx, "work", "/srv/app")
		assert.True(t, res.Launched)
		assert.Equal(t, "xterm", res.Terminal)
		require.Len(t, r.started, 1)
		assert.Equal(t, []string{"-e", "bash", "-c", `cd "/srv/app" && llmctl use work --cli; exec bash`}, r.started[0].args)
	})

	t.Run("gnome terminal gets working directory", func(t *testing.T) {
		r := &fakeRunner{onPath: map[string]bool{"gnome-terminal": true}}
		c := New(WithGOOS("linux"), WithRunner(r))
		res := c.RelaunchInTerminal(ctx, "work", "/srv/app")
		assert.Equal(t, "gnome-terminal", res.Terminal)
		assert.Equal(t, []string{"--working-directory", "/srv/app", "--", "bash", "-c", ShellCommand("work", "/srv/app")}, r.started[0].args)
	})

	t.Run("manual fallback", func(t *testing.T) {
		c := New(WithGOOS("linux"), WithRunner(&fakeRunner{}))
		res := c.RelaunchInTerminal(ctx, "work", "/srv/app")
		assert.False(t, res.Launched)
		assert.Equal(t, []string{`cd "/srv/app"`, "llmctl use work"}, res.Manual)
	})

	t.Run("windows", func(t *testing.T) {
		r := &fakeRunner{}
		c := New(WithGOOS("windows"), WithRunner(r))
		res := c.RelaunchInTerminal(ctx, "work", `C:\src`)
		assert.True(t, res.Launched)
		require.Len(t, r.started, 1)
		assert.Equal(t, "cmd", r.started[0].name)
		assert.Equal(t, []string{`cmd /c start "llmctl - work" cmd /k "cd /d "C:\src" && llmctl use work --cli"`}, r.started[0].args)
		assert.NotContains(t, r.started[0].args[0], `\"`)
	})

	t.Run("windows without cmd", func(t *testing.T) {
		r := &fakeRunner{failing: map[string]bool{"cmd": true}}
		c := New(WithGOOS("windows"), WithRunner(r))
		res := c.RelaunchInTerminal(ctx, "work", `C:\src`)
		assert.False(t, res.Launched)
		assert.Equal(t, []string{`cd "C:\src"`, "llmctl use work"}, res.Manual)
	})
}
