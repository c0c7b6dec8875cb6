package notify

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salmonumbrella/llmctl/internal/session"
)

func TestHash(t *testing.T) {
	tests := map[string]string{
		"":                              "0",
		"abc":                           "22ci",
		"hello world":                   "to5x38",
		"sk-ant-REDACTED": "-5j4ya5",
		"😀":                             "11zz7",
	}
	for in, want := range tests {
		assert.Equal(t, want, Hash(in), "Hash(%q)", in)
	}
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "sk-ant-a...", Preview("sk-ant-api03-xyz"))
	assert.Equal(t, "short...", Preview("short"))
}

func TestSignalPath(t *testing.T) {
	p := SignalPath("/tmp", "work")
	assert.Equal(t, filepath.Join("/tmp", "llmctl-token-update-work.json"), p)

	id, ok := providerFromPath(p)
	assert.True(t, ok)
	assert.Equal(t, "work", id)

	_, ok = providerFromPath("/tmp/llmctl-sessions.json")
	assert.False(t, ok)
}

func newTestFileNotifier(t *testing.T, now time.Time) *FileNotifier {
	n := NewFileNotifier(t.TempDir(), nil)
	n.now = func() time.Time { return now }
	return n
}

func TestFileNotifier_WriteAndCheck(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	n := newTestFileNotifier(t, now)
	sessions := []session.Session{{PID: 1}, {PID: 2}}

	count, err := n.Notify(context.Background(), "work", sessions, "sk-ant-new-token-value")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	data, err := os.ReadFile(SignalPath(n.Dir(), "work"))
	require.NoError(t, err)
	var sig Signal
	require.NoError(t, json.Unmarshal(data, &sig))
	assert.Equal(t, Signal{
		ProviderID:    "work",
		NewToken:      "sk-ant-n...",
		Timestamp:     now.UnixMilli(),
		FullTokenHash: Hash("sk-ant-new-token-value"),
	}, sig)

	update := n.Check("work")
	assert.True(t, update.HasUpdate)
	assert.Equal(t, sig.FullTokenHash, update.NewTokenHash)
	assert.Equal(t, now.UnixMilli(), update.Timestamp)

	assert.False(t, n.Check("home").HasUpdate)

	require.NoError(t, n.Clear("work"))
	assert.False(t, n.Check("work").HasUpdate)
	require.NoError(t, n.Clear("work"), "clearing twice is fine")
}

func TestFileNotifier_ExpiredSignalIsRemoved(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	n := newTestFileNotifier(t, now)
	_, err := n.Notify(context.Background(), "work", nil, "token-one-1234")
	require.NoError(t, err)

	n.now = func() time.Time { return now.Add(SignalTTL + time.Second) }
	assert.False(t, n.Check("work").HasUpdate)

	_, err = os.Stat(SignalPath(n.Dir(), "work"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFileNotifier_CorruptSignal(t *testing.T) {
	n := newTestFileNotifier(t, time.Now())
	require.NoError(t, os.WriteFile(SignalPath(n.Dir(), "work"), []byte("nope"), 0o644))
	assert.Equal(t, Update{}, n.Check("work"))
}

func TestFileNotifier_RemovesAfterTTL(t *testing.T) {
	n := NewFileNotifier(t.TempDir(), nil)
	n.ttl = 20 * time.Millisecond

	_, err := n.Notify(context.Background(), "work", nil, "token-one-1234")
	require.NoError(t, err)

	path := SignalPath(n.Dir(), "work")
	require.FileExists(t, path)
	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return errors.Is(err, os.ErrNotExist)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRemoveIfStale_KeepsNewerSignal(t *testing.T) {
	path := SignalPath(t.TempDir(), "work")
	require.NoError(t, writeSignal(path, Signal{ProviderID: "work", Timestamp: 200}))

	require.NoError(t, removeIfStale(path, 100))
	assert.FileExists(t, path)

	require.NoError(t, removeIfStale(path, 200))
	assert.NoFileExists(t, path)
}

func TestSignalNotifier_CountsLiveSessions(t *testing.T) {
	var sent []int
	n := &SignalNotifier{
		alive: func(pid int) bool { return pid != 2 },
		send: func(pid int) error {
			sent = append(sent, pid)
			if pid == 3 {
				return errors.New("permission denied")
			}
			return nil
		},
	}

	count, err := n.Notify(context.Background(), "work", []session.Session{{PID: 1}, {PID: 2}, {PID: 3}}, "t")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, []int{1, 3}, sent)
}

type fakeSource map[string][]session.Session

func (f fakeSource) SessionsFor(id string) ([]session.Session, error) { return f[id], nil }

type recordingNotifier struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *recordingNotifier) Notify(context.Context, string, []session.Session, string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return 0, r.err
}

func TestService_NotifyTokenSwitch(t *testing.T) {
	source := fakeSource{"work": {{PID: 10}, {PID: 11}}}
	file := newTestFileNotifier(t, time.Now())
	signals := &SignalNotifier{alive: func(int) bool { return true }, send: func(int) error { return nil }}
	hook := &recordingNotifier{err: errors.New("unreachable")}
	svc := NewService(source, file, WithSignalNotifier(signals), WithNotifiers(hook))

	res := svc.NotifyTokenSwitch(context.Background(), "home", "token-two-5678")
	assert.Equal(t, Result{Message: "no active sessions for home"}, res)
	assert.False(t, svc.CheckTokenUpdateSignal("home").HasUpdate)
	assert.Equal(t, 1, hook.calls, "webhooks fire without live sessions")

	res = svc.NotifyTokenSwitch(context.Background(), "work", "token-two-5678")
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.NotifiedSessions)
	assert.Equal(t, "notified 2 active sessions to reload the token", res.Message)
	assert.Equal(t, 2, hook.calls, "webhook failures do not fail the switch")

	update := svc.CheckTokenUpdateSignal("work")
	assert.True(t, update.HasUpdate)
	assert.Equal(t, Hash("token-two-5678"), update.NewTokenHash)

	require.NoError(t, svc.ClearTokenUpdateSignal("work"))
	assert.False(t, svc.CheckTokenUpdateSignal("work").HasUpdate)
}

type fakeSender struct {
	urls []string
	msgs []string
}

func (f *fakeSender) Send(url, message string) error {
	f.urls = append(f.urls, url)
	f.msgs = append(f.msgs, message)
	if url == "bad://" {
		return errors.New("dial bad://: Bearer sk-ant-REDACTED")
	}
	return nil
}

func TestWebhookNotifier(t *testing.T) {
	sender := &fakeSender{}
	n := NewWebhookNotifier([]string{"generic://example.com", "bad://"}, sender, func(id, tok string) string {
		return "Work (backup)"
	})

	sent, err := n.Notify(context.Background(), "work", nil, "sk-ant-secret-token")
	assert.Equal(t, 1, sent)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "sk-ant-api03-leaked")
	assert.Equal(t, []string{"llmctl: token switched for Work (backup)", "llmctl: token switched for Work (backup)"}, sender.msgs)

	plain := NewWebhookNotifier(nil, sender, nil)
	assert.Equal(t, "llmctl: token switched for work", plain.Message("work", "sk-ant-secret-token"))
}

func TestWatcher_DeliversSignals(t *testing.T) {
	dir := t.TempDir()
	got := make(chan Signal, 4)
	w, err := NewWatcher(WatcherConfig{
		Dir:        dir,
		ProviderID: "work",
		Debounce:   10 * time.Millisecond,
		OnSignal:   func(s Signal) { got <- s },
	})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	t.Cleanup(func() { _ = w.Stop() })

	require.NoError(t, writeSignal(SignalPath(dir, "home"), Signal{ProviderID: "home", Timestamp: 1}))
	require.NoError(t, writeSignal(SignalPath(dir, "work"), Signal{ProviderID: "work", Timestamp: 2}))

	select {
	case sig := <-got:
		assert.Equal(t, "work", sig.ProviderID)
		assert.Equal(t, int64(2), sig.Timestamp)
	case <-time.After(3 * time.Second):
		t.Fatal("no signal delivered")
	}
}

func TestNewWatcher_RequiresCallback(t *testing.T) {
	_, err := NewWatcher(WatcherConfig{Dir: t.TempDir()})
	assert.Error(t, err)
}
