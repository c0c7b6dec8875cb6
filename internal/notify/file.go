package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/salmonumbrella/llmctl/internal/session"
)

// SignalTTL is how long a token update file stays valid.
const SignalTTL = 30 * time.Second

// FileNotifier writes token update files into a shared directory.
type FileNotifier struct {
	dir    string
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewFileNotifier writes signal files into dir.
func NewFileNotifier(dir string, logger *slog.Logger) *FileNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileNotifier{dir: dir, ttl: SignalTTL, now: time.Now, logger: logger}
}

// Dir is the directory signal files live in.
func (n *FileNotifier) Dir() string { return n.dir }

// Notify writes the update file for providerID and schedules its removal
// after the TTL. Every session can read the file, so all are counted.
func (n *FileNotifier) Notify(_ context.Context, providerID string, sessions []session.Session, newToken string) (int, error) {
	sig := Signal{
		ProviderID:    providerID,
		NewToken:      Preview(newToken),
		Timestamp:     n.now().UnixMilli(),
		FullTokenHash: Hash(newToken),
	}
	path := SignalPath(n.dir, providerID)
	if err := writeSignal(path, sig); err != nil {
		return 0, err
	}

	time.AfterFunc(n.ttl, func() {
		if err := removeIfStale(path, sig.Timestamp); err != nil {
			n.logger.Debug("failed to remove signal file", "path", path, "error", err)
		}
	})
	return len(sessions), nil
}

func writeSignal(path string, sig Signal) error {
	data, err := json.MarshalIndent(sig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode signal: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create signal directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write signal file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write signal file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write signal file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write signal file: %w", err)
	}
	return nil
}

func readSignal(path string) (*Signal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sig Signal
	if err := json.Unmarshal(data, &sig); err != nil {
		return nil, err
	}
	return &sig, nil
}

// removeIfStale deletes path unless a newer switch rewrote it.
func removeIfStale(path string, timestamp int64) error {
	sig, err := readSignal(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err == nil && sig.Timestamp > timestamp {
		return nil
	}
	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Check reports a pending update for providerID. Files older than the TTL
// are deleted and reported as no update.
func (n *FileNotifier) Check(providerID string) Update {
	path := SignalPath(n.dir, providerID)
	sig, err := readSignal(path)
	if err != nil || sig.ProviderID != providerID {
		return Update{}
	}
	if n.now().Sub(time.UnixMilli(sig.Timestamp)) > n.ttl {
		_ = os.Remove(path)
		return Update{}
	}
	return Update{HasUpdate: true, NewTokenHash: sig.FullTokenHash, Timestamp: sig.Timestamp}
}

// Clear removes the update file for providerID.
func (n *FileNotifier) Clear(providerID string) error {
	err := os.Remove(SignalPath(n.dir, providerID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
