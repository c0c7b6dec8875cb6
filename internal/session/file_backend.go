package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LockTimeout bounds how long a writer waits for the registry lock.
const LockTimeout = 5 * time.Second

// FileBackend stores the registry as one JSON file next to a lock file.
type FileBackend struct {
	path string
}

// NewFileBackend returns a backend for the JSON file at path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Path returns the registry file.
func (b *FileBackend) Path() string { return b.path }

func (b *FileBackend) lockPath() string { return b.path + ".lock" }

func (b *FileBackend) Read() (*Snapshot, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return &Snapshot{Sessions: []Session{}}, nil
	}
	if err != nil {
		return nil, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return &Snapshot{Sessions: []Session{}}, nil
	}
	if snap.Sessions == nil {
		snap.Sessions = []Session{}
	}
	return &snap, nil
}

func (b *FileBackend) Modify(now int64, fn func(*Snapshot) bool) error {
	unlock, err := b.lock()
	if err != nil {
		return err
	}
	defer unlock()

	snap, err := b.Read()
	if err != nil {
		return err
	}
	if !fn(snap) {
		return nil
	}
	snap.LastUpdated = now
	return b.write(snap)
}

func (b *FileBackend) write(snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(b.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(b.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp registry: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, b.path)
}

func (b *FileBackend) Clear() error {
	unlock, err := b.lock()
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.Remove(b.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (b *FileBackend) Close() error { return nil }

// lock takes the exclusive lock file, polling until LockTimeout.
func (b *FileBackend) lock() (func(), error) {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(b.lockPath(), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open registry lock: %w", err)
	}

	deadline := time.Now().Add(LockTimeout)
	for {
		ok, err := tryLock(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("lock registry: %w", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			_ = f.Close()
			return nil, fmt.Errorf("timed out after %s waiting for %s", LockTimeout, b.lockPath())
		}
		time.Sleep(25 * time.Millisecond)
	}

	return func() {
		_ = unlockFile(f)
		_ = f.Close()
	}, nil
}
