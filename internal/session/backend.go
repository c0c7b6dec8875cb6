package session

import (
	"fmt"
	"path/filepath"
)

const (
	// FileName is the JSON registry in the session directory.
	FileName = "llmctl-sessions.json"
	// DBName is the SQLite registry in the session directory.
	DBName = "llmctl-sessions.db"
)

// Backend persists the registry snapshot.
type Backend interface {
	// Read returns the current snapshot. A missing or unreadable store reads as empty.
	Read() (*Snapshot, error)
	// Modify applies fn under an exclusive cross-process lock. The snapshot is
	// written back, with LastUpdated set to now, only when fn reports a change.
	Modify(now int64, fn func(*Snapshot) bool) error
	// Clear removes all sessions.
	Clear() error
	Close() error
}

// OpenBackend opens the named backend ("file" or "sqlite") in dir.
func OpenBackend(kind, dir string) (Backend, error) {
	switch kind {
	case "", "file":
		return NewFileBackend(filepath.Join(dir, FileName)), nil
	case "sqlite":
		return OpenSQLiteBackend(filepath.Join(dir, DBName))
	default:
		return nil, fmt.Errorf("unknown session backend %q", kind)
	}
}
