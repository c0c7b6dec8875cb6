package session

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	pid INTEGER PRIMARY KEY,
	id TEXT NOT NULL DEFAULT '',
	provider_id TEXT NOT NULL,
	provider_name TEXT NOT NULL DEFAULT '',
	start_time INTEGER NOT NULL,
	last_activity INTEGER NOT NULL,
	terminal TEXT NOT NULL DEFAULT '',
	command TEXT NOT NULL DEFAULT '',
	persistent INTEGER NOT NULL DEFAULT 0,
	working_directory TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_sessions_provider ON sessions(provider_id);

CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);`

// SQLiteBackend stores one row per session. Modify runs inside
// BEGIN IMMEDIATE so concurrent writers queue on the database lock.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLiteBackend opens (and creates) the registry database at path.
func OpenSQLiteBackend(path string) (*SQLiteBackend, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create session directory %s: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", path, LockTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database at %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create session schema: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readSnapshot(ctx context.Context, q queryer) (*Snapshot, error) {
	rows, err := q.QueryContext(ctx, `SELECT pid, id, provider_id, provider_name, start_time, last_activity,
		terminal, command, persistent, working_directory FROM sessions ORDER BY start_time, pid`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	snap := &Snapshot{Sessions: []Session{}}
	for rows.Next() {
		var s Session
		var persistent int
		if err := rows.Scan(&s.PID, &s.ID, &s.ProviderID, &s.ProviderName, &s.StartTime, &s.LastActivity,
			&s.Terminal, &s.Command, &persistent, &s.WorkingDirectory); err != nil {
			return nil, err
		}
		s.Persistent = persistent != 0
		snap.Sessions = append(snap.Sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = q.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'last_updated'`).Scan(&snap.LastUpdated)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	return snap, nil
}

func (b *SQLiteBackend) Read() (*Snapshot, error) {
	return readSnapshot(context.Background(), b.db)
}

func (b *SQLiteBackend) Modify(now int64, fn func(*Snapshot) bool) (err error) {
	ctx := context.Background()
	conn, err := b.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("lock session database: %w", err)
	}
	defer func() {
		if err != nil {
			_, _ = conn.ExecContext(ctx, "ROLLBACK")
		}
	}()

	snap, err := readSnapshot(ctx, conn)
	if err != nil {
		return err
	}
	if !fn(snap) {
		_, err = conn.ExecContext(ctx, "COMMIT")
		return err
	}

	if _, err = conn.ExecContext(ctx, "DELETE FROM sessions"); err != nil {
		return err
	}
	for _, s := range snap.Sessions {
		_, err = conn.ExecContext(ctx, `INSERT OR REPLACE INTO sessions (pid, id, provider_id, provider_name,
			start_time, last_activity, terminal, command, persistent, working_directory)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.PID, s.ID, s.ProviderID, s.ProviderName, s.StartTime, s.LastActivity,
			s.Terminal, s.Command, boolInt(s.Persistent), s.WorkingDirectory)
		if err != nil {
			return err
		}
	}
	if _, err = conn.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES ('last_updated', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, now); err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, "COMMIT")
	return err
}

func (b *SQLiteBackend) Clear() error {
	_, err := b.db.Exec(`DELETE FROM sessions; DELETE FROM meta;`)
	return err
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
