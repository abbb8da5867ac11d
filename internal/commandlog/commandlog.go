// Package commandlog is an append-only audit trail of every mutating RPC
// the engine accepts (log_command / clus_log_command), backed by SQLite
// so a restart doesn't lose the history an operator might need to
// reconstruct "who did what." Uses a WAL-mode, busy-timeout SQLite
// connection, without any vector-search extension since there is no
// similarity search here.
package commandlog

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/icsd/icsd/internal/xerrors"
	"go.uber.org/zap"
)

const (
	journalMode      = "WAL"
	busyTimeoutMS    = 5000
	createTableStmt  = `CREATE TABLE IF NOT EXISTS command_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts DATETIME NOT NULL,
		node TEXT NOT NULL,
		remote_origin TEXT NOT NULL DEFAULT '',
		command TEXT NOT NULL,
		args TEXT NOT NULL DEFAULT '',
		result TEXT NOT NULL DEFAULT ''
	)`
)

// Entry is one recorded command invocation.
type Entry struct {
	ID           int64
	Time         time.Time
	Node         string
	RemoteOrigin string
	Command      string
	Args         string
	Result       string
}

// Store is the SQLite-backed command log.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the command log database at path
// and ensures its schema exists.
func Open(path string, log *zap.SugaredLogger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, xerrors.Wrapf(err, "create command log directory %s", dir)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, xerrors.Wrapf(err, "open command log at %s", path)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = " + journalMode,
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, xerrors.Wrapf(err, "apply pragma %q", pragma)
		}
	}

	if _, err := db.Exec(createTableStmt); err != nil {
		db.Close()
		return nil, xerrors.Wrap(err, "create command_log table")
	}

	if log != nil {
		log.Infow("command log opened", "path", path)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Append records one command invocation. remoteOrigin is empty for
// locally issued commands and the origin node name for clus_* fan-out.
func (s *Store) Append(ctx context.Context, node, remoteOrigin, command, args, result string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO command_log (ts, node, remote_origin, command, args, result) VALUES (?, ?, ?, ?, ?, ?)`,
		time.Now(), node, remoteOrigin, command, args, result,
	)
	if err != nil {
		return xerrors.Wrap(err, "append command log entry")
	}
	return nil
}

// Recent returns the most recent limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, node, remote_origin, command, args, result FROM command_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, xerrors.Wrap(err, "query command log")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Time, &e.Node, &e.RemoteOrigin, &e.Command, &e.Args, &e.Result); err != nil {
			return nil, xerrors.Wrap(err, "scan command log row")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
