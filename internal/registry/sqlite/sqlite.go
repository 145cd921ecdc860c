package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/loykin/srvctl/internal/registry"
)

// Store implements registry.Store on SQLite (modernc.org/sqlite driver, CGO-free).
// The path is a filesystem path to the database file; ":memory:" is accepted.
type Store struct {
	db *sql.DB
}

// New opens the database at path and ensures the schema exists.
func New(path string) (*Store, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	p = strings.TrimPrefix(p, "sqlite://")
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases shared between calls
	d.SetMaxOpenConns(1)
	// busy timeout helps with short concurrent locks
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	s := &Store{db: d}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = d.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS servers(
			name TEXT PRIMARY KEY,
			command TEXT NOT NULL,
			port INTEGER NOT NULL,
			working_directory TEXT NOT NULL,
			description TEXT NOT NULL,
			auto_start BOOLEAN NOT NULL,
			pid INTEGER NULL,
			status TEXT NOT NULL
		);`)
	return err
}

func (s *Store) Load(ctx context.Context) (registry.Registry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, command, port, working_directory, description, auto_start, pid, status
		FROM servers;`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	reg := registry.Registry{}
	for rows.Next() {
		var (
			srv    registry.Server
			pid    sql.NullInt64
			status string
		)
		if err := rows.Scan(&srv.Name, &srv.Command, &srv.Port, &srv.WorkingDirectory,
			&srv.Description, &srv.AutoStart, &pid, &status); err != nil {
			return nil, registry.Corrupt(err)
		}
		if pid.Valid {
			srv.PID = registry.IntPtr(int(pid.Int64))
		}
		srv.Status = registry.Status(status)
		if err := registry.Validate(srv.Name, &srv); err != nil {
			return nil, err
		}
		reg[srv.Name] = srv
	}
	return reg, rows.Err()
}

// Save replaces the whole table in one transaction.
func (s *Store) Save(ctx context.Context, r registry.Registry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM servers;`); err != nil {
		return err
	}
	for _, name := range r.Names() {
		srv := r[name]
		var pid any
		if srv.PID != nil {
			pid = *srv.PID
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO servers(name, command, port, working_directory, description, auto_start, pid, status)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?);`,
			name, srv.Command, srv.Port, srv.WorkingDirectory, srv.Description, srv.AutoStart, pid, string(srv.Status)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) Close() error { return s.db.Close() }
