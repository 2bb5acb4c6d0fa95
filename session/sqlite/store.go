// Package sqlite provides a session.Store backed by SQLite through the
// pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/CatchTheTornado/agent-doodle/session"
)

// Store is a session.Store persisting runs in a single table. The run
// record is stored as JSON next to the indexed columns used by List.
type Store struct {
	db *sql.DB
}

var _ session.Store = (*Store)(nil)

// Open opens (or creates) the database at dsn and initializes the schema.
// Use ":memory:" for a private in-memory database.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// An in-memory database exists per connection.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New initializes the required schema in db and returns a Store. The
// caller keeps ownership of db unless it uses Close.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			flow_code TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			data BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS runs_flow_started ON runs (flow_code, started_at);`,
	)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Save inserts or replaces run.
func (s *Store) Save(ctx context.Context, run *session.Run) error {
	if run == nil || run.ID == "" {
		return errors.New("run id is required")
	}
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", run.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, flow_code, status, started_at, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			flow_code = excluded.flow_code,
			status = excluded.status,
			started_at = excluded.started_at,
			data = excluded.data`,
		run.ID,
		run.FlowCode,
		string(run.Status),
		run.StartedAt.UnixNano(),
		data,
	)
	return err
}

// Get returns the run with the given id.
func (s *Store) Get(ctx context.Context, id string) (*session.Run, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM runs WHERE id = ?`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", session.ErrNotFound, id)
		}
		return nil, err
	}
	return decode(data)
}

// List returns the matching runs, newest first.
func (s *Store) List(ctx context.Context, filter session.Filter) ([]*session.Run, error) {
	query := `SELECT data FROM runs`
	var args []any
	var clauses []string

	if filter.FlowCode != "" {
		clauses = append(clauses, "flow_code = ?")
		args = append(args, filter.FlowCode)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY started_at DESC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*session.Run
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		run, err := decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func decode(data []byte) (*session.Run, error) {
	var run session.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("decode run: %w", err)
	}
	return &run, nil
}
