// Package sqlite provides the durable record store: an append-only records
// table in a SQLite database, using the pure-Go modernc.org/sqlite driver so
// builds stay cgo-free.
package sqlite

import (
	"database/sql"
	"fmt"
	"iter"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/loomlabs/loom/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	kind       TEXT    NOT NULL,
	session_id TEXT    NOT NULL,
	agent_id   TEXT    NOT NULL DEFAULT '',
	seq        INTEGER NOT NULL DEFAULT 0,
	payload    BLOB    NOT NULL,
	created_at TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_session ON records(session_id, id);
`

// Store is a SQLite-backed core.Store.
type Store struct {
	db *sql.DB
}

var _ core.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and ensures the
// schema exists. Appends are serialized through a single connection so the
// assigned ids stay strictly monotonic.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Append durably inserts the record and returns its assigned id.
func (s *Store) Append(r core.Record) (int64, error) {
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	res, err := s.db.Exec(
		`INSERT INTO records (kind, session_id, agent_id, seq, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(r.Kind), r.SessionID, r.AgentID, r.Seq, []byte(r.Payload),
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("append record: %w", err)
	}
	return res.LastInsertId()
}

// Get returns the record with the given id.
func (s *Store) Get(id int64) (core.Record, error) {
	row := s.db.QueryRow(
		`SELECT id, kind, session_id, agent_id, seq, payload, created_at
		 FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return core.Record{}, fmt.Errorf("record %d not found", id)
	}
	return rec, err
}

// List yields matching records in id order.
func (s *Store) List(f core.Filter) iter.Seq2[core.Record, error] {
	query := `SELECT id, kind, session_id, agent_id, seq, payload, created_at FROM records`
	var conds []string
	var args []any
	if f.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.SessionID != "" {
		conds = append(conds, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.AgentID != "" {
		conds = append(conds, "agent_id = ?")
		args = append(args, f.AgentID)
	}
	if f.AfterID > 0 {
		conds = append(conds, "id > ?")
		args = append(args, f.AfterID)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"

	return func(yield func(core.Record, error) bool) {
		rows, err := s.db.Query(query, args...)
		if err != nil {
			yield(core.Record{}, fmt.Errorf("list records: %w", err))
			return
		}
		defer rows.Close()
		for rows.Next() {
			rec, err := scanRecord(rows)
			if !yield(rec, err) {
				return
			}
			if err != nil {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(core.Record{}, fmt.Errorf("list records: %w", err))
		}
	}
}

// Sessions returns the distinct session ids present in the store, oldest
// first.
func (s *Store) Sessions() ([]string, error) {
	rows, err := s.db.Query(
		`SELECT session_id FROM records WHERE kind = ? ORDER BY id`,
		string(core.RecordSession))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (core.Record, error) {
	var rec core.Record
	var kind, createdAt string
	var payload []byte
	if err := row.Scan(&rec.ID, &kind, &rec.SessionID, &rec.AgentID, &rec.Seq, &payload, &createdAt); err != nil {
		return core.Record{}, err
	}
	rec.Kind = core.RecordKind(kind)
	rec.Payload = payload
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return core.Record{}, fmt.Errorf("record %d: bad created_at: %w", rec.ID, err)
	}
	rec.CreatedAt = ts
	return rec, nil
}
