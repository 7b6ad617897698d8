// Package collect is the data-collection sink for loop iterations.
//
// Every iteration outcome — success or failure — is recorded as one row
// in a SQLite database under the data directory. The sink is
// fire-and-forget from the scheduler's point of view: record failures
// are logged by the caller and never propagate into scheduling.
package collect

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Interaction is one recorded iteration outcome.
type Interaction struct {
	ID             int64         `json:"id"`
	LoopID         string        `json:"loop_id"`
	Topic          string        `json:"topic"`
	Iteration      int           `json:"iteration"`
	Success        bool          `json:"success"`
	Content        string        `json:"content,omitempty"`
	Error          string        `json:"error,omitempty"`
	Model          string        `json:"model,omitempty"`
	Provider       string        `json:"provider,omitempty"`
	ResponseTime   time.Duration `json:"response_time"`
	CreatedAt      string        `json:"created_at"`
}

// LoopStats aggregates the recorded outcomes of one loop.
type LoopStats struct {
	LoopID     string `json:"loop_id"`
	Total      int    `json:"total"`
	Successes  int    `json:"successes"`
	Failures   int    `json:"failures"`
	FirstAt    string `json:"first_at,omitempty"`
	LastAt     string `json:"last_at,omitempty"`
}

// Recorder is the interface the scheduler records through.
type Recorder interface {
	Record(interaction Interaction) error
}

// Store is the SQLite-backed Recorder with read queries for the
// history tool.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the interaction database in dataDir
// and runs migrations.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("collect: create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "interactions.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("collect: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("collect: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("collect: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS interactions (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			loop_id          TEXT    NOT NULL,
			topic            TEXT    NOT NULL,
			iteration        INTEGER NOT NULL,
			success          INTEGER NOT NULL,
			content          TEXT,
			error            TEXT,
			model            TEXT,
			provider         TEXT,
			response_time_ms INTEGER NOT NULL DEFAULT 0,
			created_at       TEXT    NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_interactions_loop    ON interactions(loop_id);
		CREATE INDEX IF NOT EXISTS idx_interactions_created ON interactions(created_at DESC);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Record inserts one interaction row.
func (s *Store) Record(in Interaction) error {
	_, err := s.db.Exec(`
		INSERT INTO interactions (loop_id, topic, iteration, success, content, error, model, provider, response_time_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.LoopID, in.Topic, in.Iteration, boolToInt(in.Success),
		in.Content, in.Error, in.Model, in.Provider,
		in.ResponseTime.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("collect: insert interaction: %w", err)
	}
	return nil
}

// Recent returns the newest interactions, optionally filtered by loop id.
func (s *Store) Recent(loopID string, limit int) ([]Interaction, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, loop_id, topic, iteration, success,
		       COALESCE(content, ''), COALESCE(error, ''),
		       COALESCE(model, ''), COALESCE(provider, ''),
		       response_time_ms, created_at
		FROM interactions`
	args := []any{}
	if loopID != "" {
		query += " WHERE loop_id = ?"
		args = append(args, loopID)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("collect: query recent: %w", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var in Interaction
		var success int
		var responseMs int64
		if err := rows.Scan(&in.ID, &in.LoopID, &in.Topic, &in.Iteration, &success,
			&in.Content, &in.Error, &in.Model, &in.Provider, &responseMs, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("collect: scan interaction: %w", err)
		}
		in.Success = success != 0
		in.ResponseTime = time.Duration(responseMs) * time.Millisecond
		out = append(out, in)
	}
	return out, rows.Err()
}

// Stats aggregates outcomes for one loop id.
func (s *Store) Stats(loopID string) (LoopStats, error) {
	row := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(success), 0),
		       COALESCE(MIN(created_at), ''),
		       COALESCE(MAX(created_at), '')
		FROM interactions WHERE loop_id = ?`, loopID)

	stats := LoopStats{LoopID: loopID}
	if err := row.Scan(&stats.Total, &stats.Successes, &stats.FirstAt, &stats.LastAt); err != nil {
		return LoopStats{}, fmt.Errorf("collect: stats for %s: %w", loopID, err)
	}
	stats.Failures = stats.Total - stats.Successes
	return stats, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
