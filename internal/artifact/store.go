// Package artifact stores finished acquisition outputs in an embedded
// sqlite database so reports survive process restarts.
package artifact

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when no artifact matches the requested id.
var ErrNotFound = errors.New("artifact not found")

// Meta describes a stored artifact without its payload.
type Meta struct {
	ID        string    `json:"id"`
	JobID     string    `json:"job_id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	SHA256    string    `json:"sha256"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is a sqlite-backed artifact catalog.
type Store struct {
	db *sql.DB
}

// Open opens or creates the artifact database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open artifact db: %w", err)
	}
	// sqlite allows a single writer; serializing through one connection
	// avoids SQLITE_BUSY under concurrent saves.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an existing database handle. Used by tests.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS artifacts (
			id         TEXT PRIMARY KEY,
			job_id     TEXT NOT NULL,
			name       TEXT NOT NULL,
			kind       TEXT NOT NULL,
			sha256     TEXT NOT NULL,
			size       INTEGER NOT NULL,
			data       BLOB NOT NULL,
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_artifacts_job ON artifacts(job_id);
	`)
	if err != nil {
		return fmt.Errorf("migrate artifact db: %w", err)
	}
	return nil
}

// Save stores a payload and returns its metadata. The content hash is
// computed here so callers cannot record a stale digest.
func (s *Store) Save(ctx context.Context, jobID, name, kind string, data []byte) (Meta, error) {
	sum := sha256.Sum256(data)
	m := Meta{
		ID:        uuid.NewString(),
		JobID:     jobID,
		Name:      name,
		Kind:      kind,
		SHA256:    hex.EncodeToString(sum[:]),
		Size:      int64(len(data)),
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (id, job_id, name, kind, sha256, size, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.JobID, m.Name, m.Kind, m.SHA256, m.Size, data, m.CreatedAt)
	if err != nil {
		return Meta{}, fmt.Errorf("save artifact: %w", err)
	}
	return m, nil
}

// Get returns one artifact's metadata and payload.
func (s *Store) Get(ctx context.Context, id string) (Meta, []byte, error) {
	var m Meta
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, job_id, name, kind, sha256, size, data, created_at
		 FROM artifacts WHERE id = ?`, id).
		Scan(&m.ID, &m.JobID, &m.Name, &m.Kind, &m.SHA256, &m.Size, &data, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Meta{}, nil, ErrNotFound
	}
	if err != nil {
		return Meta{}, nil, fmt.Errorf("get artifact: %w", err)
	}
	return m, data, nil
}

// List returns metadata for all artifacts, newest first. Payloads are not
// loaded.
func (s *Store) List(ctx context.Context) ([]Meta, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, name, kind, sha256, size, created_at
		 FROM artifacts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var out []Meta
	for rows.Next() {
		var m Meta
		if err := rows.Scan(&m.ID, &m.JobID, &m.Name, &m.Kind, &m.SHA256, &m.Size, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan artifact row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListByJob returns metadata for one job's artifacts, newest first.
func (s *Store) ListByJob(ctx context.Context, jobID string) ([]Meta, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, name, kind, sha256, size, created_at
		 FROM artifacts WHERE job_id = ? ORDER BY created_at DESC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts for job: %w", err)
	}
	defer rows.Close()

	var out []Meta
	for rows.Next() {
		var m Meta
		if err := rows.Scan(&m.ID, &m.JobID, &m.Name, &m.Kind, &m.SHA256, &m.Size, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan artifact row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
