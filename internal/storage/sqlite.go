package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the run catalog in one SQLite file. Trajectories are
// stored as gonum binary-encoded matrices.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, meta RunMetadata, states *mat.Dense) (string, error) {
	db, err := s.getDB()
	if err != nil {
		return "", err
	}

	meta = prepare(meta, states)
	metrics, err := json.Marshal(meta.Metrics)
	if err != nil {
		return "", err
	}
	var payload []byte
	if states != nil {
		if payload, err = states.MarshalBinary(); err != nil {
			return "", fmt.Errorf("encode trajectory: %w", err)
		}
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, kind, source, backend, created_at, seed, nodes, inputs, controls, dt, gamma, steps, metrics, trajectory)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			source = excluded.source,
			backend = excluded.backend,
			created_at = excluded.created_at,
			seed = excluded.seed,
			nodes = excluded.nodes,
			inputs = excluded.inputs,
			controls = excluded.controls,
			dt = excluded.dt,
			gamma = excluded.gamma,
			steps = excluded.steps,
			metrics = excluded.metrics,
			trajectory = excluded.trajectory
	`, meta.ID, meta.Kind, meta.Source, meta.Backend, meta.Timestamp.UnixNano(), meta.Seed,
		meta.Nodes, meta.Inputs, meta.Controls, meta.Dt, meta.Gamma, meta.Steps, string(metrics), payload)
	if err != nil {
		return "", err
	}
	return meta.ID, nil
}

const metadataColumns = `id, kind, source, backend, created_at, seed, nodes, inputs, controls, dt, gamma, steps, metrics`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMetadata(row rowScanner) (RunMetadata, error) {
	var (
		meta    RunMetadata
		created int64
		metrics string
	)
	err := row.Scan(&meta.ID, &meta.Kind, &meta.Source, &meta.Backend, &created, &meta.Seed,
		&meta.Nodes, &meta.Inputs, &meta.Controls, &meta.Dt, &meta.Gamma, &meta.Steps, &metrics)
	if err != nil {
		return RunMetadata{}, err
	}
	meta.Timestamp = time.Unix(0, created).UTC()
	if err := json.Unmarshal([]byte(metrics), &meta.Metrics); err != nil {
		return RunMetadata{}, fmt.Errorf("decode metrics %s: %w", meta.ID, err)
	}
	return meta, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]RunMetadata, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT `+metadataColumns+` FROM runs ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]RunMetadata, 0)
	for rows.Next() {
		meta, err := scanMetadata(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, meta)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (*RunMetadata, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	meta, err := scanMetadata(db.QueryRowContext(ctx, `SELECT `+metadataColumns+` FROM runs WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	return &meta, nil
}

func (s *SQLiteStore) LoadStates(ctx context.Context, id string) (*mat.Dense, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT trajectory FROM runs WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("trajectory %s is empty", id)
	}

	var states mat.Dense
	if err := states.UnmarshalBinary(payload); err != nil {
		return nil, fmt.Errorf("decode trajectory %s: %w", id, err)
	}
	return &states, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, errors.New("sqlite store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			source TEXT NOT NULL,
			backend TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			nodes INTEGER NOT NULL,
			inputs INTEGER NOT NULL,
			controls INTEGER NOT NULL,
			dt REAL NOT NULL,
			gamma REAL NOT NULL,
			steps INTEGER NOT NULL,
			metrics TEXT NOT NULL,
			trajectory BLOB
		);
		CREATE INDEX IF NOT EXISTS runs_created_at ON runs (created_at);
	`)
	return err
}
