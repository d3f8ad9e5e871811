package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// FileStore keeps one directory per run holding metadata.json and
// trajectory.csv. The CSV has one row per time step: time, r0, r1, ...
type FileStore struct {
	baseDir string
}

func NewFileStore(baseDir string) *FileStore {
	return &FileStore{baseDir: baseDir}
}

func (s *FileStore) Init(ctx context.Context) error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) Save(ctx context.Context, meta RunMetadata, states *mat.Dense) (string, error) {
	meta = prepare(meta, states)
	runDir := filepath.Join(s.baseDir, meta.ID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	if states == nil {
		return meta.ID, nil
	}
	if err := writeTrajectory(filepath.Join(runDir, "trajectory.csv"), states, meta.Dt); err != nil {
		return "", err
	}
	return meta.ID, nil
}

func writeTrajectory(path string, states *mat.Dense, dt float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	rows, cols := states.Dims()

	header := []string{"time"}
	for i := 0; i < rows; i++ {
		header = append(header, fmt.Sprintf("r%d", i))
	}
	if err := w.Write(header); err != nil {
		return err
	}

	record := make([]string, rows+1)
	for j := 0; j < cols; j++ {
		record[0] = strconv.FormatFloat(float64(j)*dt, 'f', 6, 64)
		for i := 0; i < rows; i++ {
			record[i+1] = strconv.FormatFloat(states.At(i, j), 'g', -1, 64)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// List returns every readable run, oldest first.
func (s *FileStore) List(ctx context.Context) ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(ctx, entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *FileStore) Load(ctx context.Context, runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadStates reads a trajectory back as N×T.
func (s *FileStore) LoadStates(ctx context.Context, runID string) (*mat.Dense, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, "trajectory.csv"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 || len(records[0]) < 2 {
		return nil, fmt.Errorf("trajectory %s is empty", runID)
	}

	rows, cols := len(records[0])-1, len(records)-1
	states := mat.NewDense(rows, cols, nil)
	for j, record := range records[1:] {
		for i := 0; i < rows; i++ {
			v, err := strconv.ParseFloat(record[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("trajectory %s line %d: %w", runID, j+2, err)
			}
			states.Set(i, j, v)
		}
	}
	return states, nil
}
