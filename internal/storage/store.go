package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
)

var ErrNotFound = errors.New("storage: run not found")

// RunMetadata describes one stored trajectory.
type RunMetadata struct {
	ID        string             `json:"id"`
	Kind      string             `json:"kind"` // "train" or "predict"
	Source    string             `json:"source"`
	Backend   string             `json:"backend"`
	Timestamp time.Time          `json:"timestamp"`
	Seed      int64              `json:"seed"`
	Nodes     int                `json:"nodes"`
	Inputs    int                `json:"inputs"`
	Controls  int                `json:"controls"`
	Dt        float64            `json:"dt"`
	Gamma     float64            `json:"gamma"`
	Steps     int                `json:"steps"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Store persists reservoir trajectories (N×T, one column per time step)
// together with their metadata.
type Store interface {
	Init(ctx context.Context) error
	Save(ctx context.Context, meta RunMetadata, states *mat.Dense) (string, error)
	List(ctx context.Context) ([]RunMetadata, error)
	Load(ctx context.Context, id string) (*RunMetadata, error)
	LoadStates(ctx context.Context, id string) (*mat.Dense, error)
	Close() error
}

// NewStore opens a store of the given driver rooted at dir. The sqlite
// driver keeps a single runs.db file inside dir.
func NewStore(driver, dir string) (Store, error) {
	switch driver {
	case "", "file":
		return NewFileStore(dir), nil
	case "sqlite":
		return NewSQLiteStore(filepath.Join(dir, "runs.db")), nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}
}

func newRunID(kind string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s_%s", kind, id[:12])
}

// prepare fills the fields Save derives from the trajectory.
func prepare(meta RunMetadata, states *mat.Dense) RunMetadata {
	if meta.ID == "" {
		meta.ID = newRunID(meta.Kind)
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now().UTC()
	}
	if states != nil {
		r, c := states.Dims()
		meta.Nodes = r
		meta.Steps = c - 1
	}
	return meta
}
