package stores

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/plusconf/plusconf/pkg/engine"
)

// ErrNotFound is returned when a pass or snapshot does not exist.
var ErrNotFound = errors.New("not found")

// PassStatus represents the outcome of a resolution pass
type PassStatus string

const (
	PassStatusSuccess PassStatus = "success"
	PassStatusFailed  PassStatus = "failed"
)

// Pass is the recorded outcome of one resolution pass.
type Pass struct {
	ID           string     `json:"id"`
	Status       PassStatus `json:"status"`
	Error        *string    `json:"error,omitempty"`
	ErrorCode    *string    `json:"error_code,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	DurationMS   int64      `json:"duration_ms"`
	PageCount    int        `json:"page_count"`
	WarningCount int        `json:"warning_count"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Snapshot is the serialized result of a successful pass.
type Snapshot struct {
	PassID    string          `json:"pass_id"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

// Result decodes the snapshot. Value sources lose their inline values;
// the final page values are kept.
func (s *Snapshot) Result() (*engine.Result, error) {
	result := &engine.Result{}
	if err := json.Unmarshal(s.Data, result); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", s.PassID, err)
	}
	return result, nil
}

// StoredWarning is a warning emitted by a recorded pass.
type StoredWarning struct {
	PassID  string `json:"pass_id"`
	Seq     int    `json:"seq"`
	Message string `json:"message"`
	Key     string `json:"key,omitempty"`
}

// Store defines the interface for the persistence layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)

	// Record stores the outcome of a pass. It satisfies resolver.Recorder.
	Record(ctx context.Context, passID string, result *engine.Result, err error) error

	// Pass operations
	GetPass(ctx context.Context, id string) (*Pass, error)
	ListPasses(ctx context.Context, status *PassStatus, limit, offset int) ([]*Pass, error)
	DeletePassesBefore(ctx context.Context, before time.Time) (int64, error)

	// Snapshot operations
	GetSnapshot(ctx context.Context, passID string) (*Snapshot, error)
	LastValid(ctx context.Context) (*Snapshot, error)

	// Warning operations
	ListWarnings(ctx context.Context, passID string) ([]*StoredWarning, error)

	// Health check
	HealthCheck(ctx context.Context) error
}
