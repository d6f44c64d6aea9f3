package store

import (
	"context"
	"errors"
	"time"

	"github.com/nvandessel/hornetcast/internal/models"
)

// ErrRunNotFound is returned when a run ID or kind has no stored run.
var ErrRunNotFound = errors.New("run not found")

// RunKind identifies the table a run produced.
type RunKind string

const (
	RunKindSpread RunKind = "spread" // Hornet spread forecast
	RunKindBees   RunKind = "bees"   // Bee decline forecast
)

// Run describes one stored forecast.
type Run struct {
	ID        string         `json:"id"`
	Kind      RunKind        `json:"kind"`
	ParentID  string         `json:"parent_id,omitempty"` // spread run a bee run was derived from
	StartYear int            `json:"start_year"`
	EndYear   int            `json:"end_year"`
	RowCount  int            `json:"row_count"`
	Params    map[string]any `json:"params,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// SpreadRun is the input to SaveSpreadRun.
type SpreadRun struct {
	StartYear int
	EndYear   int
	Params    map[string]any
	Rows      []models.SpreadRow
	Events    []models.InvasionEvent

	// Final is the unrounded state of EndYear, kept so the run can be resumed.
	Final map[string]models.CountryState
}

// BeeRun is the input to SaveBeeRun.
type BeeRun struct {
	ParentID  string
	StartYear int
	EndYear   int
	Params    map[string]any
	Rows      []models.BeeRow
}

// RunStore persists and retrieves forecast runs.
type RunStore interface {
	SaveSpreadRun(ctx context.Context, run SpreadRun) (Run, error)
	SaveBeeRun(ctx context.Context, run BeeRun) (Run, error)

	ListRuns(ctx context.Context, kind RunKind) ([]Run, error)
	GetRun(ctx context.Context, id string) (*Run, error)
	LatestRun(ctx context.Context, kind RunKind) (*Run, error)
	DeleteRun(ctx context.Context, id string) error

	SpreadRows(ctx context.Context, runID string) ([]models.SpreadRow, error)
	InvasionEvents(ctx context.Context, runID string) ([]models.InvasionEvent, error)
	FinalState(ctx context.Context, runID string) (map[string]models.CountryState, error)
	BeeRows(ctx context.Context, runID string) ([]models.BeeRow, error)

	Close() error
}
