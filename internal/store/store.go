package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KaramelBytes/dataglimpse/internal/model"
)

// ErrNotFound is matched by every NotFoundError.
var ErrNotFound = errors.New("not found")

// ErrConflict reports a conditional write that lost a race.
var ErrConflict = errors.New("concurrent update conflict")

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %q not found", e.Kind, e.ID) }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Record kinds used in NotFoundError.
const (
	KindDataset       = "dataset"
	KindVisualization = "visualization"
	KindSession       = "guest session"
)

// DatasetFilter selects datasets by owner; the zero value matches all.
type DatasetFilter struct {
	Owner model.Owner
}

// DatasetStore persists datasets as whole documents with targeted updates.
type DatasetStore interface {
	CreateDataset(ctx context.Context, ds *model.Dataset) error
	GetDataset(ctx context.Context, id string) (*model.Dataset, error)
	ListDatasets(ctx context.Context, f DatasetFilter) ([]*model.Dataset, error)
	// SetPendingConfig replaces the pending config; nil clears it.
	SetPendingConfig(ctx context.Context, id string, cfg model.Config) error
	// LinkVisualization appends ref and clears the pending config in one write.
	LinkVisualization(ctx context.Context, id string, ref model.VisualizationRef) error
	// ReassignDatasets sets owner on every dataset whose id is in ids and
	// returns how many matched.
	ReassignDatasets(ctx context.Context, ids []string, owner model.Owner) (int, error)
	DeleteDataset(ctx context.Context, id string) error
	// DeleteGuestDatasets deletes the datasets in ids that are still owned by
	// guest session sessionID and returns how many were removed. Datasets
	// reassigned to another owner are left alone.
	DeleteGuestDatasets(ctx context.Context, sessionID string, ids []string) (int, error)
}

// SessionStore persists guest sessions.
type SessionStore interface {
	// AddSessionDataset upserts the session and adds datasetID to its set.
	AddSessionDataset(ctx context.Context, sessionID, datasetID string, now time.Time) error
	GetSession(ctx context.Context, sessionID string) (*model.GuestSession, error)
	IncrementSessionUsage(ctx context.Context, sessionID string) error
	DeleteSession(ctx context.Context, sessionID string) error
	// ListExpiredSessions returns sessions created before cutoff.
	ListExpiredSessions(ctx context.Context, cutoff time.Time) ([]*model.GuestSession, error)
}

// VisualizationStore persists visualizations.
type VisualizationStore interface {
	CreateVisualization(ctx context.Context, v *model.Visualization) error
	GetVisualization(ctx context.Context, id string) (*model.Visualization, error)
	// UpdateVisualization writes v only if the stored version equals expectedVersion.
	UpdateVisualization(ctx context.Context, v *model.Visualization, expectedVersion int) error
	ListVisualizations(ctx context.Context, datasetID string) ([]*model.Visualization, error)
}

// InsightStore persists append-only insights.
type InsightStore interface {
	// AppendInsight stores in and pushes its id onto the visualization.
	AppendInsight(ctx context.Context, in *model.Insight) error
	ListInsights(ctx context.Context, vizID string) ([]*model.Insight, error)
}

// Store aggregates every repository behind one backend.
type Store interface {
	DatasetStore
	SessionStore
	VisualizationStore
	InsightStore
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Driver string
	DSN    string
}

// Factory opens a backend.
type Factory func(ctx context.Context, cfg Config) (Store, error)

var registry = map[string]Factory{}

// Register makes a backend available to Open under name.
func Register(name string, f Factory) { registry[name] = f }

// Open opens the backend named by cfg.Driver. Backends register themselves from
// init; import internal/store/all to link every built-in one.
func Open(ctx context.Context, cfg Config) (Store, error) {
	f, ok := registry[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
	return f(ctx, cfg)
}
