package dataset

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/dataglimpse/internal/analysis"
	"github.com/KaramelBytes/dataglimpse/internal/model"
	"github.com/KaramelBytes/dataglimpse/internal/parser"
	"github.com/KaramelBytes/dataglimpse/internal/projection"
	"github.com/KaramelBytes/dataglimpse/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager owns dataset records: creation from parsed uploads, pending chart
// configuration, and previews.
type Manager struct {
	store  store.DatasetStore
	limits model.Limits
	log    *zap.Logger
	now    func() time.Time
}

// NewManager builds a Manager. A nil logger discards output.
func NewManager(s store.DatasetStore, limits model.Limits, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{store: s, limits: limits, log: log, now: time.Now}
}

// Create normalizes t and persists it as a new dataset owned by owner.
func (m *Manager) Create(ctx context.Context, fileName string, t *parser.Table, owner model.Owner, checksum string) (*model.Dataset, error) {
	if len(t.Rows) == 0 {
		return nil, &EmptyDatasetError{FileName: fileName}
	}
	res := analysis.Normalize(t)
	sample := res.CleanedRows
	if n := m.limits.SampleRows; n > 0 && len(sample) > n {
		sample = sample[:n]
	}
	ds := &model.Dataset{
		ID:             uuid.NewString(),
		FileName:       fileName,
		Owner:          owner,
		Columns:        res.Columns,
		ColumnTypes:    res.ColumnTypes,
		Summary:        res.Summary,
		RowCount:       len(res.CleanedRows),
		OriginalRows:   t.Rows,
		CleanedRows:    res.CleanedRows,
		SamplePreview:  store.CloneRows(sample),
		Visualizations: []model.VisualizationRef{},
		Checksum:       checksum,
		CreatedAt:      m.now().UTC(),
	}
	if err := m.store.CreateDataset(ctx, ds); err != nil {
		return nil, fmt.Errorf("create dataset: %w", err)
	}
	m.log.Info("dataset created",
		zap.String("dataset_id", ds.ID),
		zap.String("file", fileName),
		zap.String("owner", owner.String()),
		zap.Int("rows", ds.RowCount),
		zap.Int("columns", len(ds.Columns)))
	return ds, nil
}

// Get returns the dataset or a *store.NotFoundError.
func (m *Manager) Get(ctx context.Context, id string) (*model.Dataset, error) {
	return m.store.GetDataset(ctx, id)
}

// List returns the datasets owned by owner, newest first.
func (m *Manager) List(ctx context.Context, owner model.Owner) ([]*model.Dataset, error) {
	return m.store.ListDatasets(ctx, store.DatasetFilter{Owner: owner})
}

// SetPendingConfig validates and stores the chart configuration a user is
// preparing. Every non-empty string role must name a column; all offenders are
// reported together. Roles are stored under their canonical column names.
func (m *Manager) SetPendingConfig(ctx context.Context, id, chartType string, rowStart, rowEnd any, roles model.Config) (model.Config, error) {
	ds, err := m.store.GetDataset(ctx, id)
	if err != nil {
		return nil, err
	}
	start, end, err := projection.Bounds(rowStart, rowEnd, ds.RowCount)
	if err != nil {
		return nil, &InvalidConfigError{Reason: err.Error(), Err: err}
	}

	cfg := model.Config{
		model.KeyStartRow: start,
		model.KeyEndRow:   end,
	}
	if chartType = strings.TrimSpace(chartType); chartType != "" {
		cfg[model.KeyChartType] = chartType
	}
	res := projection.NewResolver(ds.Columns)
	var unknown []string
	for k, v := range roles {
		if model.IsReserved(k) {
			continue
		}
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			cfg[k] = v
			continue
		}
		c, ok := res.Resolve(s)
		if !ok {
			unknown = append(unknown, s)
			continue
		}
		cfg[k] = c
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &InvalidConfigError{Columns: unknown}
	}
	if err := m.store.SetPendingConfig(ctx, id, cfg); err != nil {
		return nil, fmt.Errorf("save config: %w", err)
	}
	m.log.Info("pending config saved", zap.String("dataset_id", id), zap.String("chart_type", chartType),
		zap.Int("start_row", start), zap.Int("end_row", end))
	return cfg, nil
}

// ClearPendingConfig drops any saved pending configuration.
func (m *Manager) ClearPendingConfig(ctx context.Context, id string) error {
	return m.store.SetPendingConfig(ctx, id, nil)
}

// LinkVisualization records a chart built from the dataset and clears the
// pending config in the same write.
func (m *Manager) LinkVisualization(ctx context.Context, id string, ref model.VisualizationRef) error {
	return m.store.LinkVisualization(ctx, id, ref)
}

// Preview projects the dataset with its pending config overlaid by overrides.
// Ad-hoc previews are not capped.
func (m *Manager) Preview(ctx context.Context, id string, overrides model.Config) (*projection.Projection, error) {
	ds, err := m.store.GetDataset(ctx, id)
	if err != nil {
		return nil, err
	}
	return projection.Project(ds, ds.PendingConfig, overrides, projection.Options{})
}

// CanAccess reports whether who may read or configure ds. Admins see
// everything; otherwise the caller must be the recorded owner.
func CanAccess(ds *model.Dataset, who model.Identity) bool {
	if who.IsAdmin() {
		return true
	}
	return who.Owns(ds.Owner)
}
