// Package visualization manages saved charts: creation from a dataset's
// pending configuration, versioned updates and status changes.
package visualization

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/dataglimpse/internal/dataset"
	"github.com/KaramelBytes/dataglimpse/internal/model"
	"github.com/KaramelBytes/dataglimpse/internal/projection"
	"github.com/KaramelBytes/dataglimpse/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the persistence a Manager needs.
type Store interface {
	store.DatasetStore
	store.VisualizationStore
	store.SessionStore
}

// Manager creates and updates visualizations.
type Manager struct {
	store  Store
	limits model.Limits
	log    *zap.Logger
	now    func() time.Time
}

// NewManager builds a Manager. A nil logger discards output.
func NewManager(s Store, limits model.Limits, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{store: s, limits: limits, log: log, now: time.Now}
}

// Create projects the dataset's pending config overlaid by cfg and saves the
// result as a draft at version 1. The dataset records the new chart and its
// pending config is cleared.
func (m *Manager) Create(ctx context.Context, datasetID, chartType string, cfg model.Config, owner model.Owner) (*model.Visualization, error) {
	chartType = strings.TrimSpace(chartType)
	if chartType == "" {
		return nil, &dataset.InvalidConfigError{Reason: "chartType is required"}
	}
	ds, err := m.store.GetDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	over := cfg.Clone()
	if over == nil {
		over = model.Config{}
	}
	over[model.KeyChartType] = chartType
	p, err := projection.Project(ds, ds.PendingConfig, over, projection.Options{MaxRows: m.limits.PreviewRowCap})
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	v := &model.Visualization{
		ID:          uuid.NewString(),
		Owner:       owner,
		DatasetID:   ds.ID,
		ChartType:   chartType,
		Config:      p.ConfigUsed,
		PreviewData: p.Rows,
		Status:      model.StatusDraft,
		Version:     1,
		InsightIDs:  []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.store.CreateVisualization(ctx, v); err != nil {
		return nil, fmt.Errorf("create visualization: %w", err)
	}
	ref := model.VisualizationRef{VizID: v.ID, ChartType: chartType, CreatedAt: now}
	if err := m.store.LinkVisualization(ctx, ds.ID, ref); err != nil {
		return nil, fmt.Errorf("link visualization: %w", err)
	}
	if owner.Kind == model.OwnerGuest {
		if err := m.store.IncrementSessionUsage(ctx, owner.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			m.log.Warn("guest usage not recorded", zap.String("session_id", owner.ID), zap.Error(err))
		}
	}
	m.log.Info("visualization created",
		zap.String("viz_id", v.ID),
		zap.String("dataset_id", ds.ID),
		zap.String("chart_type", chartType),
		zap.Int("rows", len(v.PreviewData)))
	return v, nil
}

// Fetch returns the visualization without any ownership check.
func (m *Manager) Fetch(ctx context.Context, vizID string) (*model.Visualization, error) {
	return m.store.GetVisualization(ctx, vizID)
}

// Update merges patch into the saved config, reprojects against the current
// dataset and replaces the preview. The version grows by exactly one; a
// concurrent writer makes the call fail with store.ErrConflict.
func (m *Manager) Update(ctx context.Context, vizID string, patch model.Config, who model.Identity) (*model.Visualization, error) {
	v, err := m.store.GetVisualization(ctx, vizID)
	if err != nil {
		return nil, err
	}
	if !mayWrite(v, who) {
		return nil, &dataset.ForbiddenError{Kind: store.KindVisualization, ID: vizID}
	}
	ds, err := m.store.GetDataset(ctx, v.DatasetID)
	if err != nil {
		return nil, err
	}

	chartType := v.ChartType
	if ct := strings.TrimSpace(patch.ChartType()); ct != "" {
		chartType = ct
	}
	over := patch.Clone()
	if over == nil {
		over = model.Config{}
	}
	over[model.KeyChartType] = chartType
	p, err := projection.Project(ds, v.Config, over, projection.Options{MaxRows: m.limits.PreviewRowCap})
	if err != nil {
		return nil, err
	}

	expected := v.Version
	v.ChartType = chartType
	v.Config = p.ConfigUsed
	v.PreviewData = p.Rows
	v.Version = expected + 1
	v.UpdatedAt = m.now().UTC()
	if err := m.store.UpdateVisualization(ctx, v, expected); err != nil {
		return nil, fmt.Errorf("update visualization: %w", err)
	}
	m.log.Info("visualization updated",
		zap.String("viz_id", v.ID),
		zap.Int("version", v.Version),
		zap.Int("rows", len(v.PreviewData)))
	return v, nil
}

// SetStatus moves a visualization between draft and final. The version is
// left unchanged.
func (m *Manager) SetStatus(ctx context.Context, vizID, status string, who model.Identity) (*model.Visualization, error) {
	if status != model.StatusDraft && status != model.StatusFinal {
		return nil, &dataset.InvalidConfigError{Reason: fmt.Sprintf("status must be %q or %q", model.StatusDraft, model.StatusFinal)}
	}
	v, err := m.store.GetVisualization(ctx, vizID)
	if err != nil {
		return nil, err
	}
	if !mayWrite(v, who) {
		return nil, &dataset.ForbiddenError{Kind: store.KindVisualization, ID: vizID}
	}
	if v.Status == status {
		return v, nil
	}
	v.Status = status
	v.UpdatedAt = m.now().UTC()
	if err := m.store.UpdateVisualization(ctx, v, v.Version); err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}
	m.log.Info("visualization status changed", zap.String("viz_id", v.ID), zap.String("status", status))
	return v, nil
}

// ListForDataset returns the charts built from a dataset.
func (m *Manager) ListForDataset(ctx context.Context, datasetID string) ([]*model.Visualization, error) {
	return m.store.ListVisualizations(ctx, datasetID)
}

// Ownerless visualizations are writable by anyone.
func mayWrite(v *model.Visualization, who model.Identity) bool {
	if v.Owner.IsZero() || who.IsAdmin() {
		return true
	}
	return who.Owns(v.Owner)
}
