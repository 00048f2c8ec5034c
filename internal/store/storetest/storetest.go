// Package storetest holds behavior checks shared by every store backend.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KaramelBytes/dataglimpse/internal/model"
	"github.com/KaramelBytes/dataglimpse/internal/store"
	"github.com/google/uuid"
)

// Run exercises s. The store must start empty.
func Run(t *testing.T, s store.Store) {
	t.Helper()
	t.Run("datasets", func(t *testing.T) { testDatasets(t, s) })
	t.Run("guest delete", func(t *testing.T) { testDeleteGuestDatasets(t, s) })
	t.Run("sessions", func(t *testing.T) { testSessions(t, s) })
	t.Run("visualizations", func(t *testing.T) { testVisualizations(t, s) })
}

func newDataset(owner model.Owner) *model.Dataset {
	return &model.Dataset{
		ID:          uuid.NewString(),
		FileName:    "sales.csv",
		Owner:       owner,
		Columns:     []string{"Category", "Revenue"},
		ColumnTypes: map[string]model.ColumnType{"Category": model.ColumnText, "Revenue": model.ColumnNumeric},
		RowCount:    2,
		CleanedRows: []model.Row{{"Category": "A", "Revenue": "1"}, {"Category": "B", "Revenue": "2"}},
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
}

func testDatasets(t *testing.T, s store.Store) {
	ctx := context.Background()
	guest := model.GuestOwner("guest_" + uuid.NewString())
	a, b := newDataset(guest), newDataset(guest)
	other := newDataset(model.AccountOwner("someone"))
	for _, ds := range []*model.Dataset{a, b, other} {
		if err := s.CreateDataset(ctx, ds); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, err := s.GetDataset(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Owner != guest || !got.IsGuestOwned() || len(got.CleanedRows) != 2 || got.CleanedRows[1]["Revenue"] != "2" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if _, err := s.GetDataset(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	list, err := s.ListDatasets(ctx, store.DatasetFilter{Owner: guest})
	if err != nil || len(list) != 2 {
		t.Fatalf("list by owner: n=%d err=%v", len(list), err)
	}

	cfg := model.Config{"chartType": "bar", "startRow": 1, "endRow": 2, "x": "Category"}
	if err := s.SetPendingConfig(ctx, a.ID, cfg); err != nil {
		t.Fatalf("set config: %v", err)
	}
	got, _ = s.GetDataset(ctx, a.ID)
	if got.PendingConfig["x"] != "Category" || got.PendingConfig.ChartType() != "bar" {
		t.Fatalf("pending config not stored: %v", got.PendingConfig)
	}
	if err := s.SetPendingConfig(ctx, "missing", cfg); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	ref := model.VisualizationRef{VizID: "v1", ChartType: "bar", CreatedAt: time.Now().UTC()}
	if err := s.LinkVisualization(ctx, a.ID, ref); err != nil {
		t.Fatalf("link: %v", err)
	}
	got, _ = s.GetDataset(ctx, a.ID)
	if len(got.Visualizations) != 1 || got.Visualizations[0].VizID != "v1" || len(got.PendingConfig) != 0 {
		t.Fatalf("link did not append and clear: %+v %v", got.Visualizations, got.PendingConfig)
	}

	acct := model.AccountOwner("acct-1")
	n, err := s.ReassignDatasets(ctx, []string{a.ID, b.ID, "missing"}, acct)
	if err != nil || n != 2 {
		t.Fatalf("reassign: n=%d err=%v", n, err)
	}
	got, _ = s.GetDataset(ctx, b.ID)
	if got.Owner != acct || got.IsGuestOwned() {
		t.Fatalf("owner not reassigned: %+v", got.Owner)
	}
	if list, _ := s.ListDatasets(ctx, store.DatasetFilter{Owner: guest}); len(list) != 0 {
		t.Fatalf("guest should own nothing after reassign, got %d", len(list))
	}

	if err := s.DeleteDataset(ctx, other.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteDataset(ctx, other.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second delete should be ErrNotFound, got %v", err)
	}
}

func testDeleteGuestDatasets(t *testing.T, s store.Store) {
	ctx := context.Background()
	sessionID := "guest_" + uuid.NewString()
	kept, gone := newDataset(model.GuestOwner(sessionID)), newDataset(model.GuestOwner(sessionID))
	foreign := newDataset(model.GuestOwner("guest_other"))
	for _, ds := range []*model.Dataset{kept, gone, foreign} {
		if err := s.CreateDataset(ctx, ds); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := s.ReassignDatasets(ctx, []string{kept.ID}, model.AccountOwner("acct-2")); err != nil {
		t.Fatalf("reassign: %v", err)
	}

	n, err := s.DeleteGuestDatasets(ctx, sessionID, []string{kept.ID, gone.ID, foreign.ID, "missing"})
	if err != nil || n != 1 {
		t.Fatalf("delete guest datasets: n=%d err=%v", n, err)
	}
	if _, err := s.GetDataset(ctx, gone.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("guest dataset should be gone, got %v", err)
	}
	if _, err := s.GetDataset(ctx, kept.ID); err != nil {
		t.Fatalf("reassigned dataset must survive: %v", err)
	}
	if _, err := s.GetDataset(ctx, foreign.ID); err != nil {
		t.Fatalf("another session's dataset must survive: %v", err)
	}
	if n, err := s.DeleteGuestDatasets(ctx, sessionID, nil); err != nil || n != 0 {
		t.Fatalf("empty id list: n=%d err=%v", n, err)
	}
}

func testSessions(t *testing.T, s store.Store) {
	ctx := context.Background()
	old := time.Now().Add(-7 * time.Hour).UTC()
	if err := s.AddSessionDataset(ctx, "guest_old", "d1", old); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.AddSessionDataset(ctx, "guest_old", "d1", time.Now()); err != nil {
		t.Fatalf("add again: %v", err)
	}
	if err := s.AddSessionDataset(ctx, "guest_old", "d2", time.Now()); err != nil {
		t.Fatalf("add second: %v", err)
	}
	sess, err := s.GetSession(ctx, "guest_old")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if len(sess.DatasetIDs) != 2 || sess.DatasetIDs[0] != "d1" {
		t.Fatalf("dataset ids must be a set in insertion order: %v", sess.DatasetIDs)
	}
	if !sess.CreatedAt.Before(time.Now().Add(-6 * time.Hour)) {
		t.Fatalf("upsert must keep the original creation time: %v", sess.CreatedAt)
	}
	if err := s.IncrementSessionUsage(ctx, "guest_old"); err != nil {
		t.Fatalf("usage: %v", err)
	}
	if sess, _ := s.GetSession(ctx, "guest_old"); sess.VisualizationsUsed != 1 {
		t.Fatalf("usage counter: %d", sess.VisualizationsUsed)
	}

	if err := s.AddSessionDataset(ctx, "guest_new", "d3", time.Now()); err != nil {
		t.Fatalf("add: %v", err)
	}
	expired, err := s.ListExpiredSessions(ctx, time.Now().Add(-6*time.Hour))
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if len(expired) != 1 || expired[0].SessionID != "guest_old" || len(expired[0].DatasetIDs) != 2 {
		t.Fatalf("unexpected expired set: %+v", expired)
	}
	if _, err := s.GetSession(ctx, "guest_old"); err != nil {
		t.Fatalf("listing must not remove the session: %v", err)
	}
	if err := s.DeleteSession(ctx, "guest_old"); err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if err := s.DeleteSession(ctx, "guest_new"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteSession(ctx, "guest_new"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second delete should be ErrNotFound, got %v", err)
	}
}

func testVisualizations(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	v := &model.Visualization{
		ID:          uuid.NewString(),
		DatasetID:   "ds-1",
		ChartType:   "bar",
		Config:      model.Config{"startRow": 1, "endRow": 1, "x": "Category"},
		PreviewData: []model.Row{{"Category": "A"}},
		Status:      model.StatusDraft,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.CreateVisualization(ctx, v); err != nil {
		t.Fatalf("create: %v", err)
	}
	in := &model.Insight{ID: uuid.NewString(), VizID: v.ID, Mode: model.InsightSummary, Content: "ok", CreatedAt: now}
	if err := s.AppendInsight(ctx, in); err != nil {
		t.Fatalf("append insight: %v", err)
	}
	if err := s.AppendInsight(ctx, &model.Insight{ID: "x", VizID: "missing"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("insight on missing viz should be ErrNotFound, got %v", err)
	}

	next, err := s.GetVisualization(ctx, v.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(next.InsightIDs) != 1 || next.InsightIDs[0] != in.ID {
		t.Fatalf("insight not linked: %v", next.InsightIDs)
	}
	next.InsightIDs = nil
	next.Version = 2
	next.PreviewData = []model.Row{{"Category": "A"}, {"Category": "B"}}
	if err := s.UpdateVisualization(ctx, next, 1); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.UpdateVisualization(ctx, next, 1); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("stale update should conflict, got %v", err)
	}
	got, _ := s.GetVisualization(ctx, v.ID)
	if got.Version != 2 || len(got.PreviewData) != 2 || len(got.InsightIDs) != 1 {
		t.Fatalf("update result: version=%d rows=%d insights=%v", got.Version, len(got.PreviewData), got.InsightIDs)
	}

	list, err := s.ListVisualizations(ctx, "ds-1")
	if err != nil || len(list) != 1 {
		t.Fatalf("list: n=%d err=%v", len(list), err)
	}
	insights, err := s.ListInsights(ctx, v.ID)
	if err != nil || len(insights) != 1 || insights[0].Content != "ok" {
		t.Fatalf("list insights: %+v err=%v", insights, err)
	}
}
