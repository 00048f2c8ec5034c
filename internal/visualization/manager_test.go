package visualization

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/KaramelBytes/dataglimpse/internal/dataset"
	"github.com/KaramelBytes/dataglimpse/internal/model"
	"github.com/KaramelBytes/dataglimpse/internal/parser"
	"github.com/KaramelBytes/dataglimpse/internal/projection"
	"github.com/KaramelBytes/dataglimpse/internal/store"
	"github.com/KaramelBytes/dataglimpse/internal/store/memory"
)

type fixture struct {
	store    *memory.Store
	datasets *dataset.Manager
	vizs     *Manager
}

func newFixture(t *testing.T, limits model.Limits) *fixture {
	t.Helper()
	s := memory.New()
	return &fixture{store: s, datasets: dataset.NewManager(s, limits, nil), vizs: NewManager(s, limits, nil)}
}

func (f *fixture) sales(t *testing.T, rows int, owner model.Owner) *model.Dataset {
	t.Helper()
	tbl := &parser.Table{Columns: []string{"Category", "Revenue", "Units"}}
	for i := 1; i <= rows; i++ {
		tbl.Rows = append(tbl.Rows, model.Row{"Category": fmt.Sprintf("C%d", i), "Revenue": fmt.Sprint(i * 10), "Units": fmt.Sprint(i)})
	}
	ds, err := f.datasets.Create(context.Background(), "sales.csv", tbl, owner, "")
	if err != nil {
		t.Fatalf("create dataset: %v", err)
	}
	return ds
}

func TestCreateThenExtendRange(t *testing.T) {
	f := newFixture(t, model.DefaultLimits())
	ctx := context.Background()
	owner := model.AccountOwner("u1")
	ds := f.sales(t, 20, owner)

	if _, err := f.datasets.SetPendingConfig(ctx, ds.ID, "bar", 1, 10, model.Config{"x": "Category", "y": "Revenue"}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	v, err := f.vizs.Create(ctx, ds.ID, "bar", nil, owner)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if v.Version != 1 || v.Status != model.StatusDraft || len(v.PreviewData) != 10 {
		t.Fatalf("created: version=%d status=%s rows=%d", v.Version, v.Status, len(v.PreviewData))
	}
	if len(v.PreviewData[0]) != 2 || v.PreviewData[0]["Category"] != "C1" || v.PreviewData[0]["Revenue"] != "10" {
		t.Fatalf("projected row: %v", v.PreviewData[0])
	}

	got, _ := f.datasets.Get(ctx, ds.ID)
	if len(got.Visualizations) != 1 || got.Visualizations[0].VizID != v.ID || len(got.PendingConfig) > 0 {
		t.Fatalf("dataset link: %+v pending=%v", got.Visualizations, got.PendingConfig)
	}

	up, err := f.vizs.Update(ctx, v.ID, model.Config{"endRow": 20}, model.Identity{AccountID: "u1"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if up.Version != 2 || len(up.PreviewData) != 20 || up.PreviewData[19]["Category"] != "C20" {
		t.Fatalf("updated: version=%d rows=%d", up.Version, len(up.PreviewData))
	}
	if up.Config["x"] != "Category" || up.ChartType != "bar" {
		t.Fatalf("config not preserved: %v", up.Config)
	}
}

func TestUpdateRules(t *testing.T) {
	f := newFixture(t, model.DefaultLimits())
	ctx := context.Background()
	owner := model.AccountOwner("u1")
	ds := f.sales(t, 5, owner)
	v, err := f.vizs.Create(ctx, ds.ID, "bar", model.Config{"startRow": 1, "endRow": 5, "x": "category"}, owner)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var fe *dataset.ForbiddenError
	if _, err := f.vizs.Update(ctx, v.ID, model.Config{"endRow": 2}, model.Identity{AccountID: "u2"}); !errors.As(err, &fe) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	up, err := f.vizs.Update(ctx, v.ID, model.Config{"chartType": "line", "y": "Units"}, model.Identity{AccountID: "u1"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if up.ChartType != "line" || up.Version != 2 || len(up.PreviewData[0]) != 2 {
		t.Fatalf("chart change: %+v", up)
	}

	var re *projection.InvalidRangeError
	if _, err := f.vizs.Update(ctx, v.ID, model.Config{"endRow": 6}, model.Identity{AccountID: "u1"}); !errors.As(err, &re) {
		t.Fatalf("expected range error, got %v", err)
	}
	after, _ := f.vizs.Fetch(ctx, v.ID)
	if after.Version != 2 {
		t.Fatalf("failed update must not bump the version: %d", after.Version)
	}

	if _, err := f.vizs.Update(ctx, "missing", nil, model.Identity{AccountID: "u1"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateConflict(t *testing.T) {
	f := newFixture(t, model.DefaultLimits())
	ctx := context.Background()
	ds := f.sales(t, 5, model.Owner{})
	v, err := f.vizs.Create(ctx, ds.ID, "bar", model.Config{"startRow": 1, "endRow": 5, "x": "Category"}, model.Owner{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	stale, _ := f.store.GetVisualization(ctx, v.ID)
	if _, err := f.vizs.Update(ctx, v.ID, model.Config{"endRow": 3}, model.Identity{}); err != nil {
		t.Fatalf("update: %v", err)
	}
	stale.Version = 2
	if err := f.store.UpdateVisualization(ctx, stale, 1); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreateCapsPreviewAndCountsGuestUsage(t *testing.T) {
	limits := model.DefaultLimits()
	limits.PreviewRowCap = 3
	f := newFixture(t, limits)
	ctx := context.Background()
	guest := model.GuestOwner("guest_abc")
	ds := f.sales(t, 8, guest)
	if err := f.store.AddSessionDataset(ctx, guest.ID, ds.ID, time.Now()); err != nil {
		t.Fatalf("session: %v", err)
	}

	v, err := f.vizs.Create(ctx, ds.ID, "pie", model.Config{"startRow": 1, "endRow": 8, "label": "Category"}, guest)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(v.PreviewData) != 3 || v.Config[model.KeyEndRow] != 8 {
		t.Fatalf("cap: rows=%d config=%v", len(v.PreviewData), v.Config)
	}
	sess, _ := f.store.GetSession(ctx, guest.ID)
	if sess.VisualizationsUsed != 1 {
		t.Fatalf("guest usage: %d", sess.VisualizationsUsed)
	}

	var ice *dataset.InvalidConfigError
	if _, err := f.vizs.Create(ctx, ds.ID, " ", nil, guest); !errors.As(err, &ice) {
		t.Fatalf("expected invalid config for missing chart type, got %v", err)
	}
	if _, err := f.vizs.Create(ctx, ds.ID, "bar", model.Config{"startRow": 1, "endRow": 2, "x": "Nope"}, guest); !errors.Is(err, projection.ErrNoValidColumns) {
		t.Fatalf("expected no valid columns, got %v", err)
	}
}

func TestSetStatus(t *testing.T) {
	f := newFixture(t, model.DefaultLimits())
	ctx := context.Background()
	owner := model.GuestOwner("guest_s")
	ds := f.sales(t, 2, owner)
	v, err := f.vizs.Create(ctx, ds.ID, "bar", model.Config{"startRow": 1, "endRow": 2, "x": "Category"}, owner)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := f.vizs.SetStatus(ctx, v.ID, model.StatusFinal, model.Identity{GuestSessionID: "guest_s"})
	if err != nil || got.Status != model.StatusFinal || got.Version != 1 {
		t.Fatalf("finalize: %+v %v", got, err)
	}
	var ice *dataset.InvalidConfigError
	if _, err := f.vizs.SetStatus(ctx, v.ID, "archived", model.Identity{GuestSessionID: "guest_s"}); !errors.As(err, &ice) {
		t.Fatalf("expected invalid status, got %v", err)
	}
	var fe *dataset.ForbiddenError
	if _, err := f.vizs.SetStatus(ctx, v.ID, model.StatusDraft, model.Identity{GuestSessionID: "guest_other"}); !errors.As(err, &fe) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
