package dataset

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/KaramelBytes/dataglimpse/internal/model"
	"github.com/KaramelBytes/dataglimpse/internal/parser"
	"github.com/KaramelBytes/dataglimpse/internal/projection"
	"github.com/KaramelBytes/dataglimpse/internal/store"
	"github.com/KaramelBytes/dataglimpse/internal/store/memory"
)

func salesTable(n int) *parser.Table {
	t := &parser.Table{Columns: []string{"Category", "Revenue", "Units"}}
	for i := 1; i <= n; i++ {
		t.Rows = append(t.Rows, model.Row{
			"Category": fmt.Sprintf(" C%d ", i),
			"Revenue":  fmt.Sprint(i * 100),
			"Units":    fmt.Sprint(i),
		})
	}
	return t
}

func newManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(memory.New(), model.DefaultLimits(), nil)
}

func TestCreate(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()
	ds, err := m.Create(ctx, "sales.csv", salesTable(20), model.GuestOwner("guest_1"), "abc")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ds.RowCount != 20 || len(ds.CleanedRows) != 20 || len(ds.OriginalRows) != 20 {
		t.Fatalf("row counts: %d %d %d", ds.RowCount, len(ds.CleanedRows), len(ds.OriginalRows))
	}
	if len(ds.SamplePreview) != 10 || ds.SamplePreview[0]["Category"] != "C1" {
		t.Fatalf("sample preview: %d %v", len(ds.SamplePreview), ds.SamplePreview[0])
	}
	if ds.ColumnTypes["Revenue"] != model.ColumnNumeric || ds.ColumnTypes["Category"] != model.ColumnText {
		t.Fatalf("types: %v", ds.ColumnTypes)
	}
	if !ds.IsGuestOwned() {
		t.Fatalf("expected guest ownership")
	}
	if ds.OriginalRows[0]["Category"] != " C1 " {
		t.Fatalf("original rows must stay untrimmed")
	}

	_, err = m.Create(ctx, "empty.csv", &parser.Table{Columns: []string{"a"}}, model.Owner{}, "")
	var ee *EmptyDatasetError
	if !errors.As(err, &ee) {
		t.Fatalf("expected EmptyDatasetError, got %v", err)
	}
}

func TestSetPendingConfig(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()
	ds, _ := m.Create(ctx, "sales.csv", salesTable(10), model.AccountOwner("u1"), "")

	cfg, err := m.SetPendingConfig(ctx, ds.ID, "bar", "1", 10, model.Config{"x": " category ", "y": "Revenue", "note": 5})
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if cfg["x"] != "Category" || cfg[model.KeyStartRow] != 1 || cfg["note"] != 5 {
		t.Fatalf("stored config: %v", cfg)
	}
	got, _ := m.Get(ctx, ds.ID)
	if got.PendingConfig.ChartType() != "bar" {
		t.Fatalf("pending config not persisted: %v", got.PendingConfig)
	}

	_, err = m.SetPendingConfig(ctx, ds.ID, "bar", 1, 5, model.Config{"x": "Nope", "y": "Also", "z": "Units"})
	var ice *InvalidConfigError
	if !errors.As(err, &ice) || len(ice.Columns) != 2 || ice.Columns[0] != "Also" {
		t.Fatalf("expected both unknown columns reported, got %v", err)
	}
	got, _ = m.Get(ctx, ds.ID)
	if got.PendingConfig[model.KeyEndRow] != 10 {
		t.Fatalf("rejected config must not overwrite the saved one: %v", got.PendingConfig)
	}

	for _, b := range [][2]any{{0, 5}, {6, 5}, {1, 11}, {"a", 2}} {
		_, err := m.SetPendingConfig(ctx, ds.ID, "bar", b[0], b[1], nil)
		var re *projection.InvalidRangeError
		if !errors.As(err, &ice) || !errors.As(err, &re) {
			t.Fatalf("bounds %v: expected InvalidConfigError wrapping the range error, got %v", b, err)
		}
	}

	if _, err := m.SetPendingConfig(ctx, "missing", "bar", 1, 1, nil); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSetPendingConfigWithoutChartType(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()
	ds, _ := m.Create(ctx, "sales.csv", salesTable(5), model.AccountOwner("u1"), "")

	cfg, err := m.SetPendingConfig(ctx, ds.ID, "", 1, 2, model.Config{"x": "category"})
	if err != nil {
		t.Fatalf("set without chart type: %v", err)
	}
	if _, ok := cfg[model.KeyChartType]; ok {
		t.Fatalf("empty chart type must not be stored: %v", cfg)
	}
	got, _ := m.Get(ctx, ds.ID)
	if got.PendingConfig["x"] != "Category" || got.PendingConfig.ChartType() != "" {
		t.Fatalf("pending config: %v", got.PendingConfig)
	}
}

func TestPreviewUsesOverrides(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()
	ds, _ := m.Create(ctx, "sales.csv", salesTable(20), model.AccountOwner("u1"), "")
	if _, err := m.SetPendingConfig(ctx, ds.ID, "line", 1, 10, model.Config{"x": "Category", "y": "Revenue"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	p, err := m.Preview(ctx, ds.ID, model.Config{"endRow": "20", "y": "units"})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if p.RowsCount != 20 || len(p.Columns) != 2 || p.Columns[1] != "Units" {
		t.Fatalf("preview: rows=%d cols=%v", p.RowsCount, p.Columns)
	}
	if p.ConfigUsed.ChartType() != "line" {
		t.Fatalf("configUsed should keep the saved chart type: %v", p.ConfigUsed)
	}
}

func TestLinkAndClearPendingConfig(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()
	ds, _ := m.Create(ctx, "sales.csv", salesTable(3), model.AccountOwner("u1"), "")

	if _, err := m.SetPendingConfig(ctx, ds.ID, "pie", 1, 3, model.Config{"label": "Category"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := m.ClearPendingConfig(ctx, ds.ID); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, _ := m.Get(ctx, ds.ID)
	if len(got.PendingConfig) != 0 {
		t.Fatalf("pending config not cleared: %v", got.PendingConfig)
	}

	if _, err := m.SetPendingConfig(ctx, ds.ID, "bar", 1, 2, model.Config{"x": "Category"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	ref := model.VisualizationRef{VizID: "v1", ChartType: "bar", CreatedAt: time.Now().UTC()}
	if err := m.LinkVisualization(ctx, ds.ID, ref); err != nil {
		t.Fatalf("link: %v", err)
	}
	got, _ = m.Get(ctx, ds.ID)
	if len(got.Visualizations) != 1 || got.Visualizations[0].VizID != "v1" || len(got.PendingConfig) != 0 {
		t.Fatalf("after link: refs=%v pending=%v", got.Visualizations, got.PendingConfig)
	}
	if err := m.LinkVisualization(ctx, "missing", ref); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCanAccess(t *testing.T) {
	ds := &model.Dataset{Owner: model.AccountOwner("u1")}
	if !CanAccess(ds, model.Identity{AccountID: "u1"}) {
		t.Fatalf("owner denied")
	}
	if CanAccess(ds, model.Identity{AccountID: "u2"}) || CanAccess(ds, model.Identity{}) {
		t.Fatalf("stranger allowed")
	}
	if !CanAccess(ds, model.Identity{AccountID: "root", Role: model.RoleAdmin}) {
		t.Fatalf("admin denied")
	}
	guest := &model.Dataset{Owner: model.GuestOwner("guest_x")}
	if !CanAccess(guest, model.Identity{GuestSessionID: "guest_x"}) || CanAccess(guest, model.Identity{GuestSessionID: "guest_y"}) {
		t.Fatalf("guest access rules")
	}
}
