package projection

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/KaramelBytes/dataglimpse/internal/model"
)

func dataset(n int) *model.Dataset {
	ds := &model.Dataset{Columns: []string{"Category", "Revenue", "Units"}}
	for i := 1; i <= n; i++ {
		ds.CleanedRows = append(ds.CleanedRows, model.Row{
			"Category": fmt.Sprintf("C%d", i),
			"Revenue":  fmt.Sprint(i * 10),
			"Units":    fmt.Sprint(i),
		})
	}
	ds.RowCount = n
	return ds
}

func TestBounds(t *testing.T) {
	cases := []struct {
		start, end any
		ok         bool
	}{
		{0, 5, false},
		{6, 5, false},
		{1, 11, false},
		{1, 10, true},
		{"3", "7", true},
		{" 2 ", 2.0, true},
		{"x", 5, false},
		{1.5, 5, false},
		{nil, 5, false},
		{json.Number("4"), json.Number("10"), true},
	}
	for _, c := range cases {
		_, _, err := Bounds(c.start, c.end, 10)
		if (err == nil) != c.ok {
			t.Fatalf("Bounds(%v,%v): ok=%v err=%v", c.start, c.end, c.ok, err)
		}
		if err != nil {
			var re *InvalidRangeError
			if !errors.As(err, &re) || re.TotalRows != 10 {
				t.Fatalf("expected InvalidRangeError with total, got %v", err)
			}
		}
	}
}

func TestResolver(t *testing.T) {
	r := NewResolver([]string{"Revenue", "Región", "revenue"})
	if c, ok := r.Resolve(" revenue "); !ok || c != "revenue" {
		t.Fatalf("exact match should win: %q %v", c, ok)
	}
	if c, ok := r.Resolve("REVENUE"); !ok || c != "Revenue" {
		t.Fatalf("folded match: %q %v", c, ok)
	}
	if c, ok := r.Resolve("RÉGION"); !ok || c != "Región" {
		t.Fatalf("unicode fold: %q %v", c, ok)
	}
	if _, ok := r.Resolve("Rev"); ok {
		t.Fatalf("partial matches must not resolve")
	}
	if _, ok := r.Resolve("   "); ok {
		t.Fatalf("blank must not resolve")
	}
	r2 := NewResolver([]string{"Revenue"})
	if c, ok := r2.Resolve(" revenue "); !ok || c != "Revenue" {
		t.Fatalf(`" revenue " should resolve to "Revenue", got %q`, c)
	}
}

func TestProject_SelectsRangeAndColumns(t *testing.T) {
	ds := dataset(20)
	base := model.Config{"chartType": "bar", "startRow": 1, "endRow": 10, "x": "category", "y": " Revenue", "z": "missing"}
	p, err := Project(ds, base, model.Config{"startRow": "3"}, Options{})
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if len(p.Columns) != 2 || p.Columns[0] != "Category" || p.Columns[1] != "Revenue" {
		t.Fatalf("columns: %v", p.Columns)
	}
	if p.RowsCount != 8 || p.Rows[0]["Category"] != "C3" || p.Rows[7]["Category"] != "C10" {
		t.Fatalf("rows: %d first=%v", p.RowsCount, p.Rows[0])
	}
	if _, ok := p.Rows[0]["Units"]; ok {
		t.Fatalf("unselected column leaked")
	}
	if p.ConfigUsed["startRow"] != 3 || p.ConfigUsed["endRow"] != 10 || p.TotalRows != 20 {
		t.Fatalf("configUsed: %v total=%d", p.ConfigUsed, p.TotalRows)
	}
	if base["startRow"] != 1 {
		t.Fatalf("base config must not be mutated")
	}
}

func TestProject_DuplicateRolesCollapse(t *testing.T) {
	p, err := Project(dataset(3), model.Config{"startRow": 1, "endRow": 3, "x": "Revenue", "y": "revenue"}, nil, Options{})
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if len(p.Columns) != 1 {
		t.Fatalf("expected one column, got %v", p.Columns)
	}
}

func TestProject_NoValidColumns(t *testing.T) {
	_, err := Project(dataset(5), model.Config{"startRow": 1, "endRow": 5, "x": "nope", "n": 4}, nil, Options{})
	if !errors.Is(err, ErrNoValidColumns) {
		t.Fatalf("expected ErrNoValidColumns, got %v", err)
	}
}

func TestProject_Cap(t *testing.T) {
	p, err := Project(dataset(50), model.Config{"startRow": 1, "endRow": 50, "x": "Units"}, nil, Options{MaxRows: 20})
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if p.RowsCount != 20 || p.EndRow != 50 {
		t.Fatalf("cap: rows=%d end=%d", p.RowsCount, p.EndRow)
	}
}
