package projection

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/KaramelBytes/dataglimpse/internal/model"
)

// Options tunes a projection.
type Options struct {
	// MaxRows caps the returned rows; 0 means uncapped.
	MaxRows int
}

// Projection is the column and row subset selected by a config.
type Projection struct {
	Columns    []string     `json:"columns"`
	Rows       []model.Row  `json:"data"`
	ConfigUsed model.Config `json:"configUsed"`
	RowsCount  int          `json:"rowsCount"`
	TotalRows  int          `json:"totalRows"`
	StartRow   int          `json:"-"`
	EndRow     int          `json:"-"`
}

// Project selects rows [startRow, endRow] (1-based, inclusive) and the columns
// named by the role entries of base overlaid with overrides. Unknown columns are
// dropped; a config that names no known column fails.
func Project(ds *model.Dataset, base, overrides model.Config, opt Options) (*Projection, error) {
	merged := base.Merge(overrides)
	total := len(ds.CleanedRows)

	start, end, err := Bounds(merged[model.KeyStartRow], merged[model.KeyEndRow], total)
	if err != nil {
		return nil, err
	}

	res := NewResolver(ds.Columns)
	selected := make(map[string]bool)
	var requested []string
	for _, role := range merged.Roles() {
		requested = append(requested, role.Column)
		if c, ok := res.Resolve(role.Column); ok {
			selected[c] = true
		}
	}
	var cols []string
	for _, c := range ds.Columns {
		if selected[c] {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return nil, &NoValidColumnsError{Requested: requested}
	}

	slice := ds.CleanedRows[start-1 : end]
	if opt.MaxRows > 0 && len(slice) > opt.MaxRows {
		slice = slice[:opt.MaxRows]
	}
	rows := make([]model.Row, len(slice))
	for i, src := range slice {
		row := make(model.Row, len(cols))
		for _, c := range cols {
			row[c] = src[c]
		}
		rows[i] = row
	}

	merged[model.KeyStartRow] = start
	merged[model.KeyEndRow] = end
	return &Projection{
		Columns:    cols,
		Rows:       rows,
		ConfigUsed: merged,
		RowsCount:  len(rows),
		TotalRows:  total,
		StartRow:   start,
		EndRow:     end,
	}, nil
}

// Bounds coerces loosely typed row bounds and checks 1 <= start <= end <= total.
func Bounds(startRow, endRow any, total int) (int, int, error) {
	fail := func(start, end int, reason string) (int, int, error) {
		return 0, 0, &InvalidRangeError{StartRow: startRow, EndRow: endRow, Start: start, End: end, TotalRows: total, Reason: reason}
	}
	start, ok := ParseRowBound(startRow)
	if !ok {
		return fail(0, 0, "startRow is not an integer")
	}
	end, ok := ParseRowBound(endRow)
	if !ok {
		return fail(start, 0, "endRow is not an integer")
	}
	switch {
	case start < 1:
		return fail(start, end, "startRow must be at least 1")
	case end < start:
		return fail(start, end, "endRow must not be before startRow")
	case end > total:
		return fail(start, end, fmt.Sprintf("endRow exceeds the %d available rows", total))
	}
	return start, end, nil
}

// ParseRowBound converts ints, integral floats and integer strings to int.
func ParseRowBound(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return ParseRowBound(f)
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.Atoi(s); err == nil {
			return i, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return ParseRowBound(f)
	}
	return 0, false
}
