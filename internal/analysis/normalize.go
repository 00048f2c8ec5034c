package analysis

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/dataglimpse/internal/model"
	"github.com/KaramelBytes/dataglimpse/internal/parser"
)

// Result is the cleaned view of a parsed table plus its inferred schema.
type Result struct {
	Columns     []string
	CleanedRows []model.Row
	ColumnTypes map[string]model.ColumnType
	Summary     map[string]model.ColumnSummary
}

// Normalize trims string values, counts missing cells and classifies every column.
// A column is numeric only if all its non-missing values are finite numbers,
// a date only if all of them parse as dates, and text otherwise.
func Normalize(t *parser.Table) *Result {
	res := &Result{
		Columns:     append([]string(nil), t.Columns...),
		CleanedRows: make([]model.Row, 0, len(t.Rows)),
		ColumnTypes: make(map[string]model.ColumnType, len(t.Columns)),
		Summary:     make(map[string]model.ColumnSummary, len(t.Columns)),
	}

	type colAcc struct {
		miss   int
		values []any
	}
	accs := make([]*colAcc, len(res.Columns))
	for i := range accs {
		accs[i] = &colAcc{}
	}

	for _, raw := range t.Rows {
		row := make(model.Row, len(res.Columns))
		for j, col := range res.Columns {
			v := raw[col]
			if s, ok := v.(string); ok {
				v = strings.TrimSpace(s)
			}
			row[col] = v
			if isMissing(v) {
				accs[j].miss++
				continue
			}
			accs[j].values = append(accs[j].values, v)
		}
		res.CleanedRows = append(res.CleanedRows, row)
	}

	for j, col := range res.Columns {
		c := accs[j]
		sum := model.ColumnSummary{Missing: c.miss, NonNull: len(c.values)}
		switch {
		case len(c.values) == 0:
			sum.Type = model.ColumnText
		case allNumeric(c.values):
			sum.Type = model.ColumnNumeric
			var w welford
			for _, v := range c.values {
				x, _ := toNumber(v)
				w.add(x)
			}
			sum.Min, sum.Max, sum.Mean = &w.min, &w.max, &w.mean
		case allDates(c.values):
			sum.Type = model.ColumnDate
		default:
			sum.Type = model.ColumnText
		}
		res.ColumnTypes[col] = sum.Type
		res.Summary[col] = sum
	}
	return res
}

func isMissing(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func allNumeric(vals []any) bool {
	for _, v := range vals {
		if _, ok := toNumber(v); !ok {
			return false
		}
	}
	return true
}

func allDates(vals []any) bool {
	for _, v := range vals {
		if _, ok := toDate(v); !ok {
			return false
		}
	}
	return true
}

// toNumber accepts native numbers and numeric strings; NaN and infinities are rejected.
func toNumber(v any) (float64, bool) {
	var x float64
	switch n := v.(type) {
	case float64:
		x = n
	case float32:
		x = float64(n)
	case int:
		x = float64(n)
	case int64:
		x = float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		x = f
	default:
		return 0, false
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, false
	}
	return x, true
}

var dateLayouts = []string{
	time.RFC3339, time.RFC3339Nano, "2006-01-02", "2006/01/02", "01/02/2006", "1/2/2006",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02T15:04",
	"1/2/2006 15:04", "1/2/2006 15:04:05", time.RFC1123, time.RFC1123Z, time.RFC822,
	"Jan 2, 2006", "January 2, 2006", "2 Jan 2006", "02 Jan 2006", "Jan 2006", "January 2006",
	"Mon Jan 2 2006", "Mon, 02 Jan 2006",
}

func toDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d, true
	case string:
		s := strings.TrimSpace(d)
		for _, l := range dateLayouts {
			if t, err := time.Parse(l, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// welford keeps a running mean with min and max.
type welford struct {
	n        int
	mean     float64
	min, max float64
}

func (w *welford) add(x float64) {
	w.n++
	if w.n == 1 {
		w.min, w.max = x, x
	}
	if x < w.min {
		w.min = x
	}
	if x > w.max {
		w.max = x
	}
	w.mean += (x - w.mean) / float64(w.n)
}
