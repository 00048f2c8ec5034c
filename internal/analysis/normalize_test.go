package analysis

import (
	"math"
	"testing"

	"github.com/KaramelBytes/dataglimpse/internal/model"
	"github.com/KaramelBytes/dataglimpse/internal/parser"
)

func table(cols []string, rows ...[]any) *parser.Table {
	t := &parser.Table{Columns: cols}
	for _, r := range rows {
		row := model.Row{}
		for i, c := range cols {
			row[c] = r[i]
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func TestNormalize_TypesAndSummary(t *testing.T) {
	tbl := table([]string{"Category", "Revenue", "When", "Mixed", "Empty"},
		[]any{" A ", " 10 ", "2024-01-02", "1", ""},
		[]any{"B", "20.5", "2024/02/03", "two", nil},
		[]any{"C", "", "", "3", "  "},
		[]any{"D", 30.0, "2024-03-04T10:00:00Z", "4", nil},
	)
	res := Normalize(tbl)

	if len(res.CleanedRows) != len(tbl.Rows) {
		t.Fatalf("cleaned rows %d != original %d", len(res.CleanedRows), len(tbl.Rows))
	}
	if res.CleanedRows[0]["Category"] != "A" || res.CleanedRows[0]["Revenue"] != "10" {
		t.Fatalf("values not trimmed: %#v", res.CleanedRows[0])
	}
	want := map[string]model.ColumnType{
		"Category": model.ColumnText,
		"Revenue":  model.ColumnNumeric,
		"When":     model.ColumnDate,
		"Mixed":    model.ColumnText,
		"Empty":    model.ColumnText,
	}
	for col, typ := range want {
		if res.ColumnTypes[col] != typ {
			t.Fatalf("%s: want %s, got %s", col, typ, res.ColumnTypes[col])
		}
	}
	if len(res.ColumnTypes) != len(res.Columns) {
		t.Fatalf("column types must cover exactly the columns")
	}
	rev := res.Summary["Revenue"]
	if rev.Missing != 1 || rev.NonNull != 3 {
		t.Fatalf("revenue counts: %+v", rev)
	}
	if *rev.Min != 10 || *rev.Max != 30 || math.Abs(*rev.Mean-20.1666666) > 1e-4 {
		t.Fatalf("revenue stats: min=%v max=%v mean=%v", *rev.Min, *rev.Max, *rev.Mean)
	}
	if res.Summary["Empty"].Missing != 4 {
		t.Fatalf("whitespace-only cells should count as missing: %+v", res.Summary["Empty"])
	}
	if res.Summary["Category"].Min != nil {
		t.Fatalf("text columns carry no numeric stats")
	}
}

func TestNormalize_UnanimousNotMajority(t *testing.T) {
	tbl := table([]string{"n"}, []any{"1"}, []any{"2"}, []any{"3"}, []any{"x"})
	if got := Normalize(tbl).ColumnTypes["n"]; got != model.ColumnText {
		t.Fatalf("one non-number must demote the column to text, got %s", got)
	}
}

func TestToNumberRejectsNonFinite(t *testing.T) {
	for _, s := range []string{"NaN", "Inf", "-Infinity", "1e400", "12abc"} {
		if _, ok := toNumber(s); ok {
			t.Fatalf("%q should not be numeric", s)
		}
	}
	for _, s := range []string{"0", "-3.5", "1e3", " 42 "} {
		if _, ok := toNumber(s); !ok {
			t.Fatalf("%q should be numeric", s)
		}
	}
}

func TestNormalize_NumbersWinOverDates(t *testing.T) {
	tbl := table([]string{"year"}, []any{"2023"}, []any{"2024"})
	if got := Normalize(tbl).ColumnTypes["year"]; got != model.ColumnNumeric {
		t.Fatalf("numeric check runs before date check, got %s", got)
	}
}
