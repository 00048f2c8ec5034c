package parser_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/dataglimpse/internal/parser"
	"github.com/xuri/excelize/v2"
)

func TestParseCSV_HeaderAndRows(t *testing.T) {
	in := "Category,Revenue,Units\nA,10,1\nB,20,2\n,,\nC,30\n"
	tbl, err := parser.Parse(strings.NewReader(in), "sales.csv")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := strings.Join(tbl.Columns, ","); got != "Category,Revenue,Units" {
		t.Fatalf("columns: %s", got)
	}
	if len(tbl.Rows) != 3 {
		t.Fatalf("expected blank row skipped, got %d rows", len(tbl.Rows))
	}
	if tbl.Rows[1]["Revenue"] != "20" {
		t.Fatalf("unexpected value: %#v", tbl.Rows[1])
	}
	if v, ok := tbl.Rows[2]["Units"]; !ok || v != nil {
		t.Fatalf("short record should pad with nil, got %#v", tbl.Rows[2])
	}
}

func TestParseCSV_StripsBOM(t *testing.T) {
	in := "\xEF\xBB\xBFname,score\nann,3\n"
	tbl, err := parser.Parse(strings.NewReader(in), "x.CSV")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tbl.Columns[0] != "name" {
		t.Fatalf("BOM leaked into header: %q", tbl.Columns[0])
	}
}

func TestParseCSV_UTF16(t *testing.T) {
	// "a,b\n1,2\n" as UTF-16LE with BOM
	src := "a,b\n1,2\n"
	b := []byte{0xFF, 0xFE}
	for _, r := range src {
		b = append(b, byte(r), 0)
	}
	tbl, err := parser.Parse(strings.NewReader(string(b)), "u.csv")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(tbl.Rows) != 1 || tbl.Rows[0]["b"] != "2" {
		t.Fatalf("unexpected table: %+v", tbl)
	}
}

func TestParseCSV_HeaderNames(t *testing.T) {
	tbl, err := parser.Parse(strings.NewReader(" a ,a,,a\n1,2,3,4\n"), "h.csv")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []string{"a", "a_2", "column_3", "a_3"}
	for i, w := range want {
		if tbl.Columns[i] != w {
			t.Fatalf("column %d: want %q, got %q", i, w, tbl.Columns[i])
		}
	}
}

func TestParseUnsupported(t *testing.T) {
	_, err := parser.Parse(strings.NewReader("{}"), "data.json")
	if err == nil {
		t.Fatalf("expected error")
	}
	var ue *parser.UnsupportedFormatError
	if !errors.As(err, &ue) || ue.Ext != ".json" {
		t.Fatalf("expected UnsupportedFormatError for .json, got %v", err)
	}
	if !errors.Is(err, parser.ErrUnsupported) {
		t.Fatalf("expected errors.Is ErrUnsupported")
	}
	if parser.Supported("notes.tsv") {
		t.Fatalf("tsv must not be accepted")
	}
}

func TestParseFileXLSX_FirstSheet(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "book.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Category", "Revenue", "Date"},
		{"A", 10.5, "2024-01-02"},
		{"B", 20, nil},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	if _, err := f.NewSheet("Ignored"); err != nil {
		t.Fatalf("new sheet: %v", err)
	}
	if err := f.SaveAs(p); err != nil {
		t.Fatalf("save: %v", err)
	}
	_ = f.Close()

	tbl, err := parser.ParseFile(p)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(tbl.Columns) != 3 || len(tbl.Rows) != 2 {
		t.Fatalf("unexpected shape: %v rows=%d", tbl.Columns, len(tbl.Rows))
	}
	if v, ok := tbl.Rows[0]["Revenue"].(float64); !ok || v != 10.5 {
		t.Fatalf("numeric cell should be float64, got %#v", tbl.Rows[0]["Revenue"])
	}
	if tbl.Rows[0]["Category"] != "A" {
		t.Fatalf("string cell: %#v", tbl.Rows[0]["Category"])
	}
	if tbl.Rows[1]["Date"] != nil {
		t.Fatalf("missing cell should be nil, got %#v", tbl.Rows[1]["Date"])
	}
}

func TestParseFileMissing(t *testing.T) {
	_, err := parser.ParseFile(filepath.Join(t.TempDir(), "nope.csv"))
	if err == nil || errors.Is(err, parser.ErrUnsupported) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestParseFileCorruptWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.xlsx")
	if err := os.WriteFile(path, []byte("PK not really"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := parser.ParseFile(path)
	var pe *parser.ParseError
	if !errors.As(err, &pe) || pe.File != "broken.xlsx" {
		t.Fatalf("expected ParseError for broken.xlsx, got %v", err)
	}
	if errors.Is(err, parser.ErrUnsupported) {
		t.Fatalf("corrupt content is not an unsupported format: %v", err)
	}
}
