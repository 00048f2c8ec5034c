package ingest

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/KaramelBytes/dataglimpse/internal/dataset"
	"github.com/KaramelBytes/dataglimpse/internal/model"
	"github.com/KaramelBytes/dataglimpse/internal/parser"
	"github.com/KaramelBytes/dataglimpse/internal/store/memory"
)

const salesCSV = "Category,Revenue,Units\nA,100,1\nB,200,2\nC,300,3\n"

func newIngestor(t *testing.T, maxBytes int64) (*Ingestor, *memory.Store, string) {
	t.Helper()
	dir := t.TempDir()
	s := memory.New()
	dm := dataset.NewManager(s, model.DefaultLimits(), nil)
	return New(dm, s, dir, maxBytes, nil), s, dir
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("spool dir not cleaned: %d entries left", len(entries))
	}
}

func TestIngestGuestUpload(t *testing.T) {
	in, s, dir := newIngestor(t, 1<<20)
	ctx := context.Background()
	owner := model.GuestOwner("guest_123")

	ds, err := in.Ingest(ctx, "sales.csv", strings.NewReader(salesCSV), owner)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if ds.RowCount != 3 || len(ds.Columns) != 3 || ds.Checksum == "" {
		t.Fatalf("dataset: rows=%d cols=%v checksum=%q", ds.RowCount, ds.Columns, ds.Checksum)
	}
	sess, err := s.GetSession(ctx, "guest_123")
	if err != nil || len(sess.DatasetIDs) != 1 || sess.DatasetIDs[0] != ds.ID {
		t.Fatalf("session: %+v %v", sess, err)
	}
	assertEmptyDir(t, dir)

	again, err := in.Ingest(ctx, "copy.csv", strings.NewReader(salesCSV), owner)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if again.Checksum != ds.Checksum {
		t.Fatalf("same bytes must hash alike: %s vs %s", again.Checksum, ds.Checksum)
	}
	if sess, _ := s.GetSession(ctx, "guest_123"); len(sess.DatasetIDs) != 2 {
		t.Fatalf("session should track both uploads: %v", sess.DatasetIDs)
	}
}

func TestIngestRejections(t *testing.T) {
	in, s, dir := newIngestor(t, 16)
	ctx := context.Background()

	if _, err := in.Ingest(ctx, "notes.txt", strings.NewReader("x"), model.Owner{}); !errors.Is(err, parser.ErrUnsupported) {
		t.Fatalf("expected unsupported format, got %v", err)
	}
	if _, err := in.Ingest(ctx, "sales.csv", strings.NewReader(salesCSV), model.Owner{}); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected too large, got %v", err)
	}
	var ee *dataset.EmptyDatasetError
	if _, err := in.Ingest(ctx, "empty.csv", strings.NewReader("a,b\n"), model.GuestOwner("guest_e")); !errors.As(err, &ee) {
		t.Fatalf("expected empty dataset, got %v", err)
	}
	if _, err := s.GetSession(ctx, "guest_e"); err == nil {
		t.Fatalf("failed upload must not create a session")
	}
	assertEmptyDir(t, dir)
}

func TestIngestCorruptWorkbook(t *testing.T) {
	in, s, dir := newIngestor(t, 1024)
	ctx := context.Background()

	_, err := in.Ingest(ctx, "report.xlsx", strings.NewReader("definitely not a zip"), model.GuestOwner("guest_c"))
	var pe *parser.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if pe.File != "report.xlsx" {
		t.Fatalf("parse error should name the upload, got %q", pe.File)
	}
	if _, err := s.GetSession(ctx, "guest_c"); err == nil {
		t.Fatalf("failed upload must not create a session")
	}
	assertEmptyDir(t, dir)
}
