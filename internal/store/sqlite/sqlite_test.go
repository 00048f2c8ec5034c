package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/KaramelBytes/dataglimpse/internal/store"
	"github.com/KaramelBytes/dataglimpse/internal/store/sqlite"
	"github.com/KaramelBytes/dataglimpse/internal/store/storetest"
)

func TestSQLiteStore(t *testing.T) {
	s, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "dg.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	storetest.Run(t, s)
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "dg.db")
	s, err := store.Open(ctx, store.Config{Driver: "sqlite", DSN: path})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.AddSessionDataset(ctx, "guest_a", "d1", time.Now()); err != nil {
		t.Fatalf("add: %v", err)
	}
	s.Close()

	s2, err := sqlite.Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	sess, err := s2.GetSession(ctx, "guest_a")
	if err != nil || len(sess.DatasetIDs) != 1 {
		t.Fatalf("session after reopen: %+v err=%v", sess, err)
	}
}

func TestSQLiteEmptyDSN(t *testing.T) {
	if _, err := sqlite.Open(context.Background(), " "); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
}
