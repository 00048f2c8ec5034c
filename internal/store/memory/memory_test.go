package memory_test

import (
	"context"
	"testing"

	"github.com/KaramelBytes/dataglimpse/internal/model"
	"github.com/KaramelBytes/dataglimpse/internal/store/memory"
	"github.com/KaramelBytes/dataglimpse/internal/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, memory.New())
}

func TestMemoryStoreCopiesOnRead(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	ds := &model.Dataset{ID: "d", CleanedRows: []model.Row{{"a": "1"}}}
	if err := s.CreateDataset(ctx, ds); err != nil {
		t.Fatalf("create: %v", err)
	}
	ds.CleanedRows[0]["a"] = "mutated"
	got, _ := s.GetDataset(ctx, "d")
	got.CleanedRows[0]["a"] = "also mutated"
	again, _ := s.GetDataset(ctx, "d")
	if again.CleanedRows[0]["a"] != "1" {
		t.Fatalf("store shares row maps with callers: %v", again.CleanedRows[0])
	}
}
