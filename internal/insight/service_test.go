package insight

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/dataglimpse/internal/ai"
	"github.com/KaramelBytes/dataglimpse/internal/model"
	"github.com/KaramelBytes/dataglimpse/internal/store"
	"github.com/KaramelBytes/dataglimpse/internal/store/memory"
)

type fakeRuntime struct {
	reply string
	err   error
	got   ai.GenerateRequest
}

func (f *fakeRuntime) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &ai.GenerateResponse{Choices: []ai.Choice{{Message: ai.Message{Role: ai.RoleAssistant, Content: f.reply}}}}, nil
}

func seed(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New()
	ctx := context.Background()
	ds := &model.Dataset{ID: "ds1", FileName: "sales.csv", Columns: []string{"Category", "Revenue"}, CreatedAt: time.Now()}
	if err := s.CreateDataset(ctx, ds); err != nil {
		t.Fatalf("dataset: %v", err)
	}
	var rows []model.Row
	for i := 0; i < 25; i++ {
		rows = append(rows, model.Row{"Category": "row" + strings.Repeat("x", i), "Revenue": i})
	}
	v := &model.Visualization{ID: "v1", DatasetID: "ds1", ChartType: "bar", PreviewData: rows, Status: model.StatusDraft, Version: 1, CreatedAt: time.Now()}
	if err := s.CreateVisualization(ctx, v); err != nil {
		t.Fatalf("viz: %v", err)
	}
	return s
}

func TestGenerateStoresInsight(t *testing.T) {
	s := seed(t)
	rt := &fakeRuntime{reply: "  **Revenue** grows steadily.  "}
	svc := NewService(s, rt, Options{Model: "openai/gpt-4o-mini"}, nil)
	ctx := context.Background()

	in, err := svc.Generate(ctx, "v1", model.InsightSummary)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if in.Content != "**Revenue** grows steadily." || in.Mode != model.InsightSummary {
		t.Fatalf("insight: %+v", in)
	}
	user := rt.got.Messages[1].Content
	if !strings.Contains(user, `"sales.csv"`) || !strings.Contains(user, "bar") {
		t.Fatalf("prompt missing context: %s", user)
	}
	if strings.Contains(user, strings.Repeat("x", 10)) {
		t.Fatalf("prompt should carry only the first %d rows", SampleRows)
	}

	if _, err := svc.Generate(ctx, "v1", model.InsightStats); err != nil {
		t.Fatalf("second generate: %v", err)
	}
	hist, err := svc.History(ctx, "v1")
	if err != nil || len(hist) != 2 || hist[0].Mode != model.InsightSummary {
		t.Fatalf("history: %+v %v", hist, err)
	}
	v, _ := s.GetVisualization(ctx, "v1")
	if len(v.InsightIDs) != 2 || v.InsightIDs[0] != in.ID {
		t.Fatalf("insight ids: %v", v.InsightIDs)
	}
}

func TestGenerateFailureLeavesNoTrace(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	svc := NewService(s, &fakeRuntime{err: errors.New("boom")}, Options{Model: "m"}, nil)

	var ge *GenerationError
	if _, err := svc.Generate(ctx, "v1", "recommendation"); !errors.As(err, &ge) || ge.VizID != "v1" {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if _, err := NewService(s, &fakeRuntime{reply: "   "}, Options{}, nil).Generate(ctx, "v1", "summary"); !errors.Is(err, ai.ErrNoContent) {
		t.Fatalf("expected no content, got %v", err)
	}
	if _, err := NewService(s, nil, Options{}, nil).Generate(ctx, "v1", "summary"); !errors.Is(err, ErrNoRuntime) {
		t.Fatalf("expected no runtime, got %v", err)
	}
	if hist, _ := svc.History(ctx, "v1"); len(hist) != 0 {
		t.Fatalf("failed generations must not be stored: %d", len(hist))
	}
	if _, err := svc.Generate(ctx, "missing", "summary"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestBuildPromptModes(t *testing.T) {
	in := promptInput{DatasetName: "d.csv", ChartType: "line", Sample: []model.Row{{"a": 1}}}
	seen := map[string]bool{}
	for _, mode := range []string{model.InsightSummary, model.InsightStats, model.InsightRecommendation, "whatever"} {
		p := buildPrompt(mode, in)
		if !strings.Contains(p, `"a": 1`) {
			t.Fatalf("%s: sample missing", mode)
		}
		if seen[p] {
			t.Fatalf("%s: prompt not distinct", mode)
		}
		seen[p] = true
	}
}
