// Package insight generates narrative descriptions of visualizations with a
// chat-completion runtime and keeps their history.
package insight

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/dataglimpse/internal/ai"
	"github.com/KaramelBytes/dataglimpse/internal/dataset"
	"github.com/KaramelBytes/dataglimpse/internal/model"
	"github.com/KaramelBytes/dataglimpse/internal/store"
	"github.com/KaramelBytes/dataglimpse/internal/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SampleRows is how many preview rows a prompt carries.
const SampleRows = 10

// ErrNoRuntime is returned when no narrative provider is configured.
var ErrNoRuntime = errors.New("no narrative provider configured")

// GenerationError reports a failed narrative request. Nothing is stored.
type GenerationError struct {
	VizID string
	Mode  string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate %s insight for visualization %s: %v", e.Mode, e.VizID, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Store is the persistence a Service needs.
type Store interface {
	store.DatasetStore
	store.VisualizationStore
	store.InsightStore
}

// Options tunes generation.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Service generates and lists insights.
type Service struct {
	store   Store
	runtime ai.Runtime
	opts    Options
	log     *zap.Logger
	now     func() time.Time
}

// NewService builds a Service. rt may be nil, in which case Generate fails
// with ErrNoRuntime and History still works.
func NewService(s Store, rt ai.Runtime, opts Options, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.3
	}
	return &Service{store: s, runtime: rt, opts: opts, log: log, now: time.Now}
}

// Generate asks the runtime to describe the visualization in the given mode
// and appends the answer to its history.
func (s *Service) Generate(ctx context.Context, vizID, mode string) (*model.Insight, error) {
	mode = strings.TrimSpace(mode)
	if vizID == "" || mode == "" {
		return nil, &dataset.InvalidConfigError{Reason: "vizId and mode are required"}
	}
	v, err := s.store.GetVisualization(ctx, vizID)
	if err != nil {
		return nil, err
	}
	in := promptInput{DatasetName: "Unnamed dataset", ChartType: v.ChartType, Sample: v.PreviewData}
	if in.ChartType == "" {
		in.ChartType = "unspecified chart"
	}
	if len(in.Sample) > SampleRows {
		in.Sample = in.Sample[:SampleRows]
	}
	if ds, err := s.store.GetDataset(ctx, v.DatasetID); err == nil {
		in.DatasetName = ds.FileName
		in.Columns = ds.Columns
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if s.runtime == nil {
		return nil, &GenerationError{VizID: vizID, Mode: mode, Err: ErrNoRuntime}
	}
	prompt := utils.TruncateToTokenLimit(buildPrompt(mode, in), ai.ContextTokens(s.opts.Model)/2)
	s.log.Debug("insight prompt", zap.String("viz_id", vizID),
		zap.Any("tokens_est", utils.TokenBreakdown(map[string]string{"system": systemPrompt, "user": prompt})))
	start := s.now()
	resp, err := s.runtime.Generate(ctx, ai.GenerateRequest{
		Model: s.opts.Model,
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: systemPrompt},
			{Role: ai.RoleUser, Content: prompt},
		},
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		s.log.Warn("insight generation failed", zap.String("viz_id", vizID), zap.String("mode", mode), zap.Error(err))
		return nil, &GenerationError{VizID: vizID, Mode: mode, Err: err}
	}
	text := resp.Text()
	if text == "" {
		return nil, &GenerationError{VizID: vizID, Mode: mode, Err: ai.ErrNoContent}
	}

	out := &model.Insight{
		ID:        uuid.NewString(),
		VizID:     vizID,
		Mode:      mode,
		Content:   text,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.AppendInsight(ctx, out); err != nil {
		return nil, fmt.Errorf("save insight: %w", err)
	}
	s.log.Info("insight generated",
		zap.String("viz_id", vizID),
		zap.String("mode", mode),
		zap.Int("prompt_tokens_est", utils.CountTokens(prompt)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("took", s.now().Sub(start)))
	return out, nil
}

// History returns the visualization's insights oldest first.
func (s *Service) History(ctx context.Context, vizID string) ([]*model.Insight, error) {
	return s.store.ListInsights(ctx, vizID)
}
