package model

import (
	"time"
)

// Row is one record of a tabular upload keyed by column name.
type Row map[string]any

// ColumnType is the inferred type of a column.
type ColumnType string

const (
	ColumnNumeric ColumnType = "numeric"
	ColumnDate    ColumnType = "date"
	ColumnText    ColumnType = "text"
)

// ColumnSummary holds per-column statistics computed at upload time.
type ColumnSummary struct {
	Type    ColumnType `json:"type"`
	Missing int        `json:"missing"`
	NonNull int        `json:"nonNull"`
	Min     *float64   `json:"min,omitempty"`
	Max     *float64   `json:"max,omitempty"`
	Mean    *float64   `json:"mean,omitempty"`
}

// VisualizationRef is the back-reference a dataset keeps for each chart built from it.
type VisualizationRef struct {
	VizID     string    `json:"vizId"`
	ChartType string    `json:"chartType"`
	CreatedAt time.Time `json:"createdAt"`
}

// Dataset is a persisted, parsed upload.
type Dataset struct {
	ID             string                   `json:"id"`
	FileName       string                   `json:"fileName"`
	Owner          Owner                    `json:"owner"`
	Columns        []string                 `json:"columns"`
	ColumnTypes    map[string]ColumnType    `json:"columnTypes"`
	Summary        map[string]ColumnSummary `json:"summary,omitempty"`
	RowCount       int                      `json:"rowCount"`
	OriginalRows   []Row                    `json:"originalData"`
	CleanedRows    []Row                    `json:"cleanedData"`
	SamplePreview  []Row                    `json:"samplePreview"`
	PendingConfig  Config                   `json:"pendingConfig,omitempty"`
	Visualizations []VisualizationRef       `json:"visualizations"`
	Checksum       string                   `json:"checksum,omitempty"`
	CreatedAt      time.Time                `json:"createdAt"`
}

// IsGuestOwned reports whether the dataset belongs to a guest session.
func (d *Dataset) IsGuestOwned() bool { return d.Owner.Kind == OwnerGuest }

// GuestSession tracks the datasets uploaded by one anonymous session.
type GuestSession struct {
	SessionID          string    `json:"sessionId"`
	DatasetIDs         []string  `json:"datasetIds"`
	VisualizationsUsed int       `json:"visualizationsUsed"`
	CreatedAt          time.Time `json:"createdAt"`
}

// Visualization status values.
const (
	StatusDraft = "draft"
	StatusFinal = "final"
)

// Visualization is a saved, projected chart configuration.
type Visualization struct {
	ID          string    `json:"id"`
	Owner       Owner     `json:"owner"`
	DatasetID   string    `json:"datasetId"`
	ChartType   string    `json:"chartType"`
	Config      Config    `json:"config"`
	PreviewData []Row     `json:"previewData"`
	Status      string    `json:"status"`
	Version     int       `json:"version"`
	InsightIDs  []string  `json:"aiMessageIds"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Insight modes.
const (
	InsightSummary        = "summary"
	InsightStats          = "stats"
	InsightRecommendation = "recommendation"
)

// Insight is an append-only narrative generated for a visualization.
type Insight struct {
	ID        string    `json:"id"`
	VizID     string    `json:"vizId"`
	Mode      string    `json:"mode"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Limits are the operational caps injected into the services.
type Limits struct {
	PreviewRowCap   int
	SampleRows      int
	GuestSessionTTL time.Duration
	MaxUploadBytes  int64
}

// DefaultLimits returns the stock caps: 1000 persisted preview rows, 10 sample rows,
// 6h guest sessions and 10MB uploads.
func DefaultLimits() Limits {
	return Limits{
		PreviewRowCap:   1000,
		SampleRows:      10,
		GuestSessionTTL: 6 * time.Hour,
		MaxUploadBytes:  10 << 20,
	}
}
