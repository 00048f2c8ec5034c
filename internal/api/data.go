package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/KaramelBytes/dataglimpse/internal/dataset"
	"github.com/KaramelBytes/dataglimpse/internal/model"
	"github.com/KaramelBytes/dataglimpse/internal/store"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// multipart framing allowance on top of the file limit
const multipartOverhead = 1 << 20

type datasetSummary struct {
	ID             string                      `json:"id"`
	FileName       string                      `json:"fileName"`
	Rows           int                         `json:"rows"`
	Columns        []string                    `json:"columns"`
	ColumnTypes    map[string]model.ColumnType `json:"columnTypes"`
	IsGuestFile    bool                        `json:"isGuestFile"`
	Visualizations []model.VisualizationRef    `json:"visualizations"`
	CreatedAt      time.Time                   `json:"createdAt"`
}

func summarize(ds *model.Dataset) datasetSummary {
	return datasetSummary{
		ID:             ds.ID,
		FileName:       ds.FileName,
		Rows:           ds.RowCount,
		Columns:        ds.Columns,
		ColumnTypes:    ds.ColumnTypes,
		IsGuestFile:    ds.IsGuestOwned(),
		Visualizations: ds.Visualizations,
		CreatedAt:      ds.CreatedAt,
	}
}

// Upload streams the multipart "file" part into the ingestor.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	who := identityFrom(r.Context())
	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes+multipartOverhead)
	}
	mr, err := r.MultipartReader()
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "expected a multipart upload with a \"file\" field")
		return
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.writeError(w, r, fmt.Errorf("read upload: %w", err))
			return
		}
		if part.FormName() != "file" || part.FileName() == "" {
			part.Close()
			continue
		}
		ds, err := h.Ingestor.Ingest(r.Context(), part.FileName(), part, who.Owner())
		part.Close()
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"success":       true,
			"message":       "Upload successful",
			"datasetId":     ds.ID,
			"columns":       ds.Columns,
			"columnTypes":   ds.ColumnTypes,
			"summary":       ds.Summary,
			"rows":          ds.RowCount,
			"samplePreview": ds.SamplePreview,
		})
		return
	}
	writeMessage(w, http.StatusBadRequest, "No file uploaded")
}

func (h *Handler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	list, err := h.Datasets.List(r.Context(), identityFrom(r.Context()).Owner())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]datasetSummary, len(list))
	for i, ds := range list {
		out[i] = summarize(ds)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "datasets": out})
}

// Anonymous callers may read guest-owned datasets; everyone else needs ownership.
func previewAllowed(ds *model.Dataset, who model.Identity) bool {
	if ds.Owner.IsZero() {
		return true
	}
	if who.IsAnonymous() {
		return ds.IsGuestOwned()
	}
	return dataset.CanAccess(ds, who)
}

func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ds, err := h.Datasets.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !previewAllowed(ds, identityFrom(r.Context())) {
		h.writeError(w, r, &dataset.ForbiddenError{Kind: store.KindDataset, ID: id})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"datasetId":   ds.ID,
		"filename":    ds.FileName,
		"columns":     ds.Columns,
		"columnTypes": ds.ColumnTypes,
		"summary":     ds.Summary,
		"sampleRows":  ds.SamplePreview,
	})
}

// Configure saves the pending chart configuration. Every body field other
// than datasetId, chartType, startRow and endRow is a column role.
func (h *Handler) Configure(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decodeBody(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	id, _ := body["datasetId"].(string)
	if strings.TrimSpace(id) == "" {
		writeMessage(w, http.StatusBadRequest, "datasetId is required")
		return
	}
	if err := h.checkDatasetAccess(r, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	chartType, _ := body[model.KeyChartType].(string)
	roles := model.Config{}
	for k, v := range body {
		if k != "datasetId" && !model.IsReserved(k) {
			roles[k] = v
		}
	}
	cfg, err := h.Datasets.SetPendingConfig(r.Context(), id, chartType, body[model.KeyStartRow], body[model.KeyEndRow], roles)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Configuration saved successfully", "config": cfg})
}

// FinalPreview projects the saved config overlaid with query parameters.
func (h *Handler) FinalPreview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.checkDatasetAccess(r, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	overrides := model.Config{}
	for k, vals := range r.URL.Query() {
		if len(vals) > 0 {
			overrides[k] = vals[0]
		}
	}
	p, err := h.Datasets.Preview(r.Context(), id, overrides)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"datasetId":  id,
		"columns":    p.Columns,
		"data":       p.Rows,
		"configUsed": p.ConfigUsed,
		"rowsCount":  p.RowsCount,
		"totalRows":  p.TotalRows,
	})
}

func (h *Handler) checkDatasetAccess(r *http.Request, id string) error {
	ds, err := h.Datasets.Get(r.Context(), id)
	if err != nil {
		return err
	}
	who := identityFrom(r.Context())
	if !ds.Owner.IsZero() && !dataset.CanAccess(ds, who) {
		h.Log.Warn("dataset access denied", zap.String("dataset_id", id), zap.String("owner", ds.Owner.String()))
		return &dataset.ForbiddenError{Kind: store.KindDataset, ID: id}
	}
	return nil
}
