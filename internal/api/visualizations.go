package api

import (
	"net/http"
	"strings"

	"github.com/KaramelBytes/dataglimpse/internal/dataset"
	"github.com/KaramelBytes/dataglimpse/internal/model"
	"github.com/KaramelBytes/dataglimpse/internal/store"
	"github.com/go-chi/chi/v5"
)

type createVisualizationRequest struct {
	DatasetID string       `json:"datasetId"`
	ChartType string       `json:"chartType"`
	Config    model.Config `json:"config"`
}

func (h *Handler) CreateVisualization(w http.ResponseWriter, r *http.Request) {
	var req createVisualizationRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.DatasetID) == "" || strings.TrimSpace(req.ChartType) == "" {
		writeMessage(w, http.StatusBadRequest, "datasetId and chartType are required")
		return
	}
	who := identityFrom(r.Context())
	ds, err := h.Datasets.Get(r.Context(), req.DatasetID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !previewAllowed(ds, who) {
		h.writeError(w, r, &dataset.ForbiddenError{Kind: store.KindDataset, ID: req.DatasetID})
		return
	}
	v, err := h.Visualizations.Create(r.Context(), req.DatasetID, req.ChartType, req.Config, who.Owner())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":       true,
		"message":       "Visualization created and linked to dataset",
		"vizId":         v.ID,
		"visualization": v,
	})
}

func (h *Handler) FetchVisualization(w http.ResponseWriter, r *http.Request) {
	v, err := h.Visualizations.Fetch(r.Context(), chi.URLParam(r, "vizId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Visualization fetched successfully", "visualization": v})
}

// UpdateVisualization accepts either {"config": {...}} or the patch itself.
func (h *Handler) UpdateVisualization(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decodeBody(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	patch := model.Config(body)
	if inner, ok := body["config"].(map[string]any); ok {
		patch = model.Config(inner)
		if ct, ok := body[model.KeyChartType]; ok {
			patch[model.KeyChartType] = ct
		}
	}
	v, err := h.Visualizations.Update(r.Context(), chi.URLParam(r, "vizId"), patch, identityFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Visualization updated successfully", "visualization": v})
}

func (h *Handler) SetVisualizationStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	v, err := h.Visualizations.SetStatus(r.Context(), chi.URLParam(r, "vizId"), body.Status, identityFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Visualization status updated", "visualization": v})
}
