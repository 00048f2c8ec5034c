package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) GenerateInsight(w http.ResponseWriter, r *http.Request) {
	var body struct {
		VizID string `json:"vizId"`
		Mode  string `json:"mode"`
	}
	if err := decodeBody(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	in, err := h.Insights.Generate(r.Context(), body.VizID, body.Mode)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "AI insight generated successfully", "data": in})
}

func (h *Handler) InsightHistory(w http.ResponseWriter, r *http.Request) {
	list, err := h.Insights.History(r.Context(), chi.URLParam(r, "vizId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "AI history fetched successfully", "data": list})
}
