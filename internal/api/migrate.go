package api

import (
	"net/http"
	"strings"
)

// Migrate moves a guest session's datasets to the calling account.
func (h *Handler) Migrate(w http.ResponseWriter, r *http.Request) {
	who := identityFrom(r.Context())
	if who.AccountID == "" {
		writeMessage(w, http.StatusForbidden, "an account token is required to claim guest data")
		return
	}
	var body struct {
		GuestSessionID string `json:"guestSessionId"`
	}
	if err := decodeBody(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(body.GuestSessionID) == "" {
		writeMessage(w, http.StatusBadRequest, "guestSessionId is required")
		return
	}
	res, err := h.Migrator.Migrate(r.Context(), body.GuestSessionID, who.AccountID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "migrated": res.Migrated, "count": res.Count})
}
