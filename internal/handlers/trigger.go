package handlers

import (
	"errors"
	"log"
	"net/http"

	"castqueue/internal/autopub"
)

// TriggerPublishDue runs one publish pass on demand, for deployments that
// prefer an external cron over the in-process timer. Both can coexist: the
// loop's guard makes an overlapping trigger a no-op.
func (h *Handlers) TriggerPublishDue(w http.ResponseWriter, r *http.Request) {
	if h.triggerSecret == "" {
		http.Error(w, "Manual trigger is not configured", http.StatusServiceUnavailable)
		return
	}
	if r.Header.Get("X-Publish-Secret") != h.triggerSecret {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	stats, err := h.loop.RunOnce(r.Context())
	if errors.Is(err, autopub.ErrPassInProgress) {
		writeJSON(w, http.StatusAccepted, map[string]interface{}{"ran": false})
		return
	}
	if err != nil {
		log.Printf("Manual publish pass failed: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"ran": true, "stats": stats})
}
