package api

import (
	"net/http"

	"github.com/phrazzld/taskflow-api/internal/api/shared"
	"github.com/phrazzld/taskflow-api/internal/notify"
)

// StatsProvider reports notification dispatcher counters.
type StatsProvider interface {
	Stats() notify.Stats
}

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	stats StatsProvider
}

// NewHealthHandler creates a HealthHandler. stats may be nil.
func NewHealthHandler(stats StatsProvider) *HealthHandler {
	return &HealthHandler{stats: stats}
}

// Health handles GET /health requests
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if h.stats != nil {
		resp.Notifications = h.stats.Stats()
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}
