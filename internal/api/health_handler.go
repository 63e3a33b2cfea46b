package api

import (
	"net/http"

	"github.com/ignite/campaign-dispatch/internal/pkg/httputil"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status         string `json:"status"` // "healthy" or "degraded"
	CanSendEmails  bool   `json:"can_send_emails"`
	DailySentCount int    `json:"daily_sent_count"`
	DailyLimit     int    `json:"daily_limit"`
}

// Health reports quota state. It always answers 200; the status field
// carries the health.
//
//	GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{Status: "healthy", DailyLimit: h.quota.Limit()}

	sent, err := h.quota.SentToday(r.Context())
	if err == nil {
		status.DailySentCount = sent
		status.CanSendEmails, err = h.quota.CanSendMore(r.Context())
	}
	if err != nil {
		logger.Warn("[api] quota check failed", "error", err)
		status.Status = "degraded"
		status.CanSendEmails = false
	}
	httputil.OK(w, status)
}
