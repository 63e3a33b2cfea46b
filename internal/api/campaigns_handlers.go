package api

import (
	"errors"
	"net/http"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/httputil"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
	"github.com/ignite/campaign-dispatch/internal/service/campaign"
	"github.com/ignite/campaign-dispatch/internal/service/dispatch"
)

type createCampaignRequest struct {
	Name    string `json:"name" validate:"required,max=255"`
	Subject string `json:"subject" validate:"required,max=998"`
	Body    string `json:"body" validate:"required"`
}

// CreateCampaign handles POST /campaigns
func (h *Handlers) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if !decodeValid(w, r, &req) {
		return
	}
	c, err := h.campaigns.Create(r.Context(), campaign.CreateInput{
		Name: req.Name, Subject: req.Subject, Body: req.Body,
	})
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.Created(w, map[string]any{"success": true, "campaign_id": c.ID, "campaign": c})
}

// ListCampaigns handles GET /campaigns
func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	list, err := h.campaigns.List(r.Context())
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	if list == nil {
		list = []domain.Campaign{}
	}
	httputil.OK(w, map[string]any{"campaigns": list})
}

// GetCampaign handles GET /campaigns/{id}
func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	c, err := h.campaigns.Get(r.Context(), id)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, c)
}

type sendCampaignRequest struct {
	ContactLimit int  `json:"contact_limit" validate:"gte=0"`
	TestMode     bool `json:"test_mode"`
	AsyncMode    bool `json:"async_mode"`
}

// SendCampaign handles POST /campaigns/{id}/send. Synchronous sends return
// the full DispatchResult; async_mode returns 202 with a task ack and the
// outcome only reaches the server log.
func (h *Handlers) SendCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	var req sendCampaignRequest
	if !decodeValid(w, r, &req) {
		return
	}
	sendReq := dispatch.SendRequest{CampaignID: id, ContactLimit: req.ContactLimit, TestMode: req.TestMode}

	if req.AsyncMode {
		h.sendAsync(w, r, sendReq)
		return
	}

	res, err := h.dispatcher.SendCampaign(r.Context(), sendReq)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, res)
}

func (h *Handlers) sendAsync(w http.ResponseWriter, r *http.Request, req dispatch.SendRequest) {
	if h.queue == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "async_disabled", "asynchronous sending is not enabled")
		return
	}
	// unknown campaigns fail here rather than only in the server log
	if _, err := h.campaigns.Get(r.Context(), req.CampaignID); err != nil {
		httputil.Fail(w, err)
		return
	}
	ack, err := h.queue.Submit(req)
	switch {
	case errors.Is(err, dispatch.ErrQueueFull), errors.Is(err, dispatch.ErrPoolClosed):
		httputil.Error(w, http.StatusServiceUnavailable, "queue_unavailable", err.Error())
		return
	case err != nil:
		httputil.Fail(w, err)
		return
	}
	logger.Info("[api] campaign send queued", "campaign_id", req.CampaignID, "task_id", ack.TaskID)
	httputil.Accepted(w, map[string]any{
		"success": true,
		"message": "campaign send scheduled",
		"task":    ack,
	})
}

type testSendRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name"`
}

// TestSend handles POST /campaigns/{id}/test
func (h *Handlers) TestSend(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	var req testSendRequest
	if !decodeValid(w, r, &req) {
		return
	}
	res, err := h.dispatcher.SendTest(r.Context(), id, req.Email, req.Name)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	if !res.Success {
		httputil.JSON(w, http.StatusBadGateway, res)
		return
	}
	httputil.OK(w, res)
}

// CampaignStats handles GET /campaigns/{id}/stats
func (h *Handlers) CampaignStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	stats, err := h.campaigns.Stats(r.Context(), id)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, stats)
}

// DailyStats handles GET /stats/daily
func (h *Handlers) DailyStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.campaigns.DailyStats(r.Context())
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, stats)
}
