package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/importer"
	"github.com/ignite/campaign-dispatch/internal/pkg/httputil"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
	"github.com/ignite/campaign-dispatch/internal/service/contact"
)

const (
	maxImportMemory = 32 << 20
	defaultPageSize = 100
	maxPageSize     = 1000
)

// ListContacts handles GET /contacts?status=&batch_id=&limit=&offset=
func (h *Handlers) ListContacts(w http.ResponseWriter, r *http.Request) {
	page, err := ParsePagination(r, defaultPageSize, maxPageSize)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	q := r.URL.Query()
	list, total, err := h.contacts.List(r.Context(), domain.ContactFilter{
		Status:  domain.ContactStatus(q.Get("status")),
		BatchID: q.Get("batch_id"),
		Limit:   page.Limit,
		Offset:  page.Offset,
	})
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	if list == nil {
		list = []domain.Contact{}
	}
	httputil.OK(w, NewPaginatedResponse(list, page, total))
}

// GetContact handles GET /contacts/{id}
func (h *Handlers) GetContact(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	c, err := h.contacts.Get(r.Context(), id)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, c)
}

// ImportContacts handles POST /contacts/import (multipart: file, source,
// activate).
func (h *Handlers) ImportContacts(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImportMemory); err != nil {
		httputil.BadRequest(w, "expected multipart form with a file field")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.BadRequest(w, "file is required")
		return
	}
	defer file.Close()

	format, err := importer.FormatFromName(header.Filename)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	opts := contact.ImportOptions{Source: r.FormValue("source"), Activate: true}
	if v := r.FormValue("activate"); v != "" {
		if opts.Activate, err = strconv.ParseBool(v); err != nil {
			httputil.BadRequest(w, "activate must be a boolean")
			return
		}
	}

	res, err := h.contacts.Import(r.Context(), file, format, opts)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	logger.Info("[api] contacts imported", "file", header.Filename, "batch_id", res.BatchID, "imported", res.Imported)
	httputil.OK(w, res)
}

// ListBatches handles GET /contacts/batches
func (h *Handlers) ListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := h.contacts.ListBatches(r.Context())
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	if batches == nil {
		batches = []domain.Batch{}
	}
	httputil.OK(w, map[string]any{"batches": batches})
}

// BatchContacts handles GET /contacts/batches/{batchID}
func (h *Handlers) BatchContacts(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")
	list, err := h.contacts.ContactsInBatch(r.Context(), batchID)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, map[string]any{"batch_id": batchID, "count": len(list), "contacts": list})
}

// ActivateBatch handles POST /contacts/batches/{batchID}/activate
func (h *Handlers) ActivateBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")
	n, err := h.contacts.ActivateBatch(r.Context(), batchID)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, map[string]any{"success": true, "batch_id": batchID, "activated": n})
}

// DeactivateBatch handles POST /contacts/batches/{batchID}/deactivate
func (h *Handlers) DeactivateBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")
	n, err := h.contacts.DeactivateBatch(r.Context(), batchID)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, map[string]any{"success": true, "batch_id": batchID, "deactivated": n})
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive bounced"`
}

// UpdateContactStatus handles PUT /contacts/{id}/status
func (h *Handlers) UpdateContactStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	var req updateStatusRequest
	if !decodeValid(w, r, &req) {
		return
	}
	if err := h.contacts.UpdateStatus(r.Context(), id, domain.ContactStatus(req.Status)); err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, map[string]any{"success": true, "id": id, "status": req.Status})
}

// DeleteContact handles DELETE /contacts/{id}
func (h *Handlers) DeleteContact(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	if err := h.contacts.Delete(r.Context(), id); err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, map[string]any{"success": true, "id": id})
}

// SyncBounces handles POST /contacts/bounces/sync
func (h *Handlers) SyncBounces(w http.ResponseWriter, r *http.Request) {
	if h.bounces == nil {
		httputil.Error(w, http.StatusNotImplemented, "not_supported", "the configured provider has no bounce list")
		return
	}
	res, err := h.bounces.Run(r.Context())
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, res)
}
