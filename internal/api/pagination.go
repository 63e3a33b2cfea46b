package api

import (
	"net/http"
	"strconv"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// PaginationParams holds parsed limit/offset query values.
type PaginationParams struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ParsePagination reads limit and offset. A missing limit becomes
// defaultLimit; larger limits are capped at maxLimit.
func ParsePagination(r *http.Request, defaultLimit, maxLimit int) (PaginationParams, error) {
	p := PaginationParams{Limit: defaultLimit}
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return p, domain.InvalidInputf("limit must be a non-negative integer")
		}
		p.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return p, domain.InvalidInputf("offset must be a non-negative integer")
		}
		p.Offset = n
	}
	if p.Limit == 0 || p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p, nil
}

// PaginatedResponse wraps a page of results.
type PaginatedResponse struct {
	Data   any `json:"data"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func NewPaginatedResponse(data any, p PaginationParams, total int) PaginatedResponse {
	return PaginatedResponse{Data: data, Total: total, Limit: p.Limit, Offset: p.Offset}
}
