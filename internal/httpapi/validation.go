package httpapi

import (
	"net/http"
	"strconv"

	"accountd/internal/domain"
	"accountd/internal/service"
)

// pathID parses the {id} path segment. Non-numeric or non-positive ids are
// reported as not found.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrNotFound
	}
	return id, nil
}

// pageParams reads ?page= and ?limit=, defaulting to the first page of
// DefaultPageLimit. Out-of-range numbers are clamped by the service;
// non-numeric ones are a validation error.
func pageParams(r *http.Request) (page, limit int, err error) {
	q := r.URL.Query()
	page, limit = 1, service.DefaultPageLimit
	fields := map[string]string{}
	if v := q.Get("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil {
			fields["page"] = "must be an integer"
		}
	}
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			fields["limit"] = "must be an integer"
		}
	}
	if len(fields) > 0 {
		return 0, 0, domain.NewValidationError(fields)
	}
	return page, limit, nil
}
