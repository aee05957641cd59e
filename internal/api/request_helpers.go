package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/taskflow-api/internal/domain"
)

// getPathID extracts a positive integer ID from the URL path parameters.
func getPathID(r *http.Request, paramName string) (int64, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return 0, domain.NewValidationError(paramName, "is required", domain.ErrValidation)
	}

	id, err := strconv.ParseInt(pathParam, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError(paramName, "must be a positive integer", domain.ErrInvalidID)
	}

	return id, nil
}

// queryInt parses an optional integer query parameter, returning def when absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError(name, "must be an integer", domain.ErrValidation)
	}
	return v, nil
}

// parseListQuery reads and validates the GET /tasks query parameters.
func parseListQuery(r *http.Request) (domain.TaskFilter, error) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		return domain.TaskFilter{}, err
	}
	limit, err := queryInt(r, "limit", domain.DefaultListLimit)
	if err != nil {
		return domain.TaskFilter{}, err
	}

	if offset < 0 {
		return domain.TaskFilter{}, domain.NewValidationError("offset", "must be zero or greater", domain.ErrValidation)
	}

	filter := domain.TaskFilter{
		Title:  r.URL.Query().Get("title"),
		Offset: offset,
		Limit:  limit,
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := domain.ParseTaskStatus(raw)
		if err != nil {
			return domain.TaskFilter{}, err
		}
		filter.Status = &status
	}

	return filter.Normalize(), nil
}
