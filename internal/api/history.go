package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/statehistory"
)

// handleGetDeviceHistory returns recorded property values for a device,
// most recent first.
//
// Query parameters:
//   - property: only this property
//   - since, until: RFC3339 bounds (since inclusive, until exclusive)
//   - limit: page size, default 50, max 200
//   - offset: pagination offset
func (s *Server) handleGetDeviceHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := identityParam(w, r)
	if !ok {
		return
	}
	if s.history == nil {
		writeUnavailable(w, "state history unavailable")
		return
	}

	q := r.URL.Query()
	filter := statehistory.Filter{Device: id, Property: q.Get("property")}
	if len(filter.Property) > maxQueryParamLen {
		writeBadRequest(w, "property parameter too long")
		return
	}

	var err error
	if filter.Limit, err = parseHistoryLimit(q.Get("limit")); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if filter.Offset, err = parseOffset(q.Get("offset")); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if filter.Since, err = parseTimeParam(q.Get("since")); err != nil {
		writeBadRequest(w, "invalid since timestamp")
		return
	}
	if filter.Until, err = parseTimeParam(q.Get("until")); err != nil {
		writeBadRequest(w, "invalid until timestamp")
		return
	}

	if _, ok := s.lookupDevice(w, id); !ok {
		return
	}

	page, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("loading device history", "identity", id.String(), "error", err)
		writeInternalError(w, "failed to load device history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device":  id,
		"history": page.Values,
		"count":   len(page.Values),
		"total":   page.Total,
		"limit":   page.Limit,
		"offset":  page.Offset,
	})
}

// parseHistoryLimit parses the limit query parameter with bounds enforcement.
func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return statehistory.DefaultLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if limit > statehistory.MaxLimit {
		return 0, fmt.Errorf("limit exceeds maximum")
	}

	return limit, nil
}

func parseOffset(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	offset, err := strconv.Atoi(raw)
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("invalid offset")
	}
	return offset, nil
}

// parseTimeParam parses an optional RFC3339/RFC3339Nano timestamp.
func parseTimeParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}
