package api

import (
	"net/http"
)

// handleListNotifications returns the caller's newest notifications,
// including those created by SEND_NOTIFICATION and habit reminder actions.
func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "records store not configured")
		return
	}
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}

	items, err := s.records.ListNotifications(r.Context(), userIDFromContext(r.Context()), limit)
	if err != nil {
		s.logger.Error("listing notifications failed", "error", err)
		writeInternalError(w, "failed to list notifications")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": items, "count": len(items)})
}

// handleListInsights returns the caller's newest insights.
func (s *Server) handleListInsights(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "records store not configured")
		return
	}
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}

	items, err := s.records.ListInsights(r.Context(), userIDFromContext(r.Context()), limit)
	if err != nil {
		s.logger.Error("listing insights failed", "error", err)
		writeInternalError(w, "failed to list insights")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"insights": items, "count": len(items)})
}
