package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/nerrad567/lifelog-core/internal/audit"
)

// auditChanSize is the buffer size for the async audit channel.
// Entries beyond this are dropped so requests never wait on the audit write.
const auditChanSize = 256

// auditLog enqueues an entry for asynchronous write. If the channel is full
// the entry is dropped and a warning is logged.
func (s *Server) auditLog(action, entityID, userID string, details map[string]any) {
	if s.auditRepo == nil || s.auditCh == nil {
		return
	}

	entry := &audit.Entry{
		UserID:     userID,
		Action:     action,
		EntityType: audit.EntityRoutine,
		EntityID:   entityID,
		Source:     "api",
		Details:    details,
	}

	select {
	case s.auditCh <- entry:
	default:
		s.logger.Warn("audit channel full, dropping entry",
			"action", action,
			"entity_id", entityID,
		)
	}
}

// drainAuditLog writes queued entries serially until ctx is cancelled, then
// flushes whatever is still buffered.
func (s *Server) drainAuditLog(ctx context.Context) {
	for {
		select {
		case entry := <-s.auditCh:
			s.writeAuditEntry(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-s.auditCh:
					s.writeAuditEntry(entry)
				default:
					return
				}
			}
		}
	}
}

func (s *Server) writeAuditEntry(entry *audit.Entry) {
	if err := s.auditRepo.Create(context.Background(), entry); err != nil {
		s.logger.Error("audit write failed",
			"action", entry.Action,
			"entity_id", entry.EntityID,
			"error", err,
		)
	}
}

// handleListAudit returns the caller's routine change history.
//
// Query parameters:
//   - action: create, update or delete
//   - entity_id: a routine ID
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "audit trail not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		UserID:     userIDFromContext(r.Context()),
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
	}
	if len(filter.Action) > maxQueryParamLen || len(filter.EntityType) > maxQueryParamLen || len(filter.EntityID) > maxQueryParamLen {
		writeBadRequest(w, "query parameter too long")
		return
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing audit entries failed", "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
