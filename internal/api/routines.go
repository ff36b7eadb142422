package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/lifelog-core/internal/audit"
	"github.com/nerrad567/lifelog-core/internal/automation"
)

// maxQueryParamLen limits path and query parameter length to prevent DoS via oversized URL params.
const maxQueryParamLen = 100

// routineRequest is the body of POST /routines and PATCH /routines/{id}.
// Absent fields leave the routine unchanged on PATCH.
type routineRequest struct {
	Name        *string                  `json:"name"`
	Description *string                  `json:"description"`
	Enabled     *bool                    `json:"enabled"`
	Triggers    *[]automation.RawTrigger `json:"triggers"`
	Actions     *[]automation.RawAction  `json:"actions"`
}

// applyTo copies the present fields onto r, decoding triggers and actions strictly.
func (req *routineRequest) applyTo(r *automation.Routine) error {
	if req.Name != nil {
		r.Name = *req.Name
	}
	if req.Description != nil {
		r.Description = *req.Description
	}
	if req.Enabled != nil {
		r.Enabled = *req.Enabled
	}
	if req.Triggers != nil {
		triggers, err := automation.DecodeTriggers(*req.Triggers)
		if err != nil {
			return err
		}
		r.Triggers = triggers
	}
	if req.Actions != nil {
		actions, err := automation.DecodeActions(*req.Actions)
		if err != nil {
			return err
		}
		r.Actions = actions
	}
	return nil
}

// handleListRoutines returns the caller's routines.
func (s *Server) handleListRoutines(w http.ResponseWriter, r *http.Request) {
	routines, err := s.routines.ListByUser(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		s.logger.Error("listing routines failed", "error", err)
		writeInternalError(w, "failed to list routines")
		return
	}
	if routines == nil {
		routines = []automation.Routine{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"routines": routines, "count": len(routines)})
}

// handleGetRoutine returns a single routine by ID.
func (s *Server) handleGetRoutine(w http.ResponseWriter, r *http.Request) {
	id, ok := routineIDParam(w, r)
	if !ok {
		return
	}

	routine, err := s.routines.Get(r.Context(), userIDFromContext(r.Context()), id)
	if err != nil {
		s.writeRoutineError(w, err, "failed to get routine")
		return
	}
	writeJSON(w, http.StatusOK, routine)
}

// handleCreateRoutine creates a routine owned by the caller.
// Enabled defaults to true.
func (s *Server) handleCreateRoutine(w http.ResponseWriter, r *http.Request) {
	var req routineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	routine := &automation.Routine{
		UserID:  userIDFromContext(r.Context()),
		Enabled: true,
	}
	if err := req.applyTo(routine); err != nil {
		writeValidationError(w, err)
		return
	}
	if err := automation.ValidateRoutine(routine); err != nil {
		writeValidationError(w, err)
		return
	}

	if err := s.routines.Create(r.Context(), routine); err != nil {
		s.writeRoutineError(w, err, "failed to create routine")
		return
	}

	s.logger.Info("routine created", "routine_id", routine.ID, "user_id", routine.UserID)
	s.auditLog(audit.ActionCreate, routine.ID, routine.UserID, map[string]any{"name": routine.Name})
	writeJSON(w, http.StatusCreated, routine)
}

// handleUpdateRoutine partially updates a routine.
func (s *Server) handleUpdateRoutine(w http.ResponseWriter, r *http.Request) {
	id, ok := routineIDParam(w, r)
	if !ok {
		return
	}
	userID := userIDFromContext(r.Context())

	existing, err := s.routines.Get(r.Context(), userID, id)
	if err != nil {
		s.writeRoutineError(w, err, "failed to get routine")
		return
	}

	var req routineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := req.applyTo(existing); err != nil {
		writeValidationError(w, err)
		return
	}
	// ID and owner cannot be changed.
	existing.ID = id
	existing.UserID = userID

	if err := automation.ValidateRoutine(existing); err != nil {
		writeValidationError(w, err)
		return
	}

	if err := s.routines.Update(r.Context(), existing); err != nil {
		s.writeRoutineError(w, err, "failed to update routine")
		return
	}

	s.auditLog(audit.ActionUpdate, id, userID, map[string]any{
		"name":    existing.Name,
		"enabled": existing.Enabled,
	})
	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteRoutine removes a routine by ID. Its log entries are kept.
func (s *Server) handleDeleteRoutine(w http.ResponseWriter, r *http.Request) {
	id, ok := routineIDParam(w, r)
	if !ok {
		return
	}

	userID := userIDFromContext(r.Context())
	if err := s.routines.Delete(r.Context(), userID, id); err != nil {
		s.writeRoutineError(w, err, "failed to delete routine")
		return
	}
	s.auditLog(audit.ActionDelete, id, userID, nil)

	w.WriteHeader(http.StatusNoContent)
}

// handleListRoutineLogs returns the newest automation log entries of a routine.
//
// Query parameters:
//   - limit: 1-100, default 20
func (s *Server) handleListRoutineLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := routineIDParam(w, r)
	if !ok {
		return
	}
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}

	entries, err := s.routines.ListLogs(r.Context(), userIDFromContext(r.Context()), id, limit)
	if err != nil {
		s.logger.Error("listing automation logs failed", "routine_id", id, "error", err)
		writeInternalError(w, "failed to list logs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"logs": entries, "count": len(entries)})
}

// routineIDParam reads and bounds the {id} path parameter.
func routineIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid routine ID")
		return "", false
	}
	return id, true
}

// limitParam parses an optional positive ?limit= value. Zero means the
// store's default; the store clamps large values.
func limitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		writeBadRequest(w, "limit must be a positive integer")
		return 0, false
	}
	return limit, true
}

// writeRoutineError maps repository errors onto HTTP responses.
func (s *Server) writeRoutineError(w http.ResponseWriter, err error, internalMsg string) {
	switch {
	case errors.Is(err, automation.ErrRoutineNotFound):
		writeNotFound(w, "routine not found")
	case errors.Is(err, automation.ErrRoutineExists):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case isValidationError(err):
		writeValidationError(w, err)
	default:
		s.logger.Error(internalMsg, "error", err)
		writeInternalError(w, internalMsg)
	}
}

// isValidationError reports whether err describes a bad routine definition.
func isValidationError(err error) bool {
	for _, target := range []error{
		automation.ErrInvalidRoutine,
		automation.ErrInvalidTrigger,
		automation.ErrInvalidAction,
		automation.ErrUnknownTriggerKind,
		automation.ErrUnknownActionKind,
		automation.ErrMissingParameter,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
