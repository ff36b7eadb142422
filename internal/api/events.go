package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/nerrad567/lifelog-core/internal/automation"
	"github.com/nerrad567/lifelog-core/internal/events"
)

// eventRequest is the body of POST /events. The user comes from the token.
type eventRequest struct {
	Kind      events.Kind    `json:"kind"`
	Data      map[string]any `json:"data"`
	Timestamp *time.Time     `json:"timestamp"`
}

// tickRequest is the optional body of POST /scheduler/tick.
type tickRequest struct {
	Now *time.Time `json:"now"`
}

// handlePublishEvent publishes one event of the caller on the bus and
// answers 202 with the engine's pass summary. Delivery is synchronous, so
// every matched routine has finished when the response is written.
func (s *Server) handlePublishEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if !req.Kind.Valid() {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "unknown event kind: "+string(req.Kind))
		return
	}
	if !req.Kind.Inbound() {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "event kind is reserved: "+string(req.Kind))
		return
	}

	ev := events.Event{
		Kind:   req.Kind,
		UserID: userIDFromContext(r.Context()),
		Data:   req.Data,
	}
	if ev.Data == nil {
		ev.Data = map[string]any{}
	}
	if req.Timestamp != nil {
		ev.Timestamp = req.Timestamp.UTC()
	} else {
		ev.Timestamp = time.Now().UTC()
	}

	ctx, total := automation.CollectResults(r.Context())
	s.bus.Publish(ctx, ev)
	result := total()

	s.logger.Debug("event processed",
		"kind", string(ev.Kind),
		"user_id", ev.UserID,
		"routines_matched", result.RoutinesMatched,
	)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "accepted",
		"result": result,
	})
}

// handleSchedulerTick runs one scheduler pass for every user. It lets a
// host-level cron drive scheduled routines when the in-process scheduler is
// disabled. The instant is read in the scheduler's zone and truncated to the
// minute, as the in-process scheduler does. Calling it twice in one matching
// minute executes twice.
func (s *Server) handleSchedulerTick(w http.ResponseWriter, r *http.Request) {
	var req tickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	now := time.Now()
	if req.Now != nil {
		now = *req.Now
	}
	now = now.In(s.loc).Truncate(time.Minute)

	result := s.pipeline.ProcessScheduledRoutines(r.Context(), now)
	s.logger.Info("scheduler tick via API",
		"now", now.Format(time.RFC3339),
		"routines_matched", result.RoutinesMatched,
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"now":    now.UTC().Format(time.RFC3339),
		"result": result,
	})
}
