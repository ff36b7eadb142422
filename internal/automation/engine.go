package automation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/lifelog-core/internal/events"
)

// Logger is the logging interface used by the engine.
// *logging.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// RoutineStore is the read side of routine persistence the engine needs.
type RoutineStore interface {
	// ListEnabledByUser returns the enabled routines owned by userID.
	ListEnabledByUser(ctx context.Context, userID string) ([]Routine, error)
	// ListEnabled returns every enabled routine of every user.
	ListEnabled(ctx context.Context) ([]Routine, error)
}

// LogStore appends automation log entries.
type LogStore interface {
	AppendLog(ctx context.Context, entry *LogEntry) error
}

// ActionRunner executes a single action. *Executor implements it.
type ActionRunner interface {
	Execute(ctx context.Context, action Action, ev events.Event) (string, error)
}

// Broadcaster is told about every log entry the engine produces.
type Broadcaster interface {
	ActionLogged(ctx context.Context, entry LogEntry)
}

// Metrics records per-action and per-pass counters.
// *influxdb.Client implements it.
type Metrics interface {
	RecordActionOutcome(actionKind, status, routineID string, elapsed time.Duration)
	RecordPass(eventKind string, matched, succeeded, failed int)
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithBroadcaster adds a receiver for log entries. May be given more than once.
func WithBroadcaster(b Broadcaster) EngineOption {
	return func(e *Engine) {
		if b != nil {
			e.broadcasters = append(e.broadcasters, b)
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the time source for log timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// Engine evaluates routines against events and runs the actions of every
// routine that matches.
//
// Processing is synchronous in the caller's goroutine. The engine holds no
// mutable state and does not serialise or deduplicate passes: the same event
// handled twice runs matching routines twice.
type Engine struct {
	routines     RoutineStore
	runner       ActionRunner
	logs         LogStore
	logger       Logger
	broadcasters []Broadcaster
	metrics      Metrics
	now          func() time.Time
}

// NewEngine creates an engine.
//
// Parameters:
//   - store: source of enabled routines
//   - runner: action executor, normally *Executor
//   - logs: destination for one LogEntry per executed action
//   - logger: may be nil
func NewEngine(store RoutineStore, runner ActionRunner, logs LogStore, logger Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = noopLogger{}
	}
	e := &Engine{
		routines: store,
		runner:   runner,
		logs:     logs,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Attach subscribes the engine to the bus's generic channel. Pass results
// are added to the collector carried by the publish context, if any.
func (e *Engine) Attach(bus *events.Bus) {
	bus.Subscribe(events.AnyKind, func(ctx context.Context, ev events.Event) {
		res := e.HandleEvent(ctx, ev)
		if c, ok := ctx.Value(collectorKey{}).(*collector); ok {
			c.add(res)
		}
	})
}

type collectorKey struct{}

type collector struct {
	mu  sync.Mutex
	res Result
}

func (c *collector) add(r Result) {
	c.mu.Lock()
	c.res.Add(r)
	c.mu.Unlock()
}

func (c *collector) total() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.res
}

// CollectResults derives a context under which attached engines report their
// passes. The returned func reads the running total; Bus.Publish is
// synchronous, so it is complete once Publish returns.
func CollectResults(ctx context.Context) (context.Context, func() Result) {
	c := &collector{}
	return context.WithValue(ctx, collectorKey{}, c), c.total
}

// HandleEvent runs every matching routine of the event's user.
//
// A routine-store failure is logged and ends processing of this event.
// Action failures are recorded as FAILED log entries and never stop later
// actions or routines.
func (e *Engine) HandleEvent(ctx context.Context, ev events.Event) Result {
	var res Result
	e.logger.Debug("automation event received", "kind", ev.Kind, "user_id", ev.UserID)

	matched, err := e.MatchRoutines(ctx, ev)
	if err != nil {
		e.logger.Error("loading routines failed", "kind", ev.Kind, "user_id", ev.UserID, "error", err)
		return res
	}
	e.logger.Debug("routines matched", "kind", ev.Kind, "user_id", ev.UserID, "count", len(matched))

	for i := range matched {
		res.Add(e.runRoutine(ctx, &matched[i], ev))
	}

	e.recordPass(string(ev.Kind), res)
	return res
}

// MatchRoutines returns the user's enabled routines whose triggers all match ev.
func (e *Engine) MatchRoutines(ctx context.Context, ev events.Event) ([]Routine, error) {
	if ev.UserID == "" {
		e.logger.Warn("event has no user, skipping", "kind", ev.Kind)
		return nil, nil
	}

	routines, err := e.routines.ListEnabledByUser(ctx, ev.UserID)
	if err != nil {
		return nil, fmt.Errorf("listing routines for %q: %w", ev.UserID, err)
	}

	var matched []Routine
	for i := range routines {
		r := &routines[i]
		if !r.Enabled || r.UserID != ev.UserID {
			continue
		}
		e.warnRejected(r)
		if r.ShouldExecute(ev) {
			matched = append(matched, *r)
		}
	}
	return matched, nil
}

// ProcessScheduledRoutines runs every enabled routine with a SCHEDULED_TIME
// trigger whose cron expression matches now. Each routine runs at most once
// per call, for the first matching trigger. Calling twice for the same minute
// runs the routines twice.
//
// Only SCHEDULED_TIME triggers are consulted: a routine that also carries a
// MOOD_BELOW_THRESHOLD or SPENDING_EXCEEDS trigger still fires on a due tick,
// since a tick has no mood or amount to test those against.
func (e *Engine) ProcessScheduledRoutines(ctx context.Context, now time.Time) Result {
	var res Result

	routines, err := e.routines.ListEnabled(ctx)
	if err != nil {
		e.logger.Error("loading scheduled routines failed", "error", err)
		return res
	}

	for i := range routines {
		r := &routines[i]
		if !r.Enabled {
			continue
		}
		expr, ok := e.firstDueSchedule(r, now)
		if !ok {
			continue
		}

		ev := events.Event{
			Kind:   events.KindScheduledTime,
			UserID: r.UserID,
			Data: map[string]any{
				"routineId": r.ID,
				"cron":      expr,
			},
			Timestamp: now,
		}
		e.logger.Debug("scheduled routine due", "routine_id", r.ID, "cron", expr)
		res.Add(e.runRoutine(ctx, r, ev))
	}

	e.recordPass(string(events.KindScheduledTime), res)
	return res
}

// firstDueSchedule returns the first SCHEDULED_TIME cron expression of r that
// matches now. Malformed expressions are logged and skipped.
func (e *Engine) firstDueSchedule(r *Routine, now time.Time) (string, bool) {
	for _, t := range r.Triggers {
		st, ok := t.(ScheduledTime)
		if !ok {
			continue
		}
		sched, err := ParseCron(st.Cron)
		if err != nil {
			e.logger.Warn("routine has malformed cron expression",
				"routine_id", r.ID, "cron", st.Cron, "error", err)
			continue
		}
		if sched.Matches(now) {
			return st.Cron, true
		}
	}
	return "", false
}

// runRoutine executes every action of r in order, logging each outcome.
func (e *Engine) runRoutine(ctx context.Context, r *Routine, ev events.Event) Result {
	res := Result{RoutinesMatched: 1}
	e.logger.Debug("executing routine", "routine_id", r.ID, "name", r.Name, "actions", len(r.Actions))

	for _, action := range r.Actions {
		started := e.now()
		message, err := e.execute(ctx, action, ev)
		elapsed := e.now().Sub(started)

		entry := LogEntry{
			ID:         GenerateID(),
			RoutineID:  r.ID,
			UserID:     r.UserID,
			ActionKind: actionKindOf(action),
			Status:     StatusSuccess,
			Message:    message,
			CreatedAt:  e.now().UTC(),
		}
		if err != nil {
			entry.Status = StatusFailed
			entry.Message = err.Error()
			res.ActionsFailed++
			e.logger.Warn("routine action failed",
				"routine_id", r.ID, "action", entry.ActionKind, "error", err)
		} else {
			res.ActionsSucceeded++
		}

		if appendErr := e.logs.AppendLog(ctx, &entry); appendErr != nil {
			e.logger.Error("appending automation log failed",
				"routine_id", r.ID, "action", entry.ActionKind, "error", appendErr)
		}
		e.logger.Debug("action logged", "routine_id", r.ID, "action", entry.ActionKind, "status", entry.Status)

		for _, b := range e.broadcasters {
			b.ActionLogged(ctx, entry)
		}
		if e.metrics != nil {
			e.metrics.RecordActionOutcome(string(entry.ActionKind), string(entry.Status), r.ID, elapsed)
		}
	}
	return res
}

// execute runs one action, converting a panic into an error.
func (e *Engine) execute(ctx context.Context, action Action, ev events.Event) (message string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("action panicked: %v", p)
		}
	}()
	return e.runner.Execute(ctx, action, ev)
}

func (e *Engine) warnRejected(r *Routine) {
	for _, err := range r.RejectedTriggers() {
		e.logger.Warn("routine has an unusable trigger; it will never match",
			"routine_id", r.ID, "error", err)
	}
}

func (e *Engine) recordPass(kind string, res Result) {
	if e.metrics != nil {
		e.metrics.RecordPass(kind, res.RoutinesMatched, res.ActionsSucceeded, res.ActionsFailed)
	}
}

func actionKindOf(a Action) ActionKind {
	if a == nil {
		return ""
	}
	return a.Kind()
}
