// Package scheduler drives time-based routines.
//
// Once a minute it asks the automation engine to run every routine whose
// SCHEDULED_TIME trigger matches the current minute in the configured zone.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nerrad567/lifelog-core/internal/automation"
)

// everyMinute is the tick spec. Routine cron expressions are matched by the
// engine, not registered here.
const everyMinute = "* * * * *"

// Ticker is the engine entry point the scheduler drives.
type Ticker interface {
	ProcessScheduledRoutines(ctx context.Context, now time.Time) automation.Result
}

// Logger is the logging interface used by the scheduler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Scheduler runs the engine's scheduled pass on every wall-clock minute.
type Scheduler struct {
	ticker Ticker
	loc    *time.Location
	logger Logger
	cron   *cron.Cron
}

// New creates a scheduler. A nil loc means UTC.
func New(ticker Ticker, loc *time.Location, logger Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = noopLogger{}
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})),
	)
	return &Scheduler{ticker: ticker, loc: loc, logger: logger, cron: c}
}

// Run ticks until ctx is cancelled, then waits for a running tick to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.cron.AddFunc(everyMinute, func() { s.Tick(ctx, time.Now()) }); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("scheduler started", "timezone", s.loc.String())

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// Tick runs one scheduled pass for the minute containing now, evaluated in
// the scheduler's zone.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) automation.Result {
	minute := now.In(s.loc).Truncate(time.Minute)
	res := s.ticker.ProcessScheduledRoutines(ctx, minute)
	if res.RoutinesMatched > 0 {
		s.logger.Info("scheduled routines ran",
			"minute", minute.Format(time.RFC3339),
			"routines", res.RoutinesMatched,
			"succeeded", res.ActionsSucceeded,
			"failed", res.ActionsFailed,
		)
	} else {
		s.logger.Debug("scheduler tick", "minute", minute.Format(time.RFC3339))
	}
	return res
}

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct {
	logger Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
