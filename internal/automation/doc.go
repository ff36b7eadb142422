// Package automation provides the routine engine for Lifelog Core.
//
// A routine belongs to one user and pairs a list of triggers with an ordered
// list of actions. When an event arrives for the user, every enabled routine
// whose triggers all match runs its actions in order, and each action leaves
// exactly one LogEntry behind.
//
// Architecture:
//
//	┌───────────────────────────────────────────────────────┐
//	│                  Engine (engine.go)                    │
//	│  ┌──────────────┐    ┌──────────────┐                 │
//	│  │ RoutineStore │    │   Executor   │──▶ RecordStore  │
//	│  │(repository.go)│   │(executor.go) │──▶ Generator    │
//	│  └──────────────┘    └──────────────┘                 │
//	│        │                                              │
//	│        ▼                                              │
//	│  ┌──────────────────────────────────────────────┐     │
//	│  │  Pipeline (synchronous, caller's goroutine)   │    │
//	│  │  1. Load the user's enabled routines          │    │
//	│  │  2. AND every trigger against the event       │    │
//	│  │  3. Execute actions in declared order         │    │
//	│  │  4. Append one LogEntry per action            │    │
//	│  │  5. Notify broadcasters and metrics           │    │
//	│  └──────────────────────────────────────────────┘     │
//	└───────────────────────────────────────────────────────┘
//
// # Key Types
//
//   - Routine: triggers, actions and owner
//   - Trigger, Action: closed sets of variants, stored as {"kind", "params"}
//   - Executor: one handler per action kind
//   - Engine: event and scheduler entry points
//   - LogEntry: append-only outcome record
//
// # Failure containment
//
// A failing action becomes a FAILED log entry whose message is the error
// text. Later actions, routines and events are unaffected. Nothing retries.
//
// # Usage
//
//	repo := automation.NewSQLRepository(db.DB, db.Dialect())
//	executor := automation.NewExecutor(records.NewStore(db.DB, db.Dialect()), generator)
//	engine := automation.NewEngine(repo, executor, repo, log)
//	engine.Attach(bus)
//
//	bus.Publish(ctx, events.Event{Kind: events.KindMoodLogged, UserID: "u1",
//	    Data: map[string]any{"moodScore": 3}})
package automation
