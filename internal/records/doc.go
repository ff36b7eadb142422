// Package records persists the domain records automation actions create:
// journal entries, transactions, goals, notifications and insights.
//
// Store works against SQLite or Postgres through database.Dialect. It is the
// production implementation of automation.RecordStore.
package records
