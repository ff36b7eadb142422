package automation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/lifelog-core/internal/infrastructure/database"
)

// Repository defines routine and automation-log persistence.
// Every routine read and write is scoped to the owning user.
type Repository interface {
	RoutineStore
	LogStore

	Get(ctx context.Context, userID, id string) (*Routine, error)
	ListByUser(ctx context.Context, userID string) ([]Routine, error)
	Create(ctx context.Context, r *Routine) error
	Update(ctx context.Context, r *Routine) error
	Delete(ctx context.Context, userID, id string) error

	ListLogs(ctx context.Context, userID, routineID string, limit int) ([]LogEntry, error)
}

// Log page sizes.
const (
	defaultLogLimit = 20
	maxLogLimit     = 100
)

// routineColumns is the SELECT column list for routine queries.
const routineColumns = `id, user_id, name, description, enabled, triggers, actions, created_at, updated_at`

// SQLRepository implements Repository on SQLite or Postgres.
type SQLRepository struct {
	db      *sql.DB
	dialect database.Dialect
	now     func() time.Time
}

// NewSQLRepository creates a repository. Queries are rebound for dialect.
func NewSQLRepository(db *sql.DB, dialect database.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect, now: time.Now}
}

// Get retrieves one of the user's routines.
func (r *SQLRepository) Get(ctx context.Context, userID, id string) (*Routine, error) {
	query := `SELECT ` + routineColumns + ` FROM routines WHERE user_id = ? AND id = ?`

	row := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), userID, id)
	routine, err := scanRoutine(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoutineNotFound
		}
		return nil, fmt.Errorf("querying routine: %w", err)
	}
	return routine, nil
}

// ListByUser returns all of the user's routines, oldest first.
func (r *SQLRepository) ListByUser(ctx context.Context, userID string) ([]Routine, error) {
	query := `SELECT ` + routineColumns + ` FROM routines WHERE user_id = ? ORDER BY created_at, id`
	return r.queryRoutines(ctx, query, userID)
}

// ListEnabledByUser returns the user's enabled routines, oldest first.
func (r *SQLRepository) ListEnabledByUser(ctx context.Context, userID string) ([]Routine, error) {
	query := `SELECT ` + routineColumns + ` FROM routines WHERE user_id = ? AND enabled = 1 ORDER BY created_at, id`
	return r.queryRoutines(ctx, query, userID)
}

// ListEnabled returns every enabled routine.
func (r *SQLRepository) ListEnabled(ctx context.Context) ([]Routine, error) {
	query := `SELECT ` + routineColumns + ` FROM routines WHERE enabled = 1 ORDER BY user_id, created_at, id`
	return r.queryRoutines(ctx, query)
}

// Create inserts a routine. ID and timestamps are assigned when unset.
func (r *SQLRepository) Create(ctx context.Context, routine *Routine) error {
	triggersJSON, actionsJSON, err := marshalRoutineBody(routine)
	if err != nil {
		return err
	}

	if routine.ID == "" {
		routine.ID = GenerateID()
	}
	now := r.now().UTC()
	if routine.CreatedAt.IsZero() {
		routine.CreatedAt = now
	}
	routine.UpdatedAt = now

	query := `
		INSERT INTO routines (
			id, user_id, name, description, enabled, triggers, actions, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, r.dialect.Rebind(query),
		routine.ID,
		routine.UserID,
		routine.Name,
		nullableString(routine.Description),
		boolToInt(routine.Enabled),
		triggersJSON,
		actionsJSON,
		database.FormatTime(routine.CreatedAt),
		database.FormatTime(routine.UpdatedAt),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrRoutineExists
		}
		return fmt.Errorf("inserting routine: %w", err)
	}
	return nil
}

// Update replaces a routine's mutable fields. The owner cannot change.
func (r *SQLRepository) Update(ctx context.Context, routine *Routine) error {
	triggersJSON, actionsJSON, err := marshalRoutineBody(routine)
	if err != nil {
		return err
	}

	routine.UpdatedAt = r.now().UTC()

	query := `
		UPDATE routines SET
			name = ?, description = ?, enabled = ?, triggers = ?, actions = ?, updated_at = ?
		WHERE user_id = ? AND id = ?`

	result, err := r.db.ExecContext(ctx, r.dialect.Rebind(query),
		routine.Name,
		nullableString(routine.Description),
		boolToInt(routine.Enabled),
		triggersJSON,
		actionsJSON,
		database.FormatTime(routine.UpdatedAt),
		routine.UserID,
		routine.ID,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrRoutineExists
		}
		return fmt.Errorf("updating routine: %w", err)
	}
	return expectOneRow(result)
}

// Delete removes one of the user's routines. Its log entries are kept.
func (r *SQLRepository) Delete(ctx context.Context, userID, id string) error {
	result, err := r.db.ExecContext(ctx,
		r.dialect.Rebind("DELETE FROM routines WHERE user_id = ? AND id = ?"), userID, id)
	if err != nil {
		return fmt.Errorf("deleting routine: %w", err)
	}
	return expectOneRow(result)
}

// AppendLog inserts a log entry. ID and CreatedAt are assigned when unset.
func (r *SQLRepository) AppendLog(ctx context.Context, entry *LogEntry) error {
	if entry.ID == "" {
		entry.ID = GenerateID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now().UTC()
	}

	query := `
		INSERT INTO automation_logs (id, routine_id, user_id, action_kind, status, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(query),
		entry.ID,
		entry.RoutineID,
		entry.UserID,
		string(entry.ActionKind),
		string(entry.Status),
		entry.Message,
		database.FormatTime(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting automation log: %w", err)
	}
	return nil
}

// ListLogs returns the newest log entries of one of the user's routines.
// limit is clamped to 1-100; zero means 20.
func (r *SQLRepository) ListLogs(ctx context.Context, userID, routineID string, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}

	query := `
		SELECT id, routine_id, user_id, action_kind, status, message, created_at
		FROM automation_logs
		WHERE user_id = ? AND routine_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), userID, routineID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying automation logs: %w", err)
	}
	defer rows.Close()

	entries := []LogEntry{}
	for rows.Next() {
		var e LogEntry
		var kind, status, createdAt string
		if err := rows.Scan(&e.ID, &e.RoutineID, &e.UserID, &kind, &status, &e.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning automation log: %w", err)
		}
		e.ActionKind = ActionKind(kind)
		e.Status = Status(status)
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating automation logs: %w", err)
	}
	return entries, nil
}

// queryRoutines executes a query and returns a slice of routines.
func (r *SQLRepository) queryRoutines(ctx context.Context, query string, args ...any) ([]Routine, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying routines: %w", err)
	}
	defer rows.Close()

	routines := []Routine{}
	for rows.Next() {
		routine, scanErr := scanRoutine(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning routine: %w", scanErr)
		}
		routines = append(routines, *routine)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating routines: %w", err)
	}
	return routines, nil
}

// ─── Row Scanning Helpers ───────────────────────────────────────────────────

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRoutine decodes one row. Triggers and actions are decoded leniently so
// a single unknown kind does not hide the whole routine.
func scanRoutine(scanner rowScanner) (*Routine, error) {
	var rt Routine
	var description sql.NullString
	var enabled int
	var triggersJSON, actionsJSON, createdAt, updatedAt string

	err := scanner.Scan(
		&rt.ID,
		&rt.UserID,
		&rt.Name,
		&description,
		&enabled,
		&triggersJSON,
		&actionsJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	var rawTriggers []RawTrigger
	if err := json.Unmarshal([]byte(triggersJSON), &rawTriggers); err != nil {
		return nil, fmt.Errorf("decoding triggers of %s: %w", rt.ID, err)
	}
	var rawActions []RawAction
	if err := json.Unmarshal([]byte(actionsJSON), &rawActions); err != nil {
		return nil, fmt.Errorf("decoding actions of %s: %w", rt.ID, err)
	}

	rt.Description = description.String
	rt.Enabled = enabled != 0
	rt.Triggers = decodeTriggersLenient(rawTriggers)
	rt.Actions = decodeActionsLenient(rawActions)
	rt.CreatedAt = parseTime(createdAt)
	rt.UpdatedAt = parseTime(updatedAt)
	return &rt, nil
}

func marshalRoutineBody(r *Routine) (triggers, actions string, err error) {
	t, err := json.Marshal(EncodeTriggers(r.Triggers))
	if err != nil {
		return "", "", fmt.Errorf("marshalling triggers: %w", err)
	}
	a, err := json.Marshal(EncodeActions(r.Actions))
	if err != nil {
		return "", "", fmt.Errorf("marshalling actions: %w", err)
	}
	return string(t), string(a), nil
}

func expectOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrRoutineNotFound
	}
	return nil
}

func parseTime(s string) time.Time {
	t, err := database.ParseTime(s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
