package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/lifelog-core/internal/infrastructure/database"
)

// Default and maximum page sizes for list queries.
const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Store persists domain records in the relational store.
type Store struct {
	db      *sql.DB
	dialect database.Dialect
	now     func() time.Time
}

// NewStore creates a Store. Queries are rebound for dialect.
func NewStore(db *sql.DB, dialect database.Dialect) *Store {
	return &Store{db: db, dialect: dialect, now: time.Now}
}

// CreateJournalEntry inserts a journal entry, assigning ID and CreatedAt when unset.
func (s *Store) CreateJournalEntry(ctx context.Context, e *JournalEntry) error {
	if e.UserID == "" {
		return ErrMissingUser
	}
	s.stamp(&e.ID, &e.CreatedAt)
	if e.Tags == nil {
		e.Tags = []string{}
	}

	tagsJSON, err := json.Marshal(e.Tags)
	if err != nil {
		return fmt.Errorf("marshalling tags: %w", err)
	}

	return s.insert(ctx, "journal entry", `
		INSERT INTO journal_entries (id, user_id, title, content, tags, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Title, e.Content, string(tagsJSON), database.FormatTime(e.CreatedAt),
	)
}

// CreateTransaction inserts a transaction. OccurredAt defaults to CreatedAt.
func (s *Store) CreateTransaction(ctx context.Context, tx *Transaction) error {
	if tx.UserID == "" {
		return ErrMissingUser
	}
	s.stamp(&tx.ID, &tx.CreatedAt)
	if tx.OccurredAt.IsZero() {
		tx.OccurredAt = tx.CreatedAt
	}

	return s.insert(ctx, "transaction", `
		INSERT INTO transactions (id, user_id, amount, description, category, type, occurred_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, tx.Amount, tx.Description, tx.Category, tx.Type,
		database.FormatTime(tx.OccurredAt), database.FormatTime(tx.CreatedAt),
	)
}

// CreateGoal inserts a goal.
func (s *Store) CreateGoal(ctx context.Context, g *Goal) error {
	if g.UserID == "" {
		return ErrMissingUser
	}
	s.stamp(&g.ID, &g.CreatedAt)

	var target sql.NullString
	if g.TargetDate != nil {
		target = sql.NullString{String: database.FormatTime(*g.TargetDate), Valid: true}
	}

	return s.insert(ctx, "goal", `
		INSERT INTO goals (id, user_id, title, description, category, status, target_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.UserID, g.Title, nullableString(g.Description), g.Category, g.Status,
		target, database.FormatTime(g.CreatedAt),
	)
}

// CreateNotification inserts an unread notification.
func (s *Store) CreateNotification(ctx context.Context, n *Notification) error {
	if n.UserID == "" {
		return ErrMissingUser
	}
	s.stamp(&n.ID, &n.CreatedAt)

	return s.insert(ctx, "notification", `
		INSERT INTO notifications (id, user_id, kind, title, message, priority, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Kind, n.Title, n.Message, n.Priority, boolToInt(n.Read),
		database.FormatTime(n.CreatedAt),
	)
}

// CreateInsight inserts an insight.
func (s *Store) CreateInsight(ctx context.Context, in *Insight) error {
	if in.UserID == "" {
		return ErrMissingUser
	}
	s.stamp(&in.ID, &in.CreatedAt)

	return s.insert(ctx, "insight", `
		INSERT INTO insights (id, user_id, kind, title, content, priority, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.UserID, in.Kind, in.Title, in.Content, in.Priority,
		database.FormatTime(in.CreatedAt),
	)
}

// ListExpenses returns the user's expense transactions that occurred at or
// after since, oldest first.
func (s *Store) ListExpenses(ctx context.Context, userID string, since time.Time) ([]Transaction, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(`
		SELECT id, user_id, amount, description, category, type, occurred_at, created_at
		FROM transactions
		WHERE user_id = ? AND type = ? AND occurred_at >= ?
		ORDER BY occurred_at, created_at, id`),
		userID, TypeExpense, database.FormatTime(since),
	)
	if err != nil {
		return nil, fmt.Errorf("querying expenses: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var tx Transaction
		var occurredAt, createdAt string
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Amount, &tx.Description, &tx.Category,
			&tx.Type, &occurredAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		tx.OccurredAt = parseTime(occurredAt)
		tx.CreatedAt = parseTime(createdAt)
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transactions: %w", err)
	}
	return out, nil
}

// ListNotifications returns the user's most recent notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, userID string, limit int) ([]Notification, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(`
		SELECT id, user_id, kind, title, message, priority, is_read, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`),
		userID, clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	out := []Notification{}
	for rows.Next() {
		var n Notification
		var read int
		var createdAt string
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Message, &n.Priority,
			&read, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		n.Read = read != 0
		n.CreatedAt = parseTime(createdAt)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notifications: %w", err)
	}
	return out, nil
}

// ListInsights returns the user's most recent insights, newest first.
func (s *Store) ListInsights(ctx context.Context, userID string, limit int) ([]Insight, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(`
		SELECT id, user_id, kind, title, content, priority, created_at
		FROM insights
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`),
		userID, clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying insights: %w", err)
	}
	defer rows.Close()

	out := []Insight{}
	for rows.Next() {
		var in Insight
		var createdAt string
		if err := rows.Scan(&in.ID, &in.UserID, &in.Kind, &in.Title, &in.Content, &in.Priority,
			&createdAt); err != nil {
			return nil, fmt.Errorf("scanning insight: %w", err)
		}
		in.CreatedAt = parseTime(createdAt)
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating insights: %w", err)
	}
	return out, nil
}

// ─── SQL Helpers ────────────────────────────────────────────────────────────

func (s *Store) insert(ctx context.Context, what, query string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.Rebind(query), args...); err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrExists, what)
		}
		return fmt.Errorf("inserting %s: %w", what, err)
	}
	return nil
}

// stamp fills an empty ID and zero creation time.
func (s *Store) stamp(id *string, createdAt *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if createdAt.IsZero() {
		*createdAt = s.now().UTC()
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
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
