package records

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/lifelog-core/internal/infrastructure/database"
	_ "github.com/nerrad567/lifelog-core/migrations"
)

// setupTestDB opens a migrated SQLite database in a temp dir.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Driver:      "sqlite3",
		Path:        filepath.Join(t.TempDir(), "records.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return db.DB
}

func setupStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(setupTestDB(t), database.DialectSQLite)
}

func TestStore_CreateJournalEntry(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	e := &JournalEntry{UserID: "u1", Title: "Evening", Content: "What went well?", Tags: []string{"automation"}}
	if err := s.CreateJournalEntry(ctx, e); err != nil {
		t.Fatalf("CreateJournalEntry: %v", err)
	}
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Errorf("ID/CreatedAt not assigned: %+v", e)
	}

	var tags string
	if err := s.db.QueryRowContext(ctx, "SELECT tags FROM journal_entries WHERE id = ?", e.ID).Scan(&tags); err != nil {
		t.Fatalf("reading back: %v", err)
	}
	if tags != `["automation"]` {
		t.Errorf("tags = %s", tags)
	}
}

func TestStore_MissingUser(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	checks := map[string]error{
		"journal":      s.CreateJournalEntry(ctx, &JournalEntry{}),
		"transaction":  s.CreateTransaction(ctx, &Transaction{}),
		"goal":         s.CreateGoal(ctx, &Goal{}),
		"notification": s.CreateNotification(ctx, &Notification{}),
		"insight":      s.CreateInsight(ctx, &Insight{}),
	}
	for name, err := range checks {
		if !errors.Is(err, ErrMissingUser) {
			t.Errorf("%s: error = %v, want ErrMissingUser", name, err)
		}
	}
}

func TestStore_DuplicateID(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	n := &Notification{ID: "n-1", UserID: "u1", Kind: "automation", Title: "t", Message: "m", Priority: PriorityMedium}
	require.NoError(t, s.CreateNotification(ctx, n))

	dup := *n
	err := s.CreateNotification(ctx, &dup)
	if !errors.Is(err, ErrExists) {
		t.Errorf("duplicate insert error = %v, want ErrExists", err)
	}
}

func TestStore_ListExpenses(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	seed := []Transaction{
		{UserID: "u1", Amount: -150, Description: "groceries", Category: "food", Type: TypeExpense, OccurredAt: now.Add(-48 * time.Hour)},
		{UserID: "u1", Amount: -50, Description: "lunch", Category: "food", Type: TypeExpense, OccurredAt: now.Add(-24 * time.Hour)},
		{UserID: "u1", Amount: -75, Description: "cinema", Category: "fun", Type: TypeExpense, OccurredAt: now.Add(-1 * time.Hour)},
		{UserID: "u1", Amount: 2000, Description: "salary", Category: "work", Type: TypeIncome, OccurredAt: now.Add(-2 * time.Hour)},
		{UserID: "u1", Amount: -10, Description: "old", Category: "food", Type: TypeExpense, OccurredAt: now.AddDate(0, 0, -45)},
		{UserID: "u2", Amount: -99, Description: "other user", Category: "food", Type: TypeExpense, OccurredAt: now.Add(-1 * time.Hour)},
	}
	for i := range seed {
		require.NoError(t, s.CreateTransaction(ctx, &seed[i]))
	}

	got, err := s.ListExpenses(ctx, "u1", now.AddDate(0, 0, -30))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "groceries", got[0].Description)
	assert.Equal(t, "lunch", got[1].Description)
	assert.Equal(t, "cinema", got[2].Description)
	assert.InDelta(t, -150.0, got[0].Amount, 1e-9)
	assert.True(t, got[0].OccurredAt.Equal(now.Add(-48*time.Hour)))
}

func TestStore_GoalTargetDate(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	target := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	g := &Goal{UserID: "u1", Title: "Run 5k", Category: "Health", Status: GoalActive, TargetDate: &target}
	require.NoError(t, s.CreateGoal(ctx, g))

	var stored sql.NullString
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT target_date FROM goals WHERE id = ?", g.ID).Scan(&stored))
	assert.True(t, stored.Valid)
	assert.Equal(t, "2026-04-01T00:00:00.000000Z", stored.String)

	open := &Goal{UserID: "u1", Title: "Read more", Category: "Personal", Status: GoalActive}
	require.NoError(t, s.CreateGoal(ctx, open))
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT target_date FROM goals WHERE id = ?", open.ID).Scan(&stored))
	assert.False(t, stored.Valid)
}

func TestStore_ListNotificationsAndInsights(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.CreateNotification(ctx, &Notification{
			UserID: "u1", Kind: "automation", Title: "n", Message: "m", Priority: PriorityLow,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
		require.NoError(t, s.CreateInsight(ctx, &Insight{
			UserID: "u1", Kind: "ai_insight", Title: "i", Content: "c", Priority: PriorityLow,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	notes, err := s.ListNotifications(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.True(t, notes[0].CreatedAt.After(notes[1].CreatedAt), "newest first")

	insights, err := s.ListInsights(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, insights, 3)

	none, err := s.ListInsights(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

// TestStore_PostgresPlaceholders checks the statements sent to a Postgres driver.
func TestStore_PostgresPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck // Test cleanup

	s := NewStore(db, database.DialectPostgres)
	fixed := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO insights (id, user_id, kind, title, content, priority, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)")).
		WithArgs("i-1", "u1", "spending_pattern", "Spending pattern", "body", PriorityMedium, "2026-03-02T09:00:00.000000Z").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = s.CreateInsight(context.Background(), &Insight{
		ID: "i-1", UserID: "u1", Kind: "spending_pattern", Title: "Spending pattern", Content: "body", Priority: PriorityMedium,
	})
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND type = $2 AND occurred_at >= $3")).
		WithArgs("u1", TypeExpense, "2026-02-01T00:00:00.000000Z").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "amount", "description", "category", "type", "occurred_at", "created_at",
		}).AddRow("t-1", "u1", -12.5, "coffee", "food", TypeExpense, "2026-02-03T08:00:00.000000Z", "2026-02-03T08:00:00.000000Z"))

	got, err := s.ListExpenses(context.Background(), "u1", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "coffee", got[0].Description)

	assert.NoError(t, mock.ExpectationsWereMet())
}
