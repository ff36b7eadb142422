package audit

import (
	"context"
	"database/sql"
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

func setupRepo(t *testing.T) *SQLRepository {
	t.Helper()

	db, err := database.Open(database.Config{
		Driver:      "sqlite3",
		Path:        filepath.Join(t.TempDir(), "audit.db"),
		BusyTimeout: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	require.NoError(t, db.Migrate(context.Background()))

	return NewSQLRepository(db.DB, database.DialectSQLite)
}

// fixedClock returns successive minutes starting at base.
func fixedClock(base time.Time) func() time.Time {
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Minute)
	}
}

func TestCreate_AssignsIDAndTimestamp(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	e := &Entry{UserID: "u1", Action: ActionCreate, EntityType: EntityRoutine, EntityID: "r1", Source: "api"}
	require.NoError(t, repo.Create(ctx, e))

	assert.Regexp(t, `^aud-`, e.ID)
	assert.False(t, e.CreatedAt.IsZero())
}

func TestCreate_RequiresUser(t *testing.T) {
	repo := setupRepo(t)
	err := repo.Create(context.Background(), &Entry{Action: ActionCreate, EntityType: EntityRoutine})
	assert.ErrorIs(t, err, ErrMissingUser)
}

func TestList_ScopedToUserNewestFirst(t *testing.T) {
	repo := setupRepo(t)
	repo.now = fixedClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for _, e := range []*Entry{
		{UserID: "u1", Action: ActionCreate, EntityType: EntityRoutine, EntityID: "r1", Source: "api",
			Details: map[string]any{"name": "Morning"}},
		{UserID: "u2", Action: ActionCreate, EntityType: EntityRoutine, EntityID: "r2", Source: "api"},
		{UserID: "u1", Action: ActionDelete, EntityType: EntityRoutine, EntityID: "r1", Source: "api"},
	} {
		require.NoError(t, repo.Create(ctx, e))
	}

	res, err := repo.List(ctx, Filter{UserID: "u1"})
	require.NoError(t, err)

	require.Len(t, res.Entries, 2)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, defaultLimit, res.Limit)
	assert.Equal(t, ActionDelete, res.Entries[0].Action)
	assert.Equal(t, ActionCreate, res.Entries[1].Action)
	assert.Equal(t, "Morning", res.Entries[1].Details["name"])
	assert.Nil(t, res.Entries[0].Details)
}

func TestList_Filters(t *testing.T) {
	repo := setupRepo(t)
	repo.now = fixedClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for _, e := range []*Entry{
		{UserID: "u1", Action: ActionCreate, EntityType: EntityRoutine, EntityID: "r1", Source: "api"},
		{UserID: "u1", Action: ActionUpdate, EntityType: EntityRoutine, EntityID: "r1", Source: "api"},
		{UserID: "u1", Action: ActionCreate, EntityType: EntityRoutine, EntityID: "r2", Source: "api"},
	} {
		require.NoError(t, repo.Create(ctx, e))
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"by action", Filter{UserID: "u1", Action: ActionCreate}, 2},
		{"by entity", Filter{UserID: "u1", EntityID: "r1"}, 2},
		{"by action and entity", Filter{UserID: "u1", Action: ActionUpdate, EntityID: "r1"}, 1},
		{"by entity type", Filter{UserID: "u1", EntityType: "journal"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := repo.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, res.Entries, tt.want)
			assert.Equal(t, tt.want, res.Total)
		})
	}
}

func TestList_Pagination(t *testing.T) {
	repo := setupRepo(t)
	repo.now = fixedClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, &Entry{UserID: "u1", Action: ActionUpdate, EntityType: EntityRoutine, Source: "api"}))
	}

	res, err := repo.List(ctx, Filter{UserID: "u1", Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Len(t, res.Entries, 1)
	assert.Equal(t, 5, res.Total)

	res, err = repo.List(ctx, Filter{UserID: "u1", Limit: 1000, Offset: -3})
	require.NoError(t, err)
	assert.Equal(t, maxLimit, res.Limit)
	assert.Equal(t, 0, res.Offset)
	assert.Len(t, res.Entries, 5)
}

func TestList_RequiresUser(t *testing.T) {
	repo := setupRepo(t)
	_, err := repo.List(context.Background(), Filter{})
	assert.ErrorIs(t, err, ErrMissingUser)
}

// ─── Postgres dialect ───────────────────────────────────────────────

func TestCreate_PostgresPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck // Test cleanup

	mock.ExpectExec(regexp.QuoteMeta("VALUES ($1, $2, $3, $4, $5, $6, $7, $8)")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewSQLRepository(db, database.DialectPostgres)
	require.NoError(t, repo.Create(context.Background(), &Entry{
		UserID: "u1", Action: ActionCreate, EntityType: EntityRoutine, Source: "api",
	}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_PostgresQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck // Test cleanup

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM audit_logs WHERE user_id = $1")).
		WithArgs("u1").
		WillReturnError(sql.ErrConnDone)

	repo := NewSQLRepository(db, database.DialectPostgres)
	_, err = repo.List(context.Background(), Filter{UserID: "u1"})
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}
