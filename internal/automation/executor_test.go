package automation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/lifelog-core/internal/events"
	"github.com/nerrad567/lifelog-core/internal/records"
)

// ─── Mock Dependencies ──────────────────────────────────────────────────────

// mockRecordStore captures every record written by the executor.
type mockRecordStore struct {
	mu            sync.Mutex
	journals      []records.JournalEntry
	transactions  []records.Transaction
	goals         []records.Goal
	notifications []records.Notification
	insights      []records.Insight
	expenses      []records.Transaction
	since         time.Time
	err           error
}

func newMockRecordStore() *mockRecordStore {
	return &mockRecordStore{}
}

func (m *mockRecordStore) CreateJournalEntry(_ context.Context, e *records.JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.journals = append(m.journals, *e)
	return nil
}

func (m *mockRecordStore) CreateTransaction(_ context.Context, tx *records.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.transactions = append(m.transactions, *tx)
	return nil
}

func (m *mockRecordStore) CreateGoal(_ context.Context, g *records.Goal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.goals = append(m.goals, *g)
	return nil
}

func (m *mockRecordStore) CreateNotification(_ context.Context, n *records.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.notifications = append(m.notifications, *n)
	return nil
}

func (m *mockRecordStore) CreateInsight(_ context.Context, in *records.Insight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.insights = append(m.insights, *in)
	return nil
}

func (m *mockRecordStore) ListExpenses(_ context.Context, _ string, since time.Time) ([]records.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.since = since
	if m.err != nil {
		return nil, m.err
	}
	return m.expenses, nil
}

func (m *mockRecordStore) writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.journals) + len(m.transactions) + len(m.goals) + len(m.notifications) + len(m.insights)
}

// mockGenerator returns a canned reply or error.
type mockGenerator struct {
	reply   string
	err     error
	prompt  string
	context string
}

func (m *mockGenerator) Generate(_ context.Context, prompt, ctxText string) (string, error) {
	m.prompt = prompt
	m.context = ctxText
	return m.reply, m.err
}

var fixedNow = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func newTestExecutor(store RecordStore, gen Generator) *Executor {
	return NewExecutor(store, gen, WithExecutorClock(func() time.Time { return fixedNow }))
}

func testEvent(kind events.Kind, data map[string]any) events.Event {
	return events.Event{Kind: kind, UserID: "user-1", Data: data, Timestamp: fixedNow}
}

func float(v float64) *float64 { return &v }

// ─── Handlers ───────────────────────────────────────────────────────────────

func TestExecutor_Descriptions(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		event  events.Event
		want   string
	}{
		{
			name:   "journal prompt default title",
			action: CreateJournalPrompt{Prompt: "What went well today?"},
			want:   `Created journal prompt "Automated Journal Prompt"`,
		},
		{
			name:   "journal prompt custom title",
			action: CreateJournalPrompt{Prompt: "Why?", Title: "Reflect"},
			want:   `Created journal prompt "Reflect"`,
		},
		{
			name:   "coping strategy",
			action: SuggestCopingStrategy{Strategy: "box breathing"},
			want:   "Suggested coping strategy: box breathing",
		},
		{
			name:   "transaction",
			action: CreateTransaction{Amount: float(-12.5), Description: "Lunch"},
			want:   `Created transaction "Lunch" for -12.50`,
		},
		{
			name:   "goal",
			action: CreateGoal{Title: "Run 5k", TargetDays: 30},
			want:   `Created goal "Run 5k"`,
		},
		{
			name:   "notification",
			action: SendNotification{Message: "Drink water"},
			want:   `Sent notification "Automation"`,
		},
		{
			name:   "habit reminder from params",
			action: CreateHabitReminder{HabitName: "Meditate"},
			want:   `Created habit reminder for "Meditate"`,
		},
		{
			name:   "habit reminder from event",
			action: CreateHabitReminder{},
			event:  testEvent(events.KindHabitMissed, map[string]any{"habitName": "Stretch"}),
			want:   `Created habit reminder for "Stretch"`,
		},
		{
			name:   "activity",
			action: SuggestActivity{Activity: "Walk outside", Reason: "sunlight helps"},
			want:   "Suggested activity: Walk outside",
		},
		{
			name:   "mood check-in",
			action: CreateMoodCheckIn{},
			want:   "Created mood check-in",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockRecordStore()
			x := newTestExecutor(store, nil)
			ev := tt.event
			if ev.Kind == "" {
				ev = testEvent(events.KindMoodLogged, nil)
			}

			got, err := x.Execute(context.Background(), tt.action, ev)
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Execute() = %q, want %q", got, tt.want)
			}
			if store.writes() != 1 {
				t.Errorf("writes = %d, want exactly 1", store.writes())
			}
		})
	}
}

func TestExecutor_MissingParameters(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		param  string
	}{
		{"journal prompt", CreateJournalPrompt{}, "prompt"},
		{"coping strategy", SuggestCopingStrategy{}, "strategy"},
		{"transaction amount", CreateTransaction{Description: "x"}, "amount"},
		{"transaction description", CreateTransaction{Amount: float(1)}, "description"},
		{"goal", CreateGoal{}, "title"},
		{"notification", SendNotification{}, "message"},
		{"ai insight", GenerateAIInsight{}, "prompt"},
		{"habit reminder", CreateHabitReminder{}, "habitName"},
		{"activity", SuggestActivity{}, "activity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockRecordStore()
			x := newTestExecutor(store, &mockGenerator{reply: "ok"})

			_, err := x.Execute(context.Background(), tt.action, testEvent(events.KindMoodLogged, nil))
			if !errors.Is(err, ErrMissingParameter) {
				t.Fatalf("Execute() error = %v, want ErrMissingParameter", err)
			}
			if !strings.Contains(err.Error(), tt.param) {
				t.Errorf("error %q does not name %q", err, tt.param)
			}
			if store.writes() != 0 {
				t.Errorf("writes = %d, want 0", store.writes())
			}
		})
	}
}

func TestExecutor_RecordShapes(t *testing.T) {
	store := newMockRecordStore()
	x := newTestExecutor(store, nil)
	ctx := context.Background()
	ev := testEvent(events.KindGoalCompleted, nil)

	mustExecute := func(a Action) {
		t.Helper()
		if _, err := x.Execute(ctx, a, ev); err != nil {
			t.Fatalf("Execute(%s) error = %v", a.Kind(), err)
		}
	}

	mustExecute(CreateJournalPrompt{Prompt: "p"})
	mustExecute(CreateTransaction{Amount: float(20), Description: "Refund", Type: records.TypeIncome})
	mustExecute(CreateGoal{Title: "Read", TargetDays: 10})
	mustExecute(SendNotification{Message: "m", Priority: records.PriorityHigh})
	mustExecute(CreateMoodCheckIn{})

	if j := store.journals[0]; j.UserID != "user-1" || len(j.Tags) != 1 || j.Tags[0] != "automation" {
		t.Errorf("journal = %+v, want user-1 tagged automation", j)
	}
	if tx := store.transactions[0]; tx.Category != DefaultCategory || tx.Type != records.TypeIncome {
		t.Errorf("transaction = %+v, want category Other type Income", tx)
	}
	g := store.goals[0]
	if g.Status != records.GoalActive || g.Category != DefaultGoalCategory {
		t.Errorf("goal = %+v, want active Personal goal", g)
	}
	if g.TargetDate == nil || !g.TargetDate.Equal(fixedNow.AddDate(0, 0, 10)) {
		t.Errorf("goal.TargetDate = %v, want now+10d", g.TargetDate)
	}
	if n := store.notifications[0]; n.Kind != "automation" || n.Priority != records.PriorityHigh {
		t.Errorf("notification = %+v", n)
	}
	if n := store.notifications[1]; n.Kind != "mood_check_in" || n.Message != DefaultCheckInMessage {
		t.Errorf("check-in = %+v", n)
	}
}

func TestExecutor_GenerateAIInsight(t *testing.T) {
	store := newMockRecordStore()
	gen := &mockGenerator{reply: "You sleep better after walks."}
	x := newTestExecutor(store, gen)

	ev := testEvent(events.KindMoodLogged, map[string]any{"moodScore": 3})
	got, err := x.Execute(context.Background(), GenerateAIInsight{Prompt: "Why am I tired?"}, ev)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if want := "Generated AI insight (29 chars)"; got != want {
		t.Errorf("Execute() = %q, want %q", got, want)
	}
	if gen.prompt != "Why am I tired?" {
		t.Errorf("prompt = %q", gen.prompt)
	}
	if !strings.Contains(gen.context, `"moodScore":3`) {
		t.Errorf("context = %q, want the event as JSON", gen.context)
	}
	if len(store.insights) != 1 || store.insights[0].Kind != "ai_insight" || store.insights[0].Priority != records.PriorityLow {
		t.Errorf("insights = %+v", store.insights)
	}
}

func TestExecutor_GenerateAIInsight_Failure(t *testing.T) {
	store := newMockRecordStore()
	x := newTestExecutor(store, &mockGenerator{err: errors.New("quota exceeded")})

	_, err := x.Execute(context.Background(), GenerateAIInsight{Prompt: "p", Context: "c"}, testEvent(events.KindMoodLogged, nil))
	if !errors.Is(err, ErrCollaboratorFailure) {
		t.Fatalf("error = %v, want ErrCollaboratorFailure", err)
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("error %q lost the underlying message", err)
	}
	if store.writes() != 0 {
		t.Errorf("writes = %d, want 0", store.writes())
	}
}

func TestExecutor_GenerateAIInsight_NoGenerator(t *testing.T) {
	x := newTestExecutor(newMockRecordStore(), nil)

	_, err := x.Execute(context.Background(), GenerateAIInsight{Prompt: "p"}, testEvent(events.KindMoodLogged, nil))
	if !errors.Is(err, ErrCollaboratorFailure) {
		t.Fatalf("error = %v, want ErrCollaboratorFailure", err)
	}
}

func TestExecutor_StoreFailure(t *testing.T) {
	store := newMockRecordStore()
	store.err = errors.New("disk full")
	x := newTestExecutor(store, nil)

	_, err := x.Execute(context.Background(), SendNotification{Message: "m"}, testEvent(events.KindMoodLogged, nil))
	if !errors.Is(err, ErrCollaboratorFailure) {
		t.Fatalf("error = %v, want ErrCollaboratorFailure", err)
	}
}

func TestExecutor_RejectedAction(t *testing.T) {
	actions := decodeActionsLenient([]RawAction{{Kind: "ORDER_PIZZA"}})
	x := newTestExecutor(newMockRecordStore(), nil)

	_, err := x.Execute(context.Background(), actions[0], testEvent(events.KindMoodLogged, nil))
	if !errors.Is(err, ErrUnknownActionKind) {
		t.Fatalf("error = %v, want ErrUnknownActionKind", err)
	}
}

// ─── Spending Analysis ──────────────────────────────────────────────────────

func TestExecutor_AnalyzeSpendingPattern(t *testing.T) {
	store := newMockRecordStore()
	store.expenses = []records.Transaction{
		{Amount: -150, Category: "food", Type: records.TypeExpense},
		{Amount: -50, Category: "food", Type: records.TypeExpense},
		{Amount: -75, Category: "fun", Type: records.TypeExpense},
	}
	x := newTestExecutor(store, nil)

	got, err := x.Execute(context.Background(), AnalyzeSpendingPattern{}, testEvent(events.KindBudgetExceeded, nil))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	want := "Analyzed 3 transactions: top category food ($200.00) of $275.00 total"
	if got != want {
		t.Errorf("Execute() = %q, want %q", got, want)
	}
	if !store.since.Equal(fixedNow.AddDate(0, 0, -30)) {
		t.Errorf("since = %v, want 30 days before now", store.since)
	}
	if len(store.insights) != 1 || store.insights[0].Kind != "spending_pattern" {
		t.Fatalf("insights = %+v", store.insights)
	}
}

func TestExecutor_AnalyzeSpendingPattern_NoExpenses(t *testing.T) {
	store := newMockRecordStore()
	x := newTestExecutor(store, nil)

	got, err := x.Execute(context.Background(), AnalyzeSpendingPattern{}, testEvent(events.KindBudgetExceeded, nil))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if want := "No expense transactions in the last 30 days; nothing to analyze"; got != want {
		t.Errorf("Execute() = %q, want %q", got, want)
	}
	if store.writes() != 0 {
		t.Errorf("writes = %d, want 0", store.writes())
	}
}

func TestSummarizeSpending_TieGoesToFirstSeen(t *testing.T) {
	s := summarizeSpending([]records.Transaction{
		{Amount: -40, Category: "books"},
		{Amount: -40, Category: "games"},
	})
	if s.topCategory != "books" {
		t.Errorf("topCategory = %q, want books", s.topCategory)
	}
	if s.total != 80 {
		t.Errorf("total = %v, want 80", s.total)
	}
}
