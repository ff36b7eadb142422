package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/nerrad567/lifelog-core/internal/events"
	"github.com/nerrad567/lifelog-core/internal/records"
)

// Defaults applied by action handlers when optional parameters are absent.
const (
	DefaultJournalTitle     = "Automated Journal Prompt"
	DefaultCopingTitle      = "Coping strategy"
	DefaultCategory         = "Other"
	DefaultGoalCategory     = "Personal"
	DefaultNotificationName = "Automation"
	DefaultCheckInMessage   = "How are you feeling right now?"
	DefaultSpendingDays     = 30
)

// Record kinds written by the executor.
const (
	journalTagAutomation   = "automation"
	insightCopingStrategy  = "coping_strategy"
	insightAI              = "ai_insight"
	insightSpendingPattern = "spending_pattern"
	insightActivity        = "activity_suggestion"
	notifyAutomation       = "automation"
	notifyHabitReminder    = "habit_reminder"
	notifyMoodCheckIn      = "mood_check_in"
)

// RecordStore is the persistence the action handlers need.
type RecordStore interface {
	CreateJournalEntry(ctx context.Context, e *records.JournalEntry) error
	CreateTransaction(ctx context.Context, tx *records.Transaction) error
	CreateGoal(ctx context.Context, g *records.Goal) error
	CreateNotification(ctx context.Context, n *records.Notification) error
	CreateInsight(ctx context.Context, in *records.Insight) error
	ListExpenses(ctx context.Context, userID string, since time.Time) ([]records.Transaction, error)
}

// Generator produces text from a prompt and supporting context.
type Generator interface {
	Generate(ctx context.Context, prompt, context string) (string, error)
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorClock overrides the time source used for goal target dates and
// the spending-analysis window.
func WithExecutorClock(now func() time.Time) ExecutorOption {
	return func(x *Executor) { x.now = now }
}

// Executor performs routine actions. It holds no per-call state and is safe
// for concurrent use.
type Executor struct {
	records   RecordStore
	generator Generator
	now       func() time.Time
}

// NewExecutor creates an Executor. generator may be nil, in which case
// GENERATE_AI_INSIGHT actions fail.
func NewExecutor(store RecordStore, generator Generator, opts ...ExecutorOption) *Executor {
	x := &Executor{records: store, generator: generator, now: time.Now}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Execute runs one action for the event's user and returns the outcome
// description recorded in the automation log.
func (x *Executor) Execute(ctx context.Context, action Action, ev events.Event) (string, error) {
	if action == nil {
		return "", fmt.Errorf("%w: nil action", ErrUnknownActionKind)
	}
	if err := action.Validate(); err != nil {
		return "", err
	}

	switch a := action.(type) {
	case CreateJournalPrompt:
		return x.createJournalPrompt(ctx, a, ev)
	case SuggestCopingStrategy:
		return x.suggestCopingStrategy(ctx, a, ev)
	case CreateTransaction:
		return x.createTransaction(ctx, a, ev)
	case CreateGoal:
		return x.createGoal(ctx, a, ev)
	case SendNotification:
		return x.sendNotification(ctx, a, ev)
	case GenerateAIInsight:
		return x.generateAIInsight(ctx, a, ev)
	case CreateHabitReminder:
		return x.createHabitReminder(ctx, a, ev)
	case AnalyzeSpendingPattern:
		return x.analyzeSpendingPattern(ctx, a, ev)
	case SuggestActivity:
		return x.suggestActivity(ctx, a, ev)
	case CreateMoodCheckIn:
		return x.createMoodCheckIn(ctx, a, ev)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownActionKind, action.Kind())
	}
}

func (x *Executor) createJournalPrompt(ctx context.Context, a CreateJournalPrompt, ev events.Event) (string, error) {
	title := orDefault(a.Title, DefaultJournalTitle)
	entry := &records.JournalEntry{
		UserID:  ev.UserID,
		Title:   title,
		Content: a.Prompt,
		Tags:    []string{journalTagAutomation},
	}
	if err := x.records.CreateJournalEntry(ctx, entry); err != nil {
		return "", storeFailure("creating journal entry", err)
	}
	return fmt.Sprintf("Created journal prompt %q", title), nil
}

func (x *Executor) suggestCopingStrategy(ctx context.Context, a SuggestCopingStrategy, ev events.Event) (string, error) {
	in := &records.Insight{
		UserID:   ev.UserID,
		Kind:     insightCopingStrategy,
		Title:    orDefault(a.Title, DefaultCopingTitle),
		Content:  a.Strategy,
		Priority: records.PriorityMedium,
	}
	if err := x.records.CreateInsight(ctx, in); err != nil {
		return "", storeFailure("creating insight", err)
	}
	return "Suggested coping strategy: " + a.Strategy, nil
}

func (x *Executor) createTransaction(ctx context.Context, a CreateTransaction, ev events.Event) (string, error) {
	tx := &records.Transaction{
		UserID:      ev.UserID,
		Amount:      *a.Amount,
		Description: a.Description,
		Category:    orDefault(a.Category, DefaultCategory),
		Type:        orDefault(a.Type, records.TypeExpense),
	}
	if err := x.records.CreateTransaction(ctx, tx); err != nil {
		return "", storeFailure("creating transaction", err)
	}
	return fmt.Sprintf("Created transaction %q for %.2f", a.Description, *a.Amount), nil
}

func (x *Executor) createGoal(ctx context.Context, a CreateGoal, ev events.Event) (string, error) {
	g := &records.Goal{
		UserID:      ev.UserID,
		Title:       a.Title,
		Description: a.Description,
		Category:    orDefault(a.Category, DefaultGoalCategory),
		Status:      records.GoalActive,
	}
	if a.TargetDays > 0 {
		target := x.now().UTC().AddDate(0, 0, a.TargetDays)
		g.TargetDate = &target
	}
	if err := x.records.CreateGoal(ctx, g); err != nil {
		return "", storeFailure("creating goal", err)
	}
	return fmt.Sprintf("Created goal %q", a.Title), nil
}

func (x *Executor) sendNotification(ctx context.Context, a SendNotification, ev events.Event) (string, error) {
	title := orDefault(a.Title, DefaultNotificationName)
	n := &records.Notification{
		UserID:   ev.UserID,
		Kind:     notifyAutomation,
		Title:    title,
		Message:  a.Message,
		Priority: orDefault(a.Priority, records.PriorityMedium),
	}
	if err := x.records.CreateNotification(ctx, n); err != nil {
		return "", storeFailure("creating notification", err)
	}
	return fmt.Sprintf("Sent notification %q", title), nil
}

func (x *Executor) generateAIInsight(ctx context.Context, a GenerateAIInsight, ev events.Event) (string, error) {
	if x.generator == nil {
		return "", fmt.Errorf("%w: generative-text service not configured", ErrCollaboratorFailure)
	}

	supporting := a.Context
	if supporting == "" {
		data, err := json.Marshal(ev)
		if err != nil {
			return "", fmt.Errorf("encoding event context: %w", err)
		}
		supporting = string(data)
	}

	text, err := x.generator.Generate(ctx, a.Prompt, supporting)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCollaboratorFailure, err)
	}

	in := &records.Insight{
		UserID:   ev.UserID,
		Kind:     insightAI,
		Title:    "AI insight",
		Content:  text,
		Priority: records.PriorityLow,
	}
	if err := x.records.CreateInsight(ctx, in); err != nil {
		return "", storeFailure("creating insight", err)
	}
	return fmt.Sprintf("Generated AI insight (%d chars)", utf8.RuneCountInString(text)), nil
}

func (x *Executor) createHabitReminder(ctx context.Context, a CreateHabitReminder, ev events.Event) (string, error) {
	habit := a.HabitName
	if habit == "" {
		habit, _ = ev.Text("habitName")
	}
	if habit == "" {
		return "", missing("habitName")
	}

	n := &records.Notification{
		UserID:   ev.UserID,
		Kind:     notifyHabitReminder,
		Title:    "Habit reminder: " + habit,
		Message:  orDefault(a.Message, fmt.Sprintf("Don't forget to %s today.", habit)),
		Priority: records.PriorityMedium,
	}
	if err := x.records.CreateNotification(ctx, n); err != nil {
		return "", storeFailure("creating notification", err)
	}
	return fmt.Sprintf("Created habit reminder for %q", habit), nil
}

func (x *Executor) analyzeSpendingPattern(ctx context.Context, a AnalyzeSpendingPattern, ev events.Event) (string, error) {
	days := a.Days
	if days == 0 {
		days = DefaultSpendingDays
	}
	since := x.now().UTC().AddDate(0, 0, -days)

	expenses, err := x.records.ListExpenses(ctx, ev.UserID, since)
	if err != nil {
		return "", storeFailure("listing expenses", err)
	}
	if len(expenses) == 0 {
		return fmt.Sprintf("No expense transactions in the last %d days; nothing to analyze", days), nil
	}

	summary := summarizeSpending(expenses)
	in := &records.Insight{
		UserID:   ev.UserID,
		Kind:     insightSpendingPattern,
		Title:    "Spending pattern",
		Content:  summary.describe(days),
		Priority: records.PriorityMedium,
	}
	if err := x.records.CreateInsight(ctx, in); err != nil {
		return "", storeFailure("creating insight", err)
	}
	return fmt.Sprintf("Analyzed %d transactions: top category %s ($%.2f) of $%.2f total",
		summary.count, summary.topCategory, summary.topAmount, summary.total), nil
}

func (x *Executor) suggestActivity(ctx context.Context, a SuggestActivity, ev events.Event) (string, error) {
	content := a.Activity
	if a.Reason != "" {
		content += ": " + a.Reason
	}
	in := &records.Insight{
		UserID:   ev.UserID,
		Kind:     insightActivity,
		Title:    "Activity suggestion",
		Content:  content,
		Priority: records.PriorityMedium,
	}
	if err := x.records.CreateInsight(ctx, in); err != nil {
		return "", storeFailure("creating insight", err)
	}
	return "Suggested activity: " + a.Activity, nil
}

func (x *Executor) createMoodCheckIn(ctx context.Context, a CreateMoodCheckIn, ev events.Event) (string, error) {
	n := &records.Notification{
		UserID:   ev.UserID,
		Kind:     notifyMoodCheckIn,
		Title:    "Mood check-in",
		Message:  orDefault(a.Message, DefaultCheckInMessage),
		Priority: records.PriorityMedium,
	}
	if err := x.records.CreateNotification(ctx, n); err != nil {
		return "", storeFailure("creating notification", err)
	}
	return "Created mood check-in", nil
}

// spendingSummary aggregates expenses by absolute amount.
type spendingSummary struct {
	count       int
	total       float64
	topCategory string
	topAmount   float64
	byCategory  map[string]float64
	order       []string
}

// summarizeSpending totals |amount| per category. Ties for the top category
// go to the category seen first.
func summarizeSpending(txs []records.Transaction) spendingSummary {
	s := spendingSummary{count: len(txs), byCategory: make(map[string]float64)}
	for _, tx := range txs {
		amount := math.Abs(tx.Amount)
		s.total += amount
		if _, seen := s.byCategory[tx.Category]; !seen {
			s.order = append(s.order, tx.Category)
		}
		s.byCategory[tx.Category] += amount
	}
	for i, cat := range s.order {
		if i == 0 || s.byCategory[cat] > s.topAmount {
			s.topCategory = cat
			s.topAmount = s.byCategory[cat]
		}
	}
	return s
}

func (s spendingSummary) describe(days int) string {
	text := fmt.Sprintf("Over the last %d days you spent $%.2f across %d transactions.", days, s.total, s.count)
	for _, cat := range s.order {
		text += fmt.Sprintf("\n- %s: $%.2f", cat, s.byCategory[cat])
	}
	return text
}

func storeFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrCollaboratorFailure, op, err)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
