package genai

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	mu    sync.Mutex
	resp  *openai.ChatCompletion
	err   error
	calls []openai.ChatCompletionNewParams
	block bool
}

func (m *mockChatService) New(ctx context.Context, params openai.ChatCompletionNewParams, _ ...option.RequestOption) (*openai.ChatCompletion, error) {
	m.mu.Lock()
	m.calls = append(m.calls, params)
	block := m.block
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.resp, m.err
}

func reply(text string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: text}},
		},
	}
}

func TestGenerate_Success(t *testing.T) {
	chat := &mockChatService{resp: reply("  Take a short walk after lunch.  ")}
	client := newClient(chat, Config{Model: "gpt-4o"})

	out, err := client.Generate(context.Background(), "How can I feel better?", `{"moodScore":3}`)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != "Take a short walk after lunch." {
		t.Errorf("Generate() = %q", out)
	}
	if len(chat.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(chat.calls))
	}
	if got := chat.calls[0].Model; got != "gpt-4o" {
		t.Errorf("Model = %q, want gpt-4o", got)
	}
	if got := len(chat.calls[0].Messages); got != 2 {
		t.Errorf("Messages = %d, want system + user", got)
	}
}

func TestGenerate_DefaultModel(t *testing.T) {
	chat := &mockChatService{resp: reply("ok")}
	client := newClient(chat, Config{})

	if _, err := client.Generate(context.Background(), "p", ""); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got := chat.calls[0].Model; got != openai.ChatModelGPT4oMini {
		t.Errorf("Model = %q, want %q", got, openai.ChatModelGPT4oMini)
	}
}

func TestGenerate_ServiceError(t *testing.T) {
	client := newClient(&mockChatService{err: errors.New("service failure")}, Config{})

	_, err := client.Generate(context.Background(), "p", "c")
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("Generate() error = %v, want service failure", err)
	}
}

func TestGenerate_NoChoices(t *testing.T) {
	client := newClient(&mockChatService{resp: &openai.ChatCompletion{}}, Config{})

	if _, err := client.Generate(context.Background(), "p", "c"); !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("Generate() error = %v, want ErrNoChoicesReturned", err)
	}
}

func TestGenerate_EmptyText(t *testing.T) {
	client := newClient(&mockChatService{resp: reply("   ")}, Config{})

	if _, err := client.Generate(context.Background(), "p", "c"); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Generate() error = %v, want ErrEmptyResponse", err)
	}
}

func TestGenerate_Timeout(t *testing.T) {
	client := newClient(&mockChatService{block: true}, Config{Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := client.Generate(context.Background(), "p", "c")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Generate() error = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("Generate() did not honour the timeout")
	}
}

func TestGenerate_RateLimited(t *testing.T) {
	chat := &mockChatService{resp: reply("ok")}
	// One request per minute: the second call cannot get a token before its deadline.
	client := newClient(chat, Config{RequestsPerMinute: 1})

	if _, err := client.Generate(context.Background(), "p", ""); err != nil {
		t.Fatalf("first Generate() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := client.Generate(ctx, "p", ""); err == nil {
		t.Error("second Generate() should fail waiting for the limiter")
	}
	if len(chat.calls) != 1 {
		t.Errorf("calls = %d, want 1", len(chat.calls))
	}
}

func TestNewClient_NoKey(t *testing.T) {
	if _, err := NewClient(Config{}); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("NewClient() error = %v, want ErrMissingAPIKey", err)
	}
}

func TestNewClient_WithKey(t *testing.T) {
	client, err := NewClient(Config{APIKey: "sk-test", BaseURL: "http://localhost:1/v1", Model: "gpt-4o-mini"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if client.model != "gpt-4o-mini" {
		t.Errorf("model = %q", client.model)
	}
	if client.limiter != nil {
		t.Error("limiter should be nil when RequestsPerMinute is zero")
	}
}
