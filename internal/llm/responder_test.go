package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/coursepilot/internal/chat"
	"github.com/ppiankov/coursepilot/internal/model"
	"github.com/ppiankov/coursepilot/internal/term"
)

type fakeProvider struct {
	got  CompletionRequest
	text string
	err  error
}

func (f *fakeProvider) Name() string                     { return "fake" }
func (f *fakeProvider) IsAvailable(context.Context) bool { return true }
func (f *fakeProvider) Complete(_ context.Context, req CompletionRequest) (*CompletionResponse, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &CompletionResponse{Text: f.text, Model: "fake-1", TokensUsed: 42}, nil
}

func TestResponder_UsesProvider(t *testing.T) {
	provider := &fakeProvider{text: "Devoir 3 is due Saturday."}
	r := NewResponder(provider, Config{}, nil)
	r.now = func() time.Time { return promptNow }

	resp, err := r.Query(context.Background(), chat.Request{
		Query:     "What's due this week?",
		Context:   sampleSnapshot(),
		SessionID: "s-1",
		RecentTurns: []model.Turn{
			{Role: model.RoleUser, Content: "hi"},
			{Role: model.RoleAssistant, Content: "hello"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Devoir 3 is due Saturday.", resp.Response)
	assert.Equal(t, chat.DefaultActions(), resp.SuggestedActions)

	assert.Equal(t, float32(0.3), provider.got.Temperature)
	assert.Equal(t, 1000, provider.got.MaxTokens)
	assert.Contains(t, provider.got.System, "Devoir 3 | Due: 2025-10-25")
	require.Len(t, provider.got.Messages, 3)
	assert.Equal(t, Message{Role: "user", Content: "What's due this week?"}, provider.got.Messages[2])
	assert.Equal(t, "fake", r.Provider())
}

func TestResponder_ProviderFailureIsApology(t *testing.T) {
	r := NewResponder(&fakeProvider{err: errors.New("401 invalid api key")}, Config{}, nil)

	resp, err := r.Query(context.Background(), chat.Request{Query: "hello"})
	require.NoError(t, err)
	assert.Equal(t, apology, resp.Response)
	assert.NotContains(t, resp.Response, "401", "raw errors stay in the log")
}

func TestResponder_KeywordFallback(t *testing.T) {
	r := NewResponder(nil, Config{}, nil)
	r.now = func() time.Time { return promptNow }
	assert.Equal(t, "keyword", r.Provider())

	resp, err := r.Query(context.Background(), chat.Request{Query: "Show me all my courses", Context: sampleSnapshot()})
	require.NoError(t, err)
	assert.Contains(t, resp.Response, "You have 3 courses:")
	assert.Len(t, resp.SuggestedActions, 3)
}

func TestKeywordAnswer(t *testing.T) {
	snap := sampleSnapshot()
	ask := func(q string, s term.Snapshot) string {
		return KeywordAnswer(chat.Request{Query: q, Context: s}, promptNow)
	}

	courses := ask("What courses do I have?", snap)
	assert.Contains(t, courses, "1. CSI2532[A] Bases de données\n   Code: CSI2532")

	grades := ask("What are my grades?", snap)
	assert.Contains(t, grades, "I found grades for 1 courses")
	assert.Contains(t, grades, "• Devoir 1: A+")

	due := ask("What's due this week?", snap)
	assert.Contains(t, due, "MAT2777 | Devoir 3: Due October 25, 2025")
	assert.NotContains(t, due, "Devoir 4", "undated work is not upcoming")

	news := ask("any news?", snap)
	assert.Contains(t, news, "MAT2777 | 2025-10-15: Midterm Results Posted")

	assert.Equal(t, helpText, ask("What can you do?", snap))

	other := ask("Tell me a joke", snap)
	assert.Contains(t, other, "I received your question: 'Tell me a joke'")
	assert.Contains(t, other, "I have data for 3 courses")

	empty := term.Snapshot{}
	assert.Contains(t, ask("list my classes", empty), "coursepilot sync")
	assert.Contains(t, ask("grades please", empty), "coursepilot sync")
	assert.Contains(t, ask("assignments", empty), "coursepilot sync")
	assert.Contains(t, ask("announcements", empty), "coursepilot sync")
}

func TestKeywordAnswer_NothingUpcoming(t *testing.T) {
	snap := term.Snapshot{Assignments: []model.AssignmentSet{
		{CourseRef: model.CourseRef{CourseID: "7"}, Items: []model.Assignment{{Name: "Past", DueDate: day(1)}}},
	}}
	got := KeywordAnswer(chat.Request{Query: "what is due", Context: snap}, promptNow)
	assert.Contains(t, got, "Nothing with an upcoming due date")
}
