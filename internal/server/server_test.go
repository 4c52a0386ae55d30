package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/coursepilot/internal/chat"
	"github.com/ppiankov/coursepilot/internal/llm"
	"github.com/ppiankov/coursepilot/internal/model"
	"github.com/ppiankov/coursepilot/internal/term"
)

type backendFunc func(ctx context.Context, req chat.Request) (chat.Response, error)

func (f backendFunc) Query(ctx context.Context, req chat.Request) (chat.Response, error) {
	return f(ctx, req)
}

func TestQuery_RoundTripWithClient(t *testing.T) {
	var got chat.Request
	srv := New(backendFunc(func(_ context.Context, req chat.Request) (chat.Response, error) {
		got = req
		return chat.Response{Response: "You have 1 course."}, nil
	}), "test", nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client := chat.NewClient(ts.URL, 5*time.Second, nil)
	resp, err := client.Query(context.Background(), chat.Request{
		Query:     "  What courses do I have?  ",
		SessionID: "s-1",
		Context:   term.Snapshot{Courses: []model.Course{{ID: "7", Name: "CSI2532[A] Databases"}}},
		RecentTurns: []model.Turn{
			{Role: model.RoleUser, Content: "hi"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "You have 1 course.", resp.Response)
	assert.Equal(t, chat.DefaultActions(), resp.SuggestedActions, "missing actions are filled in")

	assert.Equal(t, "What courses do I have?", got.Query)
	assert.Equal(t, "s-1", got.SessionID)
	require.Len(t, got.Context.Courses, 1)
	assert.Equal(t, "7", got.Context.Courses[0].ID)
	assert.Len(t, got.RecentTurns, 1)
}

func TestQuery_KeywordResponder(t *testing.T) {
	ts := httptest.NewServer(New(llm.NewResponder(nil, llm.Config{}, nil), "test", nil).Handler())
	defer ts.Close()

	resp, err := chat.NewClient(ts.URL, 5*time.Second, nil).Query(context.Background(), chat.Request{
		Query:   "What can you do?",
		Context: term.Snapshot{},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Response)
	assert.Len(t, resp.SuggestedActions, 3)
}

func TestQuery_BadRequests(t *testing.T) {
	called := false
	ts := httptest.NewServer(New(backendFunc(func(context.Context, chat.Request) (chat.Response, error) {
		called = true
		return chat.Response{}, nil
	}), "test", nil).Handler())
	defer ts.Close()

	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed json", `{"query":`, "invalid request body"},
		{"empty query", `{"query":"   ","context":{},"sessionId":"s"}`, "query must not be empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := http.Post(ts.URL+"/api/chat/query", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer res.Body.Close()
			assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		})
	}

	_, err := chat.NewClient(ts.URL, time.Second, nil).Query(context.Background(), chat.Request{Query: " "})
	var be *chat.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "query must not be empty", be.Body)
	assert.False(t, called)
}

func TestQuery_BackendFailure(t *testing.T) {
	ts := httptest.NewServer(New(backendFunc(func(context.Context, chat.Request) (chat.Response, error) {
		return chat.Response{}, errors.New("model exploded")
	}), "test", nil).Handler())
	defer ts.Close()

	_, err := chat.NewClient(ts.URL, time.Second, nil).Query(context.Background(), chat.Request{Query: "hi"})
	var be *chat.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusInternalServerError, be.StatusCode)
	assert.Equal(t, "model exploded", be.Body)
}

func TestQuery_WrongMethod(t *testing.T) {
	ts := httptest.NewServer(New(backendFunc(nil), "test", nil).Handler())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/api/chat/query")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

func TestHealth(t *testing.T) {
	srv := New(backendFunc(nil), "0.3.0", nil)
	srv.now = func() time.Time { return time.Date(2025, 10, 20, 9, 0, 0, 0, time.UTC) }
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	h, err := chat.NewClient(ts.URL, time.Second, nil).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, ServiceName, h.Service)
	assert.Equal(t, "0.3.0", h.Version)
	assert.True(t, h.Timestamp.Equal(time.Date(2025, 10, 20, 9, 0, 0, 0, time.UTC)))
}

func TestServe_StopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(backendFunc(nil), "test", nil).Serve(ctx, ln) }()

	client := chat.NewClient("http://"+ln.Addr().String(), time.Second, nil)
	require.Eventually(t, func() bool {
		_, err := client.Health(context.Background())
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}
