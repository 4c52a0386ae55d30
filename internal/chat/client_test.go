package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/coursepilot/internal/model"
	"github.com/ppiankov/coursepilot/internal/term"
)

func TestClient_Query(t *testing.T) {
	var raw map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat/query", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Response{Response: "You have 1 course.", SuggestedActions: DefaultActions()})
	}))
	defer server.Close()

	c := NewClient(server.URL+"/", 5*time.Second, nil)
	resp, err := c.Query(context.Background(), Request{
		Query:     "What courses do I have?",
		SessionID: "abc",
		Context: term.Snapshot{
			Courses:       []model.Course{{ID: "7", Name: "Databases"}},
			Grades:        []model.GradeSet{},
			Assignments:   []model.AssignmentSet{},
			Announcements: []model.AnnouncementSet{},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "You have 1 course.", resp.Response)
	assert.Len(t, resp.SuggestedActions, 3)

	assert.Equal(t, "What courses do I have?", raw["query"])
	assert.Equal(t, "abc", raw["sessionId"])
	assert.Equal(t, []any{}, raw["recentTurns"], "turns are an array even when empty")
	ctxDoc, ok := raw["context"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, ctxDoc["courses"], 1)
}

func TestClient_Query_BackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"mistral key missing"}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, 5*time.Second, nil).Query(context.Background(), Request{Query: "hi"})

	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusInternalServerError, be.StatusCode)
	assert.Equal(t, "mistral key missing", be.Body)
	assert.False(t, errors.Is(err, ErrUnavailable))
}

func TestClient_Query_Undecodable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>proxy error</html>`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, 5*time.Second, nil).Query(context.Background(), Request{Query: "hi"})

	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Contains(t, be.Error(), "undecodable")
}

func TestClient_Query_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewClient(url, time.Second, nil).Query(context.Background(), Request{Query: "hi"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClient_Health(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"healthy","service":"coursepilot","version":"0.3.0","timestamp":"2025-10-20T09:00:00Z"}`))
	}))
	defer server.Close()

	h, err := NewClient(server.URL, time.Second, nil).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, 2025, h.Timestamp.Year())
}

func TestErrorDetail(t *testing.T) {
	assert.Equal(t, "boom", errorDetail([]byte(`{"error":"boom"}`)))
	assert.Equal(t, "plain text", errorDetail([]byte("  plain text \n")))
	long := errorDetail([]byte(strings.Repeat("a", 600)))
	assert.True(t, strings.HasSuffix(long, "..."))
	assert.Len(t, long, maxErrorBody+3)
}
