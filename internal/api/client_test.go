package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"hrchat/internal/domain/thread"
	hrchat_errors "hrchat/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/", Token: "tok", Timeout: 2 * time.Second}, nil)
}

func TestClient_ListThreadsNormalizes(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/threads", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": []any{
				map[string]any{"_id": "t1", "participants": []any{map[string]any{"_id": "1", "fullName": "Asha"}, map[string]any{"_id": "2", "fullName": "Bo"}}, "unread": 3},
				map[string]any{"id": 7, "name": "Payroll", "isGroup": true, "unreadCount": 1, "unread": 9},
				map[string]any{"name": "no id"},
			},
		})
	})

	threads, err := c.ListThreads(context.Background())
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, "t1", threads[0].ID)
	assert.True(t, threads[0].IsDirect)
	assert.Equal(t, 3, threads[0].UnreadCount)
	assert.Equal(t, "7", threads[1].ID)
	assert.False(t, threads[1].IsDirect)
	assert.Equal(t, 1, threads[1].UnreadCount)
}

func TestClient_ListMessagesWrapped(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/threads/t%201/messages", r.URL.EscapedPath())
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
			"messages": []any{
				map[string]any{"_id": "m1", "content": "hi", "sender": map[string]any{"_id": "2", "name": "Bo"}, "createdAt": "2026-03-02T09:00:00Z"},
			},
		}})
	})

	msgs, err := c.ListMessages(context.Background(), "t 1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "t 1", msgs[0].ThreadID)
	assert.Equal(t, "2", msgs[0].SenderID)
	assert.Equal(t, "Bo", msgs[0].SenderName)
	assert.Equal(t, "hi", msgs[0].Text)
}

func TestClient_SendMessage(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body["text"])
		writeJSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"id": "srv-1", "senderId": "1", "text": "hello"}})
	})

	m, err := c.SendMessage(context.Background(), "a", "hello")
	require.NoError(t, err)
	assert.Equal(t, "srv-1", m.ID)
	assert.Equal(t, "a", m.ThreadID)
}

func TestClient_CreateGroupSendsSpec(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/groups", r.URL.Path)
		var spec thread.GroupSpec
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&spec))
		assert.Equal(t, []string{"2", "3"}, spec.MemberIDs)
		writeJSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"thread": map[string]any{
			"id": "g1", "name": spec.Name, "isDirect": false,
			"members": []any{map[string]any{"id": "1"}, map[string]any{"id": "2"}, map[string]any{"id": "3"}},
		}}})
	})

	g, err := c.CreateGroup(context.Background(), thread.GroupSpec{Name: "Launch Team", MemberIDs: []string{"2", "3"}})
	require.NoError(t, err)
	assert.Equal(t, "g1", g.ID)
	assert.Equal(t, "Launch Team", g.Name)
	assert.Len(t, g.Members, 3)
}

func TestClient_RequestErrors(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chat/threads":
			writeJSON(w, http.StatusForbidden, map[string]any{"success": false, "error": "not a member", "code": "FORBIDDEN"})
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("<html>nope</html>"))
		}
	})

	_, err := c.StartDirect(context.Background(), "2")
	var reqErr *hrchat_errors.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusForbidden, reqErr.Status)
	assert.Equal(t, "not a member", reqErr.Message)
	assert.Equal(t, "FORBIDDEN", reqErr.Code)
	assert.ErrorIs(t, err, hrchat_errors.ErrForbidden)

	_, err = c.ListMessages(context.Background(), "missing")
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "Not Found", reqErr.Message)
	assert.ErrorIs(t, err, hrchat_errors.ErrNotFound)
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "boom"})
	}))
	t.Cleanup(srv.Close)
	c := NewClient(Config{BaseURL: srv.URL, MaxFailures: 2, OpenTimeout: time.Minute}, nil)

	for i := 0; i < 2; i++ {
		_, err := c.ListThreads(context.Background())
		var reqErr *hrchat_errors.RequestError
		require.ErrorAs(t, err, &reqErr)
		assert.Equal(t, "boom", reqErr.Message)
	}

	_, err := c.ListThreads(context.Background())
	var reqErr *hrchat_errors.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "CIRCUIT_OPEN", reqErr.Code)
	assert.ErrorIs(t, err, hrchat_errors.ErrServiceUnavailable)
	assert.Equal(t, int32(2), hits.Load())
}

func TestClient_ClientErrorsDoNotTrip(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad"})
	}))
	t.Cleanup(srv.Close)
	c := NewClient(Config{BaseURL: srv.URL, MaxFailures: 1}, nil)

	for i := 0; i < 3; i++ {
		_, err := c.ListThreads(context.Background())
		assert.ErrorIs(t, err, hrchat_errors.ErrInvalidInput)
	}
	assert.Equal(t, int32(3), hits.Load())
}
