package repository

import (
	"context"
	"testing"
	"time"

	"hrchat/internal/domain/message"
	"hrchat/internal/domain/thread"
	hrchat_errors "hrchat/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func seedThread(t *testing.T, s *MemoryStore, id string, direct bool, members ...string) {
	t.Helper()
	th := thread.Thread{ID: id, IsDirect: direct}
	for _, m := range members {
		th.Members = append(th.Members, thread.Member{ID: m})
	}
	key := ""
	if direct {
		key = DirectKey(members[0], members[1])
	}
	require.NoError(t, s.CreateThread(context.Background(), NewThread{Thread: th, DirectKey: key}))
}

func TestDirectKey_IsOrderIndependent(t *testing.T) {
	assert.Equal(t, DirectKey("7", "3"), DirectKey("3", "7"))
	assert.Equal(t, "3:7", DirectKey("7", "3"))
}

func TestMemoryStore_DirectKeyIsUnique(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedThread(t, s, "d1", true, "1", "2")

	err := s.CreateThread(ctx, NewThread{
		Thread:    thread.Thread{ID: "d2", IsDirect: true, Members: []thread.Member{{ID: "2"}, {ID: "1"}}},
		DirectKey: DirectKey("2", "1"),
	})
	assert.ErrorIs(t, err, hrchat_errors.ErrAlreadyExists)

	got, err := s.GetDirectThread(ctx, DirectKey("1", "2"))
	require.NoError(t, err)
	assert.Equal(t, "d1", got.ID)
}

func TestMemoryStore_UnreadPerMember(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedThread(t, s, "g1", false, "1", "2", "3")

	require.NoError(t, s.CreateMessage(ctx, message.Message{ID: "m1", ThreadID: "g1", SenderID: "1", Text: "hi", Time: epoch}))
	require.NoError(t, s.CreateMessage(ctx, message.Message{ID: "m2", ThreadID: "g1", SenderID: "2", Text: "yo", Time: epoch.Add(time.Minute)}))

	unread := func(user string) int {
		threads, err := s.ListThreadsForUser(ctx, user)
		require.NoError(t, err)
		require.Len(t, threads, 1)
		return threads[0].UnreadCount
	}
	assert.Equal(t, 1, unread("1"))
	assert.Equal(t, 1, unread("2"))
	assert.Equal(t, 2, unread("3"))

	require.NoError(t, s.ResetUnread(ctx, "g1", "3"))
	assert.Equal(t, 0, unread("3"))
	assert.Equal(t, 1, unread("1"))
}

func TestMemoryStore_ListOrderAndPreview(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedThread(t, s, "a", false, "1", "2", "3")
	seedThread(t, s, "b", true, "1", "2")
	require.NoError(t, s.UpsertUser(ctx, thread.Member{ID: "2", Name: "Bo"}))

	require.NoError(t, s.CreateMessage(ctx, message.Message{ID: "m1", ThreadID: "a", SenderID: "2", Text: "older", Time: epoch}))
	require.NoError(t, s.CreateMessage(ctx, message.Message{ID: "m2", ThreadID: "b", SenderID: "2", Text: "newer", Time: epoch.Add(time.Minute)}))

	threads, err := s.ListThreadsForUser(ctx, "1")
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, "b", threads[0].ID)
	assert.Equal(t, "newer", threads[0].LastMessagePreview)
	assert.Equal(t, "Bo", threads[0].LastSenderName)
	member, ok := threads[0].Member("2")
	require.True(t, ok)
	assert.Equal(t, "Bo", member.Name)

	none, err := s.ListThreadsForUser(ctx, "9")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryStore_Messages(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedThread(t, s, "a", true, "1", "2")

	for i, id := range []string{"m1", "m2", "m3"} {
		require.NoError(t, s.CreateMessage(ctx, message.Message{ID: id, ThreadID: "a", SenderID: "1", Text: id, Time: epoch.Add(time.Duration(i) * time.Minute)}))
	}
	assert.ErrorIs(t, s.CreateMessage(ctx, message.Message{ID: "m1", ThreadID: "a"}), hrchat_errors.ErrAlreadyExists)
	assert.ErrorIs(t, s.CreateMessage(ctx, message.Message{ID: "x", ThreadID: "missing"}), hrchat_errors.ErrNotFound)

	all, err := s.ListMessages(ctx, "a", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	last, err := s.ListMessages(ctx, "a", 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "m2", last[0].ID)
	assert.Equal(t, "m3", last[1].ID)

	_, err = s.ListMessages(ctx, "missing", 0)
	assert.ErrorIs(t, err, hrchat_errors.ErrNotFound)
}

func TestMemoryStore_Membership(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedThread(t, s, "a", true, "1", "2")

	ok, err := s.IsMember(ctx, "a", "1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsMember(ctx, "a", "3")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.IsMember(ctx, "zz", "1")
	assert.ErrorIs(t, err, hrchat_errors.ErrNotFound)
}
