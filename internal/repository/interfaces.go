package repository

import (
	"context"

	"hrchat/internal/domain/message"
	"hrchat/internal/domain/thread"
)

// UserRepository keeps the directory of people who have signed in, so member
// lists can carry names.
type UserRepository interface {
	UpsertUser(ctx context.Context, m thread.Member) error
	GetUser(ctx context.Context, id string) (thread.Member, error)
	GetUsers(ctx context.Context, ids []string) ([]thread.Member, error)
}

// NewThread is a thread about to be stored. DirectKey is set for direct
// threads and is unique across the store.
type NewThread struct {
	Thread    thread.Thread
	DirectKey string
	Meta      map[string]any
}

type ThreadRepository interface {
	// CreateThread stores t and its members. A DirectKey collision returns
	// ErrAlreadyExists.
	CreateThread(ctx context.Context, t NewThread) error
	GetThread(ctx context.Context, id string) (thread.Thread, error)
	GetDirectThread(ctx context.Context, directKey string) (thread.Thread, error)
	// ListThreadsForUser returns the user's threads, most recent activity
	// first, with UnreadCount set for that user.
	ListThreadsForUser(ctx context.Context, userID string) ([]thread.Thread, error)
	IsMember(ctx context.Context, threadID, userID string) (bool, error)
	ResetUnread(ctx context.Context, threadID, userID string) error
}

type MessageRepository interface {
	// CreateMessage stores m, moves the thread preview forward and counts it
	// as unread for every member except the sender.
	CreateMessage(ctx context.Context, m message.Message) error
	ListMessages(ctx context.Context, threadID string, limit int) ([]message.Message, error)
}

// Store is everything the chat service persists.
type Store interface {
	UserRepository
	ThreadRepository
	MessageRepository
}
