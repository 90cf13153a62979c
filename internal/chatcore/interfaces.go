package chatcore

import (
	"context"

	"hrchat/internal/domain/message"
	"hrchat/internal/domain/thread"
)

// Emitter sends one named event over the live connection.
type Emitter interface {
	Emit(event string, payload any) error
}

// Transport is the live connection as seen by the session.
type Transport interface {
	Emitter
	// JoinThread subscribes to a thread's events. Joining twice is a no-op.
	JoinThread(threadID string) error
}

// API is the REST collaborator. Payloads arrive already normalized.
type API interface {
	ListThreads(ctx context.Context) ([]thread.Thread, error)
	ListMessages(ctx context.Context, threadID string) ([]message.Message, error)
	SendMessage(ctx context.Context, threadID, text string) (message.Message, error)
	StartDirect(ctx context.Context, targetUserID string) (thread.Thread, error)
	CreateGroup(ctx context.Context, spec thread.GroupSpec) (thread.Thread, error)
}

// LastThreadStore persists the last open thread per role and user.
type LastThreadStore interface {
	LastThread(ctx context.Context, role, userID string) (string, error)
	SetLastThread(ctx context.Context, role, userID, threadID string) error
}
