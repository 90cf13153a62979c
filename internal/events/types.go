package events

import "time"

// Socket event names. The strings are part of the wire contract.
const (
	EventJoinThread    = "joinThread"
	EventThreadJoined  = "threadJoined"
	EventMessage       = "chat:message"
	EventTyping        = "chat:typing"
	EventSeen          = "chat:seen"
	EventThreadCreated = "chat:thread"
	EventError         = "error"
)

// MessagePayload is a new message. Older servers send the thread id as
// "thread", newer ones as "threadId".
type MessagePayload struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"threadId,omitempty"`
	Thread     string    `json:"thread,omitempty"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName,omitempty"`
	Text       string    `json:"text"`
	Time       time.Time `json:"time"`
}

// ResolvedThreadID returns threadId, falling back to thread.
func (p MessagePayload) ResolvedThreadID() string {
	if p.ThreadID != "" {
		return p.ThreadID
	}
	return p.Thread
}

// TypingPayload is a typing state change of one user in one thread.
type TypingPayload struct {
	ThreadID string `json:"threadId"`
	UserID   string `json:"userId"`
	Name     string `json:"name,omitempty"`
	IsTyping bool   `json:"isTyping"`
}

// SeenPayload is a read receipt batch.
type SeenPayload struct {
	ThreadID       string   `json:"threadId"`
	ReaderID       string   `json:"readerId"`
	SeenMessageIDs []string `json:"seenMessageIds"`
}

// ThreadJoinedPayload acknowledges a joinThread request.
type ThreadJoinedPayload struct {
	ThreadID string `json:"threadId"`
}

// ErrorPayload reports a rejected socket request.
type ErrorPayload struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
