package message

import (
	"strconv"
	"strings"
	"time"

	"hrchat/internal/domain"
)

// TempPrefix marks client generated ids awaiting server confirmation.
const TempPrefix = "temp-"

// Message is one chat message as held by a client.
type Message struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"threadId"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName,omitempty"`
	Text       string    `json:"text"`
	Time       time.Time `json:"time"`
	Sending    bool      `json:"sending,omitempty"`
}

// IsTemp reports whether the message still carries a client generated id.
func (m Message) IsTemp() bool {
	return IsTempID(m.ID)
}

// IsTempID reports whether id was produced by TempID.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempPrefix)
}

// TempID builds the temporary id for an optimistic message created at now.
func TempID(now time.Time) string {
	return TempPrefix + strconv.FormatInt(now.UnixMilli(), 10)
}

// Normalize maps a heterogeneous server payload into a Message. Returns false
// when the payload has no id.
func Normalize(r domain.Raw) (Message, bool) {
	m := Message{
		ID:       r.ID("id", "_id", "messageId"),
		ThreadID: r.ID("threadId", "thread", "thread_id", "conversationId"),
		Text:     r.String("text", "content", "body"),
		Time:     r.Time("time", "createdAt", "created_at", "timestamp"),
	}
	if m.ID == "" {
		return Message{}, false
	}
	if sender := r.Object("sender"); sender != nil {
		m.SenderID = sender.ID("id", "_id")
		m.SenderName = sender.String("name", "fullName", "username")
	} else {
		m.SenderID = r.ID("senderId", "sender", "sender_id", "from")
	}
	if m.SenderName == "" {
		m.SenderName = r.String("senderName", "sender_name")
	}
	return m, true
}

// NormalizeAll normalizes a list, dropping entries without an id.
func NormalizeAll(items []domain.Raw) []Message {
	out := make([]Message, 0, len(items))
	for _, item := range items {
		if m, ok := Normalize(item); ok {
			out = append(out, m)
		}
	}
	return out
}
