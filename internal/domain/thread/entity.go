package thread

import (
	"time"

	"hrchat/internal/domain/message"
)

// Member is a participant summary as shown in thread lists.
type Member struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Role       string `json:"role,omitempty"`
	Department string `json:"department,omitempty"`
	Status     string `json:"status,omitempty"`
}

// Thread is a direct or group conversation with denormalized list fields.
type Thread struct {
	ID                 string    `json:"id"`
	IsDirect           bool      `json:"isDirect"`
	Name               string    `json:"name"`
	Members            []Member  `json:"members"`
	LastMessagePreview string    `json:"lastMessagePreview,omitempty"`
	LastMessageTime    time.Time `json:"lastMessageTime,omitempty"`
	LastSenderID       string    `json:"lastSenderId,omitempty"`
	LastSenderName     string    `json:"lastSenderName,omitempty"`
	UnreadCount        int       `json:"unreadCount"`
}

// Member returns the member with the given id.
func (t Thread) Member(id string) (Member, bool) {
	for _, m := range t.Members {
		if m.ID == id {
			return m, true
		}
	}
	return Member{}, false
}

// HasMember reports whether id participates in the thread.
func (t Thread) HasMember(id string) bool {
	_, ok := t.Member(id)
	return ok
}

// MemberIDs returns the ids of all members.
func (t Thread) MemberIDs() []string {
	ids := make([]string, 0, len(t.Members))
	for _, m := range t.Members {
		ids = append(ids, m.ID)
	}
	return ids
}

// AddMember inserts m unless a member with the same id exists.
func (t *Thread) AddMember(m Member) bool {
	if m.ID == "" || t.HasMember(m.ID) {
		return false
	}
	t.Members = append(t.Members, m)
	return true
}

// ApplyPreview copies m into the preview fields. Previews only move forward
// in time: a message older than the current preview is ignored.
func (t *Thread) ApplyPreview(m message.Message) bool {
	if !m.Time.IsZero() && !t.LastMessageTime.IsZero() && m.Time.Before(t.LastMessageTime) {
		return false
	}
	t.LastMessagePreview = m.Text
	if !m.Time.IsZero() {
		t.LastMessageTime = m.Time
	}
	t.LastSenderID = m.SenderID
	t.LastSenderName = m.SenderName
	if t.LastSenderName == "" {
		if member, ok := t.Member(m.SenderID); ok {
			t.LastSenderName = member.Name
		}
	}
	return true
}

// Clone returns a copy that shares no slices with t.
func (t Thread) Clone() Thread {
	c := t
	c.Members = append([]Member(nil), t.Members...)
	return c
}
