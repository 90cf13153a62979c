package thread

import (
	"strings"

	"hrchat/internal/domain"
)

// unreadKeys lists the unread counter field names in priority order.
var unreadKeys = []string{"unreadCount", "unread", "unread_count", "unreadMessages"}

// Normalize maps a server thread payload into a Thread. Returns false when
// the payload carries no id.
func Normalize(r domain.Raw) (Thread, bool) {
	t := Thread{
		ID:   r.ID("id", "_id", "threadId"),
		Name: strings.TrimSpace(r.String("name", "title", "groupName")),
	}
	if t.ID == "" {
		return Thread{}, false
	}

	for _, raw := range r.Objects("members", "participants") {
		t.AddMember(normalizeMember(raw))
	}

	t.IsDirect = isDirect(r, len(t.Members))

	if last := r.Object("lastMessage"); last != nil {
		t.LastMessagePreview = last.String("text", "content")
		t.LastMessageTime = last.Time("time", "createdAt")
		if sender := last.Object("sender"); sender != nil {
			t.LastSenderID = sender.ID("id", "_id")
			t.LastSenderName = sender.String("name", "fullName")
		} else {
			t.LastSenderID = last.ID("senderId", "sender")
			t.LastSenderName = last.String("senderName")
		}
	} else {
		t.LastMessagePreview = r.String("lastMessagePreview", "lastMessageText", "preview")
		t.LastMessageTime = r.Time("lastMessageTime", "lastMessageAt", "updatedAt")
		t.LastSenderID = r.ID("lastSenderId")
		t.LastSenderName = r.String("lastSenderName")
	}

	if n, ok := r.Int(unreadKeys...); ok && n > 0 {
		t.UnreadCount = n
	}
	return t, true
}

// NormalizeAll normalizes a list, dropping entries without an id.
func NormalizeAll(items []domain.Raw) []Thread {
	out := make([]Thread, 0, len(items))
	for _, item := range items {
		if t, ok := Normalize(item); ok {
			out = append(out, t)
		}
	}
	return out
}

func normalizeMember(r domain.Raw) Member {
	// populated references nest the user under "user"
	if u := r.Object("user"); u != nil {
		m := normalizeMember(u)
		if role := r.String("role"); role != "" && m.Role == "" {
			m.Role = role
		}
		return m
	}
	return Member{
		ID:         r.ID("id", "_id", "userId"),
		Name:       r.String("name", "fullName", "displayName", "username"),
		Role:       r.String("role"),
		Department: r.String("department", "dept"),
		Status:     r.String("status"),
	}
}

func isDirect(r domain.Raw, members int) bool {
	if v, ok := r.Bool("isDirect", "direct", "is_direct"); ok {
		return v
	}
	if v, ok := r.Bool("isGroup", "is_group"); ok {
		return !v
	}
	switch strings.ToLower(r.String("type", "kind")) {
	case "direct", "dm", "private":
		return true
	case "group":
		return false
	}
	return members <= 2
}
