package chatcore

import (
	"time"

	"hrchat/internal/domain/message"
	"hrchat/internal/domain/thread"
)

// MessageStore holds the message sequence of the active thread plus the
// compose draft. Entries keep arrival order.
type MessageStore struct {
	threadID string
	items    []message.Message
	draft    string
	loading  bool
	lastTemp int64
	now      func() time.Time
}

func NewMessageStore(now func() time.Time) *MessageStore {
	if now == nil {
		now = time.Now
	}
	return &MessageStore{now: now}
}

// Reset points the store at threadID with no messages loaded yet.
func (s *MessageStore) Reset(threadID string) {
	s.threadID = threadID
	s.items = nil
	s.draft = ""
	s.loading = threadID != ""
}

// LoadForThread replaces the sequence. Optimistic entries still pending for
// the same thread survive the reload at the tail.
func (s *MessageStore) LoadForThread(threadID string, msgs []message.Message) {
	var pending []message.Message
	if threadID == s.threadID {
		for _, m := range s.items {
			if m.Sending {
				pending = append(pending, m)
			}
		}
	}
	s.threadID = threadID
	s.loading = false
	s.items = make([]message.Message, 0, len(msgs)+len(pending))
	seen := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		s.items = append(s.items, m)
	}
	s.items = append(s.items, pending...)
}

// AppendOptimistic appends a pending message from sender and returns its
// temporary id.
func (s *MessageStore) AppendOptimistic(text string, sender thread.Member) string {
	now := s.now()
	ms := now.UnixMilli()
	// two sends within one millisecond must not share an id
	if ms <= s.lastTemp {
		ms = s.lastTemp + 1
	}
	s.lastTemp = ms
	id := message.TempID(time.UnixMilli(ms))

	s.items = append(s.items, message.Message{
		ID:         id,
		ThreadID:   s.threadID,
		SenderID:   sender.ID,
		SenderName: sender.Name,
		Text:       text,
		Time:       now,
		Sending:    true,
	})
	return id
}

// Confirm settles the optimistic entry tempID with the server copy. When the
// server copy already arrived over the socket the temporary entry is dropped
// so the message is never shown twice.
func (s *MessageStore) Confirm(tempID string, confirmed message.Message) bool {
	idx := s.indexOf(tempID)
	if idx < 0 {
		return false
	}
	if confirmed.ID == "" {
		s.items[idx].Sending = false
		return true
	}
	if s.indexOf(confirmed.ID) >= 0 {
		s.remove(idx)
		return true
	}
	confirmed.Sending = false
	if confirmed.ThreadID == "" {
		confirmed.ThreadID = s.items[idx].ThreadID
	}
	s.items[idx] = confirmed
	return true
}

// Rollback removes the optimistic entry tempID and restores text as the
// draft. The draft is left alone when the store moved to another thread.
func (s *MessageStore) Rollback(tempID, threadID, text string) bool {
	if threadID == s.threadID {
		s.draft = text
	}
	idx := s.indexOf(tempID)
	if idx < 0 {
		return false
	}
	s.remove(idx)
	return true
}

// AppendFromTransport appends m when it belongs to the loaded thread and is
// not already present.
func (s *MessageStore) AppendFromTransport(m message.Message) bool {
	if s.threadID == "" || m.ThreadID != s.threadID {
		return false
	}
	if s.indexOf(m.ID) >= 0 {
		return false
	}
	s.items = append(s.items, m)
	return true
}

// ReconcileEcho replaces the oldest pending entry of the same sender and
// text with m, the server copy echoed over the socket before the send
// request returned. Returns false when nothing was pending.
func (s *MessageStore) ReconcileEcho(m message.Message) bool {
	if s.threadID == "" || m.ThreadID != s.threadID || s.indexOf(m.ID) >= 0 {
		return false
	}
	for i, item := range s.items {
		if item.Sending && item.SenderID == m.SenderID && item.Text == m.Text {
			m.Sending = false
			s.items[i] = m
			return true
		}
	}
	return false
}

// Pending reports whether the optimistic entry tempID is still present.
func (s *MessageStore) Pending(tempID string) bool {
	return s.indexOf(tempID) >= 0
}

// Messages returns a copy of the sequence.
func (s *MessageStore) Messages() []message.Message {
	return append([]message.Message(nil), s.items...)
}

func (s *MessageStore) ThreadID() string { return s.threadID }

func (s *MessageStore) Loading() bool { return s.loading }

func (s *MessageStore) Draft() string { return s.draft }

func (s *MessageStore) SetDraft(text string) { s.draft = text }

func (s *MessageStore) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, m := range s.items {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func (s *MessageStore) remove(idx int) {
	s.items = append(s.items[:idx], s.items[idx+1:]...)
}
