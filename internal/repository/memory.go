package repository

import (
	"context"
	"sort"
	"sync"

	"hrchat/internal/domain/message"
	"hrchat/internal/domain/thread"
	hrchat_errors "hrchat/pkg/errors"
)

type memoryThread struct {
	thread    thread.Thread
	directKey string
	meta      map[string]any
	unread    map[string]int
	messages  []message.Message
}

// MemoryStore is a Store held in process. Used by single instance gateways
// and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]thread.Member
	threads map[string]*memoryThread
	direct  map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]thread.Member),
		threads: make(map[string]*memoryThread),
		direct:  make(map[string]string),
	}
}

func (s *MemoryStore) UpsertUser(_ context.Context, m thread.Member) error {
	if m.ID == "" {
		return hrchat_errors.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[m.ID] = m
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (thread.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.users[id]
	if !ok {
		return thread.Member{}, hrchat_errors.ErrNotFound
	}
	return m, nil
}

func (s *MemoryStore) GetUsers(_ context.Context, ids []string) ([]thread.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]thread.Member, 0, len(ids))
	for _, id := range ids {
		if m, ok := s.users[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateThread(_ context.Context, t NewThread) error {
	if t.Thread.ID == "" {
		return hrchat_errors.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.threads[t.Thread.ID]; exists {
		return hrchat_errors.ErrAlreadyExists
	}
	if t.DirectKey != "" {
		if _, exists := s.direct[t.DirectKey]; exists {
			return hrchat_errors.ErrAlreadyExists
		}
		s.direct[t.DirectKey] = t.Thread.ID
	}

	stored := &memoryThread{
		thread:    t.Thread.Clone(),
		directKey: t.DirectKey,
		meta:      t.Meta,
		unread:    make(map[string]int, len(t.Thread.Members)),
	}
	stored.thread.UnreadCount = 0
	for _, m := range stored.thread.Members {
		stored.unread[m.ID] = 0
	}
	s.threads[t.Thread.ID] = stored
	return nil
}

func (s *MemoryStore) GetThread(_ context.Context, id string) (thread.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.threads[id]
	if !ok {
		return thread.Thread{}, hrchat_errors.ErrNotFound
	}
	return s.view(t, ""), nil
}

func (s *MemoryStore) GetDirectThread(_ context.Context, directKey string) (thread.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.direct[directKey]
	if !ok {
		return thread.Thread{}, hrchat_errors.ErrNotFound
	}
	return s.view(s.threads[id], ""), nil
}

func (s *MemoryStore) ListThreadsForUser(_ context.Context, userID string) ([]thread.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]thread.Thread, 0)
	for _, t := range s.threads {
		if _, member := t.unread[userID]; member {
			out = append(out, s.view(t, userID))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].LastMessageTime.Equal(out[j].LastMessageTime) {
			return out[i].LastMessageTime.After(out[j].LastMessageTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) IsMember(_ context.Context, threadID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.threads[threadID]
	if !ok {
		return false, hrchat_errors.ErrNotFound
	}
	_, member := t.unread[userID]
	return member, nil
}

func (s *MemoryStore) ResetUnread(_ context.Context, threadID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return hrchat_errors.ErrNotFound
	}
	if _, member := t.unread[userID]; member {
		t.unread[userID] = 0
	}
	return nil
}

func (s *MemoryStore) CreateMessage(_ context.Context, m message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[m.ThreadID]
	if !ok {
		return hrchat_errors.ErrNotFound
	}
	for _, existing := range t.messages {
		if existing.ID == m.ID {
			return hrchat_errors.ErrAlreadyExists
		}
	}
	t.messages = append(t.messages, m)
	t.thread.ApplyPreview(m)
	for id := range t.unread {
		if id != m.SenderID {
			t.unread[id]++
		}
	}
	return nil
}

func (s *MemoryStore) ListMessages(_ context.Context, threadID string, limit int) ([]message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.threads[threadID]
	if !ok {
		return nil, hrchat_errors.ErrNotFound
	}
	msgs := t.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]message.Message(nil), msgs...), nil
}

// view copies t with member names refreshed from the directory and the
// unread counter of userID.
func (s *MemoryStore) view(t *memoryThread, userID string) thread.Thread {
	out := t.thread.Clone()
	for i, m := range out.Members {
		if u, ok := s.users[m.ID]; ok {
			out.Members[i] = u
		}
	}
	if out.LastSenderName == "" {
		out.LastSenderName = s.users[out.LastSenderID].Name
	}
	if userID != "" {
		out.UnreadCount = t.unread[userID]
	}
	return out
}
