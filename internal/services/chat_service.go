package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"hrchat/internal/domain/message"
	"hrchat/internal/domain/thread"
	"hrchat/internal/events"
	"hrchat/internal/repository"
	hrchat_errors "hrchat/pkg/errors"
	"hrchat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChatService is the gateway side of the chat: persistence plus fan-out of
// socket events through the bus.
type ChatService struct {
	store repository.Store
	bus   events.Bus
	log   *logger.Logger
	now   func() time.Time
}

func NewChatService(store repository.Store, bus events.Bus, l *logger.Logger) *ChatService {
	return &ChatService{
		store: store,
		bus:   bus,
		log:   logger.OrNop(l).Named("chat"),
		now:   time.Now,
	}
}

// Identify records the caller in the user directory so other members see
// their name.
func (s *ChatService) Identify(ctx context.Context, self thread.Member) error {
	return s.store.UpsertUser(ctx, self)
}

func (s *ChatService) ListThreads(ctx context.Context, userID string) ([]thread.Thread, error) {
	return s.store.ListThreadsForUser(ctx, userID)
}

func (s *ChatService) ListMessages(ctx context.Context, userID, threadID string) ([]message.Message, error) {
	if err := s.requireMember(ctx, threadID, userID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, threadID, 0)
}

// SendMessage stores text and broadcasts it to the thread room, the
// sender's own connections included.
func (s *ChatService) SendMessage(ctx context.Context, sender thread.Member, threadID, text string) (message.Message, error) {
	if strings.TrimSpace(text) == "" {
		return message.Message{}, hrchat_errors.NewValidation("text", "message text is required")
	}
	if err := s.requireMember(ctx, threadID, sender.ID); err != nil {
		return message.Message{}, err
	}

	m := message.Message{
		ID:         uuid.NewString(),
		ThreadID:   threadID,
		SenderID:   sender.ID,
		SenderName: sender.Name,
		Text:       text,
		Time:       s.now().UTC(),
	}
	if err := s.store.CreateMessage(ctx, m); err != nil {
		return message.Message{}, err
	}

	s.publish(ctx, events.ChannelThread(threadID), "", events.EventMessage, events.MessagePayload{
		ID:         m.ID,
		ThreadID:   m.ThreadID,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Text:       m.Text,
		Time:       m.Time,
	})
	return m, nil
}

// StartDirect returns the direct thread between self and targetID, creating
// it when the pair has none.
func (s *ChatService) StartDirect(ctx context.Context, self thread.Member, targetID string) (thread.Thread, error) {
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return thread.Thread{}, hrchat_errors.NewValidation("targetUserId", "target user is required")
	}
	if targetID == self.ID {
		return thread.Thread{}, hrchat_errors.NewValidation("targetUserId", "cannot start a conversation with yourself")
	}

	key := repository.DirectKey(self.ID, targetID)
	if existing, err := s.store.GetDirectThread(ctx, key); err == nil {
		return s.forUser(ctx, existing, self.ID), nil
	} else if !errors.Is(err, hrchat_errors.ErrNotFound) {
		return thread.Thread{}, err
	}

	target, err := s.store.GetUser(ctx, targetID)
	if err != nil {
		if !errors.Is(err, hrchat_errors.ErrNotFound) {
			return thread.Thread{}, err
		}
		target = thread.Member{ID: targetID}
	}

	t := thread.Thread{
		ID:       uuid.NewString(),
		IsDirect: true,
		Members:  []thread.Member{self, target},
	}
	if self.Name != "" && target.Name != "" {
		t.Name = self.Name + " & " + target.Name
	}

	err = s.store.CreateThread(ctx, repository.NewThread{Thread: t, DirectKey: key})
	if errors.Is(err, hrchat_errors.ErrAlreadyExists) {
		// the other side won the race
		existing, getErr := s.store.GetDirectThread(ctx, key)
		if getErr != nil {
			return thread.Thread{}, getErr
		}
		return s.forUser(ctx, existing, self.ID), nil
	}
	if err != nil {
		return thread.Thread{}, err
	}

	return s.announce(ctx, t.ID)
}

// CreateGroup creates a named group. The creator is always a member.
func (s *ChatService) CreateGroup(ctx context.Context, self thread.Member, spec thread.GroupSpec) (thread.Thread, error) {
	if err := spec.Validate(); err != nil {
		return thread.Thread{}, err
	}

	ids := spec.WithCreator(self.ID)
	known, err := s.store.GetUsers(ctx, ids)
	if err != nil {
		return thread.Thread{}, err
	}
	byID := make(map[string]thread.Member, len(known))
	for _, m := range known {
		byID[m.ID] = m
	}

	t := thread.Thread{ID: uuid.NewString(), Name: spec.Name}
	for _, id := range ids {
		m, ok := byID[id]
		if !ok {
			m = thread.Member{ID: id}
		}
		if id == self.ID {
			m = self
		}
		t.AddMember(m)
	}

	if err := s.store.CreateThread(ctx, repository.NewThread{Thread: t, Meta: spec.Meta}); err != nil {
		return thread.Thread{}, err
	}
	return s.announce(ctx, t.ID)
}

// MarkSeen clears the reader's unread counter and relays the receipt to the
// rest of the room.
func (s *ChatService) MarkSeen(ctx context.Context, origin string, p events.SeenPayload) error {
	if err := s.requireMember(ctx, p.ThreadID, p.ReaderID); err != nil {
		return err
	}
	if err := s.store.ResetUnread(ctx, p.ThreadID, p.ReaderID); err != nil {
		return err
	}
	if len(p.SeenMessageIDs) > 0 {
		s.publish(ctx, events.ChannelThread(p.ThreadID), origin, events.EventSeen, p)
	}
	return nil
}

// RelayTyping forwards a typing change to the rest of the room.
func (s *ChatService) RelayTyping(ctx context.Context, origin string, p events.TypingPayload) error {
	if err := s.requireMember(ctx, p.ThreadID, p.UserID); err != nil {
		return err
	}
	s.publish(ctx, events.ChannelThread(p.ThreadID), origin, events.EventTyping, p)
	return nil
}

// CanJoin reports whether userID may subscribe to the room of threadID.
func (s *ChatService) CanJoin(ctx context.Context, userID, threadID string) (bool, error) {
	ok, err := s.store.IsMember(ctx, threadID, userID)
	if errors.Is(err, hrchat_errors.ErrNotFound) {
		return false, nil
	}
	return ok, err
}

func (s *ChatService) requireMember(ctx context.Context, threadID, userID string) error {
	if threadID == "" {
		return hrchat_errors.NewValidation("threadId", "thread id is required")
	}
	ok, err := s.store.IsMember(ctx, threadID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return hrchat_errors.ErrForbidden
	}
	return nil
}

// announce loads a freshly created thread and pushes it to every member's
// user channel.
func (s *ChatService) announce(ctx context.Context, threadID string) (thread.Thread, error) {
	t, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return thread.Thread{}, err
	}
	for _, id := range t.MemberIDs() {
		s.publish(ctx, events.ChannelUser(id), "", events.EventThreadCreated, map[string]any{"thread": t})
	}
	s.log.WithContext(ctx).Info("thread created",
		zap.String("thread_id", t.ID),
		zap.Bool("direct", t.IsDirect),
		zap.Int("members", len(t.Members)))
	return t, nil
}

// forUser fills the unread counter of an existing thread for userID.
func (s *ChatService) forUser(ctx context.Context, t thread.Thread, userID string) thread.Thread {
	threads, err := s.store.ListThreadsForUser(ctx, userID)
	if err != nil {
		return t
	}
	for _, candidate := range threads {
		if candidate.ID == t.ID {
			return candidate
		}
	}
	return t
}

// publish failures are logged; the write already succeeded.
func (s *ChatService) publish(ctx context.Context, channel, origin, event string, payload any) {
	env, err := events.NewEnvelope(event, payload)
	if err == nil {
		err = s.bus.Publish(ctx, events.Delivery{Channel: channel, Origin: origin, Envelope: env})
	}
	if err != nil {
		s.log.WithContext(ctx).Warn("event publish failed",
			zap.String("channel", channel),
			zap.String("event", event),
			zap.Error(err))
	}
}
