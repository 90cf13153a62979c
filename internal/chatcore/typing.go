package chatcore

import (
	"sort"
	"strings"
	"time"

	"hrchat/internal/domain/thread"
	"hrchat/internal/events"
	"hrchat/internal/scheduler"
	"hrchat/pkg/logger"

	"go.uber.org/zap"
)

const (
	// KeepAliveInterval is the minimum spacing of repeated typing:true signals.
	KeepAliveInterval = 1500 * time.Millisecond
	// StopDelay is the idle time after the last keystroke before typing:false.
	StopDelay = 2000 * time.Millisecond
	// DisplayTimeout clears a remote indicator that was not refreshed.
	DisplayTimeout = 5000 * time.Millisecond
)

const (
	keyTypingStop    = "typing:stop"
	keyTypingDisplay = "typing:display:"
)

// TypingIndicator is a remote user composing in a thread.
type TypingIndicator struct {
	ThreadID string
	UserID   string
	Name     string
}

// TypingCoordinator decides when to signal local typing and expires remote
// indicators.
type TypingCoordinator struct {
	emit  Emitter
	sched scheduler.Scheduler
	log   *logger.Logger
	self  thread.Member

	threadID string
	typing   bool
	lastEmit time.Time

	// thread id -> user id -> display name
	remote   map[string]map[string]string
	onChange func(threadID string)
}

func NewTypingCoordinator(emit Emitter, sched scheduler.Scheduler, self thread.Member, log *logger.Logger) *TypingCoordinator {
	return &TypingCoordinator{
		emit:   emit,
		sched:  sched,
		log:    logger.OrNop(log),
		self:   self,
		remote: make(map[string]map[string]string),
	}
}

// OnChange registers a callback invoked when the remote indicators of a
// thread change.
func (c *TypingCoordinator) OnChange(fn func(threadID string)) {
	c.onChange = fn
}

// ThreadID returns the thread local typing is attributed to.
func (c *TypingCoordinator) ThreadID() string { return c.threadID }

// IsTyping reports whether typing:true is currently asserted.
func (c *TypingCoordinator) IsTyping() bool { return c.typing }

// SwitchThread stops typing in the previous thread before adopting threadID.
// Remote indicators are dropped.
func (c *TypingCoordinator) SwitchThread(threadID string) {
	if threadID == c.threadID {
		return
	}
	c.StopTyping()
	c.threadID = threadID
	c.lastEmit = time.Time{}
	c.clearRemote()
}

// DraftChanged reacts to the compose text changing.
func (c *TypingCoordinator) DraftChanged(text string) {
	if c.threadID == "" {
		return
	}
	if strings.TrimSpace(text) == "" {
		c.StopTyping()
		return
	}

	now := c.sched.Now()
	if !c.typing || now.Sub(c.lastEmit) >= KeepAliveInterval {
		if c.send(c.threadID, true) {
			c.lastEmit = now
		}
		c.typing = true
	}

	threadID := c.threadID
	c.sched.Schedule(keyTypingStop, StopDelay, func() {
		if c.typing && c.threadID == threadID {
			c.typing = false
			c.send(threadID, false)
		}
	})
}

// StopTyping signals typing:false right away if typing is asserted. Used on
// blur, send and an emptied draft.
func (c *TypingCoordinator) StopTyping() {
	c.sched.Cancel(keyTypingStop)
	if !c.typing {
		return
	}
	c.typing = false
	c.send(c.threadID, false)
}

// HandleRemote applies an inbound typing event. Own events are ignored.
func (c *TypingCoordinator) HandleRemote(p events.TypingPayload) {
	if p.UserID == "" || p.ThreadID == "" || p.UserID == c.self.ID {
		return
	}
	key := keyTypingDisplay + p.ThreadID + ":" + p.UserID

	if !p.IsTyping {
		c.sched.Cancel(key)
		c.removeRemote(p.ThreadID, p.UserID)
		return
	}

	users, ok := c.remote[p.ThreadID]
	if !ok {
		users = make(map[string]string)
		c.remote[p.ThreadID] = users
	}
	name := p.Name
	if name == "" {
		name = users[p.UserID]
	}
	prev, existed := users[p.UserID]
	users[p.UserID] = name

	threadID, userID := p.ThreadID, p.UserID
	c.sched.Schedule(key, DisplayTimeout, func() {
		c.removeRemote(threadID, userID)
	})
	if !existed || prev != name {
		c.changed(p.ThreadID)
	}
}

// Typers lists the remote users typing in threadID, ordered by name.
func (c *TypingCoordinator) Typers(threadID string) []TypingIndicator {
	users := c.remote[threadID]
	out := make([]TypingIndicator, 0, len(users))
	for id, name := range users {
		out = append(out, TypingIndicator{ThreadID: threadID, UserID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].UserID < out[j].UserID
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Reset drops all state and timers without emitting. Used on disconnect.
func (c *TypingCoordinator) Reset() {
	c.sched.Cancel(keyTypingStop)
	c.typing = false
	c.lastEmit = time.Time{}
	c.clearRemote()
}

func (c *TypingCoordinator) send(threadID string, typing bool) bool {
	if threadID == "" {
		return false
	}
	err := c.emit.Emit(events.EventTyping, events.TypingPayload{
		ThreadID: threadID,
		UserID:   c.self.ID,
		Name:     c.self.Name,
		IsTyping: typing,
	})
	if err != nil {
		c.log.Debug("typing emit failed", zap.String("thread_id", threadID), zap.Bool("is_typing", typing), zap.Error(err))
		return false
	}
	return true
}

func (c *TypingCoordinator) removeRemote(threadID, userID string) {
	users, ok := c.remote[threadID]
	if !ok {
		return
	}
	if _, ok := users[userID]; !ok {
		return
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(c.remote, threadID)
	}
	c.changed(threadID)
}

func (c *TypingCoordinator) clearRemote() {
	c.sched.CancelPrefix(keyTypingDisplay)
	threads := make([]string, 0, len(c.remote))
	for id := range c.remote {
		threads = append(threads, id)
	}
	c.remote = make(map[string]map[string]string)
	for _, id := range threads {
		c.changed(id)
	}
}

func (c *TypingCoordinator) changed(threadID string) {
	if c.onChange != nil {
		c.onChange(threadID)
	}
}
