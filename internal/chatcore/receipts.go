package chatcore

import (
	"time"

	"hrchat/internal/domain/message"
	"hrchat/internal/events"
	"hrchat/internal/scheduler"
	"hrchat/pkg/logger"

	"go.uber.org/zap"
)

// SettleDelay coalesces rapid message list changes into one seen batch.
const SettleDelay = 1000 * time.Millisecond

const keySeenFlush = "seen:flush"

// MessageSource yields the active thread and its loaded messages.
type MessageSource func() (threadID string, msgs []message.Message)

// ReceiptTracker reports displayed messages as seen, at most once per
// message id, and records receipts reported by other members.
type ReceiptTracker struct {
	emit   Emitter
	sched  scheduler.Scheduler
	log    *logger.Logger
	selfID string
	source MessageSource

	interacted bool
	// thread id -> message ids already reported
	reported map[string]map[string]struct{}
	// message id -> reader ids
	seenBy map[string]map[string]struct{}
}

func NewReceiptTracker(emit Emitter, sched scheduler.Scheduler, selfID string, source MessageSource, log *logger.Logger) *ReceiptTracker {
	return &ReceiptTracker{
		emit:     emit,
		sched:    sched,
		log:      logger.OrNop(log),
		selfID:   selfID,
		source:   source,
		reported: make(map[string]map[string]struct{}),
		seenBy:   make(map[string]map[string]struct{}),
	}
}

// NoteInteraction records a real user interaction. The first one arms a
// flush for whatever is already on screen.
func (r *ReceiptTracker) NoteInteraction() {
	if r.interacted {
		return
	}
	r.interacted = true
	if !r.sched.Pending(keySeenFlush) {
		r.sched.Schedule(keySeenFlush, SettleDelay, r.flush)
	}
}

// Interacted reports whether NoteInteraction was ever called.
func (r *ReceiptTracker) Interacted() bool { return r.interacted }

// MessagesChanged restarts the settle delay.
func (r *ReceiptTracker) MessagesChanged() {
	r.sched.Schedule(keySeenFlush, SettleDelay, r.flush)
}

// Cancel drops a pending flush. Used on thread switch and disconnect.
func (r *ReceiptTracker) Cancel() {
	r.sched.Cancel(keySeenFlush)
}

// Flush reports unseen messages of the active thread immediately, provided
// the user has interacted. It returns the ids emitted.
func (r *ReceiptTracker) Flush() []string {
	r.sched.Cancel(keySeenFlush)
	return r.collectAndEmit()
}

func (r *ReceiptTracker) flush() {
	r.collectAndEmit()
}

func (r *ReceiptTracker) collectAndEmit() []string {
	if !r.interacted || r.source == nil {
		return nil
	}
	threadID, msgs := r.source()
	if threadID == "" {
		return nil
	}
	done := r.reported[threadID]

	var ids []string
	batch := make(map[string]struct{})
	for _, m := range msgs {
		if m.SenderID == r.selfID || m.Sending || m.IsTemp() || m.ID == "" {
			continue
		}
		if _, ok := done[m.ID]; ok {
			continue
		}
		if _, ok := batch[m.ID]; ok {
			continue
		}
		batch[m.ID] = struct{}{}
		ids = append(ids, m.ID)
	}
	if len(ids) == 0 {
		return nil
	}

	err := r.emit.Emit(events.EventSeen, events.SeenPayload{
		ThreadID:       threadID,
		ReaderID:       r.selfID,
		SeenMessageIDs: ids,
	})
	if err != nil {
		// ids stay unreported and go out with the next flush
		r.log.Debug("seen emit failed", zap.String("thread_id", threadID), zap.Int("count", len(ids)), zap.Error(err))
		return nil
	}

	if done == nil {
		done = make(map[string]struct{}, len(ids))
		r.reported[threadID] = done
	}
	for _, id := range ids {
		done[id] = struct{}{}
	}
	return ids
}

// Reported reports whether id was already emitted as seen for threadID.
func (r *ReceiptTracker) Reported(threadID, id string) bool {
	_, ok := r.reported[threadID][id]
	return ok
}

// HandleRemote records a receipt batch from another reader.
func (r *ReceiptTracker) HandleRemote(p events.SeenPayload) bool {
	if p.ReaderID == "" || p.ReaderID == r.selfID {
		return false
	}
	changed := false
	for _, id := range p.SeenMessageIDs {
		if id == "" {
			continue
		}
		readers, ok := r.seenBy[id]
		if !ok {
			readers = make(map[string]struct{})
			r.seenBy[id] = readers
		}
		if _, ok := readers[p.ReaderID]; !ok {
			readers[p.ReaderID] = struct{}{}
			changed = true
		}
	}
	return changed
}

// SeenByOthers reports whether any other member has seen message id.
func (r *ReceiptTracker) SeenByOthers(id string) bool {
	return len(r.seenBy[id]) > 0
}
