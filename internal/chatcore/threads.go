package chatcore

import (
	"hrchat/internal/domain/message"
	"hrchat/internal/domain/thread"
)

// ThreadRepository is the client side cache of the thread list. Order is the
// initial load order with newly created threads in front; arrivals never
// reorder it.
type ThreadRepository struct {
	items   []*thread.Thread
	byID    map[string]*thread.Thread
	applied map[string]*idWindow
	active  string
}

func NewThreadRepository() *ThreadRepository {
	return &ThreadRepository{
		byID:    make(map[string]*thread.Thread),
		applied: make(map[string]*idWindow),
	}
}

// appliedWindow bounds how many message ids per thread are remembered for
// duplicate suppression.
const appliedWindow = 256

// idWindow is a fixed size FIFO set of ids.
type idWindow struct {
	seen  map[string]struct{}
	order []string
}

// add records id and reports whether it was new.
func (w *idWindow) add(id string) bool {
	if _, ok := w.seen[id]; ok {
		return false
	}
	if len(w.order) == appliedWindow {
		delete(w.seen, w.order[0])
		w.order = w.order[1:]
	}
	w.seen[id] = struct{}{}
	w.order = append(w.order, id)
	return true
}

// LoadInitial replaces the collection. Duplicate ids keep the first entry.
func (r *ThreadRepository) LoadInitial(threads []thread.Thread) {
	r.items = make([]*thread.Thread, 0, len(threads))
	r.byID = make(map[string]*thread.Thread, len(threads))
	r.applied = make(map[string]*idWindow, len(threads))
	for _, t := range threads {
		if t.ID == "" {
			continue
		}
		if _, dup := r.byID[t.ID]; dup {
			continue
		}
		c := t.Clone()
		if c.UnreadCount < 0 || c.ID == r.active {
			c.UnreadCount = 0
		}
		r.items = append(r.items, &c)
		r.byID[c.ID] = &c
	}
}

// UpsertFromMessageEvent applies an inbound message to its thread. Messages
// for threads not in the list are dropped. countUnread is false for the
// user's own messages. A message id already applied to the thread is
// accepted without touching the counter or the preview again.
func (r *ThreadRepository) UpsertFromMessageEvent(m message.Message, countUnread bool) bool {
	t, ok := r.byID[m.ThreadID]
	if !ok {
		return false
	}
	if !r.markApplied(t.ID, m.ID) {
		return true
	}
	if countUnread {
		r.arrive(t)
	}
	t.ApplyPreview(m)
	return true
}

func (r *ThreadRepository) markApplied(threadID, id string) bool {
	if id == "" {
		return true
	}
	w, ok := r.applied[threadID]
	if !ok {
		w = &idWindow{seen: make(map[string]struct{})}
		r.applied[threadID] = w
	}
	return w.add(id)
}

// MarkActiveRead zeroes the unread counter of id. Returns false when it was
// already zero or the thread is unknown.
func (r *ThreadRepository) MarkActiveRead(id string) bool {
	t, ok := r.byID[id]
	if !ok || t.UnreadCount == 0 {
		return false
	}
	t.UnreadCount = 0
	return true
}

// CreateOrReuse inserts t at the head unless a thread with its id exists, in
// which case the existing entry is returned untouched.
func (r *ThreadRepository) CreateOrReuse(t thread.Thread) (thread.Thread, bool) {
	if existing, ok := r.byID[t.ID]; ok {
		return existing.Clone(), false
	}
	c := t.Clone()
	if c.ID == r.active {
		c.UnreadCount = 0
	}
	r.items = append([]*thread.Thread{&c}, r.items...)
	r.byID[c.ID] = &c
	return c.Clone(), true
}

// Get returns a copy of the thread with id.
func (r *ThreadRepository) Get(id string) (thread.Thread, bool) {
	t, ok := r.byID[id]
	if !ok {
		return thread.Thread{}, false
	}
	return t.Clone(), true
}

// Threads returns copies of all threads in list order.
func (r *ThreadRepository) Threads() []thread.Thread {
	out := make([]thread.Thread, 0, len(r.items))
	for _, t := range r.items {
		out = append(out, t.Clone())
	}
	return out
}

// IDs returns all thread ids in list order.
func (r *ThreadRepository) IDs() []string {
	out := make([]string, 0, len(r.items))
	for _, t := range r.items {
		out = append(out, t.ID)
	}
	return out
}

func (r *ThreadRepository) Len() int { return len(r.items) }

// Active returns the id of the active thread, empty when none is open.
func (r *ThreadRepository) Active() string { return r.active }
