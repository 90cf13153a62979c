package chatcore

import "hrchat/internal/domain/thread"

// Unread accounting. A thread's counter counts arrivals since it was last
// active and is held at zero while it is active.

func (r *ThreadRepository) arrive(t *thread.Thread) {
	if t.ID == r.active {
		t.UnreadCount = 0
		return
	}
	t.UnreadCount++
}

// Activate makes id the active thread. The counter of id is zeroed once, on
// the transition from inactive to active. Activating the already active
// thread is a no-op. An empty id deactivates.
func (r *ThreadRepository) Activate(id string) bool {
	if id == r.active {
		return false
	}
	r.active = id
	if id != "" {
		r.MarkActiveRead(id)
	}
	return true
}

// TotalUnread sums the counters of all threads.
func (r *ThreadRepository) TotalUnread() int {
	total := 0
	for _, t := range r.items {
		total += t.UnreadCount
	}
	return total
}

// UnreadThreads counts threads with at least one unread message.
func (r *ThreadRepository) UnreadThreads() int {
	n := 0
	for _, t := range r.items {
		if t.UnreadCount > 0 {
			n++
		}
	}
	return n
}
