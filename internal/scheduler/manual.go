package scheduler

import (
	"sort"
	"strings"
	"time"
)

type manualTask struct {
	key string
	at  time.Time
	seq uint64
	fn  func()
}

// Manual is a virtual clock scheduler. Tasks fire synchronously from Advance,
// in due order.
type Manual struct {
	now   time.Time
	seq   uint64
	tasks map[string]*manualTask
}

// NewManual starts the virtual clock at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start, tasks: make(map[string]*manualTask)}
}

func (m *Manual) Now() time.Time { return m.now }

func (m *Manual) Schedule(key string, after time.Duration, fn func()) {
	m.seq++
	m.tasks[key] = &manualTask{key: key, at: m.now.Add(after), seq: m.seq, fn: fn}
}

func (m *Manual) Cancel(key string) {
	delete(m.tasks, key)
}

func (m *Manual) CancelPrefix(prefix string) {
	for key := range m.tasks {
		if strings.HasPrefix(key, prefix) {
			delete(m.tasks, key)
		}
	}
}

func (m *Manual) CancelAll() {
	m.tasks = make(map[string]*manualTask)
}

func (m *Manual) Pending(key string) bool {
	_, ok := m.tasks[key]
	return ok
}

// Len returns the number of pending tasks.
func (m *Manual) Len() int { return len(m.tasks) }

// Advance moves the clock forward by d, firing every task that falls due.
// Tasks scheduled by a firing task run too if they are due within d.
func (m *Manual) Advance(d time.Duration) {
	end := m.now.Add(d)
	for {
		next := m.nextDue(end)
		if next == nil {
			break
		}
		delete(m.tasks, next.key)
		m.now = next.at
		next.fn()
	}
	m.now = end
}

func (m *Manual) nextDue(end time.Time) *manualTask {
	due := make([]*manualTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		if !t.at.After(end) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].seq < due[j].seq
		}
		return due[i].at.Before(due[j].at)
	})
	return due[0]
}
