// Package scheduler provides keyed, cancellable delayed tasks. At most one
// task is pending per key: scheduling a key again replaces the previous task.
package scheduler

import (
	"strings"
	"time"
)

// Scheduler is the timer surface used by the chat core.
type Scheduler interface {
	Now() time.Time
	Schedule(key string, after time.Duration, fn func())
	Cancel(key string)
	CancelPrefix(prefix string)
	CancelAll()
	Pending(key string) bool
}

type task struct {
	gen   uint64
	timer *time.Timer
}

// Loop runs tasks through post, which must hand the callback to the
// goroutine that owns the state the task touches. Schedule, Cancel and the
// posted callbacks all run on that goroutine, so Loop needs no locking.
type Loop struct {
	post  func(func())
	tasks map[string]task
	gen   uint64
}

// NewLoop returns a scheduler whose callbacks are delivered through post.
func NewLoop(post func(func())) *Loop {
	return &Loop{post: post, tasks: make(map[string]task)}
}

func (l *Loop) Now() time.Time { return time.Now() }

func (l *Loop) Schedule(key string, after time.Duration, fn func()) {
	l.Cancel(key)
	l.gen++
	gen := l.gen
	t := time.AfterFunc(after, func() {
		l.post(func() {
			// a fire racing a Cancel or reschedule is dropped here
			if cur, ok := l.tasks[key]; !ok || cur.gen != gen {
				return
			}
			delete(l.tasks, key)
			fn()
		})
	})
	l.tasks[key] = task{gen: gen, timer: t}
}

func (l *Loop) Cancel(key string) {
	if t, ok := l.tasks[key]; ok {
		t.timer.Stop()
		delete(l.tasks, key)
	}
}

func (l *Loop) CancelPrefix(prefix string) {
	for key := range l.tasks {
		if strings.HasPrefix(key, prefix) {
			l.Cancel(key)
		}
	}
}

func (l *Loop) CancelAll() {
	for key := range l.tasks {
		l.Cancel(key)
	}
}

func (l *Loop) Pending(key string) bool {
	_, ok := l.tasks[key]
	return ok
}
