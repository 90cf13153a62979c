package chatcore

import (
	"context"
	"strconv"
	"sync"
	"time"

	"hrchat/internal/domain/message"
	"hrchat/internal/domain/thread"
	"hrchat/internal/events"
	hrchat_errors "hrchat/pkg/errors"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type emitted struct {
	event   string
	payload any
}

type fakeTransport struct {
	mu      sync.Mutex
	emits   []emitted
	joins   []string
	joined  map[string]bool
	failing bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{joined: make(map[string]bool)}
}

func (f *fakeTransport) Emit(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return &hrchat_errors.TransportError{Op: "emit", Err: hrchat_errors.ErrNotConnected}
	}
	f.emits = append(f.emits, emitted{event: event, payload: payload})
	return nil
}

func (f *fakeTransport) JoinThread(threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.joined[threadID] {
		return nil
	}
	f.joined[threadID] = true
	f.joins = append(f.joins, threadID)
	return nil
}

func (f *fakeTransport) setFailing(v bool) {
	f.mu.Lock()
	f.failing = v
	f.mu.Unlock()
}

func (f *fakeTransport) typing() []events.TypingPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []events.TypingPayload
	for _, e := range f.emits {
		if p, ok := e.payload.(events.TypingPayload); ok && e.event == events.EventTyping {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeTransport) seen() []events.SeenPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []events.SeenPayload
	for _, e := range f.emits {
		if p, ok := e.payload.(events.SeenPayload); ok && e.event == events.EventSeen {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeTransport) joinedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.joins...)
}

func countTyping(ps []events.TypingPayload, typing bool) int {
	n := 0
	for _, p := range ps {
		if p.IsTyping == typing {
			n++
		}
	}
	return n
}

type fakeAPI struct {
	mu       sync.Mutex
	threads  []thread.Thread
	messages map[string][]message.Message
	sendErr  error
	listErr  error
	nextID   int
	created  []thread.GroupSpec
	direct   map[string]thread.Thread
}

func newFakeAPI(threads ...thread.Thread) *fakeAPI {
	return &fakeAPI{
		threads:  threads,
		messages: make(map[string][]message.Message),
		direct:   make(map[string]thread.Thread),
	}
}

func (f *fakeAPI) ListThreads(context.Context) ([]thread.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]thread.Thread(nil), f.threads...), nil
}

func (f *fakeAPI) ListMessages(_ context.Context, threadID string) ([]message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]message.Message(nil), f.messages[threadID]...), nil
}

func (f *fakeAPI) SendMessage(_ context.Context, threadID, text string) (message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return message.Message{}, f.sendErr
	}
	f.nextID++
	return message.Message{
		ID:       "srv-" + strconv.Itoa(f.nextID),
		ThreadID: threadID,
		SenderID: "1",
		Text:     text,
		Time:     epoch.Add(time.Duration(f.nextID) * time.Minute),
	}, nil
}

func (f *fakeAPI) StartDirect(_ context.Context, target string) (thread.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.direct[target]; ok {
		return t, nil
	}
	t := thread.Thread{
		ID:       "dm-" + target,
		IsDirect: true,
		Members:  []thread.Member{{ID: "1", Name: "Asha"}, {ID: target, Name: "User " + target}},
	}
	f.direct[target] = t
	return t, nil
}

func (f *fakeAPI) CreateGroup(_ context.Context, spec thread.GroupSpec) (thread.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, spec)
	t := thread.Thread{ID: "grp-" + spec.Name, Name: spec.Name}
	for _, id := range spec.MemberIDs {
		t.AddMember(thread.Member{ID: id, Name: "User " + id})
	}
	return t, nil
}

type memoryPrefs struct {
	mu   sync.Mutex
	last map[string]string
}

func (p *memoryPrefs) LastThread(_ context.Context, role, userID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last[role+":"+userID], nil
}

func (p *memoryPrefs) SetLastThread(_ context.Context, role, userID, threadID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		p.last = make(map[string]string)
	}
	p.last[role+":"+userID] = threadID
	return nil
}

func msg(id, threadID, sender, text string, minute int) message.Message {
	return message.Message{
		ID:       id,
		ThreadID: threadID,
		SenderID: sender,
		Text:     text,
		Time:     epoch.Add(time.Duration(minute) * time.Minute),
	}
}
