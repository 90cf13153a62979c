package chatcore

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"hrchat/internal/domain"
	"hrchat/internal/domain/message"
	"hrchat/internal/domain/thread"
	"hrchat/internal/events"
	"hrchat/internal/scheduler"
	hrchat_errors "hrchat/pkg/errors"
	"hrchat/pkg/logger"

	"go.uber.org/zap"
)

// ErrClosed is returned by session calls after Run has returned.
var ErrClosed = errors.New("chat session closed")

// ReconnectingMessage is shown in the thread list slot while the connection
// is down.
const ReconnectingMessage = "Connection lost, reconnecting..."

// Change tells an observer which part of the session state moved.
type Change int

const (
	ChangeThreads Change = iota
	ChangeMessages
	ChangeTyping
	ChangeSeen
	ChangeErrors
	ChangeConnection
)

// ErrorSlots holds the last user visible failure per screen area.
type ErrorSlots struct {
	Threads  string
	Messages string
	Compose  string
}

type Options struct {
	Self thread.Member
	Role string
	API  API
	// Transport is required; typing and seen events go out through it.
	Transport Transport
	Prefs     LastThreadStore
	Logger    *logger.Logger
	// Scheduler defaults to real timers delivered on the session loop.
	Scheduler scheduler.Scheduler
	// OnChange runs on the session loop. It must not block or call back
	// into the session.
	OnChange func(Change)
}

// Session is one signed in user's chat state. All state is owned by the
// goroutine running Run; exported methods hand work to it.
type Session struct {
	self      thread.Member
	role      string
	api       API
	transport Transport
	prefs     LastThreadStore
	log       *logger.Logger
	onChange  func(Change)

	queue chan func()
	done  chan struct{}

	sched    scheduler.Scheduler
	threads  *ThreadRepository
	messages *MessageStore
	typing   *TypingCoordinator
	receipts *ReceiptTracker
	resolver thread.Resolver

	errs      ErrorSlots
	loading   bool
	connected bool
	openSeq   uint64

	known atomic.Pointer[[]string]
}

func NewSession(opts Options) *Session {
	s := &Session{
		self:      opts.Self,
		role:      opts.Role,
		api:       opts.API,
		transport: opts.Transport,
		prefs:     opts.Prefs,
		log:       logger.OrNop(opts.Logger).Named("chat"),
		onChange:  opts.OnChange,
		queue:     make(chan func(), 256),
		done:      make(chan struct{}),
		threads:   NewThreadRepository(),
		resolver:  thread.Resolver{UserID: opts.Self.ID, UserName: opts.Self.Name},
	}

	s.sched = opts.Scheduler
	if s.sched == nil {
		s.sched = scheduler.NewLoop(s.post)
	}
	s.messages = NewMessageStore(s.sched.Now)
	s.typing = NewTypingCoordinator(s.transport, s.sched, s.self, s.log)
	s.typing.OnChange(func(string) { s.notify(ChangeTyping) })
	s.receipts = NewReceiptTracker(s.transport, s.sched, s.self.ID, s.activeMessages, s.log)

	empty := []string{}
	s.known.Store(&empty)
	return s
}

// Run processes session work until ctx is done. Pending timers are dropped
// on return.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			s.sched.CancelAll()
			return
		case fn := <-s.queue:
			fn()
		}
	}
}

// Do runs fn on the session loop and waits for it.
func (s *Session) Do(fn func()) error {
	return s.call(fn)
}

// Bind routes inbound socket events from d into the session.
func (s *Session) Bind(d *events.Dispatcher) {
	d.OnMessage(s.HandleMessage)
	d.OnTyping(s.HandleTyping)
	d.OnSeen(s.HandleSeen)
	d.OnThreadCreated(s.HandleThreadCreated)
	d.OnError(s.HandleError)
}

func (s *Session) post(fn func()) {
	select {
	case s.queue <- fn:
	case <-s.done:
	}
}

func (s *Session) call(fn func()) error {
	finished := make(chan struct{})
	select {
	case s.queue <- func() { fn(); close(finished) }:
	case <-s.done:
		return ErrClosed
	}
	select {
	case <-finished:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

func (s *Session) notify(c Change) {
	if s.onChange != nil {
		s.onChange(c)
	}
}

func (s *Session) activeMessages() (string, []message.Message) {
	return s.messages.ThreadID(), s.messages.items
}

// Load fetches the thread list, joins every thread and reopens the thread
// that was active in the previous session for this role.
func (s *Session) Load(ctx context.Context) error {
	if err := s.call(func() {
		s.loading = true
		s.errs.Threads = ""
		s.notify(ChangeThreads)
	}); err != nil {
		return err
	}

	list, err := s.api.ListThreads(ctx)
	if cerr := s.call(func() {
		s.loading = false
		if err != nil {
			s.errs.Threads = describe(err)
			s.notify(ChangeErrors)
			return
		}
		s.threads.LoadInitial(list)
		s.joinAll()
		s.notify(ChangeThreads)
	}); cerr != nil {
		return cerr
	}
	if err != nil {
		s.log.Warn("load threads failed", zap.Error(err))
		return err
	}

	if s.prefs == nil {
		return nil
	}
	last, err := s.prefs.LastThread(ctx, s.role, s.self.ID)
	if err != nil {
		s.log.Debug("last thread lookup failed", zap.Error(err))
		return nil
	}
	if last == "" {
		return nil
	}
	var exists bool
	if err := s.call(func() { _, exists = s.threads.Get(last) }); err != nil {
		return err
	}
	if !exists {
		return nil
	}
	return s.Open(ctx, last)
}

// Open makes threadID the active thread and loads its messages.
func (s *Session) Open(ctx context.Context, threadID string) error {
	var (
		seq     uint64
		opened  bool
		missing bool
	)
	if err := s.call(func() {
		if _, ok := s.threads.Get(threadID); !ok {
			missing = true
			return
		}
		if !s.threads.Activate(threadID) && s.messages.ThreadID() == threadID {
			return
		}
		s.receipts.Cancel()
		s.typing.SwitchThread(threadID)
		s.messages.Reset(threadID)
		s.errs.Messages = ""
		s.openSeq++
		seq = s.openSeq
		opened = true
		s.join(threadID)
		s.notify(ChangeThreads)
		s.notify(ChangeMessages)
	}); err != nil {
		return err
	}
	if missing {
		return hrchat_errors.ErrNotFound
	}
	if !opened {
		return nil
	}

	if s.prefs != nil {
		if err := s.prefs.SetLastThread(ctx, s.role, s.self.ID, threadID); err != nil {
			s.log.Debug("persist last thread failed", zap.String("thread_id", threadID), zap.Error(err))
		}
	}

	msgs, err := s.api.ListMessages(ctx, threadID)
	if cerr := s.call(func() {
		if seq != s.openSeq {
			return
		}
		if err != nil {
			s.messages.loading = false
			s.errs.Messages = describe(err)
			s.notify(ChangeErrors)
			return
		}
		s.messages.LoadForThread(threadID, msgs)
		s.receipts.MessagesChanged()
		s.notify(ChangeMessages)
	}); cerr != nil {
		return cerr
	}
	if err != nil {
		s.log.Warn("load messages failed", zap.String("thread_id", threadID), zap.Error(err))
	}
	return err
}

// SetDraft updates the compose text. A keystroke counts as interaction.
func (s *Session) SetDraft(text string) {
	s.post(func() {
		s.messages.SetDraft(text)
		s.typing.DraftChanged(text)
		s.receipts.NoteInteraction()
	})
}

// Blur reports that the compose box lost focus.
func (s *Session) Blur() {
	s.post(s.typing.StopTyping)
}

// Interact reports a click, scroll or touch.
func (s *Session) Interact() {
	s.post(s.receipts.NoteInteraction)
}

// Send posts the draft to the active thread. The message is shown at once
// with a temporary id; on failure it is removed and the draft restored.
func (s *Session) Send(ctx context.Context) (string, error) {
	var (
		tempID, threadID, text string
		rejected               error
	)
	if err := s.call(func() {
		threadID = s.threads.Active()
		if threadID == "" {
			rejected = hrchat_errors.ErrNoActiveThread
			return
		}
		text = s.messages.Draft()
		if strings.TrimSpace(text) == "" {
			rejected = hrchat_errors.ErrEmptyMessage
			return
		}
		tempID = s.messages.AppendOptimistic(text, s.self)
		s.messages.SetDraft("")
		s.typing.StopTyping()
		s.errs.Compose = ""
		s.notify(ChangeMessages)
	}); err != nil {
		return "", err
	}
	if rejected != nil {
		return "", rejected
	}

	confirmed, err := s.api.SendMessage(ctx, threadID, text)
	if cerr := s.call(func() {
		if err != nil {
			s.messages.Rollback(tempID, threadID, text)
			s.errs.Compose = describe(err)
			s.notify(ChangeMessages)
			s.notify(ChangeErrors)
			return
		}
		if confirmed.ThreadID == "" {
			confirmed.ThreadID = threadID
		}
		if confirmed.Time.IsZero() {
			confirmed.Time = s.sched.Now()
		}
		if confirmed.SenderID == "" {
			confirmed.SenderID = s.self.ID
		}
		if s.messages.ThreadID() == threadID {
			s.messages.Confirm(tempID, confirmed)
		}
		s.threads.UpsertFromMessageEvent(confirmed, false)
		s.notify(ChangeMessages)
		s.notify(ChangeThreads)
	}); cerr != nil {
		return tempID, cerr
	}
	if err != nil {
		s.log.Warn("send failed", zap.String("thread_id", threadID), zap.String("temp_id", tempID), zap.Error(err))
		return tempID, &hrchat_errors.OptimisticSendFailure{TempID: tempID, Draft: text, Err: err}
	}
	return tempID, nil
}

// StartDirect opens the direct thread with targetUserID, creating it if
// needed.
func (s *Session) StartDirect(ctx context.Context, targetUserID string) (thread.Thread, error) {
	targetUserID = strings.TrimSpace(targetUserID)
	if targetUserID == "" || targetUserID == s.self.ID {
		err := hrchat_errors.NewValidation("targetUserId", "pick another user")
		s.setError(func(e *ErrorSlots) { e.Threads = describe(err) })
		return thread.Thread{}, err
	}
	t, err := s.api.StartDirect(ctx, targetUserID)
	if err != nil {
		s.setError(func(e *ErrorSlots) { e.Threads = describe(err) })
		return thread.Thread{}, err
	}
	t.IsDirect = true
	return s.adopt(ctx, t)
}

// CreateGroup validates and creates a named group including the current
// user, then opens it.
func (s *Session) CreateGroup(ctx context.Context, name string, memberIDs []string, meta map[string]any) (thread.Thread, error) {
	spec := thread.GroupSpec{Name: name, MemberIDs: memberIDs, Meta: meta}
	if err := spec.Validate(); err != nil {
		s.setError(func(e *ErrorSlots) { e.Threads = describe(err) })
		return thread.Thread{}, err
	}
	t, err := s.api.CreateGroup(ctx, spec)
	if err != nil {
		s.setError(func(e *ErrorSlots) { e.Threads = describe(err) })
		return thread.Thread{}, err
	}
	t.IsDirect = false
	if t.Name == "" {
		t.Name = spec.Name
	}
	t.AddMember(s.self)
	for _, id := range spec.MemberIDs {
		t.AddMember(thread.Member{ID: id})
	}
	return s.adopt(ctx, t)
}

func (s *Session) adopt(ctx context.Context, t thread.Thread) (thread.Thread, error) {
	var out thread.Thread
	if err := s.call(func() {
		out, _ = s.threads.CreateOrReuse(t)
		s.join(out.ID)
		s.errs.Threads = ""
		s.notify(ChangeThreads)
	}); err != nil {
		return thread.Thread{}, err
	}
	if err := s.Open(ctx, out.ID); err != nil {
		return out, err
	}
	return out, nil
}

func (s *Session) setError(fn func(*ErrorSlots)) {
	s.post(func() {
		fn(&s.errs)
		s.notify(ChangeErrors)
	})
}

// HandleMessage applies an inbound chat:message.
func (s *Session) HandleMessage(m message.Message) {
	s.post(func() { s.applyMessage(m) })
}

func (s *Session) applyMessage(m message.Message) {
	if m.ThreadID == "" {
		return
	}
	if m.Time.IsZero() {
		m.Time = s.sched.Now()
	}
	fromSelf := m.SenderID == s.self.ID
	if !s.threads.UpsertFromMessageEvent(m, !fromSelf) {
		s.log.Debug("message for unknown thread dropped", zap.String("thread_id", m.ThreadID))
		return
	}
	s.notify(ChangeThreads)

	changed := false
	if fromSelf {
		changed = s.messages.ReconcileEcho(m)
	}
	if !changed {
		changed = s.messages.AppendFromTransport(m)
	}
	if changed {
		s.receipts.MessagesChanged()
		s.notify(ChangeMessages)
	}
}

// HandleTyping applies an inbound chat:typing.
func (s *Session) HandleTyping(p events.TypingPayload) {
	s.post(func() { s.typing.HandleRemote(p) })
}

// HandleSeen applies an inbound chat:seen.
func (s *Session) HandleSeen(p events.SeenPayload) {
	s.post(func() {
		if s.receipts.HandleRemote(p) {
			s.notify(ChangeSeen)
		}
	})
}

// HandleThreadCreated adds a thread announced by the server, or a copy of
// one already known, and joins it.
func (s *Session) HandleThreadCreated(r domain.Raw) {
	if inner := r.Object("thread"); inner != nil {
		r = inner
	}
	t, ok := thread.Normalize(r)
	if !ok {
		return
	}
	s.post(func() {
		if _, created := s.threads.CreateOrReuse(t); created {
			s.join(t.ID)
			s.notify(ChangeThreads)
		}
	})
}

// HandleError logs a request the gateway rejected.
func (s *Session) HandleError(p events.ErrorPayload) {
	s.log.Warn("gateway rejected event", zap.String("event", p.Event), zap.String("code", p.Code), zap.String("message", p.Message))
}

// HandleConnection tracks the live connection. Going down drops typing
// state and pending timers; coming back up clears the reconnect notice.
func (s *Session) HandleConnection(connected bool) {
	s.post(func() {
		if connected == s.connected {
			return
		}
		s.connected = connected
		if !connected {
			s.typing.Reset()
			s.receipts.Cancel()
			s.errs.Threads = ReconnectingMessage
		} else if s.errs.Threads == ReconnectingMessage {
			s.errs.Threads = ""
		}
		s.notify(ChangeConnection)
		s.notify(ChangeErrors)
	})
}

// KnownThreadIDs lists every thread in the repository. Safe from any
// goroutine; the transport uses it to rejoin after a reconnect.
func (s *Session) KnownThreadIDs() []string {
	return append([]string(nil), (*s.known.Load())...)
}

func (s *Session) joinAll() {
	for _, id := range s.threads.IDs() {
		s.joinOne(id)
	}
	s.refreshKnown()
}

func (s *Session) join(threadID string) {
	s.joinOne(threadID)
	s.refreshKnown()
}

func (s *Session) joinOne(threadID string) {
	if s.transport == nil {
		return
	}
	if err := s.transport.JoinThread(threadID); err != nil {
		// rejoined from KnownThreadIDs once the connection is back
		s.log.Debug("join deferred", zap.String("thread_id", threadID), zap.Error(err))
	}
}

func (s *Session) refreshKnown() {
	ids := s.threads.IDs()
	s.known.Store(&ids)
}

// Threads returns the thread list in display order.
func (s *Session) Threads() []thread.Thread {
	var out []thread.Thread
	_ = s.call(func() { out = s.threads.Threads() })
	return out
}

// Thread returns one thread by id.
func (s *Session) Thread(id string) (thread.Thread, bool) {
	var (
		out thread.Thread
		ok  bool
	)
	_ = s.call(func() { out, ok = s.threads.Get(id) })
	return out, ok
}

// Active returns the open thread id.
func (s *Session) Active() string {
	var id string
	_ = s.call(func() { id = s.threads.Active() })
	return id
}

// Messages returns the messages of the open thread.
func (s *Session) Messages() []message.Message {
	var out []message.Message
	_ = s.call(func() { out = s.messages.Messages() })
	return out
}

func (s *Session) Draft() string {
	var d string
	_ = s.call(func() { d = s.messages.Draft() })
	return d
}

// Loading reports whether the thread list or the open thread is loading.
func (s *Session) Loading() (threads, messages bool) {
	_ = s.call(func() {
		threads = s.loading
		messages = s.messages.Loading()
	})
	return threads, messages
}

// Typers lists remote users typing in the open thread.
func (s *Session) Typers() []TypingIndicator {
	var out []TypingIndicator
	_ = s.call(func() { out = s.typing.Typers(s.threads.Active()) })
	return out
}

// SeenByOthers reports whether another member has seen message id.
func (s *Session) SeenByOthers(id string) bool {
	var ok bool
	_ = s.call(func() { ok = s.receipts.SeenByOthers(id) })
	return ok
}

func (s *Session) TotalUnread() int {
	var n int
	_ = s.call(func() { n = s.threads.TotalUnread() })
	return n
}

func (s *Session) Errors() ErrorSlots {
	var e ErrorSlots
	_ = s.call(func() { e = s.errs })
	return e
}

func (s *Session) Connected() bool {
	var c bool
	_ = s.call(func() { c = s.connected })
	return c
}

// DisplayName resolves what the current user sees as the name of t.
func (s *Session) DisplayName(t thread.Thread) string {
	return s.resolver.DisplayName(t)
}

// Roster lists the members shown for t.
func (s *Session) Roster(t thread.Thread) []thread.Member {
	return s.resolver.Roster(t)
}

// Self returns the signed in user.
func (s *Session) Self() thread.Member { return s.self }

func describe(err error) string {
	var (
		reqErr *hrchat_errors.RequestError
		valErr *hrchat_errors.ValidationFailure
	)
	switch {
	case errors.As(err, &valErr):
		return valErr.Message
	case errors.As(err, &reqErr) && reqErr.Message != "":
		return reqErr.Message
	case errors.Is(err, context.Canceled):
		return "request cancelled"
	}
	return err.Error()
}
