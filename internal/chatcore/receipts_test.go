package chatcore

import (
	"testing"
	"time"

	"hrchat/internal/domain/message"
	"hrchat/internal/events"
	"hrchat/internal/scheduler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type receiptsFixture struct {
	tracker *ReceiptTracker
	tr      *fakeTransport
	clock   *scheduler.Manual
	msgs    []message.Message
	thread  string
}

func newReceipts() *receiptsFixture {
	f := &receiptsFixture{tr: newFakeTransport(), clock: scheduler.NewManual(epoch), thread: "a"}
	f.tracker = NewReceiptTracker(f.tr, f.clock, "1", func() (string, []message.Message) {
		return f.thread, f.msgs
	}, nil)
	return f
}

func TestReceipts_WaitForInteraction(t *testing.T) {
	f := newReceipts()
	f.msgs = []message.Message{msg("m1", "a", "2", "hi", 0)}

	f.tracker.MessagesChanged()
	f.clock.Advance(5 * time.Second)
	assert.Empty(t, f.tr.seen())

	f.tracker.NoteInteraction()
	f.clock.Advance(999 * time.Millisecond)
	assert.Empty(t, f.tr.seen())
	f.clock.Advance(time.Millisecond)

	got := f.tr.seen()
	require.Len(t, got, 1)
	assert.Equal(t, events.SeenPayload{ThreadID: "a", ReaderID: "1", SeenMessageIDs: []string{"m1"}}, got[0])
}

func TestReceipts_SettleCoalescesArrivals(t *testing.T) {
	f := newReceipts()
	f.tracker.NoteInteraction()
	f.clock.Advance(time.Second)

	for i, id := range []string{"m1", "m2", "m3"} {
		f.msgs = append(f.msgs, msg(id, "a", "2", "hi", i))
		f.tracker.MessagesChanged()
		f.clock.Advance(300 * time.Millisecond)
	}
	assert.Empty(t, f.tr.seen())

	f.clock.Advance(700 * time.Millisecond)
	got := f.tr.seen()
	require.Len(t, got, 1)
	assert.Equal(t, []string{"m1", "m2", "m3"}, got[0].SeenMessageIDs)
}

func TestReceipts_AtMostOncePerMessage(t *testing.T) {
	f := newReceipts()
	f.tracker.NoteInteraction()
	f.msgs = []message.Message{
		msg("m1", "a", "2", "hi", 0),
		msg("own", "a", "1", "mine", 1),
		{ID: "temp-1", ThreadID: "a", SenderID: "2", Sending: true},
	}
	f.tracker.MessagesChanged()
	f.clock.Advance(time.Second)

	f.msgs = append(f.msgs, msg("m1", "a", "2", "dup delivery", 0), msg("m2", "a", "3", "yo", 2))
	f.tracker.MessagesChanged()
	f.clock.Advance(time.Second)
	f.tracker.MessagesChanged()
	f.clock.Advance(time.Second)

	counts := map[string]int{}
	for _, p := range f.tr.seen() {
		for _, id := range p.SeenMessageIDs {
			counts[id]++
		}
	}
	assert.Equal(t, map[string]int{"m1": 1, "m2": 1}, counts)
	assert.True(t, f.tracker.Reported("a", "m2"))
	assert.False(t, f.tracker.Reported("a", "own"))
}

func TestReceipts_FailedEmitRetries(t *testing.T) {
	f := newReceipts()
	f.tracker.NoteInteraction()
	f.msgs = []message.Message{msg("m1", "a", "2", "hi", 0)}

	f.tr.setFailing(true)
	assert.Empty(t, f.tracker.Flush())
	assert.False(t, f.tracker.Reported("a", "m1"))

	f.tr.setFailing(false)
	assert.Equal(t, []string{"m1"}, f.tracker.Flush())
	assert.Empty(t, f.tracker.Flush())
}

func TestReceipts_CancelDropsPendingFlush(t *testing.T) {
	f := newReceipts()
	f.tracker.NoteInteraction()
	f.msgs = []message.Message{msg("m1", "a", "2", "hi", 0)}
	f.tracker.MessagesChanged()
	f.tracker.Cancel()

	f.clock.Advance(2 * time.Second)
	assert.Empty(t, f.tr.seen())
}

func TestReceipts_Remote(t *testing.T) {
	f := newReceipts()

	assert.False(t, f.tracker.HandleRemote(events.SeenPayload{ThreadID: "a", ReaderID: "1", SeenMessageIDs: []string{"m1"}}))
	assert.False(t, f.tracker.SeenByOthers("m1"))

	assert.True(t, f.tracker.HandleRemote(events.SeenPayload{ThreadID: "a", ReaderID: "2", SeenMessageIDs: []string{"m1", "m2"}}))
	assert.False(t, f.tracker.HandleRemote(events.SeenPayload{ThreadID: "a", ReaderID: "2", SeenMessageIDs: []string{"m1"}}))
	assert.True(t, f.tracker.SeenByOthers("m1"))
	assert.True(t, f.tracker.SeenByOthers("m2"))
	assert.False(t, f.tracker.SeenByOthers("m3"))
}
