package events

import (
	"context"
	"testing"
	"time"

	"hrchat/internal/domain"
	"hrchat/internal/domain/message"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_RoutesTypedPayloads(t *testing.T) {
	d := NewDispatcher()

	var gotMsg message.Message
	var gotTyping TypingPayload
	var gotSeen SeenPayload
	var gotThread domain.Raw
	d.OnMessage(func(m message.Message) { gotMsg = m })
	d.OnTyping(func(p TypingPayload) { gotTyping = p })
	d.OnSeen(func(p SeenPayload) { gotSeen = p })
	d.OnThreadCreated(func(r domain.Raw) { gotThread = r })

	frames := []string{
		`{"event":"chat:message","data":{"id":"m1","thread":"t1","senderId":"u2","text":"hi","time":"2026-01-01T00:00:00Z"}}`,
		`{"event":"chat:typing","data":{"threadId":"t1","userId":"u2","name":"Bea","isTyping":true}}`,
		`{"event":"chat:seen","data":{"threadId":"t1","readerId":"u2","seenMessageIds":["m1","m2"]}}`,
		`{"event":"chat:thread","data":{"_id":"t9","name":"Ops"}}`,
		`{"event":"presence","data":{}}`,
	}
	for _, f := range frames {
		env, err := Decode([]byte(f))
		require.NoError(t, err)
		require.NoError(t, d.Dispatch(env))
	}

	assert.Equal(t, "t1", gotMsg.ThreadID)
	assert.Equal(t, "hi", gotMsg.Text)
	assert.True(t, gotTyping.IsTyping)
	assert.Equal(t, "Bea", gotTyping.Name)
	assert.Equal(t, []string{"m1", "m2"}, gotSeen.SeenMessageIDs)
	assert.Equal(t, "t9", gotThread.ID("id", "_id"))
}

func TestDispatcher_NormalizesMessageVariants(t *testing.T) {
	d := NewDispatcher()
	var got []message.Message
	d.OnMessage(func(m message.Message) { got = append(got, m) })

	frames := []string{
		`{"event":"chat:message","data":{"id":"m1","threadId":"b","senderId":"2","text":"epoch","time":1767225600000}}`,
		`{"event":"chat:message","data":{"_id":"m2","thread":{"_id":"b","name":"Ops"},"sender":{"_id":"2","name":"Bo"},"content":"populated","createdAt":"2026-01-01T00:00:00Z"}}`,
		`{"event":"chat:message","data":{"id":7,"thread":"b","senderId":2,"text":"numeric"}}`,
	}
	for _, f := range frames {
		env, err := Decode([]byte(f))
		require.NoError(t, err)
		require.NoError(t, d.Dispatch(env))
	}

	require.Len(t, got, 3)
	assert.Equal(t, time.UnixMilli(1767225600000), got[0].Time)
	assert.Equal(t, "b", got[0].ThreadID)

	assert.Equal(t, "m2", got[1].ID)
	assert.Equal(t, "b", got[1].ThreadID)
	assert.Equal(t, "Bo", got[1].SenderName)
	assert.Equal(t, "populated", got[1].Text)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), got[1].Time.UTC())

	assert.Equal(t, "7", got[2].ID)
	assert.Equal(t, "2", got[2].SenderID)
}

func TestDispatcher_MessageWithoutID(t *testing.T) {
	d := NewDispatcher()
	called := false
	d.OnMessage(func(message.Message) { called = true })
	err := d.Dispatch(Envelope{Event: EventMessage, Data: []byte(`{"thread":"b","text":"hi"}`)})
	assert.Error(t, err)
	assert.False(t, called)
}

func TestDispatcher_BadPayload(t *testing.T) {
	d := NewDispatcher()
	err := d.Dispatch(Envelope{Event: EventTyping, Data: []byte(`"nope"`)})
	assert.Error(t, err)
}

func TestDecode_RequiresEventName(t *testing.T) {
	_, err := Decode([]byte(`{"data":1}`))
	assert.Error(t, err)
}

func TestEncodeRoundTrip(t *testing.T) {
	frame, err := Encode(EventJoinThread, "t1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"joinThread","data":"t1"}`, string(frame))
}

func TestParseChannel(t *testing.T) {
	prefix, id, ok := ParseChannel(ChannelThread("abc"))
	assert.True(t, ok)
	assert.Equal(t, ChannelPrefixThread, prefix)
	assert.Equal(t, "abc", id)

	_, _, ok = ParseChannel("channel:system:outbox")
	assert.False(t, ok)
}

func TestLocalBus(t *testing.T) {
	bus := NewLocalBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Delivery, 1)
	go func() { _ = bus.Run(ctx, func(d Delivery) { got <- d }) }()

	require.Eventually(t, func() bool {
		_ = bus.Publish(ctx, Delivery{Channel: ChannelUser("u1"), Envelope: Envelope{Event: EventThreadCreated}})
		select {
		case d := <-got:
			return d.Channel == "channel:user:u1"
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}
