package websocket

import (
	"context"
	"testing"
	"time"

	"hrchat/internal/domain/thread"
	"hrchat/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)
	return h
}

func drain(c *Client) []events.Envelope {
	var out []events.Envelope
	for {
		select {
		case frame := <-c.Send:
			env, err := events.Decode(frame)
			if err == nil {
				out = append(out, env)
			}
		default:
			return out
		}
	}
}

func delivery(t *testing.T, channel, origin string) events.Delivery {
	env, err := events.NewEnvelope(events.EventTyping, events.TypingPayload{ThreadID: "t1", UserID: "1", IsTyping: true})
	require.NoError(t, err)
	return events.Delivery{Channel: channel, Origin: origin, Envelope: env}
}

func TestHub_RegisterSubscribesUserChannel(t *testing.T) {
	h := startHub(t)
	a := NewClient(nil, thread.Member{ID: "1", Name: "Asha"}, 10)
	h.Register(a)

	assert.Equal(t, 1, h.GetClientCount())
	assert.True(t, a.IsSubscribed(events.ChannelUser("1")))
	assert.Equal(t, 1, h.GetChannelSubscriberCount(events.ChannelUser("1")))
}

func TestHub_DeliverSkipsOrigin(t *testing.T) {
	h := startHub(t)
	a := NewClient(nil, thread.Member{ID: "1", Name: "Asha"}, 10)
	a2 := NewClient(nil, thread.Member{ID: "1", Name: "Asha"}, 10)
	b := NewClient(nil, thread.Member{ID: "2", Name: "Bo"}, 10)
	for _, c := range []*Client{a, a2, b} {
		h.Register(c)
		h.Subscribe(c, events.ChannelThread("t1"))
	}

	h.Deliver(delivery(t, events.ChannelThread("t1"), a.ID))
	assert.Empty(t, drain(a))
	assert.Len(t, drain(a2), 1)
	got := drain(b)
	require.Len(t, got, 1)
	assert.Equal(t, events.EventTyping, got[0].Event)

	h.Deliver(delivery(t, events.ChannelThread("t1"), ""))
	assert.Len(t, drain(a), 1)
	assert.Len(t, drain(b), 1)
}

func TestHub_UnsubscribeAndUnregister(t *testing.T) {
	h := startHub(t)
	a := NewClient(nil, thread.Member{ID: "1"}, 10)
	b := NewClient(nil, thread.Member{ID: "2"}, 10)
	h.Register(a)
	h.Register(b)
	h.Subscribe(a, events.ChannelThread("t1"))
	h.Subscribe(b, events.ChannelThread("t1"))

	h.Unsubscribe(a, events.ChannelThread("t1"))
	h.Deliver(delivery(t, events.ChannelThread("t1"), ""))
	assert.Empty(t, drain(a))
	assert.Len(t, drain(b), 1)

	h.Unregister(b)
	assert.Eventually(t, func() bool { return h.GetClientCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, h.GetChannelSubscriberCount(events.ChannelThread("t1")))
	_, open := <-b.Send
	assert.False(t, open)
}

type members map[string]bool

func (m members) CanJoin(_ context.Context, userID, threadID string) (bool, error) {
	return m[threadID+"/"+userID], nil
}

func TestChannelAuthorizer(t *testing.T) {
	a := NewChannelAuthorizer(members{"t1/1": true})
	ctx := context.Background()

	cases := []struct {
		user    string
		channel string
		want    bool
	}{
		{"1", events.ChannelThread("t1"), true},
		{"2", events.ChannelThread("t1"), false},
		{"1", events.ChannelUser("1"), true},
		{"1", events.ChannelUser("2"), false},
		{"1", "presence:1", false},
		{"1", "garbage", false},
	}
	for _, tc := range cases {
		got, err := a.CanSubscribe(ctx, tc.user, tc.channel)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s on %s", tc.user, tc.channel)
	}
}

func TestDecodeThreadID(t *testing.T) {
	assert.Equal(t, "t1", decodeThreadID([]byte(`"t1"`)))
	assert.Equal(t, "t1", decodeThreadID([]byte(`{"threadId":" t1 "}`)))
	assert.Equal(t, "", decodeThreadID([]byte(`42`)))
}
