package websocket

import (
	"context"

	"hrchat/internal/events"
)

// MembershipChecker is satisfied by *services.ChatService.
type MembershipChecker interface {
	CanJoin(ctx context.Context, userID, threadID string) (bool, error)
}

// ChannelAuthorizer handles authorization for WebSocket channel subscriptions
type ChannelAuthorizer struct {
	members MembershipChecker
}

func NewChannelAuthorizer(members MembershipChecker) *ChannelAuthorizer {
	return &ChannelAuthorizer{members: members}
}

// CanSubscribe checks if a user is authorized to subscribe to a channel
func (a *ChannelAuthorizer) CanSubscribe(ctx context.Context, userID string, channel string) (bool, error) {
	prefix, id, ok := events.ParseChannel(channel)
	if !ok {
		return false, nil
	}

	switch prefix {
	case events.ChannelPrefixUser:
		// User's own channel - always allowed
		return id == userID, nil
	case events.ChannelPrefixThread:
		return a.members.CanJoin(ctx, userID, id)
	}

	// Default deny
	return false, nil
}
