package events

import "strings"

// Gateway fan-out channel prefixes
const (
	ChannelPrefixThread = "channel:thread:"
	ChannelPrefixUser   = "channel:user:"
	ChannelPattern      = "channel:*"
)

// ChannelThread is the fan-out channel of a thread room.
func ChannelThread(threadID string) string {
	return ChannelPrefixThread + threadID
}

// ChannelUser is the fan-out channel of every connection of a user.
func ChannelUser(userID string) string {
	return ChannelPrefixUser + userID
}

// ParseChannel splits a channel into its kind prefix and id.
func ParseChannel(channel string) (prefix, id string, ok bool) {
	for _, p := range []string{ChannelPrefixThread, ChannelPrefixUser} {
		if strings.HasPrefix(channel, p) {
			id = strings.TrimPrefix(channel, p)
			return p, id, id != ""
		}
	}
	return "", "", false
}
