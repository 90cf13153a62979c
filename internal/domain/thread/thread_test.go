package thread

import (
	"testing"
	"time"

	"hrchat/internal/domain"
	"hrchat/internal/domain/message"
	hrchat_errors "hrchat/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name   string
		thread Thread
		userID string
		want   string
	}{
		{
			name:   "group keeps stored name",
			thread: Thread{ID: "g1", Name: "Engineering Squad", Members: []Member{{ID: "1", Name: "A"}, {ID: "2", Name: "B"}}},
			userID: "1",
			want:   "Engineering Squad",
		},
		{
			name:   "direct resolves other member",
			thread: Thread{ID: "d1", IsDirect: true, Members: []Member{{ID: "1", Name: "A"}, {ID: "2", Name: "B"}}},
			userID: "1",
			want:   "B",
		},
		{
			name:   "group with pair name falls through to member",
			thread: Thread{ID: "g2", Name: "A & B", Members: []Member{{ID: "1", Name: "A"}, {ID: "2", Name: "B"}}},
			userID: "2",
			want:   "A",
		},
		{
			name:   "pair name split when members unknown",
			thread: Thread{ID: "d2", IsDirect: true, Name: "Alice & Bob", Members: []Member{{ID: "1", Name: "Alice"}}},
			userID: "1",
			want:   "Bob",
		},
		{
			name:   "unnamed other member does not shadow a named one",
			thread: Thread{ID: "d6", IsDirect: true, Members: []Member{{ID: "1", Name: "A"}, {ID: "3"}, {ID: "2", Name: "B"}}},
			userID: "1",
			want:   "B",
		},
		{
			name:   "unnamed other member falls through to pair split",
			thread: Thread{ID: "d5", IsDirect: true, Name: "Alice & Bob", Members: []Member{{ID: "1", Name: "Alice"}, {ID: "2"}}},
			userID: "1",
			want:   "Bob",
		},
		{
			name:   "raw name fallback",
			thread: Thread{ID: "d3", IsDirect: true, Name: "Payroll"},
			userID: "1",
			want:   "Payroll",
		},
		{
			name:   "unknown",
			thread: Thread{ID: "d4", IsDirect: true},
			userID: "1",
			want:   "Unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayName(tt.thread, tt.userID))
		})
	}
}

func TestResolver_UsesOwnNameForPairSplit(t *testing.T) {
	r := Resolver{UserID: "1", UserName: "Alice"}
	got := r.DisplayName(Thread{ID: "d", IsDirect: true, Name: "Alice & Bob"})
	assert.Equal(t, "Bob", got)
}

func TestResolver_Roster(t *testing.T) {
	r := Resolver{UserID: "1"}
	direct := Thread{IsDirect: true, Members: []Member{{ID: "1", Name: "Me"}, {ID: "2", Name: "You"}}}
	assert.Equal(t, []Member{{ID: "2", Name: "You"}}, r.Roster(direct))

	group := Thread{Members: []Member{{ID: "3", Name: "zed"}, {ID: "1", Name: "Me"}, {ID: "2", Name: "amy"}}}
	roster := r.Roster(group)
	require.Len(t, roster, 3)
	assert.Equal(t, "amy", roster[0].Name)
	assert.Equal(t, "zed", roster[2].Name)
}

func TestNormalize_UnreadFallbackPriority(t *testing.T) {
	tests := []struct {
		raw  domain.Raw
		want int
	}{
		{domain.Raw{"id": "t", "unreadCount": float64(4), "unread": float64(9)}, 4},
		{domain.Raw{"id": "t", "unread": float64(2), "unread_count": float64(7)}, 2},
		{domain.Raw{"id": "t", "unread_count": "3"}, 3},
		{domain.Raw{"id": "t", "unreadMessages": float64(5)}, 5},
		{domain.Raw{"id": "t"}, 0},
		{domain.Raw{"id": "t", "unreadCount": float64(-2)}, 0},
	}
	for _, tt := range tests {
		got, ok := Normalize(tt.raw)
		require.True(t, ok)
		assert.Equal(t, tt.want, got.UnreadCount)
	}
}

func TestNormalize_HeterogeneousShapes(t *testing.T) {
	raw, err := domain.DecodeRaw([]byte(`{
		"_id": 42,
		"type": "group",
		"title": "Launch Team",
		"participants": [
			{"user": {"_id": "u1", "fullName": "Ada"}, "role": "hr"},
			{"_id": "u2", "name": "Lin", "department": "IT", "status": "online"},
			{"_id": "u2", "name": "Lin again"}
		],
		"lastMessage": {"text": "hi", "createdAt": "2026-01-02T03:04:05Z", "sender": {"_id": "u1", "fullName": "Ada"}}
	}`))
	require.NoError(t, err)

	got, ok := Normalize(raw)
	require.True(t, ok)
	assert.Equal(t, "42", got.ID)
	assert.False(t, got.IsDirect)
	assert.Equal(t, "Launch Team", got.Name)
	require.Len(t, got.Members, 2)
	assert.Equal(t, Member{ID: "u1", Name: "Ada", Role: "hr"}, got.Members[0])
	assert.Equal(t, "IT", got.Members[1].Department)
	assert.Equal(t, "hi", got.LastMessagePreview)
	assert.Equal(t, "u1", got.LastSenderID)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), got.LastMessageTime.UTC())
}

func TestNormalize_RejectsMissingID(t *testing.T) {
	_, ok := Normalize(domain.Raw{"name": "x"})
	assert.False(t, ok)
	assert.Len(t, NormalizeAll([]domain.Raw{{"name": "x"}, {"id": "y"}}), 1)
}

func TestApplyPreview_IsMonotonic(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	th := Thread{ID: "t", Members: []Member{{ID: "2", Name: "Bea"}}}

	assert.True(t, th.ApplyPreview(message.Message{Text: "new", SenderID: "2", Time: base}))
	assert.Equal(t, "Bea", th.LastSenderName)

	assert.False(t, th.ApplyPreview(message.Message{Text: "old", Time: base.Add(-time.Minute)}))
	assert.Equal(t, "new", th.LastMessagePreview)

	assert.True(t, th.ApplyPreview(message.Message{Text: "same instant", Time: base}))
	assert.Equal(t, "same instant", th.LastMessagePreview)
}

func TestGroupSpec_Validate(t *testing.T) {
	g := GroupSpec{Name: "  Launch Team ", MemberIDs: []string{"2", " ", "3", "2"}}
	require.NoError(t, g.Validate())
	assert.Equal(t, "Launch Team", g.Name)
	assert.Equal(t, []string{"2", "3"}, g.MemberIDs)
	assert.Equal(t, []string{"1", "2", "3"}, g.WithCreator("1"))
	assert.Equal(t, []string{"2", "3"}, g.WithCreator("3"))

	empty := GroupSpec{Name: "  ", MemberIDs: []string{"2"}}
	err := empty.Validate()
	var vf *hrchat_errors.ValidationFailure
	require.ErrorAs(t, err, &vf)
	assert.Equal(t, "name", vf.Field)
	assert.ErrorIs(t, err, hrchat_errors.ErrInvalidInput)

	noMembers := GroupSpec{Name: "Ops", MemberIDs: []string{""}}
	err = noMembers.Validate()
	require.ErrorAs(t, err, &vf)
	assert.Equal(t, "memberIds", vf.Field)
}
