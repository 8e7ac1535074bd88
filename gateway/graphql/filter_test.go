package graphql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AmrMohamed27/threadit-server-sub001/auth"
	"github.com/AmrMohamed27/threadit-server-sub001/errors"
	"github.com/AmrMohamed27/threadit-server-sub001/event"
)

// staticChecker answers membership from a fixed set.
type staticChecker struct {
	members map[int64]bool
	err     error
	calls   int
}

func (c *staticChecker) CheckChatParticipant(_ context.Context, userID, _ int64) (bool, error) {
	c.calls++
	if c.err != nil {
		return false, c.err
	}
	return c.members[userID], nil
}

func envelope(topic event.Topic, sender int64, participants ...int64) *event.Envelope {
	return &event.Envelope{
		Topic:          topic,
		SenderID:       sender,
		ChatID:         7,
		ParticipantIDs: participants,
	}
}

func TestDecideAnonymousNeverForwards(t *testing.T) {
	env := envelope(event.TopicNewMessage, 1, 1, 2)

	ok := Decide(context.Background(), env, auth.Anonymous(), nil, false)
	assert.False(t, ok)
}

func TestDecideSenderFastPathSkipsLookup(t *testing.T) {
	checker := &staticChecker{err: errors.ErrStorageUnavailable}
	env := envelope(event.TopicNewMessage, 42)

	ok := Decide(context.Background(), env, auth.User(42), checker, false)
	assert.True(t, ok)
	assert.Zero(t, checker.calls, "sender must be authorized without a lookup")
}

func TestDecideSnapshotIsAuthoritative(t *testing.T) {
	// Bob (2) is in the snapshot but no longer in current membership.
	checker := &staticChecker{members: map[int64]bool{1: true, 3: true}}
	env := envelope(event.TopicChatParticipantRemoved, 1, 1, 2, 3)
	env.Operation = &event.Operation{Kind: event.OpParticipantRemoved, Destructive: true}

	ok := Decide(context.Background(), env, auth.User(2), checker, false)
	assert.True(t, ok, "removed participant receives the event via the snapshot")
	assert.Zero(t, checker.calls)

	// Carol-the-outsider (9) is not in the snapshot, current state ignored.
	checker.members[9] = true
	assert.False(t, Decide(context.Background(), env, auth.User(9), checker, false))
}

func TestDecideFallsBackToMembershipLookup(t *testing.T) {
	checker := &staticChecker{members: map[int64]bool{2: true}}
	env := envelope(event.TopicUserTyping, 1)

	assert.True(t, Decide(context.Background(), env, auth.User(2), checker, false))
	assert.False(t, Decide(context.Background(), env, auth.User(3), checker, false))
}

func TestDecideLookupFailureDrops(t *testing.T) {
	checker := &staticChecker{err: errors.ErrStorageUnavailable}
	env := envelope(event.TopicNewMessage, 1)

	assert.False(t, Decide(context.Background(), env, auth.User(2), checker, false))
}

func TestDecideSharedChannelGuards(t *testing.T) {
	op := &event.Operation{Kind: event.OpChatUpdated}

	tests := []struct {
		name string
		env  func() *event.Envelope
		want bool
	}{
		{
			name: "well formed forwards",
			env: func() *event.Envelope {
				e := envelope(event.TopicChatUpdated, 1, 1, 2)
				e.Operation = op
				return e
			},
			want: true,
		},
		{
			name: "missing operation drops",
			env: func() *event.Envelope {
				return envelope(event.TopicChatUpdated, 1, 1, 2)
			},
			want: false,
		},
		{
			name: "empty snapshot drops",
			env: func() *event.Envelope {
				e := envelope(event.TopicChatUpdated, 1)
				e.Operation = op
				return e
			},
			want: false,
		},
		{
			name: "field errors drop even for the sender",
			env: func() *event.Envelope {
				e := envelope(event.TopicChatUpdated, 2, 1, 2)
				e.Operation = op
				e.Errors = []event.FieldError{{Field: "name", Message: "bad"}}
				return e
			},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(context.Background(), tt.env(), auth.User(2), nil, true)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecideMalformedEnvelopeDrops(t *testing.T) {
	assert.False(t, Decide(context.Background(), nil, auth.User(1), nil, false))

	bad := envelope(event.Topic("NOT_A_TOPIC"), 1, 1)
	assert.False(t, Decide(context.Background(), bad, auth.User(1), nil, false))
}

func TestDecideNoSnapshotNoChatDrops(t *testing.T) {
	env := envelope(event.TopicNewMessage, 1)
	env.ChatID = 0

	assert.False(t, Decide(context.Background(), env, auth.User(2), &staticChecker{}, false))
}
