package service

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmrMohamed27/threadit-server-sub001/errors"
	"github.com/AmrMohamed27/threadit-server-sub001/event"
)

func TestPublisherFansOutToEachTopic(t *testing.T) {
	captured := &capturingBroker{}
	pub := NewPublisher(captured, slog.Default())

	pub.Publish(context.Background(), Event{
		Topics:         []event.Topic{event.TopicNewMessage, event.TopicDirectMessage},
		Payload:        map[string]string{"content": "hi"},
		SenderID:       1,
		ChatID:         7,
		ParticipantIDs: []int64{1, 2},
	})

	envs := captured.published()
	require.Len(t, envs, 2)
	assert.Equal(t, event.TopicNewMessage, envs[0].Topic)
	assert.Equal(t, event.TopicDirectMessage, envs[1].Topic)
	for _, env := range envs {
		assert.Equal(t, int64(1), env.SenderID)
		assert.Equal(t, int64(7), env.ChatID)
		assert.Equal(t, []int64{1, 2}, env.ParticipantIDs)
		assert.NotEmpty(t, env.Payload)
	}
}

func TestPublisherSkipsFailedMutations(t *testing.T) {
	captured := &capturingBroker{}
	pub := NewPublisher(captured, slog.Default())

	pub.Publish(context.Background(), Event{
		Topics:   []event.Topic{event.TopicNewMessage},
		SenderID: 1,
		ChatID:   7,
		Errors:   []event.FieldError{{Field: "content", Message: "empty"}},
	})

	assert.Empty(t, captured.published())
}

func TestPublisherSwallowsBrokerErrors(t *testing.T) {
	captured := &capturingBroker{err: errors.ErrNoConnection}
	pub := NewPublisher(captured, slog.Default())

	// Must not panic or propagate anything.
	pub.Publish(context.Background(), Event{
		Topics:         []event.Topic{event.TopicNewMessage},
		Payload:        map[string]string{"content": "hi"},
		SenderID:       1,
		ChatID:         7,
		ParticipantIDs: []int64{1},
	})

	assert.Empty(t, captured.published())
}

func TestPublisherSkipsNilPayload(t *testing.T) {
	captured := &capturingBroker{}
	pub := NewPublisher(captured, slog.Default())

	pub.Publish(context.Background(), Event{
		Topics:         []event.Topic{event.TopicUserTyping},
		SenderID:       1,
		ChatID:         7,
		ParticipantIDs: []int64{1},
	})

	envs := captured.published()
	require.Len(t, envs, 1)
	assert.Empty(t, envs[0].Payload)
}
