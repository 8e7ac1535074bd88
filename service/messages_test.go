package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmrMohamed27/threadit-server-sub001/event"
	"github.com/AmrMohamed27/threadit-server-sub001/storage"
)

func TestSendMessageDirectChatFansOut(t *testing.T) {
	f := newFixture()
	alice := f.seedUser("alice")
	bob := f.seedUser("bob")
	chat := f.chats.CreateChat(as(alice), "dm", []int64{bob}, false).Chat

	resp := f.msgs.SendMessage(as(alice), chat.ID, "hello", nil)
	require.Empty(t, resp.Errors)
	require.NotNil(t, resp.Message)

	topics := f.broker.topics()
	assert.Contains(t, topics, event.TopicNewMessage)
	assert.Contains(t, topics, event.TopicDirectMessage)
}

func TestSendMessageGroupChatSingleTopic(t *testing.T) {
	f := newFixture()
	alice := f.seedUser("alice")
	chat := f.chats.CreateChat(as(alice), "room", nil, true).Chat

	resp := f.msgs.SendMessage(as(alice), chat.ID, "hello", nil)
	require.Empty(t, resp.Errors)

	topics := f.broker.topics()
	assert.Contains(t, topics, event.TopicNewMessage)
	assert.NotContains(t, topics, event.TopicDirectMessage)
}

func TestSendMessageValidation(t *testing.T) {
	f := newFixture()
	alice := f.seedUser("alice")
	outsider := f.seedUser("outsider")
	chat := f.chats.CreateChat(as(alice), "room", nil, true).Chat

	tests := []struct {
		name   string
		run    func() *MessageResponse
		field  string
	}{
		{
			name:  "empty content",
			run:   func() *MessageResponse { return f.msgs.SendMessage(as(alice), chat.ID, "  ", nil) },
			field: "content",
		},
		{
			name:  "non participant",
			run:   func() *MessageResponse { return f.msgs.SendMessage(as(outsider), chat.ID, "hi", nil) },
			field: "chatId",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := tt.run()
			require.NotEmpty(t, resp.Errors)
			assert.Equal(t, tt.field, resp.Errors[0].Field)
		})
	}
}

func TestUpdateMessageSenderOnly(t *testing.T) {
	f := newFixture()
	alice := f.seedUser("alice")
	bob := f.seedUser("bob")
	chat := f.chats.CreateChat(as(alice), "dm", []int64{bob}, false).Chat
	msg := f.msgs.SendMessage(as(alice), chat.ID, "draft", nil).Message

	denied := f.msgs.UpdateMessage(as(bob), msg.ID, "hijacked")
	require.NotEmpty(t, denied.Errors)

	ok := f.msgs.UpdateMessage(as(alice), msg.ID, "final")
	require.Empty(t, ok.Errors)
	assert.Equal(t, "final", ok.Message.Content)

	topics := f.broker.topics()
	assert.Contains(t, topics, event.TopicMessageUpdated)
}

func TestDeleteMessagePublishesSnapshot(t *testing.T) {
	f := newFixture()
	alice := f.seedUser("alice")
	bob := f.seedUser("bob")
	chat := f.chats.CreateChat(as(alice), "dm", []int64{bob}, false).Chat
	msg := f.msgs.SendMessage(as(alice), chat.ID, "oops", nil).Message

	resp := f.msgs.DeleteMessage(as(alice), msg.ID)
	require.Empty(t, resp.Errors)
	assert.True(t, resp.Success)

	envs := f.broker.published()
	deleted := envs[len(envs)-1]
	assert.Equal(t, event.TopicMessageDeleted, deleted.Topic)
	assert.ElementsMatch(t, []int64{alice, bob}, deleted.ParticipantIDs)

	// The payload is the message as it was before deletion.
	var payload storage.Message
	require.NoError(t, deleted.DecodePayload(&payload))
	assert.Equal(t, msg.ID, payload.ID)
	assert.Equal(t, "oops", payload.Content)
}

func TestSetTypingPublishesWithoutStoring(t *testing.T) {
	f := newFixture()
	alice := f.seedUser("alice")
	bob := f.seedUser("bob")
	chat := f.chats.CreateChat(as(alice), "dm", []int64{bob}, false).Chat

	resp := f.msgs.SetTyping(as(alice), chat.ID, true)
	require.Empty(t, resp.Errors)

	envs := f.broker.published()
	typing := envs[len(envs)-1]
	assert.Equal(t, event.TopicUserTyping, typing.Topic)

	var payload event.TypingPayload
	require.NoError(t, typing.DecodePayload(&payload))
	assert.Equal(t, alice, payload.UserID)
	assert.True(t, payload.IsTyping)

	msgs := f.msgs.GetChatMessages(as(alice), chat.ID, 0)
	require.Empty(t, msgs.Errors)
	assert.Empty(t, msgs.Messages)
}
