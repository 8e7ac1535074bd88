package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmrMohamed27/threadit-server-sub001/errors"
)

func TestUserLifecycle(t *testing.T) {
	b := New()
	ctx := context.Background()

	u, err := b.CreateUser(ctx, "alice", "alice@example.com", "hash")
	require.NoError(t, err)
	assert.NotZero(t, u.ID)

	byID, err := b.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	byEmail, err := b.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	byName, err := b.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)

	_, err = b.CreateUser(ctx, "alice", "other@example.com", "hash")
	assert.ErrorIs(t, err, errors.ErrAlreadyExists)

	_, err = b.GetUserByID(ctx, 9999)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestChatParticipants(t *testing.T) {
	b := New()
	ctx := context.Background()

	chat, err := b.CreateChat(ctx, "team", 1, []int64{2, 3}, true)
	require.NoError(t, err)

	ids, err := b.GetChatParticipants(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)

	ok, err := b.CheckChatParticipant(ctx, 2, chat.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.CheckChatParticipant(ctx, 4, chat.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.AddChatParticipant(ctx, chat.ID, 4))
	require.NoError(t, b.RemoveChatParticipant(ctx, chat.ID, 2))

	ids, err = b.GetChatParticipants(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 4}, ids)

	err = b.RemoveChatParticipant(ctx, chat.ID, 2)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestDeleteChatCascades(t *testing.T) {
	b := New()
	ctx := context.Background()

	chat, err := b.CreateChat(ctx, "dm", 1, []int64{2}, false)
	require.NoError(t, err)

	msg, err := b.CreateMessage(ctx, chat.ID, 1, "hello", nil)
	require.NoError(t, err)

	require.NoError(t, b.DeleteChat(ctx, chat.ID))

	_, err = b.GetChat(ctx, chat.ID)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	_, err = b.GetMessage(ctx, msg.ID)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	_, err = b.GetChatParticipants(ctx, chat.ID)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestChatsForUser(t *testing.T) {
	b := New()
	ctx := context.Background()

	c1, err := b.CreateChat(ctx, "a", 1, []int64{2}, false)
	require.NoError(t, err)
	_, err = b.CreateChat(ctx, "b", 3, []int64{4}, false)
	require.NoError(t, err)
	c3, err := b.CreateChat(ctx, "c", 2, []int64{1}, false)
	require.NoError(t, err)

	chats, err := b.GetChatsForUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, c1.ID, chats[0].ID)
	assert.Equal(t, c3.ID, chats[1].ID)
}

func TestMessageOrderingAndLimit(t *testing.T) {
	b := New()
	ctx := context.Background()

	chat, err := b.CreateChat(ctx, "room", 1, nil, true)
	require.NoError(t, err)

	for _, text := range []string{"one", "two", "three"} {
		_, err := b.CreateMessage(ctx, chat.ID, 1, text, nil)
		require.NoError(t, err)
	}

	msgs, err := b.GetChatMessages(ctx, chat.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "one", msgs[0].Content)
	assert.Equal(t, "three", msgs[2].Content)

	msgs, err = b.GetChatMessages(ctx, chat.ID, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "two", msgs[0].Content)
}

func TestMessageUpdateDelete(t *testing.T) {
	b := New()
	ctx := context.Background()

	chat, err := b.CreateChat(ctx, "room", 1, nil, true)
	require.NoError(t, err)
	msg, err := b.CreateMessage(ctx, chat.ID, 1, "draft", nil)
	require.NoError(t, err)

	updated, err := b.UpdateMessage(ctx, msg.ID, "final")
	require.NoError(t, err)
	assert.Equal(t, "final", updated.Content)

	require.NoError(t, b.DeleteMessage(ctx, msg.ID))
	assert.ErrorIs(t, b.DeleteMessage(ctx, msg.ID), errors.ErrNotFound)
}

func TestVotesAndScore(t *testing.T) {
	b := New()
	ctx := context.Background()

	comm, err := b.CreateCommunity(ctx, "golang", "go talk", 1, false)
	require.NoError(t, err)
	post, err := b.CreatePost(ctx, "title", "body", 1, comm.ID)
	require.NoError(t, err)

	_, err = b.SetVote(ctx, 1, post.ID, 1)
	require.NoError(t, err)
	_, err = b.SetVote(ctx, 2, post.ID, 1)
	require.NoError(t, err)
	_, err = b.SetVote(ctx, 3, post.ID, -1)
	require.NoError(t, err)

	score, err := b.PostScore(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, score)

	// re-vote replaces, zero removes
	_, err = b.SetVote(ctx, 3, post.ID, 1)
	require.NoError(t, err)
	_, err = b.SetVote(ctx, 2, post.ID, 0)
	require.NoError(t, err)

	score, err = b.PostScore(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, score)
}

func TestCommentThreading(t *testing.T) {
	b := New()
	ctx := context.Background()

	comm, err := b.CreateCommunity(ctx, "general", "", 1, false)
	require.NoError(t, err)
	post, err := b.CreatePost(ctx, "q", "body", 1, comm.ID)
	require.NoError(t, err)

	top, err := b.CreateComment(ctx, post.ID, 2, nil, "first")
	require.NoError(t, err)
	reply, err := b.CreateComment(ctx, post.ID, 3, &top.ID, "second")
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, top.ID, *reply.ParentID)

	missing := int64(9999)
	_, err = b.CreateComment(ctx, post.ID, 3, &missing, "orphan")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	all, err := b.ListComments(ctx, post.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
