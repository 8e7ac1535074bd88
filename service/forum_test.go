package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmrMohamed27/threadit-server-sub001/event"
)

func TestCommentNotifiesPostAuthor(t *testing.T) {
	f := newFixture()
	author := f.seedUser("author")
	reader := f.seedUser("reader")

	comm := f.forum.CreateCommunity(as(author), "golang", "", false).Community
	post := f.forum.CreatePost(as(author), "title", "body", comm.ID).Post

	resp := f.forum.CreateComment(as(reader), post.ID, nil, "nice post")
	require.Empty(t, resp.Errors)

	topics := f.broker.topics()
	assert.Contains(t, topics, event.TopicReplyNotification)
	assert.Contains(t, topics, event.TopicPostActivity)

	for _, env := range f.broker.published() {
		if env.Topic == event.TopicReplyNotification {
			assert.Equal(t, []int64{author}, env.ParticipantIDs)
			var payload event.ReplyNotificationPayload
			require.NoError(t, env.DecodePayload(&payload))
			assert.Equal(t, reader, payload.AuthorID)
			assert.Equal(t, author, payload.RecipientID)
		}
	}
}

func TestCommentOnOwnPostStaysSilent(t *testing.T) {
	f := newFixture()
	author := f.seedUser("author")

	comm := f.forum.CreateCommunity(as(author), "golang", "", false).Community
	post := f.forum.CreatePost(as(author), "title", "body", comm.ID).Post

	resp := f.forum.CreateComment(as(author), post.ID, nil, "first!")
	require.Empty(t, resp.Errors)
	assert.Empty(t, f.broker.published())
}

func TestReplyNotifiesParentAuthor(t *testing.T) {
	f := newFixture()
	author := f.seedUser("author")
	commenter := f.seedUser("commenter")
	replier := f.seedUser("replier")

	comm := f.forum.CreateCommunity(as(author), "golang", "", false).Community
	post := f.forum.CreatePost(as(author), "title", "body", comm.ID).Post
	top := f.forum.CreateComment(as(commenter), post.ID, nil, "question").Comment

	resp := f.forum.CreateComment(as(replier), post.ID, &top.ID, "answer")
	require.Empty(t, resp.Errors)

	var found bool
	for _, env := range f.broker.published() {
		if env.Topic != event.TopicReplyNotification {
			continue
		}
		var payload event.ReplyNotificationPayload
		require.NoError(t, env.DecodePayload(&payload))
		if payload.AuthorID == replier {
			found = true
			assert.Equal(t, commenter, payload.RecipientID)
		}
	}
	assert.True(t, found, "reply notification addressed to parent author")
}

func TestVotePublishesScoreToAuthor(t *testing.T) {
	f := newFixture()
	author := f.seedUser("author")
	voter := f.seedUser("voter")

	comm := f.forum.CreateCommunity(as(author), "golang", "", false).Community
	post := f.forum.CreatePost(as(author), "title", "body", comm.ID).Post

	resp := f.forum.Vote(as(voter), post.ID, 1)
	require.Empty(t, resp.Errors)
	assert.Equal(t, 1, resp.Score)

	envs := f.broker.published()
	require.NotEmpty(t, envs)
	last := envs[len(envs)-1]
	assert.Equal(t, event.TopicPostActivity, last.Topic)
	assert.Equal(t, []int64{author}, last.ParticipantIDs)

	var payload event.PostActivityPayload
	require.NoError(t, last.DecodePayload(&payload))
	assert.Equal(t, "vote", payload.Kind)
	assert.Equal(t, 1, payload.Score)
}

func TestVoteValidation(t *testing.T) {
	f := newFixture()
	author := f.seedUser("author")
	comm := f.forum.CreateCommunity(as(author), "golang", "", false).Community
	post := f.forum.CreatePost(as(author), "title", "body", comm.ID).Post

	bad := f.forum.Vote(as(author), post.ID, 5)
	require.NotEmpty(t, bad.Errors)
	assert.Equal(t, "value", bad.Errors[0].Field)

	missing := f.forum.Vote(as(author), 9999, 1)
	require.NotEmpty(t, missing.Errors)
	assert.Equal(t, "postId", missing.Errors[0].Field)
}

func TestVoteClearAndOwnVoteSilent(t *testing.T) {
	f := newFixture()
	author := f.seedUser("author")
	comm := f.forum.CreateCommunity(as(author), "golang", "", false).Community
	post := f.forum.CreatePost(as(author), "title", "body", comm.ID).Post

	// Voting on your own post changes the score but stays silent.
	own := f.forum.Vote(as(author), post.ID, 1)
	require.Empty(t, own.Errors)
	assert.Equal(t, 1, own.Score)
	assert.Empty(t, f.broker.published())

	cleared := f.forum.Vote(as(author), post.ID, 0)
	require.Empty(t, cleared.Errors)
	assert.Equal(t, 0, cleared.Score)
}

func TestCreateCommunityDuplicateName(t *testing.T) {
	f := newFixture()
	alice := f.seedUser("alice")

	first := f.forum.CreateCommunity(as(alice), "golang", "", false)
	require.Empty(t, first.Errors)

	dup := f.forum.CreateCommunity(as(alice), "golang", "", false)
	require.NotEmpty(t, dup.Errors)
	assert.Equal(t, "name", dup.Errors[0].Field)
}
