// Package memory provides an in-memory storage backend. It backs unit
// tests and single-process development; production uses the postgres
// backend.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/AmrMohamed27/threadit-server-sub001/errors"
	"github.com/AmrMohamed27/threadit-server-sub001/storage"
)

type participantKey struct {
	chatID int64
	userID int64
}

type voteKey struct {
	userID int64
	postID int64
}

// Backend is a mutex-guarded in-memory implementation of storage.Backend.
type Backend struct {
	mu sync.RWMutex

	nextID int64

	users        map[int64]*storage.User
	chats        map[int64]*storage.Chat
	messages     map[int64]*storage.Message
	communities  map[int64]*storage.Community
	posts        map[int64]*storage.Post
	comments     map[int64]*storage.Comment
	participants map[participantKey]struct{}
	votes        map[voteKey]*storage.Vote
}

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{
		users:        make(map[int64]*storage.User),
		chats:        make(map[int64]*storage.Chat),
		messages:     make(map[int64]*storage.Message),
		communities:  make(map[int64]*storage.Community),
		posts:        make(map[int64]*storage.Post),
		comments:     make(map[int64]*storage.Comment),
		participants: make(map[participantKey]struct{}),
		votes:        make(map[voteKey]*storage.Vote),
	}
}

func (b *Backend) nextSeq() int64 {
	b.nextID++
	return b.nextID
}

// CreateUser stores a new account.
func (b *Backend) CreateUser(_ context.Context, username, email, passwordHash string) (*storage.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, u := range b.users {
		if u.Username == username || u.Email == email {
			return nil, errors.ErrAlreadyExists
		}
	}

	now := time.Now().UTC()
	u := &storage.User{
		ID:           b.nextSeq(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	b.users[u.ID] = u

	cp := *u
	return &cp, nil
}

// GetUserByID looks up an account by ID.
func (b *Backend) GetUserByID(_ context.Context, id int64) (*storage.User, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	u, ok := b.users[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// GetUserByEmail looks up an account by email.
func (b *Backend) GetUserByEmail(_ context.Context, email string) (*storage.User, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, u := range b.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errors.ErrNotFound
}

// GetUserByUsername looks up an account by username.
func (b *Backend) GetUserByUsername(_ context.Context, username string) (*storage.User, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, u := range b.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errors.ErrNotFound
}

// CreateChat stores a chat and its initial participant set. The creator is
// always a participant regardless of the given list.
func (b *Backend) CreateChat(_ context.Context, name string, creatorID int64, participantIDs []int64, isGroup bool) (*storage.Chat, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now().UTC()
	c := &storage.Chat{
		ID:          b.nextSeq(),
		Name:        name,
		CreatorID:   creatorID,
		IsGroupChat: isGroup,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	b.chats[c.ID] = c

	b.participants[participantKey{c.ID, creatorID}] = struct{}{}
	for _, id := range participantIDs {
		b.participants[participantKey{c.ID, id}] = struct{}{}
	}

	cp := *c
	return &cp, nil
}

// GetChat looks up a chat by ID.
func (b *Backend) GetChat(_ context.Context, id int64) (*storage.Chat, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	c, ok := b.chats[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// UpdateChat renames a chat.
func (b *Backend) UpdateChat(_ context.Context, id int64, name string) (*storage.Chat, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.chats[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	c.Name = name
	c.UpdatedAt = time.Now().UTC()
	cp := *c
	return &cp, nil
}

// DeleteChat removes a chat, its messages, and its participant relation.
func (b *Backend) DeleteChat(_ context.Context, id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.chats[id]; !ok {
		return errors.ErrNotFound
	}
	delete(b.chats, id)

	for key := range b.participants {
		if key.chatID == id {
			delete(b.participants, key)
		}
	}
	for mid, m := range b.messages {
		if m.ChatID == id {
			delete(b.messages, mid)
		}
	}
	return nil
}

// GetChatsForUser lists chats the user participates in.
func (b *Backend) GetChatsForUser(_ context.Context, userID int64) ([]*storage.Chat, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var chats []*storage.Chat
	for key := range b.participants {
		if key.userID != userID {
			continue
		}
		if c, ok := b.chats[key.chatID]; ok {
			cp := *c
			chats = append(chats, &cp)
		}
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i].ID < chats[j].ID })
	return chats, nil
}

// GetChatParticipants returns the participant userIDs of a chat.
func (b *Backend) GetChatParticipants(_ context.Context, chatID int64) ([]int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, ok := b.chats[chatID]; !ok {
		return nil, errors.ErrNotFound
	}

	var ids []int64
	for key := range b.participants {
		if key.chatID == chatID {
			ids = append(ids, key.userID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// CheckChatParticipant reports whether userID participates in chatID.
func (b *Backend) CheckChatParticipant(_ context.Context, userID, chatID int64) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, ok := b.participants[participantKey{chatID, userID}]
	return ok, nil
}

// AddChatParticipant adds a user to a chat. Adding twice is a no-op.
func (b *Backend) AddChatParticipant(_ context.Context, chatID, userID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.chats[chatID]; !ok {
		return errors.ErrNotFound
	}
	b.participants[participantKey{chatID, userID}] = struct{}{}
	return nil
}

// RemoveChatParticipant removes a user from a chat.
func (b *Backend) RemoveChatParticipant(_ context.Context, chatID, userID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := participantKey{chatID, userID}
	if _, ok := b.participants[key]; !ok {
		return errors.ErrNotFound
	}
	delete(b.participants, key)
	return nil
}

// CreateMessage stores a message.
func (b *Backend) CreateMessage(_ context.Context, chatID, senderID int64, content string, media *string) (*storage.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.chats[chatID]; !ok {
		return nil, errors.ErrNotFound
	}

	now := time.Now().UTC()
	m := &storage.Message{
		ID:        b.nextSeq(),
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		Media:     media,
		CreatedAt: now,
		UpdatedAt: now,
	}
	b.messages[m.ID] = m

	cp := *m
	return &cp, nil
}

// GetMessage looks up a message by ID.
func (b *Backend) GetMessage(_ context.Context, id int64) (*storage.Message, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	m, ok := b.messages[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

// GetChatMessages lists messages in a chat, oldest first.
func (b *Backend) GetChatMessages(_ context.Context, chatID int64, limit int) ([]*storage.Message, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var msgs []*storage.Message
	for _, m := range b.messages {
		if m.ChatID == chatID {
			cp := *m
			msgs = append(msgs, &cp)
		}
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID })
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// UpdateMessage edits a message's content.
func (b *Backend) UpdateMessage(_ context.Context, id int64, content string) (*storage.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	m, ok := b.messages[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	m.Content = content
	m.UpdatedAt = time.Now().UTC()
	cp := *m
	return &cp, nil
}

// DeleteMessage removes a message.
func (b *Backend) DeleteMessage(_ context.Context, id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.messages[id]; !ok {
		return errors.ErrNotFound
	}
	delete(b.messages, id)
	return nil
}

// CreateCommunity stores a community.
func (b *Backend) CreateCommunity(_ context.Context, name, description string, creatorID int64, isPrivate bool) (*storage.Community, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, c := range b.communities {
		if c.Name == name {
			return nil, errors.ErrAlreadyExists
		}
	}

	c := &storage.Community{
		ID:          b.nextSeq(),
		Name:        name,
		Description: description,
		CreatorID:   creatorID,
		IsPrivate:   isPrivate,
		CreatedAt:   time.Now().UTC(),
	}
	b.communities[c.ID] = c

	cp := *c
	return &cp, nil
}

// ListCommunities lists all communities.
func (b *Backend) ListCommunities(_ context.Context) ([]*storage.Community, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []*storage.Community
	for _, c := range b.communities {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreatePost stores a post.
func (b *Backend) CreatePost(_ context.Context, title, content string, authorID, communityID int64) (*storage.Post, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.communities[communityID]; !ok {
		return nil, errors.ErrNotFound
	}

	now := time.Now().UTC()
	p := &storage.Post{
		ID:          b.nextSeq(),
		Title:       title,
		Content:     content,
		AuthorID:    authorID,
		CommunityID: communityID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	b.posts[p.ID] = p

	cp := *p
	return &cp, nil
}

// GetPost looks up a post by ID.
func (b *Backend) GetPost(_ context.Context, id int64) (*storage.Post, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	p, ok := b.posts[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// ListPosts lists posts, newest first. communityID zero means all.
func (b *Backend) ListPosts(_ context.Context, communityID int64, limit int) ([]*storage.Post, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []*storage.Post
	for _, p := range b.posts {
		if communityID != 0 && p.CommunityID != communityID {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreateComment stores a comment.
func (b *Backend) CreateComment(_ context.Context, postID, authorID int64, parentID *int64, content string) (*storage.Comment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.posts[postID]; !ok {
		return nil, errors.ErrNotFound
	}
	if parentID != nil {
		if _, ok := b.comments[*parentID]; !ok {
			return nil, errors.ErrNotFound
		}
	}

	c := &storage.Comment{
		ID:        b.nextSeq(),
		PostID:    postID,
		AuthorID:  authorID,
		ParentID:  parentID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	b.comments[c.ID] = c

	cp := *c
	return &cp, nil
}

// GetComment looks up a comment by ID.
func (b *Backend) GetComment(_ context.Context, id int64) (*storage.Comment, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	c, ok := b.comments[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// ListComments lists a post's comments, oldest first.
func (b *Backend) ListComments(_ context.Context, postID int64) ([]*storage.Comment, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []*storage.Comment
	for _, c := range b.comments {
		if c.PostID == postID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SetVote records or replaces a user's vote on a post. Value zero removes
// the vote.
func (b *Backend) SetVote(_ context.Context, userID, postID int64, value int) (*storage.Vote, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.posts[postID]; !ok {
		return nil, errors.ErrNotFound
	}

	key := voteKey{userID, postID}
	if value == 0 {
		delete(b.votes, key)
		return &storage.Vote{UserID: userID, PostID: postID}, nil
	}

	v := &storage.Vote{UserID: userID, PostID: postID, Value: value}
	b.votes[key] = v
	cp := *v
	return &cp, nil
}

// PostScore sums the votes on a post.
func (b *Backend) PostScore(_ context.Context, postID int64) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	score := 0
	for key, v := range b.votes {
		if key.postID == postID {
			score += v.Value
		}
	}
	return score, nil
}

var _ storage.Backend = (*Backend)(nil)
