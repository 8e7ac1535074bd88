// Package storage defines the entity types and backend interfaces for the
// relational data layer. The event pipeline consumes this layer purely as
// a data source: participant relations are its authorization predicate,
// and entity snapshots become envelope payloads. Backends are flat sets of
// operations over one data-access handle; no ORM, no inheritance.
package storage

import (
	"context"
	"time"
)

// User is a registered account. PasswordHash never crosses the GraphQL
// boundary.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Chat is a conversation between two or more participants.
type Chat struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	CreatorID   int64     `json:"creatorId"`
	IsGroupChat bool      `json:"isGroupChat"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Message is a single chat message.
type Message struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chatId"`
	SenderID  int64     `json:"senderId"`
	Content   string    `json:"content"`
	Media     *string   `json:"media,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Community is a named posting space.
type Community struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatorID   int64     `json:"creatorId"`
	IsPrivate   bool      `json:"isPrivate"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Post is a community submission.
type Post struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	AuthorID    int64     `json:"authorId"`
	CommunityID int64     `json:"communityId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Comment is a reply on a post, optionally nested under another comment.
type Comment struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"postId"`
	AuthorID  int64     `json:"authorId"`
	ParentID  *int64    `json:"parentId,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Vote is a user's up/down vote on a post. Value is +1 or -1.
type Vote struct {
	UserID int64 `json:"userId"`
	PostID int64 `json:"postId"`
	Value  int   `json:"value"`
}

// UserBackend provides account persistence.
type UserBackend interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// ChatBackend provides chat and participant persistence. The participant
// relation (chatID, userID) is the authorization predicate for the event
// pipeline; it is owned and mutated here, never by the pipeline itself.
type ChatBackend interface {
	CreateChat(ctx context.Context, name string, creatorID int64, participantIDs []int64, isGroup bool) (*Chat, error)
	GetChat(ctx context.Context, id int64) (*Chat, error)
	UpdateChat(ctx context.Context, id int64, name string) (*Chat, error)
	DeleteChat(ctx context.Context, id int64) error
	GetChatsForUser(ctx context.Context, userID int64) ([]*Chat, error)

	GetChatParticipants(ctx context.Context, chatID int64) ([]int64, error)
	CheckChatParticipant(ctx context.Context, userID, chatID int64) (bool, error)
	AddChatParticipant(ctx context.Context, chatID, userID int64) error
	RemoveChatParticipant(ctx context.Context, chatID, userID int64) error
}

// MessageBackend provides message persistence.
type MessageBackend interface {
	CreateMessage(ctx context.Context, chatID, senderID int64, content string, media *string) (*Message, error)
	GetMessage(ctx context.Context, id int64) (*Message, error)
	GetChatMessages(ctx context.Context, chatID int64, limit int) ([]*Message, error)
	UpdateMessage(ctx context.Context, id int64, content string) (*Message, error)
	DeleteMessage(ctx context.Context, id int64) error
}

// ForumBackend provides community, post, comment, and vote persistence.
type ForumBackend interface {
	CreateCommunity(ctx context.Context, name, description string, creatorID int64, isPrivate bool) (*Community, error)
	ListCommunities(ctx context.Context) ([]*Community, error)

	CreatePost(ctx context.Context, title, content string, authorID, communityID int64) (*Post, error)
	GetPost(ctx context.Context, id int64) (*Post, error)
	ListPosts(ctx context.Context, communityID int64, limit int) ([]*Post, error)

	CreateComment(ctx context.Context, postID, authorID int64, parentID *int64, content string) (*Comment, error)
	GetComment(ctx context.Context, id int64) (*Comment, error)
	ListComments(ctx context.Context, postID int64) ([]*Comment, error)

	SetVote(ctx context.Context, userID, postID int64, value int) (*Vote, error)
	PostScore(ctx context.Context, postID int64) (int, error)
}

// Backend aggregates all persistence capabilities behind one handle.
type Backend interface {
	UserBackend
	ChatBackend
	MessageBackend
	ForumBackend
}
