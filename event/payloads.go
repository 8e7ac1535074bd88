package event

// Wire payload shapes for topics that do not carry a stored entity.
// Message, chat, and post topics marshal the storage entity directly.

// TypingPayload signals that a user started or stopped typing in a chat.
type TypingPayload struct {
	ChatID   int64 `json:"chatId"`
	UserID   int64 `json:"userId"`
	IsTyping bool  `json:"isTyping"`
}

// OnlineStatusPayload signals a user's presence change.
type OnlineStatusPayload struct {
	UserID int64 `json:"userId"`
	Online bool  `json:"online"`
}

// ParticipantPayload describes a membership change in a chat.
type ParticipantPayload struct {
	ChatID int64 `json:"chatId"`
	UserID int64 `json:"userId"`
}

// ReplyNotificationPayload notifies a post or comment author about a reply.
type ReplyNotificationPayload struct {
	PostID      int64  `json:"postId"`
	CommentID   int64  `json:"commentId"`
	AuthorID    int64  `json:"authorId"`
	RecipientID int64  `json:"recipientId"`
	Preview     string `json:"preview"`
}

// PostActivityPayload notifies a post author about activity on their post.
type PostActivityPayload struct {
	PostID  int64  `json:"postId"`
	ActorID int64  `json:"actorId"`
	Kind    string `json:"kind"`
	Score   int    `json:"score"`
}
