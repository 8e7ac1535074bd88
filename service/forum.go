package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/AmrMohamed27/threadit-server-sub001/auth"
	"github.com/AmrMohamed27/threadit-server-sub001/errors"
	"github.com/AmrMohamed27/threadit-server-sub001/event"
	"github.com/AmrMohamed27/threadit-server-sub001/storage"
)

// previewLength bounds the comment excerpt carried in reply notifications.
const previewLength = 80

// ForumService manages communities, posts, comments, and votes. Comments
// and votes trigger notification events addressed to the author of the
// post or parent comment.
type ForumService struct {
	backend storage.ForumBackend
	pub     *Publisher
	logger  *slog.Logger
}

// NewForumService creates a ForumService.
func NewForumService(backend storage.ForumBackend, pub *Publisher, logger *slog.Logger) *ForumService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ForumService{
		backend: backend,
		pub:     pub,
		logger:  logger.With("component", "forumservice"),
	}
}

// CreateCommunity creates a community.
func (s *ForumService) CreateCommunity(ctx context.Context, name, description string, isPrivate bool) *CommunityResponse {
	p := auth.PrincipalFromContext(ctx)
	if !p.Authenticated {
		return &CommunityResponse{Errors: fieldErr("root", "not authenticated")}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return &CommunityResponse{Errors: fieldErr("name", "community name is required")}
	}

	community, err := s.backend.CreateCommunity(ctx, name, description, p.UserID, isPrivate)
	if err != nil {
		if errors.Is(err, errors.ErrAlreadyExists) {
			return &CommunityResponse{Errors: fieldErr("name", "community name already taken")}
		}
		s.logger.Error("failed to create community", "name", name, "error", err)
		return &CommunityResponse{Errors: internalErr()}
	}
	return &CommunityResponse{Community: community}
}

// ListCommunities lists all communities.
func (s *ForumService) ListCommunities(ctx context.Context) *CommunitiesResponse {
	communities, err := s.backend.ListCommunities(ctx)
	if err != nil {
		s.logger.Error("failed to list communities", "error", err)
		return &CommunitiesResponse{Errors: internalErr()}
	}
	return &CommunitiesResponse{Communities: communities}
}

// CreatePost creates a post in a community.
func (s *ForumService) CreatePost(ctx context.Context, title, content string, communityID int64) *PostResponse {
	p := auth.PrincipalFromContext(ctx)
	if !p.Authenticated {
		return &PostResponse{Errors: fieldErr("root", "not authenticated")}
	}
	if strings.TrimSpace(title) == "" {
		return &PostResponse{Errors: fieldErr("title", "title is required")}
	}

	post, err := s.backend.CreatePost(ctx, title, content, p.UserID, communityID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return &PostResponse{Errors: fieldErr("communityId", "community not found")}
		}
		s.logger.Error("failed to create post", "communityID", communityID, "error", err)
		return &PostResponse{Errors: internalErr()}
	}
	return &PostResponse{Post: post}
}

// GetPost returns a single post.
func (s *ForumService) GetPost(ctx context.Context, postID int64) *PostResponse {
	post, err := s.backend.GetPost(ctx, postID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return &PostResponse{Errors: fieldErr("postId", "post not found")}
		}
		s.logger.Error("failed to load post", "postID", postID, "error", err)
		return &PostResponse{Errors: internalErr()}
	}
	return &PostResponse{Post: post}
}

// ListPosts lists posts, optionally scoped to a community.
func (s *ForumService) ListPosts(ctx context.Context, communityID int64, limit int) *PostsResponse {
	posts, err := s.backend.ListPosts(ctx, communityID, limit)
	if err != nil {
		s.logger.Error("failed to list posts", "communityID", communityID, "error", err)
		return &PostsResponse{Errors: internalErr()}
	}
	return &PostsResponse{Posts: posts}
}

// CreateComment adds a comment and notifies the parent author (or the
// post author for top-level comments). Self-replies produce no
// notification.
func (s *ForumService) CreateComment(ctx context.Context, postID int64, parentID *int64, content string) *CommentResponse {
	p := auth.PrincipalFromContext(ctx)
	if !p.Authenticated {
		return &CommentResponse{Errors: fieldErr("root", "not authenticated")}
	}
	if strings.TrimSpace(content) == "" {
		return &CommentResponse{Errors: fieldErr("content", "comment cannot be empty")}
	}

	post, err := s.backend.GetPost(ctx, postID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return &CommentResponse{Errors: fieldErr("postId", "post not found")}
		}
		s.logger.Error("failed to load post", "postID", postID, "error", err)
		return &CommentResponse{Errors: internalErr()}
	}

	recipientID := post.AuthorID
	if parentID != nil {
		parent, err := s.backend.GetComment(ctx, *parentID)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				return &CommentResponse{Errors: fieldErr("parentId", "parent comment not found")}
			}
			s.logger.Error("failed to load parent comment", "commentID", *parentID, "error", err)
			return &CommentResponse{Errors: internalErr()}
		}
		recipientID = parent.AuthorID
	}

	comment, err := s.backend.CreateComment(ctx, postID, p.UserID, parentID, content)
	if err != nil {
		s.logger.Error("failed to create comment", "postID", postID, "error", err)
		return &CommentResponse{Errors: internalErr()}
	}

	if recipientID != p.UserID {
		s.pub.Publish(ctx, Event{
			Topics: []event.Topic{event.TopicReplyNotification},
			Payload: event.ReplyNotificationPayload{
				PostID:      postID,
				CommentID:   comment.ID,
				AuthorID:    p.UserID,
				RecipientID: recipientID,
				Preview:     preview(content),
			},
			SenderID:       p.UserID,
			ParticipantIDs: []int64{recipientID},
		})
	}
	if post.AuthorID != p.UserID {
		s.pub.Publish(ctx, Event{
			Topics: []event.Topic{event.TopicPostActivity},
			Payload: event.PostActivityPayload{
				PostID:  postID,
				ActorID: p.UserID,
				Kind:    "comment",
			},
			SenderID:       p.UserID,
			ParticipantIDs: []int64{post.AuthorID},
		})
	}

	return &CommentResponse{Comment: comment}
}

// ListComments lists a post's comments.
func (s *ForumService) ListComments(ctx context.Context, postID int64) *CommentsResponse {
	comments, err := s.backend.ListComments(ctx, postID)
	if err != nil {
		s.logger.Error("failed to list comments", "postID", postID, "error", err)
		return &CommentsResponse{Errors: internalErr()}
	}
	return &CommentsResponse{Comments: comments}
}

// Vote records a vote on a post and notifies the post author of the new
// score. Value must be -1, 0, or 1; zero clears the caller's vote.
func (s *ForumService) Vote(ctx context.Context, postID int64, value int) *VoteResponse {
	p := auth.PrincipalFromContext(ctx)
	if !p.Authenticated {
		return &VoteResponse{Errors: fieldErr("root", "not authenticated")}
	}
	if value < -1 || value > 1 {
		return &VoteResponse{Errors: fieldErr("value", "vote value must be -1, 0, or 1")}
	}

	post, err := s.backend.GetPost(ctx, postID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return &VoteResponse{Errors: fieldErr("postId", "post not found")}
		}
		s.logger.Error("failed to load post", "postID", postID, "error", err)
		return &VoteResponse{Errors: internalErr()}
	}

	if _, err := s.backend.SetVote(ctx, p.UserID, postID, value); err != nil {
		s.logger.Error("failed to set vote", "postID", postID, "error", err)
		return &VoteResponse{Errors: internalErr()}
	}

	score, err := s.backend.PostScore(ctx, postID)
	if err != nil {
		s.logger.Error("failed to compute post score", "postID", postID, "error", err)
		return &VoteResponse{Errors: internalErr()}
	}

	if post.AuthorID != p.UserID && value != 0 {
		s.pub.Publish(ctx, Event{
			Topics: []event.Topic{event.TopicPostActivity},
			Payload: event.PostActivityPayload{
				PostID:  postID,
				ActorID: p.UserID,
				Kind:    "vote",
				Score:   score,
			},
			SenderID:       p.UserID,
			ParticipantIDs: []int64{post.AuthorID},
		})
	}

	return &VoteResponse{Score: score}
}

func preview(content string) string {
	if len(content) <= previewLength {
		return content
	}
	return content[:previewLength]
}
