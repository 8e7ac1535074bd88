// Package service implements the application operations behind the
// GraphQL surface. Mutations validate input, write through the storage
// backend, and hand the result to the event publisher. Domain failures
// are reported as field errors on the response object rather than Go
// errors, so a failed mutation still produces a well-formed reply.
package service

import (
	"github.com/AmrMohamed27/threadit-server-sub001/event"
	"github.com/AmrMohamed27/threadit-server-sub001/storage"
)

// fieldErr builds a single field error.
func fieldErr(field, message string) []event.FieldError {
	return []event.FieldError{{Field: field, Message: message}}
}

// internalErr is the field error returned when storage fails. The real
// cause is logged, never surfaced to the client.
func internalErr() []event.FieldError {
	return fieldErr("root", "internal server error")
}

// UserResponse carries a user or the field errors that prevented one.
type UserResponse struct {
	User   *storage.User     `json:"user,omitempty"`
	Errors []event.FieldError `json:"errors,omitempty"`
}

// ChatResponse carries a chat or field errors.
type ChatResponse struct {
	Chat   *storage.Chat     `json:"chat,omitempty"`
	Errors []event.FieldError `json:"errors,omitempty"`
}

// ChatsResponse carries a chat list or field errors.
type ChatsResponse struct {
	Chats  []*storage.Chat   `json:"chats,omitempty"`
	Errors []event.FieldError `json:"errors,omitempty"`
}

// MessageResponse carries a message or field errors.
type MessageResponse struct {
	Message *storage.Message  `json:"message,omitempty"`
	Errors  []event.FieldError `json:"errors,omitempty"`
}

// MessagesResponse carries a message list or field errors.
type MessagesResponse struct {
	Messages []*storage.Message `json:"messages,omitempty"`
	Errors   []event.FieldError `json:"errors,omitempty"`
}

// ConfirmResponse reports whether a destructive operation succeeded.
type ConfirmResponse struct {
	Success bool               `json:"success"`
	Errors  []event.FieldError `json:"errors,omitempty"`
}

// CommunityResponse carries a community or field errors.
type CommunityResponse struct {
	Community *storage.Community `json:"community,omitempty"`
	Errors    []event.FieldError `json:"errors,omitempty"`
}

// CommunitiesResponse carries a community list or field errors.
type CommunitiesResponse struct {
	Communities []*storage.Community `json:"communities,omitempty"`
	Errors      []event.FieldError   `json:"errors,omitempty"`
}

// PostResponse carries a post or field errors.
type PostResponse struct {
	Post   *storage.Post     `json:"post,omitempty"`
	Errors []event.FieldError `json:"errors,omitempty"`
}

// PostsResponse carries a post list or field errors.
type PostsResponse struct {
	Posts  []*storage.Post   `json:"posts,omitempty"`
	Errors []event.FieldError `json:"errors,omitempty"`
}

// CommentResponse carries a comment or field errors.
type CommentResponse struct {
	Comment *storage.Comment  `json:"comment,omitempty"`
	Errors  []event.FieldError `json:"errors,omitempty"`
}

// CommentsResponse carries a comment list or field errors.
type CommentsResponse struct {
	Comments []*storage.Comment `json:"comments,omitempty"`
	Errors   []event.FieldError `json:"errors,omitempty"`
}

// VoteResponse carries the resulting post score or field errors.
type VoteResponse struct {
	Score  int                `json:"score"`
	Errors []event.FieldError `json:"errors,omitempty"`
}
