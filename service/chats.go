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

// ChatService manages chats and their participant sets. Every mutation
// announces itself on the broker; destructive mutations capture the
// participant snapshot before the write so departed members still hear
// about it.
type ChatService struct {
	backend storage.ChatBackend
	pub     *Publisher
	logger  *slog.Logger
}

// NewChatService creates a ChatService.
func NewChatService(backend storage.ChatBackend, pub *Publisher, logger *slog.Logger) *ChatService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{
		backend: backend,
		pub:     pub,
		logger:  logger.With("component", "chatservice"),
	}
}

// CreateChat creates a chat with the caller as creator and participant.
func (s *ChatService) CreateChat(ctx context.Context, name string, participantIDs []int64, isGroup bool) *ChatResponse {
	p := auth.PrincipalFromContext(ctx)
	if !p.Authenticated {
		return &ChatResponse{Errors: fieldErr("root", "not authenticated")}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return &ChatResponse{Errors: fieldErr("name", "chat name is required")}
	}

	chat, err := s.backend.CreateChat(ctx, name, p.UserID, participantIDs, isGroup)
	if err != nil {
		s.logger.Error("failed to create chat", "error", err)
		return &ChatResponse{Errors: internalErr()}
	}

	members, err := s.backend.GetChatParticipants(ctx, chat.ID)
	if err != nil {
		s.logger.Warn("failed to load participants for new chat", "chatID", chat.ID, "error", err)
		members = append([]int64{p.UserID}, participantIDs...)
	}

	s.pub.Publish(ctx, Event{
		Topics:         []event.Topic{event.TopicNewChat},
		Payload:        chat,
		SenderID:       p.UserID,
		ChatID:         chat.ID,
		ParticipantIDs: members,
	})

	return &ChatResponse{Chat: chat}
}

// UpdateChat renames a chat. Only participants may rename.
func (s *ChatService) UpdateChat(ctx context.Context, chatID int64, name string) *ChatResponse {
	p := auth.PrincipalFromContext(ctx)
	if !p.Authenticated {
		return &ChatResponse{Errors: fieldErr("root", "not authenticated")}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return &ChatResponse{Errors: fieldErr("name", "chat name is required")}
	}

	if resp := s.requireParticipant(ctx, p.UserID, chatID); resp != nil {
		return &ChatResponse{Errors: resp}
	}

	chat, err := s.backend.UpdateChat(ctx, chatID, name)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return &ChatResponse{Errors: fieldErr("chatId", "chat not found")}
		}
		s.logger.Error("failed to update chat", "chatID", chatID, "error", err)
		return &ChatResponse{Errors: internalErr()}
	}

	members, err := s.backend.GetChatParticipants(ctx, chatID)
	if err != nil {
		s.logger.Warn("failed to load participants", "chatID", chatID, "error", err)
	}

	s.pub.Publish(ctx, Event{
		Topics:         []event.Topic{event.TopicChatUpdated},
		Payload:        chat,
		SenderID:       p.UserID,
		ChatID:         chat.ID,
		ParticipantIDs: members,
		Operation:      &event.Operation{Kind: event.OpChatUpdated},
	})

	return &ChatResponse{Chat: chat}
}

// DeleteChat removes a chat. Only the creator may delete. The participant
// snapshot is taken before the delete so every member, including the
// creator, receives the event after the rows are gone.
func (s *ChatService) DeleteChat(ctx context.Context, chatID int64) *ConfirmResponse {
	p := auth.PrincipalFromContext(ctx)
	if !p.Authenticated {
		return &ConfirmResponse{Errors: fieldErr("root", "not authenticated")}
	}

	chat, err := s.backend.GetChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return &ConfirmResponse{Errors: fieldErr("chatId", "chat not found")}
		}
		s.logger.Error("failed to load chat", "chatID", chatID, "error", err)
		return &ConfirmResponse{Errors: internalErr()}
	}
	if chat.CreatorID != p.UserID {
		return &ConfirmResponse{Errors: fieldErr("chatId", "only the creator can delete a chat")}
	}

	// Snapshot before the destructive write.
	members, err := s.backend.GetChatParticipants(ctx, chatID)
	if err != nil {
		s.logger.Error("failed to snapshot participants", "chatID", chatID, "error", err)
		return &ConfirmResponse{Errors: internalErr()}
	}

	if err := s.backend.DeleteChat(ctx, chatID); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return &ConfirmResponse{Errors: fieldErr("chatId", "chat not found")}
		}
		s.logger.Error("failed to delete chat", "chatID", chatID, "error", err)
		return &ConfirmResponse{Errors: internalErr()}
	}

	s.pub.Publish(ctx, Event{
		Topics:         []event.Topic{event.TopicChatDeleted},
		Payload:        chat,
		SenderID:       p.UserID,
		ChatID:         chatID,
		ParticipantIDs: members,
		Operation:      &event.Operation{Kind: event.OpChatDeleted, Destructive: true},
	})

	return &ConfirmResponse{Success: true}
}

// AddChatParticipant adds a user to a chat. The post-add membership is
// published so the new member receives the event too.
func (s *ChatService) AddChatParticipant(ctx context.Context, chatID, userID int64) *ConfirmResponse {
	p := auth.PrincipalFromContext(ctx)
	if !p.Authenticated {
		return &ConfirmResponse{Errors: fieldErr("root", "not authenticated")}
	}
	if resp := s.requireParticipant(ctx, p.UserID, chatID); resp != nil {
		return &ConfirmResponse{Errors: resp}
	}

	if err := s.backend.AddChatParticipant(ctx, chatID, userID); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return &ConfirmResponse{Errors: fieldErr("chatId", "chat not found")}
		}
		s.logger.Error("failed to add participant", "chatID", chatID, "userID", userID, "error", err)
		return &ConfirmResponse{Errors: internalErr()}
	}

	members, err := s.backend.GetChatParticipants(ctx, chatID)
	if err != nil {
		s.logger.Warn("failed to load participants", "chatID", chatID, "error", err)
	}

	s.pub.Publish(ctx, Event{
		Topics:         []event.Topic{event.TopicChatParticipantAdded},
		Payload:        event.ParticipantPayload{ChatID: chatID, UserID: userID},
		SenderID:       p.UserID,
		ChatID:         chatID,
		ParticipantIDs: members,
		Operation:      &event.Operation{Kind: event.OpParticipantAdded},
	})

	return &ConfirmResponse{Success: true}
}

// RemoveChatParticipant removes a user from a chat. The pre-removal
// snapshot is published so the removed user still receives the event.
func (s *ChatService) RemoveChatParticipant(ctx context.Context, chatID, userID int64) *ConfirmResponse {
	p := auth.PrincipalFromContext(ctx)
	if !p.Authenticated {
		return &ConfirmResponse{Errors: fieldErr("root", "not authenticated")}
	}
	// Members may leave on their own; removing someone else requires
	// membership of the remover.
	if resp := s.requireParticipant(ctx, p.UserID, chatID); resp != nil {
		return &ConfirmResponse{Errors: resp}
	}

	// Snapshot before the destructive write.
	members, err := s.backend.GetChatParticipants(ctx, chatID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return &ConfirmResponse{Errors: fieldErr("chatId", "chat not found")}
		}
		s.logger.Error("failed to snapshot participants", "chatID", chatID, "error", err)
		return &ConfirmResponse{Errors: internalErr()}
	}

	if err := s.backend.RemoveChatParticipant(ctx, chatID, userID); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return &ConfirmResponse{Errors: fieldErr("userId", "user is not a participant")}
		}
		s.logger.Error("failed to remove participant", "chatID", chatID, "userID", userID, "error", err)
		return &ConfirmResponse{Errors: internalErr()}
	}

	s.pub.Publish(ctx, Event{
		Topics:         []event.Topic{event.TopicChatParticipantRemoved},
		Payload:        event.ParticipantPayload{ChatID: chatID, UserID: userID},
		SenderID:       p.UserID,
		ChatID:         chatID,
		ParticipantIDs: members,
		Operation:      &event.Operation{Kind: event.OpParticipantRemoved, Destructive: true},
	})

	return &ConfirmResponse{Success: true}
}

// GetChat returns a single chat if the caller participates in it.
func (s *ChatService) GetChat(ctx context.Context, chatID int64) *ChatResponse {
	p := auth.PrincipalFromContext(ctx)
	if !p.Authenticated {
		return &ChatResponse{Errors: fieldErr("root", "not authenticated")}
	}
	if resp := s.requireParticipant(ctx, p.UserID, chatID); resp != nil {
		return &ChatResponse{Errors: resp}
	}

	chat, err := s.backend.GetChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return &ChatResponse{Errors: fieldErr("chatId", "chat not found")}
		}
		s.logger.Error("failed to load chat", "chatID", chatID, "error", err)
		return &ChatResponse{Errors: internalErr()}
	}
	return &ChatResponse{Chat: chat}
}

// GetChats lists the caller's chats.
func (s *ChatService) GetChats(ctx context.Context) *ChatsResponse {
	p := auth.PrincipalFromContext(ctx)
	if !p.Authenticated {
		return &ChatsResponse{Errors: fieldErr("root", "not authenticated")}
	}

	chats, err := s.backend.GetChatsForUser(ctx, p.UserID)
	if err != nil {
		s.logger.Error("failed to list chats", "userID", p.UserID, "error", err)
		return &ChatsResponse{Errors: internalErr()}
	}
	return &ChatsResponse{Chats: chats}
}

// requireParticipant returns field errors unless userID is a member of
// chatID.
func (s *ChatService) requireParticipant(ctx context.Context, userID, chatID int64) []event.FieldError {
	ok, err := s.backend.CheckChatParticipant(ctx, userID, chatID)
	if err != nil {
		s.logger.Error("failed to check participation", "chatID", chatID, "userID", userID, "error", err)
		return internalErr()
	}
	if !ok {
		return fieldErr("chatId", "not a participant of this chat")
	}
	return nil
}
