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

// MessageService manages chat messages and typing signals.
type MessageService struct {
	chats    storage.ChatBackend
	messages storage.MessageBackend
	pub      *Publisher
	logger   *slog.Logger
}

// NewMessageService creates a MessageService.
func NewMessageService(chats storage.ChatBackend, messages storage.MessageBackend, pub *Publisher, logger *slog.Logger) *MessageService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MessageService{
		chats:    chats,
		messages: messages,
		pub:      pub,
		logger:   logger.With("component", "messageservice"),
	}
}

// SendMessage stores a message and announces it. Direct chats fan out to
// the direct-message notification topic as well.
func (s *MessageService) SendMessage(ctx context.Context, chatID int64, content string, media *string) *MessageResponse {
	p := auth.PrincipalFromContext(ctx)
	if !p.Authenticated {
		return &MessageResponse{Errors: fieldErr("root", "not authenticated")}
	}
	if strings.TrimSpace(content) == "" && media == nil {
		return &MessageResponse{Errors: fieldErr("content", "message cannot be empty")}
	}
	if resp := s.requireParticipant(ctx, p.UserID, chatID); resp != nil {
		return &MessageResponse{Errors: resp}
	}

	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return &MessageResponse{Errors: fieldErr("chatId", "chat not found")}
		}
		s.logger.Error("failed to load chat", "chatID", chatID, "error", err)
		return &MessageResponse{Errors: internalErr()}
	}

	msg, err := s.messages.CreateMessage(ctx, chatID, p.UserID, content, media)
	if err != nil {
		s.logger.Error("failed to create message", "chatID", chatID, "error", err)
		return &MessageResponse{Errors: internalErr()}
	}

	members, err := s.chats.GetChatParticipants(ctx, chatID)
	if err != nil {
		s.logger.Warn("failed to load participants", "chatID", chatID, "error", err)
	}

	topics := []event.Topic{event.TopicNewMessage}
	if !chat.IsGroupChat {
		topics = append(topics, event.TopicDirectMessage)
	}

	s.pub.Publish(ctx, Event{
		Topics:         topics,
		Payload:        msg,
		SenderID:       p.UserID,
		ChatID:         chatID,
		ParticipantIDs: members,
	})

	return &MessageResponse{Message: msg}
}

// UpdateMessage edits a message. Only the sender may edit.
func (s *MessageService) UpdateMessage(ctx context.Context, messageID int64, content string) *MessageResponse {
	p := auth.PrincipalFromContext(ctx)
	if !p.Authenticated {
		return &MessageResponse{Errors: fieldErr("root", "not authenticated")}
	}
	if strings.TrimSpace(content) == "" {
		return &MessageResponse{Errors: fieldErr("content", "message cannot be empty")}
	}

	existing, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return &MessageResponse{Errors: fieldErr("messageId", "message not found")}
		}
		s.logger.Error("failed to load message", "messageID", messageID, "error", err)
		return &MessageResponse{Errors: internalErr()}
	}
	if existing.SenderID != p.UserID {
		return &MessageResponse{Errors: fieldErr("messageId", "only the sender can edit a message")}
	}

	msg, err := s.messages.UpdateMessage(ctx, messageID, content)
	if err != nil {
		s.logger.Error("failed to update message", "messageID", messageID, "error", err)
		return &MessageResponse{Errors: internalErr()}
	}

	members, err := s.chats.GetChatParticipants(ctx, msg.ChatID)
	if err != nil {
		s.logger.Warn("failed to load participants", "chatID", msg.ChatID, "error", err)
	}

	s.pub.Publish(ctx, Event{
		Topics:         []event.Topic{event.TopicMessageUpdated},
		Payload:        msg,
		SenderID:       p.UserID,
		ChatID:         msg.ChatID,
		ParticipantIDs: members,
	})

	return &MessageResponse{Message: msg}
}

// DeleteMessage removes a message. Only the sender may delete. The message
// and participant snapshot are captured before the delete so the event can
// still describe what disappeared.
func (s *MessageService) DeleteMessage(ctx context.Context, messageID int64) *ConfirmResponse {
	p := auth.PrincipalFromContext(ctx)
	if !p.Authenticated {
		return &ConfirmResponse{Errors: fieldErr("root", "not authenticated")}
	}

	existing, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return &ConfirmResponse{Errors: fieldErr("messageId", "message not found")}
		}
		s.logger.Error("failed to load message", "messageID", messageID, "error", err)
		return &ConfirmResponse{Errors: internalErr()}
	}
	if existing.SenderID != p.UserID {
		return &ConfirmResponse{Errors: fieldErr("messageId", "only the sender can delete a message")}
	}

	// Snapshot before the destructive write.
	members, err := s.chats.GetChatParticipants(ctx, existing.ChatID)
	if err != nil {
		s.logger.Error("failed to snapshot participants", "chatID", existing.ChatID, "error", err)
		return &ConfirmResponse{Errors: internalErr()}
	}

	if err := s.messages.DeleteMessage(ctx, messageID); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return &ConfirmResponse{Errors: fieldErr("messageId", "message not found")}
		}
		s.logger.Error("failed to delete message", "messageID", messageID, "error", err)
		return &ConfirmResponse{Errors: internalErr()}
	}

	s.pub.Publish(ctx, Event{
		Topics:         []event.Topic{event.TopicMessageDeleted},
		Payload:        existing,
		SenderID:       p.UserID,
		ChatID:         existing.ChatID,
		ParticipantIDs: members,
	})

	return &ConfirmResponse{Success: true}
}

// GetChatMessages lists a chat's messages for a participant.
func (s *MessageService) GetChatMessages(ctx context.Context, chatID int64, limit int) *MessagesResponse {
	p := auth.PrincipalFromContext(ctx)
	if !p.Authenticated {
		return &MessagesResponse{Errors: fieldErr("root", "not authenticated")}
	}
	if resp := s.requireParticipant(ctx, p.UserID, chatID); resp != nil {
		return &MessagesResponse{Errors: resp}
	}

	msgs, err := s.messages.GetChatMessages(ctx, chatID, limit)
	if err != nil {
		s.logger.Error("failed to list messages", "chatID", chatID, "error", err)
		return &MessagesResponse{Errors: internalErr()}
	}
	return &MessagesResponse{Messages: msgs}
}

// SetTyping announces a typing state change. Nothing is stored.
func (s *MessageService) SetTyping(ctx context.Context, chatID int64, isTyping bool) *ConfirmResponse {
	p := auth.PrincipalFromContext(ctx)
	if !p.Authenticated {
		return &ConfirmResponse{Errors: fieldErr("root", "not authenticated")}
	}
	if resp := s.requireParticipant(ctx, p.UserID, chatID); resp != nil {
		return &ConfirmResponse{Errors: resp}
	}

	members, err := s.chats.GetChatParticipants(ctx, chatID)
	if err != nil {
		s.logger.Warn("failed to load participants", "chatID", chatID, "error", err)
	}

	s.pub.Publish(ctx, Event{
		Topics:         []event.Topic{event.TopicUserTyping},
		Payload:        event.TypingPayload{ChatID: chatID, UserID: p.UserID, IsTyping: isTyping},
		SenderID:       p.UserID,
		ChatID:         chatID,
		ParticipantIDs: members,
	})

	return &ConfirmResponse{Success: true}
}

func (s *MessageService) requireParticipant(ctx context.Context, userID, chatID int64) []event.FieldError {
	ok, err := s.chats.CheckChatParticipant(ctx, userID, chatID)
	if err != nil {
		s.logger.Error("failed to check participation", "chatID", chatID, "userID", userID, "error", err)
		return internalErr()
	}
	if !ok {
		return fieldErr("chatId", "not a participant of this chat")
	}
	return nil
}
