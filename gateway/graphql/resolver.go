package graphql

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/AmrMohamed27/threadit-server-sub001/auth"
	"github.com/AmrMohamed27/threadit-server-sub001/service"
)

// Resolver dispatches GraphQL operations to the application services.
type Resolver struct {
	users    *service.UserService
	chats    *service.ChatService
	messages *service.MessageService
	forum    *service.ForumService
	sessions *auth.SessionManager
	tokens   *auth.TokenBridge
	logger   *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(
	users *service.UserService,
	chats *service.ChatService,
	messages *service.MessageService,
	forum *service.ForumService,
	sessions *auth.SessionManager,
	tokens *auth.TokenBridge,
	logger *slog.Logger,
) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		users:    users,
		chats:    chats,
		messages: messages,
		forum:    forum,
		sessions: sessions,
		tokens:   tokens,
		logger:   logger.With("component", "resolver"),
	}
}

func (r *Resolver) resolveQuery(ctx context.Context, name string, args map[string]any) (any, *gqlerror.Error) {
	switch name {
	case "me":
		return r.users.Me(ctx), nil
	case "chat":
		return r.chats.GetChat(ctx, argInt64(args, "id")), nil
	case "chats":
		return r.chats.GetChats(ctx), nil
	case "chatMessages":
		return r.messages.GetChatMessages(ctx, argInt64(args, "chatId"), int(argInt64(args, "limit"))), nil
	case "post":
		return r.forum.GetPost(ctx, argInt64(args, "id")), nil
	case "posts":
		return r.forum.ListPosts(ctx, argInt64(args, "communityId"), int(argInt64(args, "limit"))), nil
	case "comments":
		return r.forum.ListComments(ctx, argInt64(args, "postId")), nil
	case "communities":
		return r.forum.ListCommunities(ctx), nil
	default:
		return nil, gqlerror.Errorf("unknown query field %q", name)
	}
}

func (r *Resolver) resolveMutation(ctx context.Context, name string, args map[string]any) (any, *gqlerror.Error) {
	switch name {
	case "register":
		resp := r.users.Register(ctx, argString(args, "username"), argString(args, "email"), argString(args, "password"))
		if resp.User != nil {
			r.openSession(ctx, resp.User.ID)
		}
		return resp, nil
	case "login":
		resp := r.users.Login(ctx, argString(args, "usernameOrEmail"), argString(args, "password"))
		if resp.User != nil {
			r.openSession(ctx, resp.User.ID)
		}
		return resp, nil
	case "logout":
		return r.closeSession(ctx), nil
	case "createChat":
		return r.chats.CreateChat(ctx, argString(args, "name"), argInt64Slice(args, "participantIds"), argBool(args, "isGroupChat")), nil
	case "updateChat":
		return r.chats.UpdateChat(ctx, argInt64(args, "chatId"), argString(args, "name")), nil
	case "deleteChat":
		return r.chats.DeleteChat(ctx, argInt64(args, "chatId")), nil
	case "addChatParticipant":
		return r.chats.AddChatParticipant(ctx, argInt64(args, "chatId"), argInt64(args, "userId")), nil
	case "removeChatParticipant":
		return r.chats.RemoveChatParticipant(ctx, argInt64(args, "chatId"), argInt64(args, "userId")), nil
	case "sendMessage":
		return r.messages.SendMessage(ctx, argInt64(args, "chatId"), argString(args, "content"), argStringPtr(args, "media")), nil
	case "updateMessage":
		return r.messages.UpdateMessage(ctx, argInt64(args, "messageId"), argString(args, "content")), nil
	case "deleteMessage":
		return r.messages.DeleteMessage(ctx, argInt64(args, "messageId")), nil
	case "setTyping":
		return r.messages.SetTyping(ctx, argInt64(args, "chatId"), argBool(args, "isTyping")), nil
	case "createCommunity":
		return r.forum.CreateCommunity(ctx, argString(args, "name"), argString(args, "description"), argBool(args, "isPrivate")), nil
	case "createPost":
		return r.forum.CreatePost(ctx, argString(args, "title"), argString(args, "content"), argInt64(args, "communityId")), nil
	case "createComment":
		return r.forum.CreateComment(ctx, argInt64(args, "postId"), argInt64Ptr(args, "parentId"), argString(args, "content")), nil
	case "vote":
		return r.forum.Vote(ctx, argInt64(args, "postId"), int(argInt64(args, "value"))), nil
	default:
		return nil, gqlerror.Errorf("unknown mutation field %q", name)
	}
}

// openSession issues a session cookie after a successful register or
// login. A cookie failure is logged but does not fail the mutation; the
// account exists either way.
func (r *Resolver) openSession(ctx context.Context, userID int64) {
	w := responseWriterFromContext(ctx)
	if w == nil {
		r.logger.Warn("no response writer for session creation", "userID", userID)
		return
	}
	if err := r.sessions.Create(ctx, w, userID); err != nil {
		r.logger.Error("failed to create session", "userID", userID, "error", err)
	}
}

func (r *Resolver) closeSession(ctx context.Context) *service.ConfirmResponse {
	w := responseWriterFromContext(ctx)
	req := requestFromContext(ctx)
	if w == nil || req == nil {
		return &service.ConfirmResponse{Success: false}
	}
	if err := r.sessions.Destroy(ctx, w, req); err != nil {
		r.logger.Warn("failed to destroy session", "error", err)
	}
	return &service.ConfirmResponse{Success: true}
}

// Argument coercion. Inline literals arrive as int64 from the parser;
// variable values arrive as float64 or json.Number from JSON decoding.

func argInt64(args map[string]any, name string) int64 {
	switch v := args[name].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	default:
		return 0
	}
}

func argInt64Ptr(args map[string]any, name string) *int64 {
	if _, ok := args[name]; !ok {
		return nil
	}
	if args[name] == nil {
		return nil
	}
	v := argInt64(args, name)
	return &v
}

func argInt64Slice(args map[string]any, name string) []int64 {
	raw, ok := args[name].([]any)
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case int64:
			out = append(out, v)
		case float64:
			out = append(out, int64(v))
		case json.Number:
			n, _ := v.Int64()
			out = append(out, n)
		}
	}
	return out
}

func argString(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}

func argStringPtr(args map[string]any, name string) *string {
	if args[name] == nil {
		return nil
	}
	s, ok := args[name].(string)
	if !ok {
		return nil
	}
	return &s
}

func argBool(args map[string]any, name string) bool {
	b, _ := args[name].(bool)
	return b
}
