package graphql

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/AmrMohamed27/threadit-server-sub001/auth"
	"github.com/AmrMohamed27/threadit-server-sub001/broker"
	"github.com/AmrMohamed27/threadit-server-sub001/event"
	"github.com/AmrMohamed27/threadit-server-sub001/service"
	"github.com/AmrMohamed27/threadit-server-sub001/storage"
)

// graphql-transport-ws message types.
const (
	msgConnectionInit = "connection_init"
	msgConnectionAck  = "connection_ack"
	msgPing           = "ping"
	msgPong           = "pong"
	msgSubscribe      = "subscribe"
	msgNext           = "next"
	msgError          = "error"
	msgComplete       = "complete"
)

// connInitTimeout bounds how long a socket may sit unauthenticated
// before the server hangs up.
const connInitTimeout = 10 * time.Second

// wsMessage is the graphql-transport-ws frame.
type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// connInitPayload carries the streaming token minted by /api/ws-auth.
type connInitPayload struct {
	AuthToken string `json:"authToken"`
}

// ChatEvent is the shared chat-events channel payload. Kind and
// Destructive come from the envelope's operation descriptor; exactly one
// of Chat or Participant is set depending on the operation.
type ChatEvent struct {
	Kind        string                    `json:"kind"`
	Destructive bool                      `json:"destructive"`
	ChatID      int64                     `json:"chatId"`
	Chat        *storage.Chat             `json:"chat,omitempty"`
	Participant *event.ParticipantPayload `json:"participant,omitempty"`
}

// subscriptionSpec maps a subscription field to its broker topics and
// filter behavior.
type subscriptionSpec struct {
	topics     []event.Topic
	shared     bool
	chatScoped bool
}

var subscriptionSpecs = map[string]subscriptionSpec{
	"newMessage":                {topics: []event.Topic{event.TopicNewMessage}, chatScoped: true},
	"messageUpdated":            {topics: []event.Topic{event.TopicMessageUpdated}, chatScoped: true},
	"messageDeleted":            {topics: []event.Topic{event.TopicMessageDeleted}, chatScoped: true},
	"userTyping":                {topics: []event.Topic{event.TopicUserTyping}, chatScoped: true},
	"chatEvents":                {topics: []event.Topic{event.TopicChatUpdated, event.TopicChatDeleted, event.TopicChatParticipantAdded, event.TopicChatParticipantRemoved}, shared: true},
	"newChat":                   {topics: []event.Topic{event.TopicNewChat}},
	"directMessageNotification": {topics: []event.Topic{event.TopicDirectMessage}},
	"replyNotification":         {topics: []event.Topic{event.TopicReplyNotification}},
	"postActivity":              {topics: []event.Topic{event.TopicPostActivity}},
	"userOnlineStatus":          {topics: []event.Topic{event.TopicUserOnlineStatus}},
}

// subscriptionHandler owns the websocket side of the gateway: one
// goroutine per socket reading frames, one per active subscription
// pumping filtered envelopes back out.
type subscriptionHandler struct {
	executor   *Executor
	subscriber broker.Subscriber
	checker    ParticipantChecker
	chats      storage.ChatBackend
	tokens     *auth.TokenBridge
	publisher  *service.Publisher
	metrics    *metrics
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

func newSubscriptionHandler(
	executor *Executor,
	subscriber broker.Subscriber,
	checker ParticipantChecker,
	chats storage.ChatBackend,
	tokens *auth.TokenBridge,
	publisher *service.Publisher,
	m *metrics,
	logger *slog.Logger,
) *subscriptionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &subscriptionHandler{
		executor:   executor,
		subscriber: subscriber,
		checker:    checker,
		chats:      chats,
		tokens:     tokens,
		publisher:  publisher,
		metrics:    m,
		upgrader: websocket.Upgrader{
			Subprotocols: []string{"graphql-transport-ws"},
			// Cross-origin is allowed: authorization rides on the
			// streaming token, not on cookies.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger.With("component", "subscriptions"),
	}
}

// wsConn is one websocket connection and its active subscriptions.
type wsConn struct {
	conn      *websocket.Conn
	principal auth.Principal

	writeMu sync.Mutex

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

func (c *wsConn) send(msg wsMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (c *wsConn) track(id string, cancel context.CancelFunc) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.active[id]; exists {
		return false
	}
	c.active[id] = cancel
	return true
}

func (c *wsConn) release(id string) {
	c.mu.Lock()
	cancel := c.active[id]
	delete(c.active, id)
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *wsConn) releaseAll() {
	c.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(c.active))
	for _, cancel := range c.active {
		cancels = append(cancels, cancel)
	}
	c.active = map[string]context.CancelFunc{}
	c.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

// ServeHTTP upgrades the connection and runs the protocol until the
// client disconnects.
func (h *subscriptionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	principal, ok := h.awaitInit(ctx, conn)
	if !ok {
		return
	}

	wc := &wsConn{
		conn:      conn,
		principal: principal,
		active:    map[string]context.CancelFunc{},
	}
	defer wc.releaseAll()

	if err := wc.send(wsMessage{Type: msgConnectionAck}); err != nil {
		return
	}

	if principal.Authenticated {
		h.publishPresence(ctx, principal.UserID, true)
		defer h.publishPresence(context.WithoutCancel(ctx), principal.UserID, false)
	}

	h.logger.Debug("websocket connection established",
		"authenticated", principal.Authenticated,
		"userID", principal.UserID)

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case msgPing:
			if err := wc.send(wsMessage{Type: msgPong}); err != nil {
				return
			}
		case msgSubscribe:
			h.startSubscription(ctx, wc, msg)
		case msgComplete:
			wc.release(msg.ID)
		}
	}
}

// awaitInit reads the connection_init frame and resolves its streaming
// token. Resolution fails open: a missing or expired token produces an
// anonymous connection, not a refusal.
func (h *subscriptionHandler) awaitInit(ctx context.Context, conn *websocket.Conn) (auth.Principal, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(connInitTimeout))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil {
		return auth.Anonymous(), false
	}
	if msg.Type != msgConnectionInit {
		return auth.Anonymous(), false
	}

	var payload connInitPayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			h.logger.Debug("malformed connection_init payload", "error", err)
		}
	}

	principal, err := h.tokens.Resolve(ctx, payload.AuthToken)
	if err != nil {
		h.logger.Warn("token resolution failed, continuing anonymously", "error", err)
	}
	return principal, true
}

// startSubscription parses a subscribe frame, attaches to the broker,
// and pumps filtered envelopes until complete or disconnect.
func (h *subscriptionHandler) startSubscription(ctx context.Context, wc *wsConn, msg wsMessage) {
	fail := func(errs gqlerror.List) {
		payload, _ := json.Marshal(errs)
		_ = wc.send(wsMessage{ID: msg.ID, Type: msgError, Payload: payload})
	}

	var req Request
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		fail(gqlerror.List{gqlerror.Errorf("malformed subscribe payload")})
		return
	}

	doc, op, errs := h.executor.Parse(req)
	if len(errs) > 0 {
		fail(errs)
		return
	}
	if op.Operation != ast.Subscription {
		fail(gqlerror.List{gqlerror.Errorf("only subscription operations are allowed on this transport")})
		return
	}

	fields := collectFields(doc, op.SelectionSet)
	if len(fields) != 1 {
		fail(gqlerror.List{gqlerror.Errorf("subscriptions must select exactly one field")})
		return
	}
	field := fields[0]

	spec, known := subscriptionSpecs[field.Name]
	if !known {
		fail(gqlerror.List{gqlerror.Errorf("unknown subscription field %q", field.Name)})
		return
	}

	args, argErr := h.executor.argumentValues(field, req.Variables)
	if argErr != nil {
		fail(gqlerror.List{argErr})
		return
	}
	wantChatID := argInt64(args, "chatId")

	subCtx, cancel := context.WithCancel(ctx)
	if !wc.track(msg.ID, cancel) {
		cancel()
		fail(gqlerror.List{gqlerror.Errorf("subscription id %q already in use", msg.ID)})
		return
	}

	sub, err := h.subscriber.Subscribe(subCtx, spec.topics...)
	if err != nil {
		wc.release(msg.ID)
		h.logger.Error("broker subscribe failed", "field", field.Name, "error", err)
		fail(gqlerror.List{gqlerror.Errorf("subscription unavailable")})
		return
	}

	go func() {
		defer sub.Unsubscribe()
		for {
			select {
			case <-subCtx.Done():
				return
			case env, open := <-sub.C:
				if !open {
					return
				}
				if spec.chatScoped && env.ChatID != wantChatID {
					continue
				}
				if !Decide(subCtx, env, wc.principal, h.checker, spec.shared) {
					h.metrics.envelopesDropped.Inc()
					continue
				}

				result, err := subscriptionResult(field.Name, env)
				if err != nil {
					h.logger.Warn("failed to decode envelope payload",
						"topic", env.Topic, "error", err)
					continue
				}
				projected, err := projectValue(doc, result, field.SelectionSet)
				if err != nil {
					h.logger.Warn("failed to project subscription result",
						"field", field.Name, "error", err)
					continue
				}

				payload, err := json.Marshal(map[string]any{
					"data": map[string]any{aliasOf(field): projected},
				})
				if err != nil {
					continue
				}
				if err := wc.send(wsMessage{ID: msg.ID, Type: msgNext, Payload: payload}); err != nil {
					return
				}
				h.metrics.envelopesDelivered.Inc()
			}
		}
	}()
}

// subscriptionResult decodes an envelope into the field's result type.
func subscriptionResult(field string, env *event.Envelope) (any, error) {
	switch field {
	case "newMessage", "messageUpdated", "messageDeleted", "directMessageNotification":
		var msg storage.Message
		if err := env.DecodePayload(&msg); err != nil {
			return nil, err
		}
		return &msg, nil
	case "newChat":
		var chat storage.Chat
		if err := env.DecodePayload(&chat); err != nil {
			return nil, err
		}
		return &chat, nil
	case "userTyping":
		var typing event.TypingPayload
		if err := env.DecodePayload(&typing); err != nil {
			return nil, err
		}
		return &typing, nil
	case "replyNotification":
		var reply event.ReplyNotificationPayload
		if err := env.DecodePayload(&reply); err != nil {
			return nil, err
		}
		return &reply, nil
	case "postActivity":
		var activity event.PostActivityPayload
		if err := env.DecodePayload(&activity); err != nil {
			return nil, err
		}
		return &activity, nil
	case "userOnlineStatus":
		var status event.OnlineStatusPayload
		if err := env.DecodePayload(&status); err != nil {
			return nil, err
		}
		return &status, nil
	case "chatEvents":
		return chatEventResult(env)
	default:
		return nil, errUnknownSubscription(field)
	}
}

func chatEventResult(env *event.Envelope) (*ChatEvent, error) {
	ev := &ChatEvent{
		Kind:        string(env.Operation.Kind),
		Destructive: env.Operation.Destructive,
		ChatID:      env.ChatID,
	}
	switch env.Operation.Kind {
	case event.OpChatUpdated, event.OpChatDeleted:
		var chat storage.Chat
		if err := env.DecodePayload(&chat); err != nil {
			return nil, err
		}
		ev.Chat = &chat
	case event.OpParticipantAdded, event.OpParticipantRemoved:
		var participant event.ParticipantPayload
		if err := env.DecodePayload(&participant); err != nil {
			return nil, err
		}
		ev.Participant = &participant
	}
	return ev, nil
}

type errUnknownSubscription string

func (e errUnknownSubscription) Error() string {
	return "unknown subscription field " + string(e)
}

// publishPresence announces an online status change to everyone sharing
// a chat with the user. Best-effort like all event publishing.
func (h *subscriptionHandler) publishPresence(ctx context.Context, userID int64, online bool) {
	audience := h.presenceAudience(ctx, userID)
	h.publisher.Publish(ctx, service.Event{
		Topics:         []event.Topic{event.TopicUserOnlineStatus},
		Payload:        event.OnlineStatusPayload{UserID: userID, Online: online},
		SenderID:       userID,
		ParticipantIDs: audience,
	})
}

// presenceAudience is the union of participants across the user's chats.
func (h *subscriptionHandler) presenceAudience(ctx context.Context, userID int64) []int64 {
	chats, err := h.chats.GetChatsForUser(ctx, userID)
	if err != nil {
		h.logger.Warn("failed to resolve presence audience", "userID", userID, "error", err)
		return []int64{userID}
	}

	seen := map[int64]struct{}{userID: {}}
	audience := []int64{userID}
	for _, chat := range chats {
		members, err := h.chats.GetChatParticipants(ctx, chat.ID)
		if err != nil {
			continue
		}
		for _, id := range members {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			audience = append(audience, id)
		}
	}
	return audience
}
