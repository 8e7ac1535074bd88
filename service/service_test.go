package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/AmrMohamed27/threadit-server-sub001/auth"
	"github.com/AmrMohamed27/threadit-server-sub001/event"
	"github.com/AmrMohamed27/threadit-server-sub001/storage/memory"
)

// capturingBroker records every published envelope.
type capturingBroker struct {
	mu        sync.Mutex
	envelopes []*event.Envelope
	err       error
}

func (b *capturingBroker) Publish(_ context.Context, env *event.Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.envelopes = append(b.envelopes, env)
	return nil
}

func (b *capturingBroker) published() []*event.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*event.Envelope(nil), b.envelopes...)
}

func (b *capturingBroker) topics() []event.Topic {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]event.Topic, 0, len(b.envelopes))
	for _, env := range b.envelopes {
		out = append(out, env.Topic)
	}
	return out
}

type fixture struct {
	backend *memory.Backend
	broker  *capturingBroker
	users   *UserService
	chats   *ChatService
	msgs    *MessageService
	forum   *ForumService
}

func newFixture() *fixture {
	backend := memory.New()
	captured := &capturingBroker{}
	logger := slog.Default()
	pub := NewPublisher(captured, logger)
	return &fixture{
		backend: backend,
		broker:  captured,
		users:   NewUserService(backend, logger),
		chats:   NewChatService(backend, pub, logger),
		msgs:    NewMessageService(backend, backend, pub, logger),
		forum:   NewForumService(backend, pub, logger),
	}
}

// as returns a context authenticated as the given user.
func as(userID int64) context.Context {
	return auth.WithPrincipal(context.Background(), auth.User(userID))
}

// seedUser registers a user directly against the backend.
func (f *fixture) seedUser(username string) int64 {
	u, err := f.backend.CreateUser(context.Background(), username, username+"@example.com", "hash")
	if err != nil {
		panic(err)
	}
	return u.ID
}
