// Package broker provides the duplex publish/subscribe client used by the
// event pipeline. It holds two independent NATS connections: one dedicated
// to publishing mutation events, one dedicated to feeding subscription
// streams. Mutation fan-out must never share flow control with slow
// subscriber delivery, so the split is structural, not tunable.
package broker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/AmrMohamed27/threadit-server-sub001/errors"
	"github.com/AmrMohamed27/threadit-server-sub001/event"
	"github.com/AmrMohamed27/threadit-server-sub001/natsclient"
)

// subscriptionBuffer bounds the per-subscription channel. A subscriber
// that stalls past this many undelivered envelopes starts losing events,
// matching the at-most-once contract.
const subscriptionBuffer = 64

// Client is the process-wide broker handle. Construct one per process and
// inject it; resolvers receive the subscribe capability, mutation services
// the publish capability.
type Client struct {
	pub    *natsclient.Client
	sub    *natsclient.Client
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Publisher is the capability handed to mutation services.
type Publisher interface {
	Publish(ctx context.Context, env *event.Envelope) error
}

// Subscriber is the capability handed to subscription resolvers.
type Subscriber interface {
	Subscribe(ctx context.Context, topics ...event.Topic) (*Subscription, error)
}

// New creates a broker client over an already-constructed connection pair.
func New(pub, sub *natsclient.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		pub:    pub,
		sub:    sub,
		logger: logger.With("component", "broker"),
	}
}

// Connect establishes both underlying connections.
func Connect(ctx context.Context, url string, logger *slog.Logger, opts ...natsclient.ClientOption) (*Client, error) {
	pubOpts := append([]natsclient.ClientOption{natsclient.WithName("threadit-publish")}, opts...)
	pub, err := natsclient.NewClient(url, pubOpts...)
	if err != nil {
		return nil, err
	}
	if err := pub.Connect(ctx); err != nil {
		return nil, err
	}

	subOpts := append([]natsclient.ClientOption{natsclient.WithName("threadit-subscribe")}, opts...)
	sub, err := natsclient.NewClient(url, subOpts...)
	if err != nil {
		_ = pub.Close(ctx)
		return nil, err
	}
	if err := sub.Connect(ctx); err != nil {
		_ = pub.Close(ctx)
		return nil, err
	}

	return New(pub, sub, logger), nil
}

// Publish sends an envelope to its topic on the dedicated publish
// connection. Per-topic ordering follows publish order on this connection.
// Publishing with zero active subscribers succeeds and delivers nothing.
func (c *Client) Publish(ctx context.Context, env *event.Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}

	data, err := env.Marshal()
	if err != nil {
		return err
	}

	if err := c.pub.Publish(ctx, env.Topic.Subject(), data); err != nil {
		return errors.WrapTransient(err, "Broker", "Publish", "publish "+env.Topic.String())
	}
	return nil
}

// Subscription is one logical stream of envelopes over one or more topics.
// Envelopes arrive on C until the owning context is cancelled or
// Unsubscribe is called, after which C is closed.
type Subscription struct {
	C <-chan *event.Envelope

	ch     chan *event.Envelope
	subs   []*nats.Subscription
	cancel context.CancelFunc
	once   sync.Once
	logger *slog.Logger

	// mu serializes deliveries against teardown so the channel is never
	// written after it closes.
	mu     sync.Mutex
	closed bool
}

// NewLocalSubscription creates a stream detached from any broker
// connection. The returned deliver function feeds it with the same
// buffer-or-drop semantics as a broker-backed stream. In-process fan-in
// and tests of subscription consumers use this.
func NewLocalSubscription(buffer int, logger *slog.Logger) (*Subscription, func(*event.Envelope) bool) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Subscription{
		ch:     make(chan *event.Envelope, buffer),
		cancel: cancel,
		logger: logger,
	}
	s.C = s.ch

	go func() {
		<-ctx.Done()
		s.teardown()
	}()

	return s, s.deliver
}

// deliver hands an envelope to the stream unless it is closed or full.
func (s *Subscription) deliver(env *event.Envelope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- env:
		return true
	default:
		return false
	}
}

// Subscribe opens an independent logical stream over the given topics.
// Each call creates its own broker-side subscriptions; streams do not
// share buffers. Events published while a subscriber is disconnected are
// not replayed.
func (c *Client) Subscribe(ctx context.Context, topics ...event.Topic) (*Subscription, error) {
	if len(topics) == 0 {
		return nil, errors.WrapInvalid(errors.ErrSubscribeFailed, "Broker", "Subscribe", "no topics given")
	}
	for _, t := range topics {
		if !t.Valid() {
			return nil, errors.WrapInvalid(errors.ErrSubscribeFailed, "Broker", "Subscribe",
				"unknown topic "+t.String())
		}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errors.WrapInvalid(errors.ErrShuttingDown, "Broker", "Subscribe", "broker closed")
	}
	c.mu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)

	s := &Subscription{
		ch:     make(chan *event.Envelope, subscriptionBuffer),
		cancel: cancel,
		logger: c.logger,
	}
	s.C = s.ch

	for _, topic := range topics {
		sub, err := c.sub.Subscribe(topic.Subject(), func(data []byte) {
			env, err := event.Unmarshal(data)
			if err != nil {
				c.logger.Warn("dropping undecodable envelope", "error", err)
				return
			}
			if !s.deliver(env) {
				// Buffer full or stream closing: drop rather than stall
				// the shared subscribe connection.
				c.logger.Debug("dropped envelope", "topic", env.Topic)
			}
		})
		if err != nil {
			s.Unsubscribe()
			return nil, errors.WrapTransient(err, "Broker", "Subscribe", "subscribe "+topic.String())
		}
		s.subs = append(s.subs, sub)
	}

	// Close the stream when the owning connection's context ends.
	go func() {
		<-subCtx.Done()
		s.teardown()
	}()

	return s, nil
}

// Unsubscribe terminates the stream and closes C. Safe to call more than
// once and concurrently with context cancellation.
func (s *Subscription) Unsubscribe() {
	s.cancel()
	s.teardown()
}

func (s *Subscription) teardown() {
	s.once.Do(func() {
		for _, sub := range s.subs {
			if err := sub.Unsubscribe(); err != nil {
				s.logger.Debug("unsubscribe error", "error", err)
			}
		}
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
}

// Healthy reports whether both connections are up.
func (c *Client) Healthy() bool {
	return c.pub.IsHealthy() && c.sub.IsHealthy()
}

// Close drains and closes both connections.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	pubErr := c.pub.Close(ctx)
	subErr := c.sub.Close(ctx)
	if pubErr != nil {
		return pubErr
	}
	return subErr
}

var (
	_ Publisher  = (*Client)(nil)
	_ Subscriber = (*Client)(nil)
)
