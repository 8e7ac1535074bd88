package service

import (
	"context"
	"log/slog"

	"github.com/AmrMohamed27/threadit-server-sub001/broker"
	"github.com/AmrMohamed27/threadit-server-sub001/event"
)

// Event describes a mutation outcome to be announced on the broker. One
// envelope is published per topic, all sharing the same payload and
// metadata.
type Event struct {
	Topics         []event.Topic
	Payload        any
	SenderID       int64
	ChatID         int64
	ParticipantIDs []int64
	Operation      *event.Operation
	Errors         []event.FieldError
}

// Publisher turns mutation results into broker envelopes. Publishing is
// best-effort: a failed publish is logged and swallowed so it can never
// change the outcome of the mutation that triggered it.
type Publisher struct {
	broker broker.Publisher
	logger *slog.Logger
}

// NewPublisher creates a Publisher on top of a broker.
func NewPublisher(b broker.Publisher, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		broker: b,
		logger: logger.With("component", "publisher"),
	}
}

// Publish fans the event out to each of its topics. Events carrying field
// errors are skipped entirely: a failed mutation produced no state change
// worth announcing. Errors from the broker are logged, never returned.
func (p *Publisher) Publish(ctx context.Context, ev Event) {
	if len(ev.Errors) > 0 {
		p.logger.Debug("skipping event for failed mutation",
			"topics", ev.Topics,
			"senderID", ev.SenderID)
		return
	}

	for _, topic := range ev.Topics {
		env := &event.Envelope{
			Topic:          topic,
			Operation:      ev.Operation,
			ParticipantIDs: ev.ParticipantIDs,
			SenderID:       ev.SenderID,
			ChatID:         ev.ChatID,
		}
		if ev.Payload != nil {
			if err := env.SetPayload(ev.Payload); err != nil {
				p.logger.Error("failed to encode event payload",
					"topic", topic,
					"error", err)
				continue
			}
		}

		if err := p.broker.Publish(ctx, env); err != nil {
			p.logger.Warn("failed to publish event",
				"topic", topic,
				"chatID", ev.ChatID,
				"error", err)
		}
	}
}
