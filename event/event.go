// Package event defines the closed topic namespace and the envelope type
// carried between mutation publishers and subscription filters. Envelopes
// are transient: they exist only in transit through the broker and are
// never persisted.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/AmrMohamed27/threadit-server-sub001/errors"
)

// Topic is a named broker channel carrying one category of event.
// The topic set is closed and known at compile time; no dynamic topic
// creation is supported.
type Topic string

// All topics understood by publishers and subscribers.
const (
	TopicNewMessage             Topic = "NEW_MESSAGE"
	TopicMessageUpdated         Topic = "MESSAGE_UPDATED"
	TopicMessageDeleted         Topic = "MESSAGE_DELETED"
	TopicUserTyping             Topic = "USER_TYPING"
	TopicUserOnlineStatus       Topic = "USER_ONLINE_STATUS"
	TopicNewChat                Topic = "NEW_CHAT"
	TopicChatUpdated            Topic = "CHAT_UPDATED"
	TopicChatDeleted            Topic = "CHAT_DELETED"
	TopicChatParticipantAdded   Topic = "CHAT_PARTICIPANT_ADDED"
	TopicChatParticipantRemoved Topic = "CHAT_PARTICIPANT_REMOVED"
	TopicReplyNotification      Topic = "NEW_REPLY_NOTIFICATION"
	TopicPostActivity           Topic = "POST_ACTIVITY_NOTIFICATION"
	TopicDirectMessage          Topic = "DIRECT_MESSAGE_NOTIFICATION"
)

// allTopics is the authoritative registry used for validation.
var allTopics = map[Topic]struct{}{
	TopicNewMessage:             {},
	TopicMessageUpdated:         {},
	TopicMessageDeleted:         {},
	TopicUserTyping:             {},
	TopicUserOnlineStatus:       {},
	TopicNewChat:                {},
	TopicChatUpdated:            {},
	TopicChatDeleted:            {},
	TopicChatParticipantAdded:   {},
	TopicChatParticipantRemoved: {},
	TopicReplyNotification:      {},
	TopicPostActivity:           {},
	TopicDirectMessage:          {},
}

// Valid reports whether the topic belongs to the closed topic set.
func (t Topic) Valid() bool {
	_, ok := allTopics[t]
	return ok
}

// String returns the wire name of the topic.
func (t Topic) String() string { return string(t) }

// Subject returns the broker subject for the topic. Topics map 1:1 onto
// subjects under a fixed prefix so subscriber processes can bind to
// exactly the categories they care about.
func (t Topic) Subject() string {
	return "threadit.events." + string(t)
}

// ParseTopic converts a wire name into a Topic, rejecting names outside
// the closed set.
func ParseTopic(s string) (Topic, error) {
	t := Topic(s)
	if !t.Valid() {
		return "", errors.WrapInvalid(
			fmt.Errorf("unknown topic %q", s), "Topic", "ParseTopic", "validate name")
	}
	return t, nil
}

// OpKind identifies which chat-state operation an envelope describes when
// several operations share one subscription channel.
type OpKind string

// Operation kinds carried on the shared chat-events channel.
const (
	OpChatUpdated        OpKind = "updated"
	OpChatDeleted        OpKind = "deleted"
	OpParticipantAdded   OpKind = "participant_added"
	OpParticipantRemoved OpKind = "participant_removed"
)

// Operation describes the mutation that produced an envelope. It is only
// present on topics where multiple operation kinds share a channel.
type Operation struct {
	Kind OpKind `json:"kind"`

	// Destructive marks operations whose participant audience must come
	// from a snapshot taken before the write, not a live lookup.
	Destructive bool `json:"destructive,omitempty"`
}

// FieldError mirrors the GraphQL-level field error shape. Envelopes that
// carry field errors are artifacts of the original caller's error path
// and are dropped by subscription filters, never fanned out.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Envelope is the structured payload published to a topic. Payload holds
// the entity snapshot as produced by the mutation; ParticipantIDs is the
// audience snapshot captured before any destructive change.
type Envelope struct {
	Topic          Topic           `json:"topic"`
	Operation      *Operation      `json:"operation,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	ParticipantIDs []int64         `json:"participantIds,omitempty"`
	Errors         []FieldError    `json:"errors,omitempty"`

	// SenderID is the user whose mutation produced the event. Filters use
	// it for the own-action fast path.
	SenderID int64 `json:"senderId,omitempty"`

	// ChatID scopes chat and message topics for per-chat subscriptions.
	ChatID int64 `json:"chatId,omitempty"`

	PublishedAt time.Time `json:"publishedAt"`
}

// HasErrors reports whether the envelope carries field errors.
func (e *Envelope) HasErrors() bool { return len(e.Errors) > 0 }

// Validate checks the structural invariants an envelope must satisfy
// before it is published.
func (e *Envelope) Validate() error {
	if !e.Topic.Valid() {
		return errors.WrapInvalid(
			fmt.Errorf("unknown topic %q", e.Topic), "Envelope", "Validate", "check topic")
	}
	if e.Operation != nil && e.Operation.Kind == "" {
		return errors.WrapInvalid(
			fmt.Errorf("operation descriptor without kind"), "Envelope", "Validate", "check operation")
	}
	return nil
}

// Marshal encodes the envelope for the wire.
func (e *Envelope) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Envelope", "Marshal", "encode envelope")
	}
	return data, nil
}

// Unmarshal decodes an envelope off the wire. Unknown topics are rejected
// so a stale publisher cannot push events outside the closed set.
func Unmarshal(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, errors.WrapInvalid(err, "Envelope", "Unmarshal", "decode envelope")
	}
	if !e.Topic.Valid() {
		return nil, errors.WrapInvalid(
			fmt.Errorf("unknown topic %q", e.Topic), "Envelope", "Unmarshal", "check topic")
	}
	return &e, nil
}

// SetPayload marshals v into the envelope payload.
func (e *Envelope) SetPayload(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.WrapInvalid(err, "Envelope", "SetPayload", "encode payload")
	}
	e.Payload = data
	return nil
}

// DecodePayload unmarshals the envelope payload into v.
func (e *Envelope) DecodePayload(v any) error {
	if len(e.Payload) == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("empty payload"), "Envelope", "DecodePayload", "decode payload")
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return errors.WrapInvalid(err, "Envelope", "DecodePayload", "decode payload")
	}
	return nil
}
