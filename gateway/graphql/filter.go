package graphql

import (
	"context"

	"github.com/AmrMohamed27/threadit-server-sub001/auth"
	"github.com/AmrMohamed27/threadit-server-sub001/event"
)

// ParticipantChecker answers whether a user belongs to a chat. The
// storage chat backend satisfies it.
type ParticipantChecker interface {
	CheckChatParticipant(ctx context.Context, userID, chatID int64) (bool, error)
}

// Decide is the per-envelope authorization filter. Every envelope that
// reaches a subscriber passes through here exactly once; the result is
// forward (true) or silent drop (false). It is a pure decision: no
// envelope mutation, no side effects beyond the optional membership
// lookup.
//
// Rules, in order:
//   - malformed envelopes and anonymous principals always drop;
//   - on the shared chat-events channel an envelope must carry an
//     operation descriptor, a non-empty participant snapshot, and no
//     field errors, otherwise it drops before any identity check;
//   - the sender of the envelope always receives it, with no lookup;
//   - a non-empty participant snapshot is authoritative: the principal
//     forwards only if listed, which is how removed participants still
//     receive the removal event;
//   - without a snapshot, membership is resolved against current state,
//     and lookup failure drops.
func Decide(ctx context.Context, env *event.Envelope, p auth.Principal, checker ParticipantChecker, shared bool) bool {
	if env == nil || !env.Topic.Valid() {
		return false
	}
	if !p.Authenticated {
		return false
	}

	if shared {
		if env.Operation == nil || len(env.ParticipantIDs) == 0 || env.HasErrors() {
			return false
		}
	}

	if env.SenderID == p.UserID {
		return true
	}

	if len(env.ParticipantIDs) > 0 {
		for _, id := range env.ParticipantIDs {
			if id == p.UserID {
				return true
			}
		}
		return false
	}

	if env.ChatID == 0 || checker == nil {
		return false
	}
	ok, err := checker.CheckChatParticipant(ctx, p.UserID, env.ChatID)
	if err != nil {
		return false
	}
	return ok
}
