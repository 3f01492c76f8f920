package ws

import (
	"context"
	"log/slog"

	"github.com/chatify/backend/internal/models"
)

// Tracker advances per-message delivery status from receiver-side
// acknowledgements. Status moves forward only; the store enforces the rank
// guard, so a duplicate or late acknowledgement never regresses a message
// and never errors.
type Tracker struct {
	registry *Registry
	store    MessageStore
	logger   *slog.Logger
}

// MarkDelivered persists the delivered status and routes a live receipt to
// the sender's connection, if any.
func (t *Tracker) MarkDelivered(ctx context.Context, ack AckPayload) {
	t.advance(ctx, ack, models.StatusDelivered, EventDelivered)
}

// MarkSeen persists the seen status and routes a live receipt to the
// sender's connection, if any.
func (t *Tracker) MarkSeen(ctx context.Context, ack AckPayload) {
	t.advance(ctx, ack, models.StatusSeen, EventSeen)
}

func (t *Tracker) advance(ctx context.Context, ack AckPayload, status models.MessageStatus, kind EventType) {
	// Persist first so a history fetch and the live stream cannot disagree
	// for long. The store only advances messages addressed to ack.Receiver,
	// which the gateway stamps with the acknowledging connection's identity:
	// a connection cannot move another receiver's message, and an ack that
	// changed nothing routes no receipt. A store failure is logged; the live
	// hint still goes out for the real receiver to stay lively.
	advanced, err := t.store.UpdateStatus(ctx, ack.MessageID, ack.Receiver, status)
	if err != nil {
		t.logger.Warn("message status not persisted",
			"messageId", ack.MessageID, "status", status, "error", err)
	} else if !advanced {
		return
	}

	sender, ok := t.registry.Lookup(ack.Sender)
	if !ok {
		// The live receipt is a hint; the sender catches up from history.
		return
	}
	if data, err := marshalEvent(kind, ReceiptPayload{MessageID: ack.MessageID, Receiver: ack.Receiver}); err == nil {
		sender.enqueue(data)
	}
}
