package ws

import (
	"context"
	"log/slog"
	"time"

	"github.com/chatify/backend/internal/models"
)

// MessageStore is the slice of message persistence the live path needs.
type MessageStore interface {
	Create(ctx context.Context, msg models.Message) error
	UpdateStatus(ctx context.Context, id int64, receiver string, status models.MessageStatus) (bool, error)
}

// Relay forwards chat events from a sender to the receiver's live
// connection, persisting every message on the way through.
type Relay struct {
	registry *Registry
	store    MessageStore
	logger   *slog.Logger
}

// Send persists the message and forwards it to the receiver when online. The
// server owns the initial status; whatever the client supplied is
// overwritten with sent. A persistence failure is logged and does not block
// live delivery: the relay favors liveness over durability. An offline
// receiver gets nothing live and will see the message on its next history
// fetch.
func (r *Relay) Send(ctx context.Context, msg models.Message) {
	msg.Status = models.StatusSent
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	if err := r.store.Create(ctx, msg); err != nil {
		r.logger.Warn("message not persisted, delivering live only",
			"messageId", msg.ID, "sender", msg.Sender, "error", err)
	}

	receiver, ok := r.registry.Lookup(msg.Receiver)
	if !ok {
		return
	}
	data, err := marshalEvent(EventMessage, msg)
	if err != nil {
		r.logger.Error("encode message event", "messageId", msg.ID, "error", err)
		return
	}
	receiver.enqueue(data)
}

// Typing forwards a typing hint to the receiver's live connection. Hints are
// never persisted, queued, or retried; an offline receiver simply misses it.
func (r *Relay) Typing(sender, receiver string) {
	peer, ok := r.registry.Lookup(receiver)
	if !ok {
		return
	}
	if data, err := marshalEvent(EventTyping, TypingPayload{Sender: sender, Receiver: receiver}); err == nil {
		peer.enqueue(data)
	}
}
