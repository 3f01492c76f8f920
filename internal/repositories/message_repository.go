package repositories

import (
	"context"

	"github.com/chatify/backend/internal/models"
)

// MessageRepository defines data access for direct messages.
type MessageRepository interface {
	Create(ctx context.Context, msg models.Message) error
	// ListBetween returns every message exchanged between the two users in
	// ascending timestamp order.
	ListBetween(ctx context.Context, a, b string) ([]models.Message, error)
	// UpdateStatus advances a message status on behalf of its receiver and
	// reports whether the message changed. The update is monotonic: a
	// lower- or equal-ranked status is a no-op, not an error, so duplicate
	// acknowledgements are harmless. A receiver that is not the message's
	// addressee changes nothing.
	UpdateStatus(ctx context.Context, id int64, receiver string, status models.MessageStatus) (bool, error)
	// DeleteBetween removes every message exchanged between the two users.
	DeleteBetween(ctx context.Context, a, b string) error
}
