package handlers

import (
	"context"
	"io"

	"github.com/chatify/backend/internal/models"
)

// UserStore captures the user persistence operations required by HTTP handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	Save(ctx context.Context, user models.User) error
	List(ctx context.Context) ([]models.User, error)
	PendingRequestsFrom(ctx context.Context, userID string) ([]models.FriendRequest, error)
}

// SessionManager issues, refreshes, and proves authentication tokens.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Verify(ctx context.Context, accessToken string) (string, error)
}

// MessageStore captures the operations required by the history handlers.
type MessageStore interface {
	ListBetween(ctx context.Context, a, b string) ([]models.Message, error)
}

// FriendService owns friend-graph mutations.
type FriendService interface {
	Request(ctx context.Context, from, to string) (models.FriendRequest, error)
	Accept(ctx context.Context, userID, requestID string) error
	Decline(ctx context.Context, userID, requestID string) error
	Remove(ctx context.Context, userID, friendID string) error
}

// AvatarStorage persists uploaded avatar images and returns a public location.
type AvatarStorage interface {
	Save(ctx context.Context, name, contentType string, r io.Reader) (string, error)
}
