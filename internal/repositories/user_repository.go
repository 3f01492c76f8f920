package repositories

import (
	"context"

	"github.com/chatify/backend/internal/models"
)

// UserRepository defines the data access contract for user records. A user
// record carries its friends list and incoming friend requests embedded, and
// Save rewrites exactly one record: mutations spanning two users are two
// independent Save calls with no transaction across them.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	Save(ctx context.Context, user models.User) error
	List(ctx context.Context) ([]models.User, error)
	// PendingRequestsFrom returns pending requests the given user has sent,
	// regardless of which recipient record they are embedded in.
	PendingRequestsFrom(ctx context.Context, userID string) ([]models.FriendRequest, error)
}
