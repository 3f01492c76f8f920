package friends

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/chatify/backend/internal/models"
	"github.com/chatify/backend/internal/repositories"
)

// Sentinel errors for friend-graph mutations. Handlers map these to response
// statuses.
var (
	ErrInvalidTarget    = errors.New("friends: invalid target")
	ErrUserNotFound     = errors.New("friends: user not found")
	ErrAlreadyFriends   = errors.New("friends: already friends")
	ErrDuplicatePending = errors.New("friends: request already pending")
	ErrRequestNotFound  = errors.New("friends: request not found")
)

// PartialMutationError reports a mutation that updated the first user record
// but failed on the second. The graph is left asymmetric until repaired by a
// later mutation or by hand; callers should treat the operation as applied.
type PartialMutationError struct {
	Op       string
	Identity string
	Err      error
}

func (e *PartialMutationError) Error() string {
	return fmt.Sprintf("friends: %s left record %q out of sync: %v", e.Op, e.Identity, e.Err)
}

func (e *PartialMutationError) Unwrap() error { return e.Err }

// UserStore is the slice of user persistence the coordinator needs. Save
// rewrites one whole record; there is no cross-record transaction.
type UserStore interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	Save(ctx context.Context, user models.User) error
}

// MessageStore removes conversations when a friendship ends.
type MessageStore interface {
	DeleteBetween(ctx context.Context, a, b string) error
}

// Notifier pushes live friend-graph events. A nil-safe no-op implementation
// is fine for tests.
type Notifier interface {
	FriendRequested(from, to string)
	FriendAccepted(from, to string)
	FriendDeclined(from, to string)
	FriendRemoved(from, to string)
}

// Coordinator owns every friend-graph mutation. Each mutation touches one or
// two whole user records; when the second write fails the first is not
// rolled back, and the inconsistency is surfaced as a PartialMutationError.
type Coordinator struct {
	users    UserStore
	messages MessageStore
	notifier Notifier
	logger   *slog.Logger
	nowFunc  func() time.Time
}

// NewCoordinator wires a coordinator over the given stores.
func NewCoordinator(users UserStore, messages MessageStore, notifier Notifier, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		users:    users,
		messages: messages,
		notifier: notifier,
		logger:   logger,
		nowFunc:  time.Now,
	}
}

// Request records a pending friend request on the recipient's record. The
// sender's record is untouched; their outgoing view is derived by querying
// pending requests they originated.
func (c *Coordinator) Request(ctx context.Context, from, to string) (models.FriendRequest, error) {
	if from == to {
		return models.FriendRequest{}, ErrInvalidTarget
	}

	sender, err := c.users.FindByID(ctx, from)
	if err != nil {
		return models.FriendRequest{}, c.mapLookupErr(err)
	}
	recipient, err := c.users.FindByID(ctx, to)
	if err != nil {
		return models.FriendRequest{}, c.mapLookupErr(err)
	}

	if sender.HasFriend(to) || recipient.HasFriend(from) {
		return models.FriendRequest{}, ErrAlreadyFriends
	}
	for _, req := range recipient.FriendRequests {
		if req.From == from && req.Status == models.RequestPending {
			return models.FriendRequest{}, ErrDuplicatePending
		}
	}

	request := models.FriendRequest{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Status:    models.RequestPending,
		CreatedAt: c.nowFunc().UTC(),
	}
	recipient.FriendRequests = append(recipient.FriendRequests, request)
	if err := c.users.Save(ctx, recipient); err != nil {
		return models.FriendRequest{}, fmt.Errorf("save friend request: %w", err)
	}

	c.notifier.FriendRequested(from, to)
	return request, nil
}

// Accept resolves a pending request on the accepting user's record, adds the
// friendship to both records, and mirrors a resolved copy of the request
// onto the original sender's record so both sides keep a history entry. The
// accepting user's record is written first and is authoritative; a failure
// on the sender's record yields a PartialMutationError.
func (c *Coordinator) Accept(ctx context.Context, userID, requestID string) error {
	user, err := c.users.FindByID(ctx, userID)
	if err != nil {
		return c.mapLookupErr(err)
	}

	idx := findPending(user.FriendRequests, requestID, userID)
	if idx < 0 {
		return ErrRequestNotFound
	}
	now := c.nowFunc().UTC()
	req := &user.FriendRequests[idx]
	req.Status = models.RequestAccepted
	req.RespondedAt = &now

	from := req.From
	if !user.HasFriend(from) {
		user.Friends = append(user.Friends, from)
	}
	if err := c.users.Save(ctx, user); err != nil {
		return fmt.Errorf("save accepted request: %w", err)
	}

	if err := c.mirrorAccept(ctx, from, userID, *req); err != nil {
		perr := &PartialMutationError{Op: "accept", Identity: from, Err: err}
		c.logger.Error("friend accept left records out of sync",
			"from", from, "to", userID, "request_id", requestID, "error", err)
		c.notifier.FriendAccepted(from, userID)
		return perr
	}

	c.notifier.FriendAccepted(from, userID)
	return nil
}

// mirrorAccept applies the accepted friendship to the original sender's
// record: the new friend plus a resolved copy of the request for history.
func (c *Coordinator) mirrorAccept(ctx context.Context, from, to string, req models.FriendRequest) error {
	sender, err := c.users.FindByID(ctx, from)
	if err != nil {
		return err
	}
	if !sender.HasFriend(to) {
		sender.Friends = append(sender.Friends, to)
	}
	mirrored := false
	for i := range sender.FriendRequests {
		if sender.FriendRequests[i].ID == req.ID {
			sender.FriendRequests[i] = req
			mirrored = true
			break
		}
	}
	if !mirrored {
		sender.FriendRequests = append(sender.FriendRequests, req)
	}
	return c.users.Save(ctx, sender)
}

// Decline resolves a pending request on the declining user's record. Only
// that one record changes, so a decline can never go partial.
func (c *Coordinator) Decline(ctx context.Context, userID, requestID string) error {
	user, err := c.users.FindByID(ctx, userID)
	if err != nil {
		return c.mapLookupErr(err)
	}

	idx := findPending(user.FriendRequests, requestID, userID)
	if idx < 0 {
		return ErrRequestNotFound
	}
	now := c.nowFunc().UTC()
	user.FriendRequests[idx].Status = models.RequestDeclined
	user.FriendRequests[idx].RespondedAt = &now

	from := user.FriendRequests[idx].From
	if err := c.users.Save(ctx, user); err != nil {
		return fmt.Errorf("save declined request: %w", err)
	}

	c.notifier.FriendDeclined(from, userID)
	return nil
}

// Remove ends a friendship: both friend lists lose the other identity and
// the conversation between them is deleted. Removing someone who is not a
// friend succeeds without side effects. The caller's record is written
// first; a failure after that point yields a PartialMutationError.
func (c *Coordinator) Remove(ctx context.Context, userID, friendID string) error {
	if userID == friendID {
		return ErrInvalidTarget
	}

	user, err := c.users.FindByID(ctx, userID)
	if err != nil {
		return c.mapLookupErr(err)
	}
	friend, err := c.users.FindByID(ctx, friendID)
	if err != nil {
		return c.mapLookupErr(err)
	}
	if !user.HasFriend(friendID) && !friend.HasFriend(userID) {
		// Already not friends. Removing again succeeds without touching
		// either record, the conversation, or the live channel.
		return nil
	}

	user.Friends = removeIdentity(user.Friends, friendID)
	if err := c.users.Save(ctx, user); err != nil {
		return fmt.Errorf("save friend removal: %w", err)
	}

	friend.Friends = removeIdentity(friend.Friends, userID)
	if err := c.users.Save(ctx, friend); err != nil {
		perr := &PartialMutationError{Op: "remove", Identity: friendID, Err: err}
		c.logger.Error("friend removal left records out of sync",
			"from", userID, "to", friendID, "error", err)
		c.notifier.FriendRemoved(userID, friendID)
		return perr
	}

	if err := c.messages.DeleteBetween(ctx, userID, friendID); err != nil {
		perr := &PartialMutationError{Op: "remove", Identity: friendID, Err: err}
		c.logger.Error("friend removal left conversation behind",
			"from", userID, "to", friendID, "error", err)
		c.notifier.FriendRemoved(userID, friendID)
		return perr
	}

	c.notifier.FriendRemoved(userID, friendID)
	return nil
}

func (c *Coordinator) mapLookupErr(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

func findPending(requests []models.FriendRequest, requestID, to string) int {
	for i, req := range requests {
		if req.ID == requestID && req.To == to && req.Status == models.RequestPending {
			return i
		}
	}
	return -1
}

func removeIdentity(identities []string, target string) []string {
	out := identities[:0]
	for _, id := range identities {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
