package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/chatify/backend/internal/models"
)

// NewInMemoryUserRepository returns a UserRepository backed by an in-memory map.
func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{users: make(map[string]models.User)}
}

// InMemoryUserRepository implements UserRepository for tests and local development.
type InMemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]models.User
}

// Create persists a new user record.
func (r *InMemoryUserRepository) Create(_ context.Context, user models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; ok {
		return ErrConflict
	}
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return ErrConflict
		}
	}
	r.users[user.ID] = cloneUser(user)
	return nil
}

// FindByID fetches a user record by identity.
func (r *InMemoryUserRepository) FindByID(_ context.Context, id string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return cloneUser(user), nil
}

// FindByEmail fetches a user record by email address.
func (r *InMemoryUserRepository) FindByEmail(_ context.Context, email string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Email == email {
			return cloneUser(user), nil
		}
	}
	return models.User{}, ErrNotFound
}

// Save rewrites an existing user record in full.
func (r *InMemoryUserRepository) Save(_ context.Context, user models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return ErrNotFound
	}
	r.users[user.ID] = cloneUser(user)
	return nil
}

// List returns every user record, ordered by identity.
func (r *InMemoryUserRepository) List(_ context.Context) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]models.User, 0, len(r.users))
	for _, user := range r.users {
		users = append(users, cloneUser(user))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// TouchLastSeen records when the user was last connected. Unknown identities
// are ignored.
func (r *InMemoryUserRepository) TouchLastSeen(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil
	}
	at = at.UTC()
	user.LastSeen = &at
	r.users[id] = user
	return nil
}

// PendingRequestsFrom returns pending friend requests sent by the given user.
func (r *InMemoryUserRepository) PendingRequestsFrom(_ context.Context, userID string) ([]models.FriendRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var requests []models.FriendRequest
	for _, user := range r.users {
		for _, req := range user.FriendRequests {
			if req.From == userID && req.Status == models.RequestPending {
				requests = append(requests, req)
			}
		}
	}
	return requests, nil
}

func cloneUser(user models.User) models.User {
	clone := user
	clone.Friends = append([]string(nil), user.Friends...)
	clone.FriendRequests = append([]models.FriendRequest(nil), user.FriendRequests...)
	return clone
}

// NewInMemoryMessageRepository returns a MessageRepository backed by an in-memory map.
func NewInMemoryMessageRepository() *InMemoryMessageRepository {
	return &InMemoryMessageRepository{messages: make(map[int64]models.Message)}
}

// InMemoryMessageRepository implements MessageRepository for tests and local development.
type InMemoryMessageRepository struct {
	mu       sync.RWMutex
	messages map[int64]models.Message
}

// Create persists a new message.
func (r *InMemoryMessageRepository) Create(_ context.Context, msg models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[msg.ID]; ok {
		return ErrConflict
	}
	r.messages[msg.ID] = msg
	return nil
}

// ListBetween returns the full conversation between two users, oldest first.
func (r *InMemoryMessageRepository) ListBetween(_ context.Context, a, b string) ([]models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var messages []models.Message
	for _, msg := range r.messages {
		if (msg.Sender == a && msg.Receiver == b) || (msg.Sender == b && msg.Receiver == a) {
			messages = append(messages, msg)
		}
	}
	sort.Slice(messages, func(i, j int) bool {
		if messages[i].Timestamp.Equal(messages[j].Timestamp) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})
	return messages, nil
}

// UpdateStatus advances a message status, never backwards, and only when the
// acknowledging receiver is the message's addressee. Unknown ids and
// mismatched receivers are ignored so duplicate, late, or misdirected
// acknowledgements stay harmless.
func (r *InMemoryMessageRepository) UpdateStatus(_ context.Context, id int64, receiver string, status models.MessageStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.messages[id]
	if !ok || msg.Receiver != receiver {
		return false, nil
	}
	merged := models.MergeStatus(msg.Status, status)
	if merged == msg.Status {
		return false, nil
	}
	msg.Status = merged
	r.messages[id] = msg
	return true, nil
}

// DeleteBetween removes the full conversation between two users.
func (r *InMemoryMessageRepository) DeleteBetween(_ context.Context, a, b string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, msg := range r.messages {
		if (msg.Sender == a && msg.Receiver == b) || (msg.Sender == b && msg.Receiver == a) {
			delete(r.messages, id)
		}
	}
	return nil
}

// Get returns a stored message by id. Useful for tests.
func (r *InMemoryMessageRepository) Get(id int64) (models.Message, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	msg, ok := r.messages[id]
	return msg, ok
}
