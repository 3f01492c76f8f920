package models

import "time"

// User represents an account within the Chatify platform. The friends list
// and the incoming friend requests are embedded in the user record itself, so
// each side of a friendship is stored and updated independently.
type User struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	Password       string          `json:"-"`
	AvatarURL      string          `json:"avatarUrl,omitempty"`
	LastSeen       *time.Time      `json:"lastSeen,omitempty"`
	Friends        []string        `json:"friends"`
	FriendRequests []FriendRequest `json:"friendRequests"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// HasFriend reports whether the given identity is already on the user's
// friends list.
func (u User) HasFriend(id string) bool {
	for _, f := range u.Friends {
		if f == id {
			return true
		}
	}
	return false
}

// RequestStatus tracks the lifecycle of a friend request. Transitions are
// one-way: pending requests terminate in accepted or declined and never
// revert.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestDeclined RequestStatus = "declined"
)

// FriendRequest represents the invitation workflow between two users. It is
// stored embedded within the recipient's user record.
type FriendRequest struct {
	ID          string        `json:"id"`
	From        string        `json:"from"`
	To          string        `json:"to"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
	RespondedAt *time.Time    `json:"respondedAt,omitempty"`
}

// MessageStatus is the delivery state of a chat message. Status only moves
// forward: sent, then delivered, then seen.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusSeen      MessageStatus = "seen"
)

// Rank orders statuses so that later delivery states compare higher.
// Unknown values rank below sent.
func (s MessageStatus) Rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusSeen:
		return 3
	default:
		return 0
	}
}

// MergeStatus resolves two observations of the same message: the
// higher-ranked status wins, ties keep the existing value. The operation is
// idempotent and commutative, which keeps the live stream and a history fetch
// from regressing each other's view.
func MergeStatus(existing, incoming MessageStatus) MessageStatus {
	if incoming.Rank() > existing.Rank() {
		return incoming
	}
	return existing
}

// Message is a direct chat message between two users. The id is assigned by
// the sending client and must be unique; the server forces the initial status
// to sent.
type Message struct {
	ID        int64         `json:"id"`
	Sender    string        `json:"sender"`
	Receiver  string        `json:"receiver"`
	Text      string        `json:"text"`
	Timestamp time.Time     `json:"timestamp"`
	Status    MessageStatus `json:"status"`
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
