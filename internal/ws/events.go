package ws

import "encoding/json"

// EventType names a frame kind on the live event channel.
type EventType string

// Client to server event kinds. EventMessage and EventTyping flow in both
// directions.
const (
	EventJoin         EventType = "join"
	EventMessage      EventType = "message"
	EventDeliveredAck EventType = "delivered-ack"
	EventSeenAck      EventType = "seen-ack"
	EventTyping       EventType = "typing"
)

// Server to client event kinds.
const (
	EventOnlineSnapshot EventType = "online-snapshot"
	EventOnline         EventType = "online"
	EventOffline        EventType = "offline"
	EventDelivered      EventType = "delivered"
	EventSeen           EventType = "seen"
	EventFriendRequest  EventType = "friend-request"
	EventFriendAccept   EventType = "friend-accept"
	EventFriendDecline  EventType = "friend-decline"
	EventFriendRemove   EventType = "friend-remove"
	EventError          EventType = "error"
)

// Event is the envelope for every frame exchanged on a live connection.
type Event struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinPayload announces the identity of a freshly connected client.
type JoinPayload struct {
	Identity string `json:"identity"`
}

// AckPayload is a receiver-side delivery or seen acknowledgement.
type AckPayload struct {
	MessageID int64  `json:"messageId"`
	Sender    string `json:"sender"`
	Receiver  string `json:"receiver"`
}

// TypingPayload is a fire-and-forget typing hint.
type TypingPayload struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
}

// SnapshotPayload carries the full online set sent to a joining client.
type SnapshotPayload struct {
	OnlineIdentities []string `json:"onlineIdentities"`
}

// PresencePayload announces a single identity going online or offline.
type PresencePayload struct {
	Identity string `json:"identity"`
}

// ReceiptPayload notifies a sender that the receiver advanced a message status.
type ReceiptPayload struct {
	MessageID int64  `json:"messageId"`
	Receiver  string `json:"receiver"`
}

// FriendPayload carries the complete pair for a friend-graph event, so
// clients can update their state without a follow-up fetch.
type FriendPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ErrorPayload is a structured refusal pushed to the offending client.
type ErrorPayload struct {
	Error string `json:"error"`
}

func marshalEvent(t EventType, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{Type: t, Payload: raw})
}
