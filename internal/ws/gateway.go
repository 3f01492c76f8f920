package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chatify/backend/internal/models"
)

// TokenVerifier proves an access token and returns the identity it was
// issued to.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// LastSeenStore records when an identity was last connected.
type LastSeenStore interface {
	TouchLastSeen(ctx context.Context, id string, at time.Time) error
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Gateway upgrades HTTP requests into live connections and dispatches every
// inbound frame to the presence, relay, and tracker components. It also
// pushes friend-graph notifications, so the HTTP side can raise live events
// without knowing about connections.
type Gateway struct {
	registry *Registry
	presence *Presence
	relay    *Relay
	tracker  *Tracker
	verifier TokenVerifier
	lastSeen LastSeenStore
	logger   *slog.Logger
}

// NewGateway wires a gateway and its realtime components around a shared
// registry. lastSeen may be nil; disconnect timestamps are then not recorded.
func NewGateway(store MessageStore, verifier TokenVerifier, lastSeen LastSeenStore, logger *slog.Logger) *Gateway {
	registry := NewRegistry()
	return &Gateway{
		registry: registry,
		presence: &Presence{registry: registry},
		relay:    &Relay{registry: registry, store: store, logger: logger},
		tracker:  &Tracker{registry: registry, store: store, logger: logger},
		verifier: verifier,
		lastSeen: lastSeen,
		logger:   logger,
	}
}

// ServeHTTP authenticates the request by its token query parameter and
// upgrades it to a live connection. The identity proven here bounds what the
// connection may do: it can only join as itself, send as itself, and
// acknowledge as itself.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	userID, err := g.verifier.Verify(r.Context(), token)
	if err != nil {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &Client{
		gateway: g,
		conn:    conn,
		userID:  userID,
		send:    make(chan []byte, sendQueueSize),
	}

	g.logger.Info("websocket connected", "user_id", userID)
	go c.writePump()
	go c.readPump()
}

// dispatch handles one inbound frame from a connection. Frames run on the
// connection's read goroutine, which keeps events from one sender in order.
func (g *Gateway) dispatch(c *Client, data []byte) {
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		c.sendError("malformed event")
		return
	}

	ctx := context.Background()

	switch evt.Type {
	case EventJoin:
		var p JoinPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil || p.Identity == "" {
			c.sendError("malformed join payload")
			return
		}
		if p.Identity != c.userID {
			c.sendError("join identity does not match credentials")
			return
		}
		g.presence.Join(c, p.Identity)

	case EventMessage:
		var msg models.Message
		if err := json.Unmarshal(evt.Payload, &msg); err != nil || msg.Receiver == "" {
			c.sendError("malformed message payload")
			return
		}
		msg.Sender = c.userID
		g.relay.Send(ctx, msg)

	case EventDeliveredAck:
		var ack AckPayload
		if err := json.Unmarshal(evt.Payload, &ack); err != nil {
			c.sendError("malformed acknowledgement payload")
			return
		}
		ack.Receiver = c.userID
		g.tracker.MarkDelivered(ctx, ack)

	case EventSeenAck:
		var ack AckPayload
		if err := json.Unmarshal(evt.Payload, &ack); err != nil {
			c.sendError("malformed acknowledgement payload")
			return
		}
		ack.Receiver = c.userID
		g.tracker.MarkSeen(ctx, ack)

	case EventTyping:
		var p TypingPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil || p.Receiver == "" {
			c.sendError("malformed typing payload")
			return
		}
		g.relay.Typing(c.userID, p.Receiver)

	default:
		c.sendError("unsupported event type")
	}
}

func (g *Gateway) disconnect(c *Client) {
	identity, ok := g.presence.Left(c)
	if !ok || g.lastSeen == nil {
		return
	}
	if err := g.lastSeen.TouchLastSeen(context.Background(), identity, time.Now().UTC()); err != nil {
		g.logger.Warn("last seen not recorded", "user_id", identity, "error", err)
	}
}

// FriendRequested pushes a live friend-request event to the recipient.
func (g *Gateway) FriendRequested(from, to string) {
	g.notify(EventFriendRequest, from, to, to)
}

// FriendAccepted pushes a live friend-accept event to both parties.
func (g *Gateway) FriendAccepted(from, to string) {
	g.notify(EventFriendAccept, from, to, from, to)
}

// FriendDeclined pushes a live friend-decline event to both parties.
func (g *Gateway) FriendDeclined(from, to string) {
	g.notify(EventFriendDecline, from, to, from, to)
}

// FriendRemoved pushes a live friend-remove event to both parties.
func (g *Gateway) FriendRemoved(from, to string) {
	g.notify(EventFriendRemove, from, to, from, to)
}

func (g *Gateway) notify(kind EventType, from, to string, recipients ...string) {
	data, err := marshalEvent(kind, FriendPayload{From: from, To: to})
	if err != nil {
		return
	}
	for _, identity := range recipients {
		if peer, ok := g.registry.Lookup(identity); ok {
			peer.enqueue(data)
		}
	}
}
