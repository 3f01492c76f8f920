package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/chatify/backend/internal/models"
	"github.com/chatify/backend/internal/repositories"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedMessage(t *testing.T, store *repositories.InMemoryMessageRepository, id int64) {
	t.Helper()
	err := store.Create(context.Background(), models.Message{
		ID:        id,
		Sender:    "alice",
		Receiver:  "bob",
		Text:      "hello",
		Timestamp: time.Now().UTC(),
		Status:    models.StatusSent,
	})
	if err != nil {
		t.Fatalf("seed message: %v", err)
	}
}

func TestTrackerPersistsAndRoutesReceipt(t *testing.T) {
	store := repositories.NewInMemoryMessageRepository()
	seedMessage(t, store, 7)

	registry := NewRegistry()
	sender := &Client{send: make(chan []byte, 8)}
	registry.Join("alice", sender)

	tracker := &Tracker{registry: registry, store: store, logger: discardLogger()}
	tracker.MarkDelivered(context.Background(), AckPayload{MessageID: 7, Sender: "alice", Receiver: "bob"})

	msg, ok := store.Get(7)
	if !ok || msg.Status != models.StatusDelivered {
		t.Fatalf("expected status delivered, got %q", msg.Status)
	}

	select {
	case data := <-sender.send:
		var evt Event
		if err := json.Unmarshal(data, &evt); err != nil {
			t.Fatalf("decode receipt: %v", err)
		}
		if evt.Type != EventDelivered {
			t.Fatalf("expected %q event, got %q", EventDelivered, evt.Type)
		}
		var receipt ReceiptPayload
		if err := json.Unmarshal(evt.Payload, &receipt); err != nil {
			t.Fatalf("decode receipt payload: %v", err)
		}
		if receipt.MessageID != 7 || receipt.Receiver != "bob" {
			t.Fatalf("unexpected receipt %+v", receipt)
		}
	default:
		t.Fatalf("expected a live receipt for the sender")
	}
}

func TestTrackerSeenAfterDelivered(t *testing.T) {
	store := repositories.NewInMemoryMessageRepository()
	seedMessage(t, store, 3)

	tracker := &Tracker{registry: NewRegistry(), store: store, logger: discardLogger()}
	ack := AckPayload{MessageID: 3, Sender: "alice", Receiver: "bob"}

	tracker.MarkDelivered(context.Background(), ack)
	tracker.MarkSeen(context.Background(), ack)

	msg, _ := store.Get(3)
	if msg.Status != models.StatusSeen {
		t.Fatalf("expected status seen, got %q", msg.Status)
	}
}

func TestTrackerDuplicateAndLateAcks(t *testing.T) {
	store := repositories.NewInMemoryMessageRepository()
	seedMessage(t, store, 9)

	tracker := &Tracker{registry: NewRegistry(), store: store, logger: discardLogger()}
	ack := AckPayload{MessageID: 9, Sender: "alice", Receiver: "bob"}

	tracker.MarkSeen(context.Background(), ack)
	// A late delivered acknowledgement must never pull the status back.
	tracker.MarkDelivered(context.Background(), ack)
	tracker.MarkSeen(context.Background(), ack)

	msg, _ := store.Get(9)
	if msg.Status != models.StatusSeen {
		t.Fatalf("expected status to stay seen, got %q", msg.Status)
	}
}

func TestTrackerOfflineSenderStillPersists(t *testing.T) {
	store := repositories.NewInMemoryMessageRepository()
	seedMessage(t, store, 5)

	tracker := &Tracker{registry: NewRegistry(), store: store, logger: discardLogger()}
	tracker.MarkSeen(context.Background(), AckPayload{MessageID: 5, Sender: "alice", Receiver: "bob"})

	msg, _ := store.Get(5)
	if msg.Status != models.StatusSeen {
		t.Fatalf("expected status seen with sender offline, got %q", msg.Status)
	}
}

func TestTrackerIgnoresAckFromNonReceiver(t *testing.T) {
	store := repositories.NewInMemoryMessageRepository()
	seedMessage(t, store, 42)

	registry := NewRegistry()
	sender := &Client{send: make(chan []byte, 8)}
	registry.Join("alice", sender)

	tracker := &Tracker{registry: registry, store: store, logger: discardLogger()}
	// The gateway stamps Receiver with the acknowledging connection's
	// identity; mallory is not a party to message 42.
	tracker.MarkSeen(context.Background(), AckPayload{MessageID: 42, Sender: "alice", Receiver: "mallory"})

	msg, _ := store.Get(42)
	if msg.Status != models.StatusSent {
		t.Fatalf("non-receiver advanced message status to %q", msg.Status)
	}
	select {
	case <-sender.send:
		t.Fatalf("sender received a receipt for an acknowledgement by a non-receiver")
	default:
	}
}

func TestTrackerDuplicateAckRoutesNoSecondReceipt(t *testing.T) {
	store := repositories.NewInMemoryMessageRepository()
	seedMessage(t, store, 11)

	registry := NewRegistry()
	sender := &Client{send: make(chan []byte, 8)}
	registry.Join("alice", sender)

	tracker := &Tracker{registry: registry, store: store, logger: discardLogger()}
	ack := AckPayload{MessageID: 11, Sender: "alice", Receiver: "bob"}
	tracker.MarkSeen(context.Background(), ack)
	tracker.MarkSeen(context.Background(), ack)

	if got := len(sender.send); got != 1 {
		t.Fatalf("expected exactly one receipt, got %d", got)
	}
}

type failingStatusStore struct {
	*repositories.InMemoryMessageRepository
}

func (s failingStatusStore) UpdateStatus(context.Context, int64, string, models.MessageStatus) (bool, error) {
	return false, errors.New("store down")
}

func TestTrackerRoutesReceiptDespiteStoreFailure(t *testing.T) {
	registry := NewRegistry()
	sender := &Client{send: make(chan []byte, 8)}
	registry.Join("alice", sender)

	tracker := &Tracker{
		registry: registry,
		store:    failingStatusStore{repositories.NewInMemoryMessageRepository()},
		logger:   discardLogger(),
	}
	tracker.MarkDelivered(context.Background(), AckPayload{MessageID: 1, Sender: "alice", Receiver: "bob"})

	select {
	case <-sender.send:
	default:
		t.Fatalf("expected live receipt even when persistence fails")
	}
}
