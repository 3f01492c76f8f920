package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatify/backend/internal/auth"
	"github.com/chatify/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresUserRepository_CreateFindAndSave(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)

	user := models.User{
		ID:       "alice",
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "secret-hash",
		Friends:  []string{"bob"},
		FriendRequests: []models.FriendRequest{{
			ID:        uuid.NewString(),
			From:      "carol",
			To:        "alice",
			Status:    models.RequestPending,
			CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		}},
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	dup := models.User{ID: "alice2", Email: user.Email, Password: "another-hash"}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict when creating duplicate email, got %v", err)
	}
	dupID := models.User{ID: user.ID, Email: "other@example.com", Password: "hash"}
	if err := repo.Create(ctx, dupID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict when creating duplicate handle, got %v", err)
	}

	fetched, err := repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if fetched.Email != user.Email || fetched.Password != user.Password {
		t.Fatalf("unexpected user fetched: %+v", fetched)
	}
	if len(fetched.Friends) != 1 || fetched.Friends[0] != "bob" {
		t.Fatalf("friends did not round-trip, got %+v", fetched.Friends)
	}
	if len(fetched.FriendRequests) != 1 || fetched.FriendRequests[0].From != "carol" {
		t.Fatalf("friend requests did not round-trip, got %+v", fetched.FriendRequests)
	}

	if _, err := repo.FindByEmail(ctx, user.Email); err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if _, err := repo.FindByID(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}

	updated := fetched
	updated.Friends = append(updated.Friends, "carol")
	updated.FriendRequests[0].Status = models.RequestAccepted
	if err := repo.Save(ctx, updated); err != nil {
		t.Fatalf("save user: %v", err)
	}

	fetched, err = repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find after save: %v", err)
	}
	if len(fetched.Friends) != 2 || fetched.FriendRequests[0].Status != models.RequestAccepted {
		t.Fatalf("expected saved record to persist, got %+v", fetched)
	}

	missing := models.User{ID: "ghost", Email: "missing@example.com", Password: "hash"}
	if err := repo.Save(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound saving missing user, got %v", err)
	}
}

func TestPostgresUserRepository_PendingRequestsFrom(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)
	now := time.Now().UTC().Truncate(time.Millisecond)

	createIntegrationUser(t, repo, "alice", nil)
	createIntegrationUser(t, repo, "bob", []models.FriendRequest{
		{ID: uuid.NewString(), From: "alice", To: "bob", Status: models.RequestPending, CreatedAt: now},
	})
	createIntegrationUser(t, repo, "carol", []models.FriendRequest{
		{ID: uuid.NewString(), From: "alice", To: "carol", Status: models.RequestAccepted, CreatedAt: now},
		{ID: uuid.NewString(), From: "bob", To: "carol", Status: models.RequestPending, CreatedAt: now},
	})

	outgoing, err := repo.PendingRequestsFrom(ctx, "alice")
	if err != nil {
		t.Fatalf("pending requests from: %v", err)
	}
	if len(outgoing) != 1 || outgoing[0].To != "bob" {
		t.Fatalf("expected one pending request to bob, got %+v", outgoing)
	}
}

func TestPostgresMessageRepository_Conversation(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresMessageRepository(testPool)
	base := time.Now().UTC().Truncate(time.Millisecond)

	seed := []models.Message{
		{ID: 2, Sender: "bob", Receiver: "alice", Text: "hey", Timestamp: base.Add(time.Minute), Status: models.StatusSent},
		{ID: 1, Sender: "alice", Receiver: "bob", Text: "hi", Timestamp: base, Status: models.StatusSent},
		{ID: 3, Sender: "alice", Receiver: "carol", Text: "other", Timestamp: base, Status: models.StatusSent},
	}
	for _, msg := range seed {
		if err := repo.Create(ctx, msg); err != nil {
			t.Fatalf("create message %d: %v", msg.ID, err)
		}
	}

	if err := repo.Create(ctx, seed[0]); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate message id, got %v", err)
	}

	conversation, err := repo.ListBetween(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("list between: %v", err)
	}
	if len(conversation) != 2 || conversation[0].ID != 1 || conversation[1].ID != 2 {
		t.Fatalf("unexpected conversation %+v", conversation)
	}

	// Status can only move forward; a late delivered ack after seen is a no-op.
	if advanced, err := repo.UpdateStatus(ctx, 1, "bob", models.StatusSeen); err != nil || !advanced {
		t.Fatalf("update status: advanced=%v err=%v", advanced, err)
	}
	if advanced, err := repo.UpdateStatus(ctx, 1, "bob", models.StatusDelivered); err != nil || advanced {
		t.Fatalf("late update status: advanced=%v err=%v", advanced, err)
	}
	conversation, _ = repo.ListBetween(ctx, "alice", "bob")
	if conversation[0].Status != models.StatusSeen {
		t.Fatalf("expected status seen, got %q", conversation[0].Status)
	}

	// Only the message's receiver can advance it.
	if advanced, err := repo.UpdateStatus(ctx, 2, "carol", models.StatusSeen); err != nil || advanced {
		t.Fatalf("update status by non-receiver: advanced=%v err=%v", advanced, err)
	}
	conversation, _ = repo.ListBetween(ctx, "alice", "bob")
	if conversation[1].Status != models.StatusSent {
		t.Fatalf("expected status untouched by non-receiver, got %q", conversation[1].Status)
	}

	// Unknown ids are ignored.
	if advanced, err := repo.UpdateStatus(ctx, 999, "bob", models.StatusSeen); err != nil || advanced {
		t.Fatalf("update status for unknown id: advanced=%v err=%v", advanced, err)
	}

	if err := repo.DeleteBetween(ctx, "bob", "alice"); err != nil {
		t.Fatalf("delete between: %v", err)
	}
	conversation, _ = repo.ListBetween(ctx, "alice", "bob")
	if len(conversation) != 0 {
		t.Fatalf("expected conversation gone, got %+v", conversation)
	}
	kept, _ := repo.ListBetween(ctx, "alice", "carol")
	if len(kept) != 1 {
		t.Fatalf("unrelated conversation must survive, got %+v", kept)
	}
}

func TestPostgresSessionStore_SaveFindAndDelete(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	store := NewPostgresSessionStore(testPool)
	expires := time.Now().UTC().Add(24 * time.Hour)
	session := auth.Session{
		Token:     uuid.NewString(),
		UserID:    "alice",
		Kind:      auth.KindRefresh,
		ExpiresAt: expires,
	}

	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save session: %v", err)
	}

	loaded, err := store.Find(ctx, session.Token)
	if err != nil {
		t.Fatalf("find session: %v", err)
	}
	if loaded.UserID != session.UserID || loaded.Kind != auth.KindRefresh || !timesClose(loaded.ExpiresAt, expires, time.Millisecond) {
		t.Fatalf("unexpected session loaded: %+v", loaded)
	}

	updated := session
	updated.ExpiresAt = expires.Add(48 * time.Hour)
	if err := store.Save(ctx, updated); err != nil {
		t.Fatalf("update session: %v", err)
	}
	loaded, err = store.Find(ctx, session.Token)
	if err != nil {
		t.Fatalf("find session after update: %v", err)
	}
	if !timesClose(loaded.ExpiresAt, updated.ExpiresAt, time.Millisecond) {
		t.Fatalf("expected updated expiry, got %v", loaded.ExpiresAt)
	}

	if err := store.Delete(ctx, session.Token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := store.Find(ctx, session.Token); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, session.Token); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound deleting twice, got %v", err)
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE messages, sessions, users CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createIntegrationUser(t *testing.T, repo *PostgresUserRepository, id string, requests []models.FriendRequest) models.User {
	t.Helper()
	user := models.User{
		ID:             id,
		Email:          id + "@example.com",
		Password:       "password-hash",
		FriendRequests: requests,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}

func timesClose(a, b time.Time, delta time.Duration) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= delta
}
