package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chatify/backend/internal/friends"
	"github.com/chatify/backend/internal/models"
	"github.com/chatify/backend/internal/repositories"
)

type noopNotifier struct{}

func (noopNotifier) FriendRequested(_, _ string) {}
func (noopNotifier) FriendAccepted(_, _ string)  {}
func (noopNotifier) FriendDeclined(_, _ string)  {}
func (noopNotifier) FriendRemoved(_, _ string)   {}

type friendFixture struct {
	users   *repositories.InMemoryUserRepository
	handler FriendHandler
}

func newFriendFixture(t *testing.T, ids ...string) *friendFixture {
	t.Helper()
	users := repositories.NewInMemoryUserRepository()
	coord := friends.NewCoordinator(users, repositories.NewInMemoryMessageRepository(), noopNotifier{},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	for _, id := range ids {
		if err := users.Create(context.Background(), models.User{ID: id, Email: id + "@example.com"}); err != nil {
			t.Fatalf("seed user %s: %v", id, err)
		}
	}
	return &friendFixture{users: users, handler: FriendHandler{Users: users, Friends: coord}}
}

func authedRequest(t *testing.T, method, target, identity string, payload any) *http.Request {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, body)
	return req.WithContext(context.WithValue(req.Context(), identityContextKey, identity))
}

func TestFriendHandlerRequestFlow(t *testing.T) {
	f := newFriendFixture(t, "alice", "bob")

	rec := httptest.NewRecorder()
	f.handler.Request(rec, authedRequest(t, http.MethodPost, "/api/v1/friends/request", "alice", friendRequestBody{To: "bob"}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d (%s)", http.StatusCreated, rec.Code, rec.Body)
	}

	var created struct {
		Request models.FriendRequest `json:"request"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.Request.From != "alice" || created.Request.To != "bob" {
		t.Fatalf("unexpected request %+v", created.Request)
	}

	// The recipient sees it incoming, the sender sees it outgoing.
	rec = httptest.NewRecorder()
	f.handler.Requests(rec, authedRequest(t, http.MethodGet, "/api/v1/friends/requests", "bob", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	var listing struct {
		Incoming []models.FriendRequest `json:"incoming"`
		Outgoing []models.FriendRequest `json:"outgoing"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&listing); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(listing.Incoming) != 1 || len(listing.Outgoing) != 0 {
		t.Fatalf("unexpected listing for recipient %+v", listing)
	}

	rec = httptest.NewRecorder()
	f.handler.Requests(rec, authedRequest(t, http.MethodGet, "/api/v1/friends/requests", "alice", nil))
	if err := json.NewDecoder(rec.Body).Decode(&listing); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(listing.Incoming) != 0 || len(listing.Outgoing) != 1 {
		t.Fatalf("unexpected listing for sender %+v", listing)
	}

	// Accept, then both friend lists resolve to full profiles.
	rec = httptest.NewRecorder()
	f.handler.Accept(rec, authedRequest(t, http.MethodPost, "/api/v1/friends/accept", "bob",
		resolveRequestBody{RequestID: created.Request.ID}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d (%s)", http.StatusOK, rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	f.handler.List(rec, authedRequest(t, http.MethodGet, "/api/v1/friends", "alice", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	var friendList struct {
		Friends []models.User `json:"friends"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&friendList); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(friendList.Friends) != 1 || friendList.Friends[0].ID != "bob" {
		t.Fatalf("unexpected friend list %+v", friendList.Friends)
	}
}

func TestFriendHandlerErrorMapping(t *testing.T) {
	f := newFriendFixture(t, "alice", "bob")

	cases := []struct {
		name   string
		do     func() *httptest.ResponseRecorder
		status int
	}{
		{
			"self request", func() *httptest.ResponseRecorder {
				rec := httptest.NewRecorder()
				f.handler.Request(rec, authedRequest(t, http.MethodPost, "/api/v1/friends/request", "alice", friendRequestBody{To: "alice"}))
				return rec
			}, http.StatusBadRequest,
		},
		{
			"unknown target", func() *httptest.ResponseRecorder {
				rec := httptest.NewRecorder()
				f.handler.Request(rec, authedRequest(t, http.MethodPost, "/api/v1/friends/request", "alice", friendRequestBody{To: "ghost"}))
				return rec
			}, http.StatusNotFound,
		},
		{
			"unknown request id", func() *httptest.ResponseRecorder {
				rec := httptest.NewRecorder()
				f.handler.Accept(rec, authedRequest(t, http.MethodPost, "/api/v1/friends/accept", "bob", resolveRequestBody{RequestID: "nope"}))
				return rec
			}, http.StatusNotFound,
		},
		{
			// Removing someone who is not a friend is a tolerant no-op.
			"remove non-friend", func() *httptest.ResponseRecorder {
				rec := httptest.NewRecorder()
				f.handler.Remove(rec, authedRequest(t, http.MethodPost, "/api/v1/friends/remove", "alice", removeRequestBody{FriendID: "bob"}))
				return rec
			}, http.StatusOK,
		},
		{
			"remove unknown user", func() *httptest.ResponseRecorder {
				rec := httptest.NewRecorder()
				f.handler.Remove(rec, authedRequest(t, http.MethodPost, "/api/v1/friends/remove", "alice", removeRequestBody{FriendID: "ghost"}))
				return rec
			}, http.StatusNotFound,
		},
	}
	for _, tc := range cases {
		if rec := tc.do(); rec.Code != tc.status {
			t.Fatalf("%s: expected status %d got %d (%s)", tc.name, tc.status, rec.Code, rec.Body)
		}
	}

	// First request succeeds, the duplicate conflicts.
	rec := httptest.NewRecorder()
	f.handler.Request(rec, authedRequest(t, http.MethodPost, "/api/v1/friends/request", "alice", friendRequestBody{To: "bob"}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("seed request failed with %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	f.handler.Request(rec, authedRequest(t, http.MethodPost, "/api/v1/friends/request", "alice", friendRequestBody{To: "bob"}))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d got %d", http.StatusConflict, rec.Code)
	}
}

func TestFriendHandlerRemove(t *testing.T) {
	f := newFriendFixture(t)
	ctx := context.Background()
	f.users.Create(ctx, models.User{ID: "alice", Email: "alice@example.com", Friends: []string{"bob"}})
	f.users.Create(ctx, models.User{ID: "bob", Email: "bob@example.com", Friends: []string{"alice"}})

	rec := httptest.NewRecorder()
	f.handler.Remove(rec, authedRequest(t, http.MethodPost, "/api/v1/friends/remove", "alice", removeRequestBody{FriendID: "bob"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d (%s)", http.StatusOK, rec.Code, rec.Body)
	}

	alice, _ := f.users.FindByID(ctx, "alice")
	if alice.HasFriend("bob") {
		t.Fatalf("friendship must be gone after remove")
	}
}
