package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/chatify/backend/internal/friends"
	"github.com/chatify/backend/internal/logging"
	"github.com/chatify/backend/internal/models"
)

// FriendHandler exposes the friend-graph endpoints. Mutations go through the
// coordinator; reads come straight from the user records.
type FriendHandler struct {
	Users   UserStore
	Friends FriendService
}

// List handles GET /api/v1/friends requests: the caller's friends as full
// profiles.
func (h FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, err := h.Users.FindByID(ctx, identityFromContext(ctx))
	if err != nil {
		logger.Error("load friend list failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load friends"})
		return
	}

	out := make([]models.User, 0, len(user.Friends))
	for _, id := range user.Friends {
		friend, err := h.Users.FindByID(ctx, id)
		if err != nil {
			// A missing record means the other half of a removal never
			// landed; skip it rather than failing the whole listing.
			logger.Warn("friend record missing", "friendId", id, "error", err)
			continue
		}
		out = append(out, friend)
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"friends": out})
}

// Request handles POST /api/v1/friends/request requests.
func (h FriendHandler) Request(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	var req friendRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	req.To = strings.TrimSpace(req.To)
	if req.To == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "target user is required"})
		return
	}

	request, err := h.Friends.Request(ctx, identityFromContext(ctx), req.To)
	if err != nil {
		h.respondMutationError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, map[string]any{"request": request})
}

// Requests handles GET /api/v1/friends/requests requests: pending incoming
// requests from the caller's own record plus pending outgoing requests found
// on other records.
func (h FriendHandler) Requests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)
	caller := identityFromContext(ctx)

	user, err := h.Users.FindByID(ctx, caller)
	if err != nil {
		logger.Error("load friend requests failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load requests"})
		return
	}

	incoming := make([]models.FriendRequest, 0)
	for _, req := range user.FriendRequests {
		if req.Status == models.RequestPending {
			incoming = append(incoming, req)
		}
	}

	outgoing, err := h.Users.PendingRequestsFrom(ctx, caller)
	if err != nil {
		logger.Error("load outgoing requests failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load requests"})
		return
	}
	if outgoing == nil {
		outgoing = []models.FriendRequest{}
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"incoming": incoming,
		"outgoing": outgoing,
	})
}

// Accept handles POST /api/v1/friends/accept requests.
func (h FriendHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.Friends.Accept)
}

// Decline handles POST /api/v1/friends/decline requests.
func (h FriendHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.Friends.Decline)
}

func (h FriendHandler) resolve(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, userID, requestID string) error) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	var req resolveRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	if req.RequestID == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "request id is required"})
		return
	}

	if err := op(ctx, identityFromContext(ctx), req.RequestID); err != nil {
		h.respondMutationError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

// Remove handles POST /api/v1/friends/remove requests.
func (h FriendHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	var req removeRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	req.FriendID = strings.TrimSpace(req.FriendID)
	if req.FriendID == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "friend id is required"})
		return
	}

	if err := h.Friends.Remove(ctx, identityFromContext(ctx), req.FriendID); err != nil {
		h.respondMutationError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondMutationError maps coordinator errors to response statuses. A
// partial mutation reports success: the authoritative first record was
// written, and the error is already logged loudly at its source.
func (h FriendHandler) respondMutationError(ctx context.Context, w http.ResponseWriter, err error) {
	var perr *friends.PartialMutationError
	if errors.As(err, &perr) {
		respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	switch {
	case errors.Is(err, friends.ErrInvalidTarget):
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid target user"})
	case errors.Is(err, friends.ErrUserNotFound), errors.Is(err, friends.ErrRequestNotFound):
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, friends.ErrAlreadyFriends):
		respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "already friends"})
	case errors.Is(err, friends.ErrDuplicatePending):
		respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "request already pending"})
	default:
		logging.FromContext(ctx).Error("friend mutation failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "friend operation failed"})
	}
}

type friendRequestBody struct {
	To string `json:"to"`
}

type resolveRequestBody struct {
	RequestID string `json:"requestId"`
}

type removeRequestBody struct {
	FriendID string `json:"friendId"`
}
