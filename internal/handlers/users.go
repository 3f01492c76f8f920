package handlers

import (
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/chatify/backend/internal/logging"
	"github.com/chatify/backend/internal/models"
)

// maxAvatarBytes caps avatar uploads.
const maxAvatarBytes = 5 << 20

// UserHandler exposes account listing and profile endpoints.
type UserHandler struct {
	Users   UserStore
	Avatars AvatarStorage
	NowFunc func() time.Time
}

// List handles GET /api/v1/users requests: every account except the caller,
// so clients can render the people picker.
func (h UserHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	caller := identityFromContext(ctx)

	users, err := h.Users.List(ctx)
	if err != nil {
		logging.FromContext(ctx).Error("list users failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to list users"})
		return
	}

	out := make([]models.User, 0, len(users))
	for _, user := range users {
		if user.ID == caller {
			continue
		}
		out = append(out, user)
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"users": out})
}

// Me handles GET /api/v1/users/me requests.
func (h UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	user, err := h.Users.FindByID(ctx, identityFromContext(ctx))
	if err != nil {
		logging.FromContext(ctx).Error("load own profile failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load profile"})
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"user": user})
}

// Avatar handles POST /api/v1/users/avatar multipart uploads. The stored
// location is written back to the caller's profile.
func (h UserHandler) Avatar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)
	caller := identityFromContext(ctx)

	if h.Avatars == nil {
		respondJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{"error": "avatar storage is not configured"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBytes)
	file, header, err := r.FormFile("avatar")
	if err != nil {
		logger.Warn("invalid avatar upload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "avatar file is required"})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		logger.Warn("avatar upload rejected", "contentType", contentType)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "avatar must be an image"})
		return
	}

	key := fmt.Sprintf("avatars/%s-%d%s", caller, h.now().UnixNano(), path.Ext(header.Filename))
	url, err := h.Avatars.Save(ctx, key, contentType, file)
	if err != nil {
		logger.Error("avatar upload failed", "error", err, "userId", caller)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to store avatar"})
		return
	}

	user, err := h.Users.FindByID(ctx, caller)
	if err != nil {
		logger.Error("avatar profile lookup failed", "error", err, "userId", caller)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to update profile"})
		return
	}
	user.AvatarURL = url
	user.UpdatedAt = h.now()
	if err := h.Users.Save(ctx, user); err != nil {
		logger.Error("avatar profile save failed", "error", err, "userId", caller)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to update profile"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"avatarUrl": url})
}

func (h UserHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
