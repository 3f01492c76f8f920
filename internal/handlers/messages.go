package handlers

import (
	"net/http"
	"strings"

	"github.com/chatify/backend/internal/logging"
	"github.com/chatify/backend/internal/models"
)

// MessageHandler serves conversation history. The live path never depends on
// it; clients use history to reconcile after a reconnect.
type MessageHandler struct {
	Messages MessageStore
}

// History handles GET /api/v1/messages?with=<id> requests: the full
// conversation between the caller and the named peer, oldest first.
func (h MessageHandler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	caller := identityFromContext(ctx)

	peer := strings.TrimSpace(r.URL.Query().Get("with"))
	if peer == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "query parameter 'with' is required"})
		return
	}

	messages, err := h.Messages.ListBetween(ctx, caller, peer)
	if err != nil {
		logging.FromContext(ctx).Error("list conversation failed", "error", err, "peer", peer)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load conversation"})
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"messages": messages})
}
