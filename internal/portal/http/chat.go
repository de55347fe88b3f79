package http

import (
	"errors"
	"net/http"

	"github.com/certeu/do-portal/internal/portal/service"
	"github.com/certeu/do-portal/pkg/httpx"
	"github.com/certeu/do-portal/pkg/slogx"
)

type ChatHandler struct {
	Router *Router
}

// HandleOpen prebinds a BOSH session for the current user and returns
// the attach parameters the browser XMPP client needs.
func (h *ChatHandler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := userFromContext(ctx)
	if !ok {
		httpx.WriteMessage(w, http.StatusUnauthorized, msgLoginRequired)
		return
	}

	sess, err := h.Router.Chat.Open(ctx, user.Email, permissionsFromContext(ctx))
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, sess)
	case errors.Is(err, service.ErrChatDisabled):
		httpx.WriteMessage(w, http.StatusServiceUnavailable, msgChatUnavailable)
	default:
		slogx.FromContext(ctx).Error("bosh prebind failed", "user_id", user.ID, "error", err)
		httpx.WriteMessage(w, http.StatusServiceUnavailable, msgChatUnavailable)
	}
}
