package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/certeu/do-portal/internal/portal/service"
	"github.com/certeu/do-portal/pkg/httpx"
	"github.com/certeu/do-portal/pkg/slogx"
)

// AccountHandler serves the profile projection and self-service account
// mutations.
type AccountHandler struct {
	Router *Router
}

func (h *AccountHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := userFromContext(ctx)

	acct, err := h.Router.Accounts.GetAccount(ctx, user.ID)
	if err != nil {
		slogx.FromContext(ctx).Error("account lookup failed", "error", err)
		httpx.WriteMessage(w, http.StatusInternalServerError, msgInvalidRequest)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, acct)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (h *AccountHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := userFromContext(ctx)

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NewPassword == "" {
		httpx.WriteMessage(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		httpx.WriteMessage(w, http.StatusBadRequest, msgConfirmMismatch)
		return
	}

	err := h.Router.Accounts.ChangePassword(ctx, user.ID, req.CurrentPassword, req.NewPassword)
	switch {
	case err == nil:
		httpx.WriteMessage(w, http.StatusOK, msgPasswordUpdated)
	case errors.Is(err, service.ErrCurrentPassword):
		httpx.WriteMessage(w, http.StatusBadRequest, msgInvalidPassword)
	default:
		slogx.FromContext(ctx).Error("password change failed", "error", err)
		httpx.WriteMessage(w, http.StatusInternalServerError, msgInvalidRequest)
	}
}

func (h *AccountHandler) HandleResetAPIKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := userFromContext(ctx)

	apiKey, err := h.Router.Accounts.ResetAPIKey(ctx, user.ID)
	if err != nil {
		slogx.FromContext(ctx).Error("api key reset failed", "error", err)
		httpx.WriteMessage(w, http.StatusInternalServerError, msgInvalidRequest)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"message": msgAPIKeyReset,
		"api_key": apiKey,
	})
}
