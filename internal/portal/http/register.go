package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/certeu/do-portal/internal/portal/service"
	"github.com/certeu/do-portal/pkg/httpx"
	"github.com/certeu/do-portal/pkg/slogx"
)

// RegisterHandler covers admin-driven constituent account lifecycle.
type RegisterHandler struct {
	Router *Router
}

type registerRequest struct {
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
}

func (h *RegisterHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.OrganizationID == "" || req.Email == "" {
		httpx.WriteMessage(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	user, err := h.Router.Accounts.Register(ctx, req.OrganizationID, req.Name, req.Email)
	switch {
	case err == nil:
		httpx.WriteMessage(w, http.StatusCreated,
			fmt.Sprintf("User registered. An activation email was sent to %s", user.Email))
	case errors.Is(err, service.ErrOrganizationNotFound):
		httpx.WriteMessage(w, http.StatusNotFound, msgOrganizationGone)
	default:
		slogx.FromContext(ctx).Error("registration failed", "email", req.Email, "error", err)
		httpx.WriteMessage(w, http.StatusInternalServerError, msgInvalidRequest)
	}
}

type unregisterRequest struct {
	OrganizationID string `json:"organization_id"`
	Email          string `json:"email"`
}

func (h *RegisterHandler) HandleUnregister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req unregisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.OrganizationID == "" || req.Email == "" {
		httpx.WriteMessage(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	notified, err := h.Router.Accounts.Unregister(ctx, req.OrganizationID, req.Email)
	switch {
	case err == nil:
		httpx.WriteMessage(w, http.StatusOK,
			fmt.Sprintf("User has been unregistered. A notification has been sent to %s", notified))
	case errors.Is(err, service.ErrUserNotFound):
		httpx.WriteMessage(w, http.StatusNotFound, msgInvalidRequest)
	default:
		slogx.FromContext(ctx).Error("unregistration failed", "email", req.Email, "error", err)
		httpx.WriteMessage(w, http.StatusInternalServerError, msgInvalidRequest)
	}
}
