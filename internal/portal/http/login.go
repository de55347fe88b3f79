package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/certeu/do-portal/internal/portal/domain"
	"github.com/certeu/do-portal/internal/portal/service"
	"github.com/certeu/do-portal/pkg/httpx"
	"github.com/certeu/do-portal/pkg/slogx"
)

// totpRequiredHeader tells clients the first factor passed and a code must
// be submitted to /auth/verify-totp.
const totpRequiredHeader = "CP-TOTP-Required"

// LoginHandler covers login, TOTP verification and logout.
type LoginHandler struct {
	Router *Router
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *LoginHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		httpx.WriteMessage(w, http.StatusUnauthorized, msgInvalidCredentials)
		return
	}

	sess, ok := sessionFromContext(ctx)
	if !ok {
		token, created, err := h.Router.Sessions.Create(ctx)
		if err != nil {
			log.Error("session create failed", "error", err)
			httpx.WriteMessage(w, http.StatusInternalServerError, msgInvalidRequest)
			return
		}
		h.Router.setSessionCookie(w, token)
		sess = created
	}

	status, err := h.Router.Auth.Login(ctx, sess, req.Email, req.Password, h.isCPRequest(r))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			httpx.WriteMessage(w, http.StatusUnauthorized, msgInvalidCredentials)
			return
		}
		log.Error("login failed", "error", err)
		httpx.WriteMessage(w, http.StatusInternalServerError, msgInvalidRequest)
		return
	}

	switch status {
	case service.StatusPreAuthenticated:
		w.Header().Set(totpRequiredHeader, "true")
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"auth": "pre-authenticated"})
	default:
		h.issueRememberCookie(ctx, w, sess)
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"auth": "authenticated"})
	}
}

type verifyTOTPRequest struct {
	TOTP string `json:"totp"`
}

func (h *LoginHandler) HandleVerifyTOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req verifyTOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, msgTOTPFailed)
		return
	}

	sess, ok := sessionFromContext(ctx)
	if !ok {
		httpx.WriteMessage(w, http.StatusUnauthorized, msgLoginRequired)
		return
	}

	err := h.Router.Auth.VerifyTOTP(ctx, sess, strings.TrimSpace(req.TOTP))
	switch {
	case err == nil:
		h.issueRememberCookie(ctx, w, sess)
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"auth": "authenticated"})
	case errors.Is(err, service.ErrNoPendingLogin):
		httpx.WriteMessage(w, http.StatusUnauthorized, msgLoginRequired)
	case errors.Is(err, service.ErrNotEnrolled):
		httpx.WriteMessage(w, http.StatusNotFound, msgVerifyFailed)
	case errors.Is(err, service.ErrTOTPInvalid):
		httpx.WriteMessage(w, http.StatusBadRequest, msgTOTPFailed)
	default:
		log.Error("totp verification failed", "error", err)
		httpx.WriteMessage(w, http.StatusInternalServerError, msgInvalidRequest)
	}
}

func (h *LoginHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if sess, ok := sessionFromContext(ctx); ok {
		if err := h.Router.Auth.Logout(ctx, sess); err != nil {
			slogx.FromContext(ctx).Error("logout failed", "error", err)
		}
	}
	h.Router.clearAuthCookies(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"logged_out": "true"})
}

// issueRememberCookie sets the 48h rm cookie after a full authentication.
// The session row is re-read because the binding happened after this
// request's context snapshot was taken.
func (h *LoginHandler) issueRememberCookie(ctx context.Context, w http.ResponseWriter, sess domain.Session) {
	bound, err := h.Router.store.Sessions().GetSessionByTokenHash(ctx, sess.TokenHash)
	if err != nil || !bound.Authenticated() {
		return
	}
	token, err := h.Router.Sessions.IssueRememberToken(*bound.UserID)
	if err != nil {
		slogx.FromContext(ctx).Error("remember token issue failed", "error", err)
		return
	}
	h.Router.setRememberCookie(w, token, h.Router.Sessions.RememberTTL)
}

// isCPRequest reports whether the request arrived on the constituent
// portal host; those logins never consult the directory.
func (h *LoginHandler) isCPRequest(r *http.Request) bool {
	if h.Router.CPHostname == "" {
		return false
	}
	host := r.Host
	if colon := strings.Index(host, ":"); colon >= 0 {
		host = host[:colon]
	}
	return strings.EqualFold(host, h.Router.CPHostname)
}
