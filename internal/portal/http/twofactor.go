package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/certeu/do-portal/internal/portal/service"
	"github.com/certeu/do-portal/internal/portal/store"
	"github.com/certeu/do-portal/pkg/httpx"
	"github.com/certeu/do-portal/pkg/slogx"
)

type TwoFactorHandler struct {
	Router *Router
}

type toggleRequest struct {
	OTPToggle bool   `json:"otp_toggle"`
	TOTP      string `json:"totp"`
}

// HandleToggle enables or disables two-factor authentication for the
// current user. Enabling requires a valid code from the authenticator
// so the user proves their device is provisioned before lockout is
// possible.
func (h *TwoFactorHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := userFromContext(ctx)
	if !ok {
		httpx.WriteMessage(w, http.StatusUnauthorized, msgLoginRequired)
		return
	}

	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	err := h.Router.TwoFactor.Toggle(ctx, user.ID, req.OTPToggle, req.TOTP)
	switch {
	case err == nil:
		httpx.WriteMessage(w, http.StatusOK, msgOptionsSaved)
	case errors.Is(err, service.ErrTOTPInvalid):
		httpx.WriteMessage(w, http.StatusBadRequest, msgTOTPFailed)
	default:
		slogx.FromContext(ctx).Error("2fa toggle failed", "user_id", user.ID, "error", err)
		httpx.WriteMessage(w, http.StatusInternalServerError, msgInvalidRequest)
	}
}

// HandleQRCode renders the user's TOTP provisioning URI as an SVG QR
// code suitable for scanning into an authenticator app.
func (h *TwoFactorHandler) HandleQRCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := userFromContext(ctx)
	if !ok {
		httpx.WriteMessage(w, http.StatusUnauthorized, msgLoginRequired)
		return
	}

	svg, err := h.Router.TwoFactor.QRCodeSVG(ctx, user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteMessage(w, http.StatusNotFound, msgVerifyFailed)
			return
		}
		slogx.FromContext(ctx).Error("qr code render failed", "user_id", user.ID, "error", err)
		httpx.WriteMessage(w, http.StatusInternalServerError, msgInvalidRequest)
		return
	}

	httpx.NoCache(w)
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	w.Write(svg)
}
