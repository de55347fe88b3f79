package http

import (
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/certeu/do-portal/pkg/jwtx"
	"github.com/certeu/do-portal/pkg/slogx"
)

//go:embed templates/*.html
var templateFS embed.FS

var activateTmpl = template.Must(template.ParseFS(templateFS, "templates/activate.html"))

// ActivateHandler serves the browser-facing set-password form reached
// from activation emails. Unlike the rest of the API it renders HTML,
// since the recipient follows the link before having any session.
type ActivateHandler struct {
	Router *Router
}

type activatePage struct {
	Email   string
	Token   string
	Error   string
	Done    bool
	Expired bool
}

func (h *ActivateHandler) render(w http.ResponseWriter, code int, page activatePage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := activateTmpl.Execute(w, page); err != nil {
		slog.Default().Error("activation template render failed", "error", err)
	}
}

func (h *ActivateHandler) HandleForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := r.PathValue("token")

	user, err := h.Router.Accounts.VerifyActivationToken(ctx, token)
	if err != nil {
		h.render(w, http.StatusNotFound, activatePage{Expired: true})
		return
	}

	h.render(w, http.StatusOK, activatePage{Email: user.Email, Token: token})
}

func (h *ActivateHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := r.PathValue("token")

	user, err := h.Router.Accounts.VerifyActivationToken(ctx, token)
	if err != nil {
		h.render(w, http.StatusNotFound, activatePage{Expired: true})
		return
	}

	if err := r.ParseForm(); err != nil {
		h.render(w, http.StatusBadRequest, activatePage{
			Email: user.Email, Token: token, Error: msgInvalidRequest,
		})
		return
	}

	password := r.PostFormValue("password")
	confirm := r.PostFormValue("confirm_password")
	switch {
	case password == "":
		h.render(w, http.StatusBadRequest, activatePage{
			Email: user.Email, Token: token, Error: msgInvalidRequest,
		})
		return
	case password != confirm:
		h.render(w, http.StatusBadRequest, activatePage{
			Email: user.Email, Token: token, Error: msgConfirmMismatch,
		})
		return
	}

	if err := h.Router.Accounts.SetPasswordWithToken(ctx, token, password); err != nil {
		if errors.Is(err, jwtx.ErrExpired) {
			h.render(w, http.StatusNotFound, activatePage{Expired: true})
			return
		}
		slogx.FromContext(ctx).Error("activation failed", "email", user.Email, "error", err)
		h.render(w, http.StatusInternalServerError, activatePage{
			Email: user.Email, Token: token, Error: msgInvalidRequest,
		})
		return
	}

	h.render(w, http.StatusOK, activatePage{Email: user.Email, Done: true})
}
