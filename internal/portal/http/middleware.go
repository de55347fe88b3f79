package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/certeu/do-portal/internal/portal/domain"
	"github.com/certeu/do-portal/internal/portal/service"
	"github.com/certeu/do-portal/internal/portal/store"
	"github.com/certeu/do-portal/pkg/httpx"
	"github.com/certeu/do-portal/pkg/slogx"
)

const (
	sessionCookieName  = "session"
	rememberCookieName = "rm"

	// apiKeyHeader authenticates machine clients without a browser session.
	apiKeyHeader = "API-Authorization"
)

const permAddAccount = domain.PermAddAccount

type ctxKey string

const (
	ctxKeySession     ctxKey = "portal_session"
	ctxKeyUser        ctxKey = "portal_user"
	ctxKeyPermissions ctxKey = "portal_permissions"
)

// authn resolves the caller's identity from, in order: the API key header,
// the session cookie, and the long-lived remember cookie. A valid remember
// cookie transparently re-establishes a session and refreshes the cookie.
func (rt *Router) authn() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			if apiKey := r.Header.Get(apiKeyHeader); apiKey != "" {
				user, err := rt.store.Users().GetUserByAPIKey(ctx, apiKey)
				if err == nil {
					ctx = rt.contextWithUser(ctx, user)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
				if !errors.Is(err, store.ErrNotFound) {
					log.Error("api key lookup failed", "error", err)
				}
				// Fall through: an invalid key is treated as anonymous.
			}

			if c, err := r.Cookie(sessionCookieName); err == nil {
				sess, err := rt.Sessions.Lookup(ctx, c.Value)
				if err == nil {
					ctx = context.WithValue(ctx, ctxKeySession, sess)
					ctx = rt.attachSessionUser(ctx, sess)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
				if !errors.Is(err, service.ErrSessionNotFound) {
					log.Error("session lookup failed", "error", err)
				}
			}

			if c, err := r.Cookie(rememberCookieName); err == nil {
				token, sess, err := rt.Sessions.RedeemRememberToken(ctx, c.Value)
				if err == nil {
					rt.setSessionCookie(w, token)
					ctx = context.WithValue(ctx, ctxKeySession, sess)
					ctx = rt.attachSessionUser(ctx, sess)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
				if !errors.Is(err, service.ErrSessionNotFound) {
					log.Error("remember token redeem failed", "error", err)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// attachSessionUser loads the bound user and its permissions into the
// context for downstream handlers. Pre-authenticated sessions stay
// anonymous here.
func (rt *Router) attachSessionUser(ctx context.Context, sess domain.Session) context.Context {
	if !sess.Authenticated() {
		return ctx
	}
	user, err := rt.store.Users().GetUserByID(ctx, *sess.UserID)
	if err != nil {
		slogx.FromContext(ctx).Warn("session user missing", "user_id", *sess.UserID, "error", err)
		return ctx
	}
	return rt.contextWithUser(ctx, user)
}

func (rt *Router) contextWithUser(ctx context.Context, user domain.User) context.Context {
	ctx = context.WithValue(ctx, ctxKeyUser, user)
	// Rate limiting keys off the shared user-id context value.
	ctx = context.WithValue(ctx, httpx.CtxKeyUserID, user.ID)

	role, err := rt.store.Roles().GetRoleByID(ctx, user.RoleID)
	if err != nil {
		slogx.FromContext(ctx).Error("role lookup failed", "role_id", user.RoleID, "error", err)
		return ctx
	}
	return context.WithValue(ctx, ctxKeyPermissions, role.Permissions)
}

func sessionFromContext(ctx context.Context) (domain.Session, bool) {
	sess, ok := ctx.Value(ctxKeySession).(domain.Session)
	return sess, ok
}

func userFromContext(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(ctxKeyUser).(domain.User)
	return user, ok
}

func permissionsFromContext(ctx context.Context) domain.Permission {
	perms, _ := ctx.Value(ctxKeyPermissions).(domain.Permission)
	return perms
}

// RequireAuth rejects callers without a fully authenticated identity.
// Pre-authenticated sessions are rejected the same as anonymous ones.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := userFromContext(r.Context()); !ok {
			httpx.WriteMessage(w, http.StatusUnauthorized, msgLoginRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermission rejects authenticated callers lacking a permission bit.
func RequirePermission(perm domain.Permission) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !permissionsFromContext(r.Context()).Has(perm) {
				httpx.WriteMessage(w, http.StatusForbidden, msgForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rt *Router) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   rt.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (rt *Router) setRememberCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     rememberCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   rt.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (rt *Router) clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{sessionCookieName, rememberCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   rt.SecureCookies,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
