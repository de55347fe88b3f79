package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/certeu/do-portal/internal/portal/service"
	"github.com/certeu/do-portal/internal/portal/store"
	"github.com/certeu/do-portal/pkg/httpx"
	"github.com/certeu/do-portal/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	logger       *slog.Logger
	startTime    time.Time
	buildVersion string
	store        store.Store

	Sessions  *service.SessionService
	Auth      *service.AuthService
	Accounts  *service.AccountService
	TwoFactor *service.TwoFactorService
	Chat      *service.ChatService

	// CPHostname identifies requests from the constituent portal origin;
	// those authenticate locally only.
	CPHostname string

	// SecureCookies toggles the Secure flag, off for local development.
	SecureCookies bool
}

func NewRouter(st store.Store, logger *slog.Logger, buildVersion string) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		logger:       logger,
		startTime:    time.Now(),
		buildVersion: buildVersion,
		store:        st,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		r.authn(),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerAccount()
	r.registerAdmin()
	r.registerTwoFactor()
	r.registerChat()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	login := &LoginHandler{Router: r}

	r.Mux.Handle("POST /auth/login",
		httpx.Chain(http.HandlerFunc(login.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /auth/verify-totp",
		httpx.Chain(http.HandlerFunc(login.HandleVerifyTOTP),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("GET /auth/logout",
		httpx.Chain(http.HandlerFunc(login.HandleLogout),
			RequireAuth,
		),
	)

	activate := &ActivateHandler{Router: r}
	r.Mux.Handle("GET /auth/activate-account/{token}",
		httpx.Chain(http.HandlerFunc(activate.HandleForm),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("POST /auth/activate-account/{token}",
		httpx.Chain(http.HandlerFunc(activate.HandleSubmit),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerAccount() {
	account := &AccountHandler{Router: r}

	r.Mux.Handle("GET /auth/account",
		httpx.Chain(http.HandlerFunc(account.HandleGet),
			RequireAuth,
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("POST /auth/change-password",
		httpx.Chain(http.HandlerFunc(account.HandleChangePassword),
			RequireAuth,
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /auth/reset-api-key",
		httpx.Chain(http.HandlerFunc(account.HandleResetAPIKey),
			RequireAuth,
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerAdmin() {
	register := &RegisterHandler{Router: r}

	r.Mux.Handle("POST /auth/register",
		httpx.Chain(http.HandlerFunc(register.HandleRegister),
			RequireAuth,
			RequirePermission(permAddAccount),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /auth/unregister",
		httpx.Chain(http.HandlerFunc(register.HandleUnregister),
			RequireAuth,
			RequirePermission(permAddAccount),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerTwoFactor() {
	twofactor := &TwoFactorHandler{Router: r}

	r.Mux.Handle("POST /auth/toggle-2fa",
		httpx.Chain(http.HandlerFunc(twofactor.HandleToggle),
			RequireAuth,
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /auth/2fa-qrcode",
		httpx.Chain(http.HandlerFunc(twofactor.HandleQRCode),
			RequireAuth,
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerChat() {
	chat := &ChatHandler{Router: r}

	r.Mux.Handle("GET /auth/bosh-session",
		httpx.Chain(http.HandlerFunc(chat.HandleOpen),
			RequireAuth,
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store))
}
