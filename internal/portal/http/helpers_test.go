package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/certeu/do-portal/internal/portal/domain"
	"github.com/certeu/do-portal/internal/portal/service"
	"github.com/certeu/do-portal/internal/portal/store"
	"github.com/certeu/do-portal/internal/portal/store/drivers/sqlite"
	"github.com/certeu/do-portal/pkg/cryptox"
	"github.com/certeu/do-portal/pkg/idx"
	"github.com/certeu/do-portal/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

// capturingMailer records outgoing mail instead of delivering it.
type capturingMailer struct {
	mu            sync.Mutex
	activations   map[string]string // email -> activation URL
	deactivations []string
}

func (m *capturingMailer) SendActivation(_ context.Context, to, activateURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activations == nil {
		m.activations = make(map[string]string)
	}
	m.activations[to] = activateURL
	return nil
}

func (m *capturingMailer) SendDeactivation(_ context.Context, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deactivations = append(m.deactivations, to)
	return nil
}

func (m *capturingMailer) activationURL(email string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	url, ok := m.activations[email]
	return url, ok
}

type testEnv struct {
	router *Router
	store  store.Store
	mailer *capturingMailer
	server *httptest.Server
	client *http.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cryptox.SetPepperPath(t.TempDir() + "/pepper")

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())
	require.NoError(t, service.SeedRoles(context.Background(), st))

	signer := &jwtx.Signer{Secret: []byte("test-secret"), Issuer: "do-portal"}
	mailer := &capturingMailer{}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rt := NewRouter(st, logger, "test")
	rt.Sessions = &service.SessionService{
		Store:       st,
		Signer:      signer,
		TTL:         time.Hour,
		RememberTTL: 48 * time.Hour,
	}
	rt.Auth = &service.AuthService{Store: st}
	rt.Accounts = &service.AccountService{
		Store:         st,
		Signer:        signer,
		Mailer:        mailer,
		WebRoot:       "https://cp.example.test",
		ActivationTTL: 72 * time.Hour,
	}
	rt.TwoFactor = &service.TwoFactorService{Store: st, Issuer: "CERT-EU"}
	rt.Chat = &service.ChatService{Enabled: false}
	rt.ApplyRoutes()

	srv := httptest.NewServer(rt)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testEnv{
		router: rt,
		store:  st,
		mailer: mailer,
		server: srv,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

type seedOpts struct {
	role       string // defaults to Constituent
	otpEnabled bool
}

func (e *testEnv) seedUser(t *testing.T, email, password string, opts seedOpts) domain.User {
	t.Helper()
	ctx := context.Background()

	roleName := opts.role
	if roleName == "" {
		roleName = domain.RoleConstituent
	}
	role, err := e.store.Roles().GetRoleByName(ctx, roleName)
	require.NoError(t, err)

	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)
	apiKey, err := cryptox.NewAPIKey()
	require.NoError(t, err)
	secret, err := cryptox.NewOTPSecret()
	require.NoError(t, err)

	now := time.Now().UTC()
	user := domain.User{
		ID:           idx.New().String(),
		Name:         email,
		Email:        email,
		PasswordHash: hash,
		APIKey:       apiKey,
		OTPSecret:    secret,
		OTPEnabled:   opts.otpEnabled,
		RoleID:       role.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, e.store.Users().CreateUser(ctx, user))
	return user
}

func (e *testEnv) seedOrganization(t *testing.T, abbrev string, sla bool) domain.Organization {
	t.Helper()

	now := time.Now().UTC()
	org := domain.Organization{
		ID:           idx.New().String(),
		Abbreviation: abbrev,
		FullName:     abbrev + " Full Name",
		SLA:          sla,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, e.store.Organizations().CreateOrganization(context.Background(), org))
	return org
}

// freshClient drops all cookies, simulating a new browser.
func (e *testEnv) freshClient(t *testing.T) {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	e.client.Jar = jar
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := e.client.Post(e.server.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()

	resp, err := e.client.Get(e.server.URL + path)
	require.NoError(t, err)
	return resp
}

// login performs a full password login for a previously seeded user,
// leaving the session cookie in the client jar.
func (e *testEnv) login(t *testing.T, email, password string) {
	t.Helper()

	resp := e.postJSON(t, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"auth":"authenticated"}`, readBody(t, resp))
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(raw)
}

func messageOf(t *testing.T, resp *http.Response) string {
	t.Helper()

	var payload struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return payload.Message
}
