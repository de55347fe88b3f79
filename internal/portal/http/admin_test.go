package http

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/certeu/do-portal/internal/portal/domain"
	"github.com/certeu/do-portal/internal/portal/store"
	"github.com/certeu/do-portal/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestRegisterRequiresPermission(t *testing.T) {
	env := newTestEnv(t)

	// Built-in roles all carry the add-account bit; the gate only shows
	// with a restricted custom role.
	now := time.Now().UTC()
	require.NoError(t, env.store.Roles().CreateRole(context.Background(), domain.Role{
		ID:        idx.New().String(),
		Name:      "Guest",
		CreatedAt: now,
		UpdatedAt: now,
	}))
	env.seedUser(t, "user@example.test", "correct horse", seedOpts{role: "Guest"})
	env.login(t, "user@example.test", "correct horse")

	resp := env.postJSON(t, "/auth/register", map[string]string{
		"organization_id": "whatever",
		"email":           "new@example.test",
	})
	defer resp.Body.Close()

	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, msgForbidden, messageOf(t, resp))
}

func TestRegisterUnknownOrganization(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "admin@example.test", "correct horse", seedOpts{role: domain.RoleAdministrator})
	env.login(t, "admin@example.test", "correct horse")

	resp := env.postJSON(t, "/auth/register", map[string]string{
		"organization_id": "does-not-exist",
		"email":           "new@example.test",
	})
	defer resp.Body.Close()

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, msgOrganizationGone, messageOf(t, resp))
}

func TestRegisterAndActivate(t *testing.T) {
	env := newTestEnv(t)
	org := env.seedOrganization(t, "ACME", false)
	env.seedUser(t, "admin@example.test", "correct horse", seedOpts{role: domain.RoleAdministrator})
	env.login(t, "admin@example.test", "correct horse")

	resp := env.postJSON(t, "/auth/register", map[string]string{
		"organization_id": org.ID,
		"name":            "New Constituent",
		"email":           "new@example.test",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t,
		fmt.Sprintf("User registered. An activation email was sent to %s", "new@example.test"),
		messageOf(t, resp))
	resp.Body.Close()

	activateURL, ok := env.mailer.activationURL("new@example.test")
	require.True(t, ok)
	require.True(t, strings.HasPrefix(activateURL, "https://cp.example.test/auth/activate-account/"))

	token := activateURL[strings.LastIndex(activateURL, "/")+1:]
	path := "/auth/activate-account/" + token

	t.Run("form renders for a valid token", func(t *testing.T) {
		form := env.get(t, path)
		defer form.Body.Close()

		require.Equal(t, http.StatusOK, form.StatusCode)
		require.Contains(t, form.Header.Get("Content-Type"), "text/html")
		require.Contains(t, readBody(t, form), "new@example.test")
	})

	t.Run("mismatched confirmation is rejected", func(t *testing.T) {
		submit, err := env.client.PostForm(env.server.URL+path, url.Values{
			"password":         {"a strong password"},
			"confirm_password": {"a different one"},
		})
		require.NoError(t, err)
		defer submit.Body.Close()

		require.Equal(t, http.StatusBadRequest, submit.StatusCode)
		require.Contains(t, readBody(t, submit), msgConfirmMismatch)
	})

	t.Run("setting the password activates the account", func(t *testing.T) {
		submit, err := env.client.PostForm(env.server.URL+path, url.Values{
			"password":         {"a strong password"},
			"confirm_password": {"a strong password"},
		})
		require.NoError(t, err)
		defer submit.Body.Close()
		require.Equal(t, http.StatusOK, submit.StatusCode)

		env.freshClient(t)
		env.login(t, "new@example.test", "a strong password")
	})
}

func TestActivateInvalidToken(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "/auth/activate-account/garbage")
	defer resp.Body.Close()

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Contains(t, readBody(t, resp), "invalid or has expired")
}

func TestUnregister(t *testing.T) {
	env := newTestEnv(t)
	org := env.seedOrganization(t, "ACME", false)
	env.seedUser(t, "admin@example.test", "correct horse", seedOpts{role: domain.RoleAdministrator})
	env.login(t, "admin@example.test", "correct horse")

	reg := env.postJSON(t, "/auth/register", map[string]string{
		"organization_id": org.ID,
		"email":           "leaver@example.test",
	})
	require.Equal(t, http.StatusCreated, reg.StatusCode)
	reg.Body.Close()

	resp := env.postJSON(t, "/auth/unregister", map[string]string{
		"organization_id": org.ID,
		"email":           "leaver@example.test",
	})
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t,
		fmt.Sprintf("User has been unregistered. A notification has been sent to %s", "leaver@example.test"),
		messageOf(t, resp))

	_, err := env.store.Users().GetUserByEmail(context.Background(), "leaver@example.test")
	require.ErrorIs(t, err, store.ErrNotFound)

	t.Run("unknown user", func(t *testing.T) {
		resp := env.postJSON(t, "/auth/unregister", map[string]string{
			"organization_id": org.ID,
			"email":           "ghost@example.test",
		})
		defer resp.Body.Close()

		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
