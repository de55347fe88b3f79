package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/certeu/do-portal/internal/portal/bosh"
	"github.com/certeu/do-portal/internal/portal/domain"
	"github.com/certeu/do-portal/internal/portal/service"
	"github.com/stretchr/testify/require"
)

type stubPrebinder struct {
	lastJID string
}

func (p *stubPrebinder) Prebind(_ context.Context, jid, _ string) (bosh.Session, error) {
	p.lastJID = jid
	return bosh.Session{JID: jid, SID: "sid-1", RID: 42}, nil
}

func TestBoshSessionDisabled(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice@example.test", "correct horse", seedOpts{})
	env.login(t, "alice@example.test", "correct horse")

	resp := env.get(t, "/auth/bosh-session")
	defer resp.Body.Close()

	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.Equal(t, msgChatUnavailable, messageOf(t, resp))
}

func TestBoshSession(t *testing.T) {
	env := newTestEnv(t)

	prebinder := &stubPrebinder{}
	env.router.Chat = &service.ChatService{
		Enabled:      true,
		Client:       prebinder,
		JID:          "do@chat.example.test",
		Password:     "chat-password",
		ServiceURL:   "https://chat.example.test/http-bind",
		Rooms:        []string{"staff"},
		CPServiceURL: "https://cp-chat.example.test/http-bind",
		CPRooms:      []string{"constituents"},
	}

	env.seedUser(t, "alice@example.test", "correct horse", seedOpts{})
	env.login(t, "alice@example.test", "correct horse")

	resp := env.get(t, "/auth/bosh-session")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sess struct {
		Service string   `json:"service"`
		Rooms   []string `json:"rooms"`
		JID     string   `json:"jid"`
		SID     string   `json:"sid"`
		RID     int64    `json:"rid"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sess))

	// Constituents get the CP endpoint and rooms.
	require.Equal(t, "https://cp-chat.example.test/http-bind", sess.Service)
	require.Equal(t, []string{"constituents"}, sess.Rooms)
	require.Equal(t, "sid-1", sess.SID)
	require.EqualValues(t, 42, sess.RID)

	// Each prebind uses a per-user resource from the email local part.
	require.True(t, strings.HasPrefix(prebinder.lastJID, "do@chat.example.test/alice-"))
}

func TestBoshSessionStaffEndpoint(t *testing.T) {
	env := newTestEnv(t)

	prebinder := &stubPrebinder{}
	env.router.Chat = &service.ChatService{
		Enabled:      true,
		Client:       prebinder,
		JID:          "do@chat.example.test",
		Password:     "chat-password",
		ServiceURL:   "https://chat.example.test/http-bind",
		Rooms:        []string{"staff"},
		CPServiceURL: "https://cp-chat.example.test/http-bind",
		CPRooms:      []string{"constituents"},
	}

	env.seedUser(t, "admin@example.test", "correct horse", seedOpts{role: domain.RoleAdministrator})
	env.login(t, "admin@example.test", "correct horse")

	resp := env.get(t, "/auth/bosh-session")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sess struct {
		Service string   `json:"service"`
		Rooms   []string `json:"rooms"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sess))
	require.Equal(t, "https://chat.example.test/http-bind", sess.Service)
	require.Equal(t, []string{"staff"}, sess.Rooms)
}
