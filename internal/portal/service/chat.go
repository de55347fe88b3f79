package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/certeu/do-portal/internal/portal/bosh"
	"github.com/certeu/do-portal/internal/portal/domain"
)

// ChatSession is returned to clients attaching to the shared XMPP stream.
type ChatSession struct {
	Service string   `json:"service"`
	Rooms   []string `json:"rooms"`
	JID     string   `json:"jid"`
	SID     string   `json:"sid"`
	RID     int64    `json:"rid"`
}

// Prebinder opens a BOSH session on behalf of a user.
type Prebinder interface {
	Prebind(ctx context.Context, jid, password string) (bosh.Session, error)
}

// ChatService pre-binds BOSH sessions for the browser chat widget. Staff
// and constituents attach to different service endpoints and room lists.
type ChatService struct {
	Enabled bool
	Client  Prebinder

	JID      string // shared chat account, e.g. do@chat.cert.europa.eu
	Password string

	ServiceURL string   // endpoint handed to Administer-capable users
	Rooms      []string // rooms for staff

	CPServiceURL string   // endpoint for constituents
	CPRooms      []string // rooms for constituents
}

// Open pre-binds a chat session for the user. Each login gets a distinct
// resource derived from the local part of the user's email.
func (s *ChatService) Open(ctx context.Context, userEmail string, perms domain.Permission) (ChatSession, error) {
	if !s.Enabled {
		return ChatSession{}, ErrChatDisabled
	}

	local := userEmail
	if at := strings.Index(local, "@"); at >= 0 {
		local = local[:at]
	}
	resource := fmt.Sprintf("%s-%d", local, rand.IntN(666))

	sess, err := s.Client.Prebind(ctx, s.JID+"/"+resource, s.Password)
	if err != nil {
		return ChatSession{}, fmt.Errorf("bosh prebind: %w", err)
	}

	serviceURL, rooms := s.CPServiceURL, s.CPRooms
	if perms.Has(domain.PermAdminister) {
		serviceURL, rooms = s.ServiceURL, s.Rooms
	}

	return ChatSession{
		Service: serviceURL,
		Rooms:   rooms,
		JID:     sess.JID,
		SID:     sess.SID,
		RID:     sess.RID,
	}, nil
}
