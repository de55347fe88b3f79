package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/certeu/do-portal/internal/portal/domain"
	"github.com/certeu/do-portal/internal/portal/store"
	"github.com/certeu/do-portal/pkg/cryptox"
	"github.com/certeu/do-portal/pkg/idx"
	"github.com/certeu/do-portal/pkg/jwtx"
)

// ErrSessionNotFound covers unknown and expired session cookies.
var ErrSessionNotFound = errors.New("session not found")

// SessionService manages server-side browser sessions and the long-lived
// remember cookie.
type SessionService struct {
	Store       store.Store
	Signer      *jwtx.Signer
	TTL         time.Duration // session cookie lifetime
	RememberTTL time.Duration // rm cookie lifetime, 48h in production
}

// Create opens a fresh anonymous session and returns the opaque cookie
// token. Only the SHA-256 fingerprint of the token is persisted.
func (s *SessionService) Create(ctx context.Context) (string, domain.Session, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", domain.Session{}, fmt.Errorf("generate session token: %w", err)
	}

	now := time.Now().UTC()
	sess := domain.Session{
		ID:        idx.New().String(),
		TokenHash: cryptox.FingerprintToken(token),
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.TTL),
	}
	if err := s.Store.Sessions().CreateSession(ctx, sess); err != nil {
		return "", domain.Session{}, fmt.Errorf("create session: %w", err)
	}
	return token, sess, nil
}

// Lookup resolves a cookie token to its live session. Expired sessions are
// treated as absent.
func (s *SessionService) Lookup(ctx context.Context, token string) (domain.Session, error) {
	sess, err := s.Store.Sessions().GetSessionByTokenHash(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Session{}, ErrSessionNotFound
		}
		return domain.Session{}, err
	}
	if sess.Expired(time.Now().UTC()) {
		return domain.Session{}, ErrSessionNotFound
	}
	return sess, nil
}

// IssueRememberToken signs the rm cookie value for a logged-in user.
func (s *SessionService) IssueRememberToken(userID string) (string, error) {
	return s.Signer.Sign(userID, jwtx.UseRemember, s.RememberTTL)
}

// RedeemRememberToken re-establishes a session from a valid rm cookie. A
// new session is created and bound directly to the remembered user.
func (s *SessionService) RedeemRememberToken(ctx context.Context, raw string) (string, domain.Session, error) {
	userID, err := s.Signer.Verify(raw, jwtx.UseRemember)
	if err != nil {
		return "", domain.Session{}, ErrSessionNotFound
	}

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", domain.Session{}, ErrSessionNotFound
		}
		return "", domain.Session{}, err
	}

	token, sess, err := s.Create(ctx)
	if err != nil {
		return "", domain.Session{}, err
	}
	if err := s.Store.Sessions().BindUser(ctx, sess.ID, user.ID); err != nil {
		return "", domain.Session{}, err
	}
	sess.UserID = &user.ID
	return token, sess, nil
}

// Destroy removes the session entirely.
func (s *SessionService) Destroy(ctx context.Context, sessionID string) error {
	return s.Store.Sessions().DeleteSession(ctx, sessionID)
}
