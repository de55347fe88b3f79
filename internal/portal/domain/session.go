package domain

import "time"

// Session is a server-side browser session, looked up by the SHA-256
// fingerprint of the opaque cookie token.
//
// A session is in exactly one of three states:
//   - anonymous: UserID, PendingEmail and PendingPassword are all nil
//   - pre-authenticated: UserID is nil, PendingEmail/PendingPassword hold
//     the credentials awaiting TOTP verification
//   - authenticated: UserID is set, pending fields are nil
type Session struct {
	ID              string
	TokenHash       string
	UserID          *string
	PendingEmail    *string
	PendingPassword *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ExpiresAt       time.Time
}

func (s Session) Authenticated() bool {
	return s.UserID != nil
}

func (s Session) PreAuthenticated() bool {
	return s.UserID == nil && s.PendingEmail != nil
}

func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
