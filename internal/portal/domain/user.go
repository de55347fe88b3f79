package domain

import "time"

// LDAPPasswordSentinel marks accounts provisioned through the directory.
// Local password verification never succeeds for these accounts.
const LDAPPasswordSentinel = "LDAP"

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string // argon2 encoded, or the LDAP sentinel
	APIKey       string
	OTPSecret    string // base32 encoded TOTP secret
	OTPEnabled   bool
	RoleID       string // Foreign key to roles table
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsLDAP reports whether the account authenticates against the directory
// rather than a locally stored password.
func (u User) IsLDAP() bool {
	return u.PasswordHash == LDAPPasswordSentinel
}
