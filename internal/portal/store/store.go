package store

import (
	"context"
	"errors"
	"time"

	"github.com/certeu/do-portal/internal/portal/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement this.
// It exposes sub-repositories to keep concerns tidy and testable, and to
// stop people from accidentally nesting transactions.
type Store interface {
	Users() Users
	Roles() Roles
	Organizations() Organizations
	ContactEmails() ContactEmails
	Sessions() Sessions

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction. If fn returns an
	// error the transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used during login.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// GetUserByAPIKey authenticates API clients.
	GetUserByAPIKey(ctx context.Context, apiKey string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// UpdateAPIKey replaces the stored API key and bumps updated_at.
	UpdateAPIKey(ctx context.Context, userID string, apiKey string) error

	// SetOTPEnabled toggles the two-factor flag.
	SetOTPEnabled(ctx context.Context, userID string, enabled bool) error

	// DeleteUser cascades to sessions (per schema).
	DeleteUser(ctx context.Context, userID string) error
}

type Roles interface {
	GetRoleByID(ctx context.Context, id string) (domain.Role, error)
	GetRoleByName(ctx context.Context, name string) (domain.Role, error)

	// ListRoles returns all roles ordered by creation (oldest first). The
	// ordering is relied on when picking the SLA registration role.
	ListRoles(ctx context.Context) ([]domain.Role, error)

	CreateRole(ctx context.Context, r domain.Role) error
}

type Organizations interface {
	GetOrganizationByID(ctx context.Context, id string) (domain.Organization, error)
	GetOrganizationByAbbreviation(ctx context.Context, abbr string) (domain.Organization, error)
	CreateOrganization(ctx context.Context, o domain.Organization) error
}

type ContactEmails interface {
	// GetContactEmail looks up an address within an organization.
	GetContactEmail(ctx context.Context, orgID, email string) (domain.ContactEmail, error)

	CreateContactEmail(ctx context.Context, ce domain.ContactEmail) error

	// SetCP flips the customer-portal flag for an address.
	SetCP(ctx context.Context, id string, cp bool) error
}

type Sessions interface {
	// GetSessionByTokenHash resolves a cookie fingerprint to its session.
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (domain.Session, error)

	CreateSession(ctx context.Context, s domain.Session) error

	// SetPendingLogin stores pre-authentication credentials on the session
	// and clears any user binding.
	SetPendingLogin(ctx context.Context, sessionID, email, password string) error

	// ConsumePendingLogin atomically reads and clears the pending
	// credentials. Returns ErrNotFound when no pending login exists.
	ConsumePendingLogin(ctx context.Context, sessionID string) (email, password string, err error)

	// BindUser marks the session authenticated for the given user and
	// clears any pending credentials.
	BindUser(ctx context.Context, sessionID, userID string) error

	// UnbindUser returns the session to the anonymous state.
	UnbindUser(ctx context.Context, sessionID string) error

	DeleteSession(ctx context.Context, sessionID string) error

	// DeleteExpiredSessions removes sessions past their expiry. Returns the
	// number of rows removed.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// DeleteSessionsForUser removes every session bound to the user.
	DeleteSessionsForUser(ctx context.Context, userID string) error
}
