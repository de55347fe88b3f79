package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/certeu/do-portal/internal/portal/directory"
	"github.com/certeu/do-portal/internal/portal/domain"
	"github.com/certeu/do-portal/internal/portal/store"
	"github.com/certeu/do-portal/pkg/cryptox"
	"github.com/certeu/do-portal/pkg/idx"
	"github.com/certeu/do-portal/pkg/slogx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// LoginStatus reports how far a login attempt got.
type LoginStatus int

const (
	// StatusAuthenticated means the session is fully established.
	StatusAuthenticated LoginStatus = iota
	// StatusPreAuthenticated means the first factor passed and a TOTP
	// code must be submitted before the session is usable.
	StatusPreAuthenticated
)

// dummyHash is a well-formed argon2id hash that matches no password. Used
// to equalize timing between unknown accounts and wrong passwords.
const dummyHash = "$argon2id$v=19$m=19456,t=2,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// AuthService drives the login, TOTP verification and logout flows.
type AuthService struct {
	Store store.Store

	// Directory is nil when LDAP authentication is disabled.
	Directory directory.Authenticator
}

// Login runs the first authentication factor for the given session.
// localOnly suppresses the directory path; it is set for requests arriving
// on the constituent portal host.
func (s *AuthService) Login(ctx context.Context, sess domain.Session, email, password string, localOnly bool) (LoginStatus, error) {
	// Re-submitting credentials on a live session is a no-op.
	if sess.Authenticated() {
		return StatusAuthenticated, nil
	}

	if !localOnly && s.Directory != nil {
		if status, err := s.directoryLogin(ctx, sess, email, password); err == nil {
			return status, nil
		} else if !isDirectoryMiss(err) {
			slogx.FromContext(ctx).Warn("directory authentication error", "error", err)
		}
	}

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn a hash comparison so missing accounts cost the
			// same as wrong passwords.
			_ = cryptox.VerifyPassword(password, dummyHash)
			return 0, ErrInvalidCredentials
		}
		return 0, err
	}

	if user.IsLDAP() {
		// Directory accounts have no local credential; on the CP host
		// (or with LDAP down) they cannot log in at all.
		return 0, ErrInvalidCredentials
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		return 0, ErrInvalidCredentials
	}

	if user.OTPEnabled {
		if err := s.Store.Sessions().SetPendingLogin(ctx, sess.ID, email, password); err != nil {
			return 0, fmt.Errorf("store pending login: %w", err)
		}
		return StatusPreAuthenticated, nil
	}

	if err := s.Store.Sessions().BindUser(ctx, sess.ID, user.ID); err != nil {
		return 0, fmt.Errorf("bind session: %w", err)
	}
	return StatusAuthenticated, nil
}

// directoryLogin binds against LDAP and provisions a local admin account on
// first sight, mirroring what the directory asserts about the user.
func (s *AuthService) directoryLogin(ctx context.Context, sess domain.Session, email, password string) (LoginStatus, error) {
	entry, err := s.Directory.Authenticate(ctx, email, password)
	if err != nil {
		return 0, err
	}
	if entry.UserPrincipalName == "" {
		return 0, directory.ErrUserNotFound
	}

	user, err := s.Store.Users().GetUserByEmail(ctx, entry.UserPrincipalName)
	if errors.Is(err, store.ErrNotFound) {
		user, err = s.provisionDirectoryUser(ctx, entry)
	}
	if err != nil {
		return 0, err
	}

	if err := s.Store.Sessions().BindUser(ctx, sess.ID, user.ID); err != nil {
		return 0, fmt.Errorf("bind session: %w", err)
	}
	return StatusAuthenticated, nil
}

func (s *AuthService) provisionDirectoryUser(ctx context.Context, entry directory.Entry) (domain.User, error) {
	var user domain.User
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		admin, err := tx.Roles().GetRoleByName(ctx, domain.RoleAdministrator)
		if err != nil {
			return fmt.Errorf("lookup administrator role: %w", err)
		}

		apiKey, err := cryptox.NewAPIKey()
		if err != nil {
			return err
		}
		otpSecret, err := cryptox.NewOTPSecret()
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		user = domain.User{
			ID:           idx.New().String(),
			Name:         entry.Name,
			Email:        entry.UserPrincipalName,
			PasswordHash: domain.LDAPPasswordSentinel,
			APIKey:       apiKey,
			OTPSecret:    otpSecret,
			RoleID:       admin.ID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return tx.Users().CreateUser(ctx, user)
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("provision directory user: %w", err)
	}

	slogx.FromContext(ctx).Info("provisioned account from directory", "email", user.Email)
	return user, nil
}

func isDirectoryMiss(err error) bool {
	return errors.Is(err, directory.ErrInvalidCredentials) ||
		errors.Is(err, directory.ErrUserNotFound)
}

// VerifyTOTP consumes the session's pending first factor and checks the
// submitted code. The pending state is cleared whether or not the code
// matches.
func (s *AuthService) VerifyTOTP(ctx context.Context, sess domain.Session, code string) error {
	email, password, err := s.Store.Sessions().ConsumePendingLogin(ctx, sess.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNoPendingLogin
		}
		return err
	}

	// Re-run the first factor so a hijacked session cannot skip it.
	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNoPendingLogin
		}
		return err
	}
	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		return ErrNoPendingLogin
	}

	if !user.OTPEnabled {
		return ErrNotEnrolled
	}

	if !validateTOTP(code, user.OTPSecret) {
		return ErrTOTPInvalid
	}

	if err := s.Store.Sessions().BindUser(ctx, sess.ID, user.ID); err != nil {
		return fmt.Errorf("bind session: %w", err)
	}
	return nil
}

// Logout returns the session to the anonymous state.
func (s *AuthService) Logout(ctx context.Context, sess domain.Session) error {
	return s.Store.Sessions().UnbindUser(ctx, sess.ID)
}

// validateTOTP checks a 6-digit code with one period of clock skew either
// side, matching what common authenticator apps expect.
func validateTOTP(code, secret string) bool {
	ok, err := totp.ValidateCustom(code, secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
