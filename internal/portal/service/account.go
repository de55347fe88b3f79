package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/certeu/do-portal/internal/portal/domain"
	"github.com/certeu/do-portal/internal/portal/mail"
	"github.com/certeu/do-portal/internal/portal/store"
	"github.com/certeu/do-portal/pkg/cryptox"
	"github.com/certeu/do-portal/pkg/idx"
	"github.com/certeu/do-portal/pkg/jwtx"
	"github.com/certeu/do-portal/pkg/slogx"
)

// AccountService covers constituent account lifecycle: registration,
// unregistration, password and API key management, activation tokens.
type AccountService struct {
	Store  store.Store
	Signer *jwtx.Signer
	Mailer mail.Mailer

	// WebRoot is the customer portal base URL used in activation links.
	WebRoot string

	// ActivationTTL bounds how long a set-password token stays valid.
	ActivationTTL time.Duration

	// Admins lists email addresses that receive the Administrator role at
	// registration regardless of organization.
	Admins []string
}

// Register creates a portal account for an organization contact and mails
// the activation link. The contact email is created on the fly when the
// organization does not have it yet.
func (s *AccountService) Register(ctx context.Context, orgID, name, email string) (domain.User, error) {
	org, err := s.Store.Organizations().GetOrganizationByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrOrganizationNotFound
		}
		return domain.User{}, err
	}

	var user domain.User
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		now := time.Now().UTC()

		contact, err := tx.ContactEmails().GetContactEmail(ctx, org.ID, email)
		switch {
		case errors.Is(err, store.ErrNotFound):
			contact = domain.ContactEmail{
				ID:             idx.New().String(),
				OrganizationID: org.ID,
				Email:          email,
				CP:             true,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := tx.ContactEmails().CreateContactEmail(ctx, contact); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if err := tx.ContactEmails().SetCP(ctx, contact.ID, true); err != nil {
				return err
			}
		}

		roleID, err := s.pickRole(ctx, tx, org, email)
		if err != nil {
			return err
		}

		// Throwaway password; the real one is set through the
		// activation link.
		throwaway, err := cryptox.RandomHex(12, 16)
		if err != nil {
			return err
		}
		hash, err := cryptox.HashPassword(throwaway)
		if err != nil {
			return err
		}
		apiKey, err := cryptox.NewAPIKey()
		if err != nil {
			return err
		}
		otpSecret, err := cryptox.NewOTPSecret()
		if err != nil {
			return err
		}

		user = domain.User{
			ID:           idx.New().String(),
			Name:         name,
			Email:        email,
			PasswordHash: hash,
			APIKey:       apiKey,
			OTPSecret:    otpSecret,
			RoleID:       roleID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return tx.Users().CreateUser(ctx, user)
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("register account: %w", err)
	}

	token, err := s.Signer.Sign(user.ID, jwtx.UseActivation, s.ActivationTTL)
	if err != nil {
		return domain.User{}, fmt.Errorf("sign activation token: %w", err)
	}

	log := slogx.FromContext(ctx)
	activateURL := strings.TrimRight(s.WebRoot, "/") + "/auth/activate-account/" + token

	if err := s.Mailer.SendActivation(ctx, user.Email, activateURL); err != nil {
		// The account exists; support can re-send the link from the
		// debug log below.
		log.Error("activation email failed", "email", user.Email, "error", err)
	}
	log.Debug("activation token issued", "token", token)

	return user, nil
}

// pickRole resolves the role for a freshly registered account: configured
// admins get Administrator, SLA organizations get the first non-admin role
// carrying the SLA actions bit, everyone else gets the default Constituent.
func (s *AccountService) pickRole(ctx context.Context, tx store.Tx, org domain.Organization, email string) (string, error) {
	if slices.Contains(s.Admins, email) {
		role, err := tx.Roles().GetRoleByName(ctx, domain.RoleAdministrator)
		if err != nil {
			return "", fmt.Errorf("lookup administrator role: %w", err)
		}
		return role.ID, nil
	}

	if org.SLA {
		roles, err := tx.Roles().ListRoles(ctx)
		if err != nil {
			return "", err
		}
		for _, role := range roles {
			if role.IsSLA() {
				return role.ID, nil
			}
		}
	}

	role, err := tx.Roles().GetRoleByName(ctx, domain.RoleConstituent)
	if err != nil {
		return "", fmt.Errorf("lookup constituent role: %w", err)
	}
	return role.ID, nil
}

// Unregister disables the contact's portal flag and deletes the account.
// The notification address is captured before deletion. Returns the email
// the notice went to.
func (s *AccountService) Unregister(ctx context.Context, orgID, email string) (string, error) {
	var notify string
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		contact, err := tx.ContactEmails().GetContactEmail(ctx, orgID, email)
		if err != nil {
			return err
		}
		if err := tx.ContactEmails().SetCP(ctx, contact.ID, false); err != nil {
			return err
		}

		user, err := tx.Users().GetUserByEmail(ctx, email)
		if err != nil {
			return err
		}
		notify = user.Email
		return tx.Users().DeleteUser(ctx, user.ID)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("unregister account: %w", err)
	}

	if err := s.Mailer.SendDeactivation(ctx, notify); err != nil {
		slogx.FromContext(ctx).Error("deactivation email failed", "email", notify, "error", err)
	}
	return notify, nil
}

// ChangePassword verifies the current password before storing the new one.
func (s *AccountService) ChangePassword(ctx context.Context, userID, current, newPassword string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := cryptox.VerifyPassword(current, user.PasswordHash); err != nil {
		return ErrCurrentPassword
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.Store.Users().UpdatePasswordHash(ctx, userID, hash)
}

// ResetAPIKey regenerates the caller's API key unconditionally and returns
// the new key.
func (s *AccountService) ResetAPIKey(ctx context.Context, userID string) (string, error) {
	apiKey, err := cryptox.NewAPIKey()
	if err != nil {
		return "", err
	}
	if err := s.Store.Users().UpdateAPIKey(ctx, userID, apiKey); err != nil {
		return "", err
	}
	return apiKey, nil
}

// VerifyActivationToken checks signature and expiry and returns the user
// the token was issued for.
func (s *AccountService) VerifyActivationToken(ctx context.Context, token string) (domain.User, error) {
	userID, err := s.Signer.Verify(token, jwtx.UseActivation)
	if err != nil {
		return domain.User{}, err
	}
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// SetPasswordWithToken sets the password through a valid activation token,
// bypassing the old-password check.
func (s *AccountService) SetPasswordWithToken(ctx context.Context, token, newPassword string) error {
	user, err := s.VerifyActivationToken(ctx, token)
	if err != nil {
		return err
	}
	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.Store.Users().UpdatePasswordHash(ctx, user.ID, hash)
}

// Account is the profile projection returned to the authenticated caller.
type Account struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	APIKey     string `json:"api_key"`
	OTPEnabled bool   `json:"otp_enabled"`
	Role       string `json:"role"`
}

// GetAccount assembles the profile projection for a user.
func (s *AccountService) GetAccount(ctx context.Context, userID string) (Account, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Account{}, ErrUserNotFound
		}
		return Account{}, err
	}
	role, err := s.Store.Roles().GetRoleByID(ctx, user.RoleID)
	if err != nil {
		return Account{}, err
	}
	return Account{
		Name:       user.Name,
		Email:      user.Email,
		APIKey:     user.APIKey,
		OTPEnabled: user.OTPEnabled,
		Role:       role.Name,
	}, nil
}
