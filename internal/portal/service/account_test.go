package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/certeu/do-portal/internal/portal/domain"
	"github.com/certeu/do-portal/internal/portal/store"
	"github.com/certeu/do-portal/pkg/cryptox"
	"github.com/certeu/do-portal/pkg/idx"
	"github.com/certeu/do-portal/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

// recordingMailer captures outgoing notifications.
type recordingMailer struct {
	mu            sync.Mutex
	activations   map[string]string // email -> activation URL
	deactivations []string
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{activations: make(map[string]string)}
}

func (m *recordingMailer) SendActivation(ctx context.Context, to, activateURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activations[to] = activateURL
	return nil
}

func (m *recordingMailer) SendDeactivation(ctx context.Context, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deactivations = append(m.deactivations, to)
	return nil
}

func createOrganization(t *testing.T, s store.Store, abbr string, sla bool) domain.Organization {
	t.Helper()

	now := time.Now().UTC()
	org := domain.Organization{
		ID:           idx.New().String(),
		Abbreviation: abbr,
		FullName:     abbr + " (Full Name)",
		SLA:          sla,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, s.Organizations().CreateOrganization(context.Background(), org))
	return org
}

func newAccountService(s store.Store, mailer *recordingMailer) *AccountService {
	return &AccountService{
		Store:         s,
		Signer:        &jwtx.Signer{Secret: []byte("test-secret"), Issuer: "do-portal"},
		Mailer:        mailer,
		WebRoot:       "https://cp.example.test",
		ActivationTTL: 72 * time.Hour,
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("non-SLA organization gets the default role", func(t *testing.T) {
		s := newTestStore(t)
		mailer := newRecordingMailer()
		svc := newAccountService(s, mailer)
		org := createOrganization(t, s, "berec", false)

		user, err := svc.Register(ctx, org.ID, "BEREC (user@domain.tld)", "user@domain.tld")
		require.NoError(t, err)

		role, err := s.Roles().GetRoleByID(ctx, user.RoleID)
		require.NoError(t, err)
		require.Equal(t, domain.RoleConstituent, role.Name)
		require.False(t, role.Permissions.Has(domain.PermSLAActions))

		// Contact email is created and flagged for portal access.
		contact, err := s.ContactEmails().GetContactEmail(ctx, org.ID, "user@domain.tld")
		require.NoError(t, err)
		require.True(t, contact.CP)

		require.Contains(t, mailer.activations, "user@domain.tld")
		require.Contains(t, mailer.activations["user@domain.tld"], "https://cp.example.test/auth/activate-account/")
	})

	t.Run("SLA organization gets the first SLA-capable role", func(t *testing.T) {
		s := newTestStore(t)
		svc := newAccountService(s, newRecordingMailer())
		org := createOrganization(t, s, "enisa", true)

		user, err := svc.Register(ctx, org.ID, "ENISA contact", "sla@domain.tld")
		require.NoError(t, err)

		role, err := s.Roles().GetRoleByID(ctx, user.RoleID)
		require.NoError(t, err)
		require.Equal(t, domain.RoleSLAConstituent, role.Name)
		require.True(t, role.Permissions.Has(domain.PermSLAActions))
		require.NotEqual(t, domain.Permission(0xff), role.Permissions)
	})

	t.Run("configured admins get the administrator role", func(t *testing.T) {
		s := newTestStore(t)
		svc := newAccountService(s, newRecordingMailer())
		svc.Admins = []string{"boss@cert.europa.eu"}
		org := createOrganization(t, s, "certeu", false)

		user, err := svc.Register(ctx, org.ID, "The Boss", "boss@cert.europa.eu")
		require.NoError(t, err)

		role, err := s.Roles().GetRoleByID(ctx, user.RoleID)
		require.NoError(t, err)
		require.Equal(t, domain.RoleAdministrator, role.Name)
	})

	t.Run("unknown organization is a lookup failure", func(t *testing.T) {
		s := newTestStore(t)
		svc := newAccountService(s, newRecordingMailer())

		_, err := svc.Register(ctx, "missing-org", "n", "e@d.tld")
		require.ErrorIs(t, err, ErrOrganizationNotFound)
	})

	t.Run("re-registering an existing contact re-enables the flag", func(t *testing.T) {
		s := newTestStore(t)
		svc := newAccountService(s, newRecordingMailer())
		org := createOrganization(t, s, "acme", false)

		now := time.Now().UTC()
		contact := domain.ContactEmail{
			ID:             idx.New().String(),
			OrganizationID: org.ID,
			Email:          "existing@domain.tld",
			CP:             false,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		require.NoError(t, s.ContactEmails().CreateContactEmail(ctx, contact))

		_, err := svc.Register(ctx, org.ID, "Existing", "existing@domain.tld")
		require.NoError(t, err)

		got, err := s.ContactEmails().GetContactEmail(ctx, org.ID, "existing@domain.tld")
		require.NoError(t, err)
		require.True(t, got.CP)
	})

	t.Run("duplicate registration rolls back completely", func(t *testing.T) {
		s := newTestStore(t)
		svc := newAccountService(s, newRecordingMailer())
		org := createOrganization(t, s, "dup", false)

		_, err := svc.Register(ctx, org.ID, "First", "dup@domain.tld")
		require.NoError(t, err)

		_, err = svc.Register(ctx, org.ID, "Second", "dup@domain.tld")
		require.Error(t, err)
	})
}

func TestUnregister(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mailer := newRecordingMailer()
	svc := newAccountService(s, mailer)
	org := createOrganization(t, s, "berec", false)

	user, err := svc.Register(ctx, org.ID, "To Remove", "leaver@domain.tld")
	require.NoError(t, err)

	notified, err := svc.Unregister(ctx, org.ID, "leaver@domain.tld")
	require.NoError(t, err)

	// The notice goes to the address captured before the row was deleted.
	require.Equal(t, "leaver@domain.tld", notified)
	require.Equal(t, []string{"leaver@domain.tld"}, mailer.deactivations)

	_, err = s.Users().GetUserByID(ctx, user.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	contact, err := s.ContactEmails().GetContactEmail(ctx, org.ID, "leaver@domain.tld")
	require.NoError(t, err)
	require.False(t, contact.CP)

	t.Run("unknown account", func(t *testing.T) {
		_, err := svc.Unregister(ctx, org.ID, "nobody@domain.tld")
		require.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	svc := newAccountService(s, newRecordingMailer())

	user := createUser(t, s, "alice@example.com", "old password", userOpts{})

	t.Run("wrong current password is rejected", func(t *testing.T) {
		err := svc.ChangePassword(ctx, user.ID, "not the password", "new password")
		require.ErrorIs(t, err, ErrCurrentPassword)
	})

	t.Run("correct current password updates the hash", func(t *testing.T) {
		require.NoError(t, svc.ChangePassword(ctx, user.ID, "old password", "new password"))

		got, err := s.Users().GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		require.NoError(t, cryptox.VerifyPassword("new password", got.PasswordHash))
		require.ErrorIs(t, cryptox.VerifyPassword("old password", got.PasswordHash), cryptox.ErrPasswordMismatch)
	})
}

func TestResetAPIKey(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	svc := newAccountService(s, newRecordingMailer())

	user := createUser(t, s, "bob@example.com", "pw", userOpts{})

	key, err := svc.ResetAPIKey(ctx, user.ID)
	require.NoError(t, err)
	require.NotEqual(t, user.APIKey, key)
	require.Len(t, key, 64)

	got, err := s.Users().GetUserByAPIKey(ctx, key)
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
}

func TestActivationTokens(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	svc := newAccountService(s, newRecordingMailer())

	user := createUser(t, s, "carol@example.com", "throwaway", userOpts{})

	token, err := svc.Signer.Sign(user.ID, jwtx.UseActivation, time.Hour)
	require.NoError(t, err)

	t.Run("valid token resolves the user", func(t *testing.T) {
		got, err := svc.VerifyActivationToken(ctx, token)
		require.NoError(t, err)
		require.Equal(t, user.ID, got.ID)
	})

	t.Run("token sets the password without the old one", func(t *testing.T) {
		require.NoError(t, svc.SetPasswordWithToken(ctx, token, "chosen password"))

		got, err := s.Users().GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		require.NoError(t, cryptox.VerifyPassword("chosen password", got.PasswordHash))
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		expired, err := svc.Signer.Sign(user.ID, jwtx.UseActivation, -time.Minute)
		require.NoError(t, err)

		_, err = svc.VerifyActivationToken(ctx, expired)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("remember token is not an activation token", func(t *testing.T) {
		wrongUse, err := svc.Signer.Sign(user.ID, jwtx.UseRemember, time.Hour)
		require.NoError(t, err)

		_, err = svc.VerifyActivationToken(ctx, wrongUse)
		require.ErrorIs(t, err, jwtx.ErrUse)
	})
}

func TestGetAccount(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	svc := newAccountService(s, newRecordingMailer())

	user := createUser(t, s, "dave@example.com", "pw", userOpts{otpEnabled: true})

	acct, err := svc.GetAccount(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, user.Email, acct.Email)
	require.Equal(t, user.APIKey, acct.APIKey)
	require.True(t, acct.OTPEnabled)
	require.Equal(t, domain.RoleConstituent, acct.Role)

	_, err = svc.GetAccount(ctx, "missing")
	require.ErrorIs(t, err, ErrUserNotFound)
}
