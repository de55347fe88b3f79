package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToggleTwoFactor(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	svc := &TwoFactorService{Store: s, Issuer: "CERT-EU"}

	t.Run("enable with wrong code leaves the flag unchanged", func(t *testing.T) {
		user := createUser(t, s, "alice@example.com", "pw", userOpts{})

		require.ErrorIs(t, svc.Toggle(ctx, user.ID, true, "000000"), ErrTOTPInvalid)

		got, err := s.Users().GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		require.False(t, got.OTPEnabled)
	})

	t.Run("enable with valid code flips the flag", func(t *testing.T) {
		user := createUser(t, s, "bob@example.com", "pw", userOpts{})

		require.NoError(t, svc.Toggle(ctx, user.ID, true, currentCode(t, user.OTPSecret)))

		got, err := s.Users().GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		require.True(t, got.OTPEnabled)
	})

	t.Run("disable needs no code", func(t *testing.T) {
		user := createUser(t, s, "carol@example.com", "pw", userOpts{otpEnabled: true})

		require.NoError(t, svc.Toggle(ctx, user.ID, false, ""))

		got, err := s.Users().GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		require.False(t, got.OTPEnabled)
	})
}

func TestProvisioningURI(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	svc := &TwoFactorService{Store: s, Issuer: "CERT-EU"}

	user := createUser(t, s, "dave@example.com", "pw", userOpts{})

	uri, err := svc.ProvisioningURI(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "otpauth://totp/"))
	require.Contains(t, uri, "dave@example.com")
	require.Contains(t, uri, "secret="+user.OTPSecret)
	require.Contains(t, uri, "issuer=CERT-EU")
}

func TestQRCodeSVG(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	svc := &TwoFactorService{Store: s, Issuer: "CERT-EU"}

	user := createUser(t, s, "erin@example.com", "pw", userOpts{})

	out, err := svc.QRCodeSVG(ctx, user.ID)
	require.NoError(t, err)
	require.Contains(t, string(out), "<svg")
}
