package service

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/aaronarduino/goqrsvg"
	svg "github.com/ajstarks/svgo"
	"github.com/boombuler/barcode/qr"

	"github.com/certeu/do-portal/internal/portal/store"
)

// TwoFactorService manages TOTP enrollment for portal accounts. Every
// account carries a provisioned secret from creation; enabling 2FA only
// requires proving possession of it once.
type TwoFactorService struct {
	Store store.Store

	// Issuer is shown in authenticator apps, e.g. "CERT-EU".
	Issuer string
}

// Toggle enables or disables two-factor authentication. Enabling requires
// a valid code against the provisioned secret; disabling is unconditional
// for an authenticated caller.
func (s *TwoFactorService) Toggle(ctx context.Context, userID string, enable bool, code string) error {
	if !enable {
		return s.Store.Users().SetOTPEnabled(ctx, userID, false)
	}

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !validateTOTP(code, user.OTPSecret) {
		return ErrTOTPInvalid
	}
	return s.Store.Users().SetOTPEnabled(ctx, userID, true)
}

// ProvisioningURI builds the otpauth URL authenticator apps consume.
func (s *TwoFactorService) ProvisioningURI(ctx context.Context, userID string) (string, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("otpauth://totp/%s?secret=%s&issuer=%s",
		url.PathEscape(user.Email), user.OTPSecret, url.QueryEscape(s.Issuer)), nil
}

// QRCodeSVG renders the provisioning URI as an SVG QR code. The response
// encodes the shared secret, callers must mark it uncacheable.
func (s *TwoFactorService) QRCodeSVG(ctx context.Context, userID string) ([]byte, error) {
	uri, err := s.ProvisioningURI(ctx, userID)
	if err != nil {
		return nil, err
	}

	code, err := qr.Encode(uri, qr.M, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}

	var buf bytes.Buffer
	canvas := svg.New(&buf)
	qs := goqrsvg.NewQrSVG(code, 8)
	qs.StartQrSVG(canvas)
	if err := qs.WriteQrSVG(canvas); err != nil {
		return nil, fmt.Errorf("render qr svg: %w", err)
	}
	canvas.End()

	return buf.Bytes(), nil
}
