package service

import "errors"

var (
	// ErrInvalidCredentials covers every first-factor failure. Handlers
	// must answer with the same generic message regardless of cause.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNoPendingLogin means verify-totp was called without a completed
	// first factor, or the pending state was already consumed.
	ErrNoPendingLogin = errors.New("no pending login")

	// ErrNotEnrolled means the account has no active two-factor enrollment.
	ErrNotEnrolled = errors.New("two-factor not enrolled")

	// ErrTOTPInvalid means the submitted code did not match.
	ErrTOTPInvalid = errors.New("totp code invalid")

	// ErrCurrentPassword means the old-password check failed.
	ErrCurrentPassword = errors.New("current password incorrect")

	ErrOrganizationNotFound = errors.New("organization not found")
	ErrUserNotFound         = errors.New("user not found")

	// ErrChatDisabled means the BOSH passthrough is feature-flagged off.
	ErrChatDisabled = errors.New("chat sessions disabled")
)
