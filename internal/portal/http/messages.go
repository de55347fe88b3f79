package http

// User-facing response messages. The login messages are deliberately
// generic so failures never disclose which factor was wrong or whether an
// account exists.
const (
	msgInvalidCredentials = "Invalid username or password"
	msgTOTPFailed         = "Authentication code verification failed"
	msgVerifyFailed       = "Verification failed"
	msgLoginRequired      = "Please login first"
	msgForbidden          = "You don't have the permission to access the requested resource"

	msgPasswordUpdated  = "Your password has been updated"
	msgInvalidPassword  = "Invalid current password"
	msgConfirmMismatch  = "Confirmation password does not match"
	msgAPIKeyReset      = "Your API key has been reset"
	msgOptionsSaved     = "Your options have been saved"
	msgInvalidRequest   = "Invalid request"
	msgOrganizationGone = "Organization not found"
	msgChatUnavailable  = "Chat is not available"
)
