package auth

import (
	goerrors "github.com/goliatone/go-errors"
)

// Text codes for the error taxonomy. Edges key throttling and retry
// behavior off these, never off error messages.
const (
	TextCodeIncorrectCredentials = "INCORRECT_CREDENTIALS"
	TextCodeTooManyAttempts      = "TOO_MANY_ATTEMPTS"
	TextCodeInvalidResetToken    = "INVALID_RESET_TOKEN"
	TextCodeNoPasswordSet        = "NO_PASSWORD_SET"
	TextCodeRevisionConflict     = "REVISION_CONFLICT"
	TextCodeTokenFormat          = "TOKEN_FORMAT"
	TextCodeTokenCrypto          = "TOKEN_CRYPTO"
)

// ErrIncorrectCredentials covers unknown email, no password set, and wrong
// password uniformly. The audit log differentiates, the caller never does.
var ErrIncorrectCredentials = goerrors.New("incorrect credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeIncorrectCredentials)

// ErrTooManyAttempts is returned when a rate-limit window is exhausted.
var ErrTooManyAttempts = goerrors.New("too many attempts", goerrors.CategoryAuth).
	WithTextCode(TextCodeTooManyAttempts)

// ErrInvalidResetToken is returned by ResetPassword when the token is
// missing, expired, or foreign. The edge should have probed validity first,
// so reaching this is a protocol violation rather than an expected outcome.
var ErrInvalidResetToken = goerrors.New("invalid or expired password reset token", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidResetToken)

// ErrNoPasswordSet signals a precondition violation: a password change was
// requested for a user that has no stored password.
var ErrNoPasswordSet = goerrors.New("user has no password set", goerrors.CategoryBadInput).
	WithTextCode(TextCodeNoPasswordSet)

// ErrRevisionConflict reports a lost optimistic-concurrency write: the user
// row moved between read and save.
var ErrRevisionConflict = goerrors.New("user revision changed since read", goerrors.CategoryConflict).
	WithTextCode(TextCodeRevisionConflict)

// ErrTokenFormat means the bearer token text is not valid URL-safe base64.
var ErrTokenFormat = goerrors.New("token is not base64url encoded", goerrors.CategoryValidation).
	WithTextCode(TextCodeTokenFormat)

// ErrTokenCrypto means authenticated decryption failed: wrong key, tampered
// ciphertext, or corrupted bytes.
var ErrTokenCrypto = goerrors.New("token is malformed or encrypted with the wrong key", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenCrypto)

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// IsTokenFormatError reports whether err is a codec format failure.
func IsTokenFormatError(err error) bool {
	return hasTextCode(err, TextCodeTokenFormat)
}

// IsTokenCryptoError reports whether err is a codec decryption failure.
func IsTokenCryptoError(err error) bool {
	return hasTextCode(err, TextCodeTokenCrypto)
}

// IsRevisionConflict reports whether err is a lost optimistic write.
func IsRevisionConflict(err error) bool {
	return hasTextCode(err, TextCodeRevisionConflict)
}

// IsInvalidResetToken reports whether err rejects a password reset token.
func IsInvalidResetToken(err error) bool {
	return hasTextCode(err, TextCodeInvalidResetToken)
}
