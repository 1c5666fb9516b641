package auth

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// ErrInvalidCredentials is the single public failure for the login path.
// Malformed input, unknown email, wrong password, and internal store errors
// all fold into this value so the response body carries no oracle.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode("INVALID_CREDENTIALS")

// ErrInvalidToken covers signature, expiry, and identity-resolution failures
// on protected calls. Expired and forged tokens are deliberately not
// distinguished to the caller.
var ErrInvalidToken = goerrors.New("invalid or expired token", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode("INVALID_TOKEN")

// ErrDuplicateEmail is returned when registering or updating to an email that
// already exists within the account scope.
var ErrDuplicateEmail = goerrors.New("email already in use", goerrors.CategoryConflict).
	WithTextCode("DUPLICATE_EMAIL")

// ErrAccountNotFound is returned when a registration references an account
// that does not resolve.
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound).
	WithTextCode("ACCOUNT_NOT_FOUND")

// ErrCurrentPasswordIncorrect is returned by the authenticated password
// change flow; this endpoint has no anti-enumeration concern so the error is
// specific.
var ErrCurrentPasswordIncorrect = goerrors.New("current password is incorrect", goerrors.CategoryValidation).
	WithTextCode("CURRENT_PASSWORD_INCORRECT")

// ErrInvalidOrExpiredResetToken is returned for any reset token that cannot
// be redeemed: unknown secret, expired secret, or already consumed. The
// causes are not distinguished.
var ErrInvalidOrExpiredResetToken = goerrors.New("invalid or expired password reset token", goerrors.CategoryValidation).
	WithTextCode("INVALID_RESET_TOKEN")

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = errors.New("identity not found")

// ErrNoEmptyString rejects empty passwords before hashing
var ErrNoEmptyString = errors.New("password must not be empty")

// ErrMismatchedHashAndPassword is the internal mismatch sentinel from the hasher
var ErrMismatchedHashAndPassword = errors.New("mismatched hash and password")

// ErrUnableToFindSession is the error when our request has no cookie
var ErrUnableToFindSession = errors.New("unable to find session")

// ErrUnableToDecodeSession unable to decode JWT from session cookie
var ErrUnableToDecodeSession = errors.New("unable to decode session")

// ErrUnableToMapClaims unable to get claims from token
var ErrUnableToMapClaims = errors.New("unable to map claims")

// ErrUnableToParseData parse error
var ErrUnableToParseData = errors.New("unable to parse data")

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
