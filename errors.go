package auth

import (
	"github.com/goliatone/go-errors"
)

// Text codes used by API clients to branch on failure kinds without
// parsing messages.
const (
	TextCodeInvalidParams     = "INVALID_PARAMS"
	TextCodeUnauthorized      = "UNAUTHORIZED"
	TextCodeTokenExpired      = "TOKEN_EXPIRED"
	TextCodeTokenMalformed    = "TOKEN_MALFORMED"
	TextCodeConflict          = "CONFLICT"
	TextCodeCryptoFailure     = "CRYPTO_FAILURE"
	TextCodeNotification      = "NOTIFICATION_FAILURE"
	TextCodeInsufficientPerms = "INSUFFICIENT_PERMISSIONS"
)

// ErrInvalidParams is returned when a request payload is missing required
// fields or is otherwise malformed. It terminates the flow before any
// store access.
var ErrInvalidParams = errors.New("invalid parameters", errors.CategoryBadInput).
	WithCode(errors.CodeBadRequest).
	WithTextCode(TextCodeInvalidParams)

// ErrUnauthorized covers bad credentials, absent or unusable tokens, and
// missing or ambiguous lookup matches. Deliberately coarse so callers
// cannot tell which check failed.
var ErrUnauthorized = errors.New("unauthorized", errors.CategoryAuth).
	WithCode(errors.CodeForbidden).
	WithTextCode(TextCodeUnauthorized)

// ErrTokenExpired is the decode-time classification for tokens past their
// expiry window. Collapsed into ErrUnauthorized at the middleware boundary.
var ErrTokenExpired = errors.New("authentication token expired", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeTokenExpired)

// ErrTokenMalformed is the decode-time classification for tokens that fail
// signature verification or carry a broken payload.
var ErrTokenMalformed = errors.New("authentication token malformed", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeTokenMalformed)

// ErrEmailNotUnique signals a registration against an already used email.
var ErrEmailNotUnique = errors.New("email is not unique", errors.CategoryConflict).
	WithCode(errors.CodeConflict).
	WithTextCode(TextCodeConflict)

// ErrOrganizationNotUnique signals a registration against an already used
// organization name.
var ErrOrganizationNotUnique = errors.New("organization is not unique", errors.CategoryConflict).
	WithCode(errors.CodeConflict).
	WithTextCode(TextCodeConflict)

// ErrCryptoFailure wraps internal faults from the hashing layer. Logged in
// full, surfaced to callers as a generic failure.
var ErrCryptoFailure = errors.New("crypto error", errors.CategoryInternal).
	WithCode(errors.CodeInternal).
	WithTextCode(TextCodeCryptoFailure)

// ErrNotificationFailure signals that an outbound email could not be
// delivered for a flow whose contract is notify-or-fail.
var ErrNotificationFailure = errors.New("email notification error", errors.CategoryInternal).
	WithCode(errors.CodeInternal).
	WithTextCode(TextCodeNotification)

// ErrInsufficientPermissions is returned by the role guards.
var ErrInsufficientPermissions = errors.New("insufficient permissions", errors.CategoryAuthz).
	WithCode(errors.CodeForbidden).
	WithTextCode(TextCodeInsufficientPerms)

// IsTokenExpiredError reports whether err carries the expiry text code.
func IsTokenExpiredError(err error) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TextCodeTokenExpired
}

// IsTokenMalformedError reports whether err carries the malformed text code.
func IsTokenMalformedError(err error) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TextCodeTokenMalformed
}

// IsUnauthorizedError reports whether err is the coarse unauthorized kind.
func IsUnauthorizedError(err error) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TextCodeUnauthorized
}

// IsConflictError reports whether err is a uniqueness conflict.
func IsConflictError(err error) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.Category == errors.CategoryConflict
}
