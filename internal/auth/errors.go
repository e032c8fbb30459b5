package auth

import "errors"

// Token decode failures. They stay internal: callers of the session layer only
// ever see a uniform unauthorized error.
var (
	ErrMalformed    = errors.New("token malformed")
	ErrBadSignature = errors.New("token signature invalid")
	ErrExpired      = errors.New("token expired")
	ErrWrongType    = errors.New("token type mismatch")
)

var (
	ErrInputTooLarge     = errors.New("password exceeds maximum length")
	ErrCorruptCredential = errors.New("stored credential hash is corrupt")
	ErrSecretUnavailable = errors.New("signing secret unavailable")
)

// RejectionReason labels a decode error for logs and metrics.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrBadSignature):
		return "bad_signature"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrWrongType):
		return "wrong_type"
	default:
		return "unknown"
	}
}
