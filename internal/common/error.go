// Package common defines shared constants and sentinel errors used across
// the PassLink server layers. Callers should use errors.Is to match the
// sentinel values.
package common

import "net/http"

// Error is the single failure value the auth core passes across its
// boundary: a message safe to show to the caller plus the HTTP status it
// maps to. Internal detail is never carried here; it stays in logs.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

// NewError builds an *Error with the given status and caller-visible message.
func NewError(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

var (
	// ErrorValidation covers malformed or missing input.
	ErrorValidation = NewError(http.StatusBadRequest, "invalid request")

	// ErrorMalformedParams covers structurally wrong handshake params
	// (wrong field count after decoding).
	ErrorMalformedParams = NewError(http.StatusUnprocessableEntity, "malformed params")

	// ErrorNotFound covers an absent user/peer and also a conditional
	// update that matched zero rows. The two cases are deliberately not
	// distinguished so callers cannot enumerate accounts.
	ErrorNotFound = NewError(http.StatusNotFound, "not found")

	// ErrorUnauthorized covers bearer/bootstrap-secret mismatches.
	ErrorUnauthorized = NewError(http.StatusUnauthorized, "unauthorized")

	// ErrorInvalidCode is the single answer for every confirm-phase
	// mismatch: wrong code, wrong continuation token, or a row that moved
	// underneath the confirmation. One message, no oracle.
	ErrorInvalidCode = NewError(http.StatusUnauthorized, "invalid code or token")

	// ErrorLoginExpired marks a continuation token past its window. Same
	// caller-visible surface as ErrorInvalidCode; the distinct value exists
	// for errors.Is checks inside the core and in tests.
	ErrorLoginExpired = NewError(http.StatusUnauthorized, "invalid code or token")

	// Signed-token verification failures. Only the verification endpoint
	// may surface expiry distinctly.
	ErrInvalidToken = NewError(http.StatusBadRequest, "invalid token")
	ErrTokenExpired = NewError(http.StatusBadRequest, "token expired")

	// ErrorUnimplemented is returned for the password method.
	ErrorUnimplemented = NewError(http.StatusNotImplemented, "not implemented")

	// ErrorInternal covers hashing/signing/persistence transport failures.
	ErrorInternal = NewError(http.StatusInternalServerError, "internal error")
)
