// Package common contains shared constants and sentinel errors used across
// PassLink components.
package common

// Auth method catalog names. The column is immutable_method_name; rows are
// seeded by migrations and never written by the auth core.
const (
	MethodEmailCode = "EMAIL_CODE"
	MethodPassword  = "PASSWORD"
)

// AuthorizationHeaderName carries the bearer credential on inbound requests:
// a signed token for user endpoints, the static bootstrap secret for
// handshake confirmation.
const AuthorizationHeaderName = "Authorization"
