package models

import "time"

// User is the identity row as the auth core sees it. SecretHash holds the
// argon2id hash of the pending one-time code, TokenHash the hash of the
// matching continuation token. The two are either both set (an OTP cycle is
// in flight) or both nil; the repository's conditional updates maintain
// that invariant.
type User struct {
	ID           string
	Email        string
	Name         string
	AuthMethodID string
	SecretHash   *string
	TokenHash    *string
	IsConnected  bool
	LastLogin    *time.Time
	LastIP       *string
	CreatedAt    time.Time
}

// HasPendingLogin reports whether an OTP cycle is currently in flight.
func (u *User) HasPendingLogin() bool {
	return u.SecretHash != nil && u.TokenHash != nil
}
