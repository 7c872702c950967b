package models

import "time"

// Peer API statuses. Only active peers take part in rotation.
const (
	PeerStatusActive   = "active"
	PeerStatusInactive = "inactive"
)

// AuthorizedAPI is a pre-registered peer service taking part in the mutual
// handshake. PrivateToken is the currently valid shared secret (nil until
// the first successful rotation). LastAccess is the epoch-millisecond stamp
// of that rotation and only ever increases; an inbound confirmation must
// echo it exactly or the round is treated as replayed.
type AuthorizedAPI struct {
	ID             string
	Name           string
	CallbackURL    string
	PrivateToken   *string
	LastAccess     int64
	Status         string
	TokenValidated bool
	CreatedAt      time.Time
}
