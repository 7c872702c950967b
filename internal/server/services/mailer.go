package services

import "context"

// Mailer delivers a message to a user out-of-band. The auth core treats a
// delivery failure as a hard failure of the request operation; it does not
// roll back the pending-login state (the next request overwrites it).
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}
