package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/passlink/internal/server/models"
)

// LoginSnapshot is the observed state of a user's pending-login columns.
// Conditional updates are keyed on it: if the row no longer matches, the
// update affects zero rows and the caller gets common.ErrorNotFound.
type LoginSnapshot struct {
	SecretHash *string
	TokenHash  *string
}

// SnapshotOf captures the pending-login columns of a previously read row.
func SnapshotOf(u *models.User) LoginSnapshot {
	return LoginSnapshot{SecretHash: u.SecretHash, TokenHash: u.TokenHash}
}

type Repository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)

	// BeginLogin stores the hashes of a fresh one-time code and continuation
	// token, provided the row still matches expected.
	BeginLogin(ctx context.Context, userID string, expected LoginSnapshot, secretHash, tokenHash string) error

	// CompleteLogin clears the pending hashes, marks the user connected and
	// records the login time (and caller IP when known), provided the row
	// still matches expected.
	CompleteLogin(ctx context.Context, userID string, expected LoginSnapshot, loginAt time.Time, ip *string) error
}
