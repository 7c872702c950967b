package peers

import (
	"context"

	"github.com/dmitrijs2005/passlink/internal/server/models"
)

// RotationSnapshot is the observed rotation state of a peer row. Writes are
// keyed on it: a row that moved since the read matches zero rows and the
// caller gets common.ErrorNotFound.
type RotationSnapshot struct {
	PrivateToken *string
	LastAccess   int64
}

// SnapshotOf captures the rotation columns of a previously read peer row.
func SnapshotOf(p *models.AuthorizedAPI) RotationSnapshot {
	return RotationSnapshot{PrivateToken: p.PrivateToken, LastAccess: p.LastAccess}
}

type Repository interface {
	Create(ctx context.Context, peer *models.AuthorizedAPI) error
	List(ctx context.Context) ([]models.AuthorizedAPI, error)
	ListActive(ctx context.Context) ([]models.AuthorizedAPI, error)
	GetByName(ctx context.Context, name string) (*models.AuthorizedAPI, error)

	// CompleteRotation persists a freshly pushed private token and its
	// timestamp, provided the row still matches expected. The fresh
	// token is unvalidated until the peer round-trips it.
	CompleteRotation(ctx context.Context, id string, expected RotationSnapshot, token string, lastAccess int64) error

	// MarkValidated records that the peer echoed the current token back,
	// provided the row still matches expected.
	MarkValidated(ctx context.Context, id string, expected RotationSnapshot) error

	SetStatus(ctx context.Context, name, status string) error
}
