package authmethods

import (
	"context"

	"github.com/dmitrijs2005/passlink/internal/server/models"
)

// Repository reads the immutable auth-method catalog. Rows are seeded by
// migrations; nothing in the server writes them.
type Repository interface {
	GetByID(ctx context.Context, id string) (*models.AuthMethod, error)
	GetByName(ctx context.Context, name string) (*models.AuthMethod, error)
}
