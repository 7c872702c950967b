// Package authmethods provides read-only access to the auth-method catalog.
package authmethods

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/passlink/internal/common"
	"github.com/dmitrijs2005/passlink/internal/dbx"
	"github.com/dmitrijs2005/passlink/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.AuthMethod, error) {
	query := `
		SELECT id, immutable_method_name, display_name
		FROM auth_methods
		WHERE id = $1
	`
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*models.AuthMethod, error) {
	query := `
		SELECT id, immutable_method_name, display_name
		FROM auth_methods
		WHERE immutable_method_name = $1
	`
	return r.getOne(ctx, query, name)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.AuthMethod, error) {
	method := &models.AuthMethod{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&method.ID, &method.Name, &method.DisplayName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return method, nil
}
