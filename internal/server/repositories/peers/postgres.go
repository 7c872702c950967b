// Package peers provides the PostgreSQL-backed repository for registered
// peer APIs taking part in the handshake. Rotation writes are conditional
// updates keyed on the previously observed token and last_access, which is
// what keeps last_access monotonic across concurrent rounds.
package peers

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

const selectPeer = `
	SELECT id, name, callback_url, private_token, last_access, status, token_validated
	FROM authorized_apis
`

func (r *PostgresRepository) Create(ctx context.Context, peer *models.AuthorizedAPI) error {
	query := `
		INSERT INTO authorized_apis (id, name, callback_url, status)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.ExecContext(ctx, query, peer.ID, peer.Name, peer.CallbackURL, peer.Status); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]models.AuthorizedAPI, error) {
	return r.list(ctx, selectPeer+` ORDER BY name`)
}

func (r *PostgresRepository) ListActive(ctx context.Context) ([]models.AuthorizedAPI, error) {
	return r.list(ctx, selectPeer+` WHERE status = 'active' ORDER BY name`)
}

func (r *PostgresRepository) list(ctx context.Context, query string) ([]models.AuthorizedAPI, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.AuthorizedAPI
	for rows.Next() {
		peer, err := scanPeer(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *peer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*models.AuthorizedAPI, error) {
	row := r.db.QueryRowContext(ctx, selectPeer+` WHERE name = $1`, name)
	peer, err := scanPeer(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, err
	}
	return peer, nil
}

func scanPeer(scan func(dest ...any) error) (*models.AuthorizedAPI, error) {
	var (
		peer  models.AuthorizedAPI
		token sql.NullString
	)
	err := scan(&peer.ID, &peer.Name, &peer.CallbackURL, &token,
		&peer.LastAccess, &peer.Status, &peer.TokenValidated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if token.Valid {
		peer.PrivateToken = &token.String
	}
	return &peer, nil
}

// CompleteRotation stores the new token and timestamp after the peer
// acknowledged the push. The extra last_access guard keeps the column
// strictly increasing even if two rotation cycles overlap.
func (r *PostgresRepository) CompleteRotation(ctx context.Context, id string, expected RotationSnapshot, token string, lastAccess int64) error {
	query := `
		UPDATE authorized_apis
		SET private_token = $2, last_access = $3, token_validated = FALSE
		WHERE id = $1
		  AND private_token IS NOT DISTINCT FROM $4
		  AND last_access = $5
		  AND last_access < $3
	`
	return r.execExpectOne(ctx, query, id, token, lastAccess, expected.PrivateToken, expected.LastAccess)
}

func (r *PostgresRepository) MarkValidated(ctx context.Context, id string, expected RotationSnapshot) error {
	query := `
		UPDATE authorized_apis
		SET token_validated = TRUE
		WHERE id = $1
		  AND private_token IS NOT DISTINCT FROM $2
		  AND last_access = $3
	`
	return r.execExpectOne(ctx, query, id, expected.PrivateToken, expected.LastAccess)
}

func (r *PostgresRepository) SetStatus(ctx context.Context, name, status string) error {
	query := `
		UPDATE authorized_apis
		SET status = $2
		WHERE name = $1
	`
	return r.execExpectOne(ctx, query, name, status)
}

func (r *PostgresRepository) execExpectOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
