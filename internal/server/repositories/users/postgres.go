// Package users provides the PostgreSQL-backed repository for identity rows.
// Every write is a compare-and-swap keyed on the previously observed
// pending-login columns, never a blind overwrite.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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

const selectUser = `
	SELECT id, email, name, auth_method_id, secret_hash, token_hash,
	       is_connected, last_login, last_ip
	FROM users
`

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, selectUser+` WHERE email = $1`, email)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, selectUser+` WHERE id = $1`, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var (
		user       models.User
		secretHash sql.NullString
		tokenHash  sql.NullString
		lastLogin  sql.NullTime
		lastIP     sql.NullString
	)

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Email, &user.Name, &user.AuthMethodID,
		&secretHash, &tokenHash, &user.IsConnected, &lastLogin, &lastIP)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if secretHash.Valid {
		user.SecretHash = &secretHash.String
	}
	if tokenHash.Valid {
		user.TokenHash = &tokenHash.String
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLogin = &t
	}
	if lastIP.Valid {
		user.LastIP = &lastIP.String
	}

	return &user, nil
}

// BeginLogin installs the new pending-login hashes. IS NOT DISTINCT FROM
// makes NULL compare as a value, so "no pending login" is a matchable state.
func (r *PostgresRepository) BeginLogin(ctx context.Context, userID string, expected LoginSnapshot, secretHash, tokenHash string) error {
	query := `
		UPDATE users
		SET secret_hash = $2, token_hash = $3
		WHERE id = $1
		  AND secret_hash IS NOT DISTINCT FROM $4
		  AND token_hash IS NOT DISTINCT FROM $5
	`
	return r.execExpectOne(ctx, query,
		userID, secretHash, tokenHash, expected.SecretHash, expected.TokenHash)
}

// CompleteLogin consumes the pending login: both hashes are cleared in the
// same conditional update that checks them, so a second confirmation of the
// same cycle can never match.
func (r *PostgresRepository) CompleteLogin(ctx context.Context, userID string, expected LoginSnapshot, loginAt time.Time, ip *string) error {
	query := `
		UPDATE users
		SET secret_hash = NULL, token_hash = NULL,
		    is_connected = TRUE, last_login = $2, last_ip = COALESCE($3, last_ip)
		WHERE id = $1
		  AND secret_hash IS NOT DISTINCT FROM $4
		  AND token_hash IS NOT DISTINCT FROM $5
	`
	return r.execExpectOne(ctx, query,
		userID, loginAt, ip, expected.SecretHash, expected.TokenHash)
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
