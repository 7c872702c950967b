// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/passlink/internal/dbx"
	"github.com/dmitrijs2005/passlink/internal/server/migrations"
	"github.com/dmitrijs2005/passlink/internal/server/repositories/authmethods"
	"github.com/dmitrijs2005/passlink/internal/server/repositories/peers"
	"github.com/dmitrijs2005/passlink/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

// AuthMethods returns an authmethods.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) AuthMethods(db dbx.DBTX) authmethods.Repository {
	return authmethods.NewPostgresRepository(db)
}

// Peers returns a peers.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Peers(db dbx.DBTX) peers.Repository {
	return peers.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}
