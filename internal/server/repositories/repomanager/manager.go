package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/passlink/internal/dbx"
	"github.com/dmitrijs2005/passlink/internal/server/repositories/authmethods"
	"github.com/dmitrijs2005/passlink/internal/server/repositories/peers"
	"github.com/dmitrijs2005/passlink/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	AuthMethods(db dbx.DBTX) authmethods.Repository
	Peers(db dbx.DBTX) peers.Repository
}
