package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/boardforge/internal/dbx"
	"github.com/dmitrijs2005/boardforge/internal/server/repositories/attachments"
	"github.com/dmitrijs2005/boardforge/internal/server/repositories/cards"
	"github.com/dmitrijs2005/boardforge/internal/server/repositories/labels"
	"github.com/dmitrijs2005/boardforge/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/boardforge/internal/server/repositories/teams"
	"github.com/dmitrijs2005/boardforge/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so one transaction
// can span several of them.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Teams(db dbx.DBTX) teams.Repository
	Cards(db dbx.DBTX) cards.Repository
	Labels(db dbx.DBTX) labels.Repository
	Attachments(db dbx.DBTX) attachments.Repository
}
