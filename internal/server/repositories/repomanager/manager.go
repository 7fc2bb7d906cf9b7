package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/files"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/secondfactors"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/shares"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/stepupsessions"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/users"
)

// RepositoryManager produces repositories bound to an arbitrary DBTX, so
// services can run the same repository code against *sql.DB or inside a
// transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Files(db dbx.DBTX) files.Repository
	Shares(db dbx.DBTX) shares.Repository
	SecondFactors(db dbx.DBTX) secondfactors.Repository
	StepUpSessions(db dbx.DBTX) stepupsessions.Repository
}
