// Package server initializes and runs the vault server: it opens the
// database, applies migrations, wires the services together and runs the
// periodic cleanup of expired sessions and shares until shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/filevault/internal/cryptox"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/blob"
	"github.com/dmitrijs2005/filevault/internal/server/config"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filevault/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB

	UserService      *services.UserService
	FileService      *services.FileService
	ShareService     *services.ShareService
	QuotaService     *services.QuotaService
	TwoFactorService *services.TwoFactorService
	StepUpService    *services.StepUpService
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	blobs, err := blob.NewS3Store(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	masterKey := cryptox.MasterKeyFromSecret(cfg.MasterKeySecret)
	cipher := cryptox.NewSecretCipher(cfg.AppSecret)

	quota := services.NewQuotaService(db, rm)
	access := services.NewAccessService(db, rm)
	twofactor := services.NewTwoFactorService(db, rm, cipher, cfg.TwoFactorIssuer, logger)
	stepup := services.NewStepUpService(db, rm, twofactor, cfg.StepUpValidityDuration, logger)
	files := services.NewFileService(db, rm, blobs, quota, access, stepup, masterKey, logger)
	share := services.NewShareService(db, rm, stepup, logger)
	user := services.NewUserService(db, rm, twofactor,
		[]byte(cfg.SecretKey), cfg.AccessTokenValidityDuration, logger)

	return &App{
		config:           cfg,
		logger:           logger,
		db:               db,
		UserService:      user,
		FileService:      files,
		ShareService:     share,
		QuotaService:     quota,
		TwoFactorService: twofactor,
		StepUpService:    stepup,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// runCleanup sweeps expired step-up sessions and shares on a fixed
// interval. Both expiries are already enforced at read time; the sweep
// keeps the tables bounded.
func (app *App) runCleanup(ctx context.Context) {
	interval := app.config.CleanupInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := app.StepUpService.Cleanup(ctx); err != nil {
				app.logger.Error(ctx, "step-up cleanup failed", "error", err.Error())
			}
			if err := app.ShareService.CleanupExpired(ctx); err != nil {
				app.logger.Error(ctx, "share cleanup failed", "error", err.Error())
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting vault server")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		app.runCleanup(ctx)
	}()

	<-ctx.Done()
	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close failed", "error", err.Error())
	}
	app.logger.Info(ctx, "server stopped")
}
