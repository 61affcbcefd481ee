// Package server wires configuration, storage and services together and
// runs the HTTP API until the process is signalled to stop.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dmitrijs2005/boardforge/internal/cryptox"
	"github.com/dmitrijs2005/boardforge/internal/logging"
	"github.com/dmitrijs2005/boardforge/internal/server/auth"
	"github.com/dmitrijs2005/boardforge/internal/server/config"
	"github.com/dmitrijs2005/boardforge/internal/server/httpapi"
	"github.com/dmitrijs2005/boardforge/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/boardforge/internal/server/services"
	"github.com/dmitrijs2005/boardforge/internal/timex"
)

const pingTimeout = 5 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	http   *httpapi.Server
}

// OpenDatabase opens the pgx-backed pool, checks connectivity and applies
// pending migrations.
func OpenDatabase(ctx context.Context, dsn string, m repomanager.RepositoryManager) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	if err := m.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}
	return db, nil
}

// NewTokenIssuer builds the token issuer from configuration.
func NewTokenIssuer(c *config.Config, clock timex.Clock) *auth.TokenIssuer {
	return auth.NewTokenIssuer(auth.Options{
		SigningKey:      []byte(c.SigningKey),
		Issuer:          c.Issuer,
		Audience:        c.Audience,
		AccessTokenTTL:  c.AccessTokenValidityDuration,
		RefreshTokenTTL: c.RefreshTokenValidityDuration,
	}, clock)
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	rm := repomanager.NewPostgresRepositoryManager()
	db, err := OpenDatabase(ctx, c.DatabaseDSN, rm)
	if err != nil {
		return nil, err
	}

	clock := timex.SystemClock{}
	issuer := NewTokenIssuer(c, clock)
	authorizer := services.NewTeamAuthorizer(db, rm, c.RoleCacheTTL)

	api := httpapi.NewServer(c.EndpointAddrHTTP, httpapi.Services{
		Auth:        services.NewAuthService(db, rm, cryptox.NewPasswordHasher(), issuer, clock, logger),
		Teams:       services.NewTeamService(db, rm, authorizer, clock, logger),
		Authorizer:  authorizer,
		Cards:       services.NewCardService(db, rm, clock, logger),
		Labels:      services.NewLabelService(db, rm, clock, logger),
		Attachments: services.NewAttachmentService(db, rm, c, clock, logger),
		Tokens:      issuer,
	}, logger)

	return &App{config: c, logger: logger, db: db, http: api}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.http.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until a termination signal arrives or the server fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "db close", "error", err)
	}
	app.logger.Info(context.Background(), "Stopped")
}
