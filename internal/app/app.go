// Package app wires the contacts app together and runs its HTTP server until the context is
// cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"gitlab.com/dirk.krummacker/contacts-app/internal/config"
	"gitlab.com/dirk.krummacker/contacts-app/internal/graphql"
	"gitlab.com/dirk.krummacker/contacts-app/internal/service"
	"gitlab.com/dirk.krummacker/contacts-app/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds how long in-flight requests may take after the context was cancelled.
const shutdownTimeout = 10 * time.Second

// App is a fully wired contacts app.
type App struct {
	config *config.Config
	logger *zap.Logger
	db     *sqlx.DB
	store  *store.Store
	server *http.Server
}

// New connects to the database, runs the migrations if configured and builds the HTTP server.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	gin.SetMode(cfg.GinMode)

	db, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Migrate {
		if err := store.Migrate(ctx, db, "up"); err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("database migrated", zap.String("driver", cfg.Database.Driver))
	}
	contacts, err := store.New(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	books := graphql.New(cfg.GraphQL.Endpoint, cfg.GraphQL.CacheTTL, nil)
	s, err := service.New(contacts, books, logger)
	if err != nil {
		contacts.Close()
		db.Close()
		return nil, err
	}
	return &App{
		config: cfg,
		logger: logger,
		db:     db,
		store:  contacts,
		server: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           s.SetupHttpRouter(cfg.Logging.Requests),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Handler returns the HTTP handler of the app.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run serves HTTP requests until ctx is cancelled, then shuts the server down gracefully and
// releases the database.
func (a *App) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		a.Close()
		return fmt.Errorf("could not listen on %s: %w", a.server.Addr, err)
	}
	return a.Serve(ctx, listener)
}

// Serve is like Run on an existing listener.
func (a *App) Serve(ctx context.Context, listener net.Listener) error {
	defer a.Close()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("starting server", zap.String("addr", listener.Addr().String()))
		if err := a.server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Close releases the database. Run and Serve call it when they return.
func (a *App) Close() {
	if err := errors.Join(a.store.Close(), a.db.Close()); err != nil {
		a.logger.Warn("could not close database", zap.Error(err))
	}
}
