// Package server wires the notesync server: PostgreSQL storage and
// migrations, the gRPC endpoint, the change feed, tombstone purging, and
// the admin HTTP endpoint with metrics and health.
package server

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/notesync/internal/logging"
	"github.com/dmitrijs2005/notesync/internal/server/backup"
	"github.com/dmitrijs2005/notesync/internal/server/changefeed"
	"github.com/dmitrijs2005/notesync/internal/server/config"
	"github.com/dmitrijs2005/notesync/internal/server/metrics"
	"github.com/dmitrijs2005/notesync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/notesync/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/notesync/internal/server/grpc"
	_ "github.com/jackc/pgx/v5/stdlib"
)

var sqlOpen = sql.Open

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	metrics  *metrics.Manager
	registry *prometheus.Registry

	userService *services.UserService
	noteService *services.NoteService
	broker      *changefeed.Broker
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.New(logging.Options{Level: c.LogLevel, JSON: true})

	db, err := sqlOpen("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mm := metrics.NewManager(metrics.Namespace, metrics.Subsystem, registry)

	return &App{
		config:      c,
		logger:      logger,
		db:          db,
		metrics:     mm,
		registry:    registry,
		userService: services.NewUserService(db, rm, c),
		noteService: services.NewNoteService(db, rm, backup.NewS3Exporter(c), mm),
		broker:      changefeed.NewBroker(changefeed.DefaultBuffer, mm, logger),
	}, nil
}

// Run serves until ctx is cancelled or one of the components fails, then
// stops the rest and releases the database.
func (app *App) Run(ctx context.Context) error {

	app.logger.Info(ctx, "Starting app...")
	app.metrics.GaugeLifeSignal.Set(1)

	defer func() {
		app.metrics.GaugeLifeSignal.Set(0)
		app.broker.Close()
		if err := app.db.Close(); err != nil {
			app.logger.Error(ctx, "closing database", "error", err)
		}
		app.logger.Info(ctx, "App stopped")
	}()

	grpcServer := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger,
		app.userService, app.noteService, app.broker, app.metrics, app.config.SecretKey)
	listener := changefeed.NewListener(app.config.DatabaseDSN, app.noteService, app.broker, app.logger)
	admin := metrics.NewAdminServer(app.config.MetricsAddr, app.registry, app.db.PingContext, app.logger)
	purger := NewPurger(app.noteService, app.userService, app.config.TombstoneRetention, app.logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return grpcServer.Run(ctx) })
	g.Go(func() error { return listener.Run(ctx) })
	g.Go(func() error { return admin.Run(ctx) })
	g.Go(func() error { return purger.Run(ctx) })

	if err := g.Wait(); err != nil {
		app.logger.Error(ctx, "server stopped with error", "error", err)
		return err
	}
	return nil
}
