// Package server initializes and runs the achievements process.
// It opens the configured store, prepares its schema, builds the achievement
// service and seeds session achievements once and then on a schedule.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/achievements/internal/logging"
	"github.com/dmitrijs2005/achievements/internal/server/config"
	"github.com/dmitrijs2005/achievements/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/achievements/internal/server/seed"
	"github.com/dmitrijs2005/achievements/internal/server/services"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	store    repomanager.RepositoryManager
	service  *services.AchievementService
	importer *seed.Importer
	redis    *redis.Client
}

func newLogger(level string) logging.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := newLogger(c.LogLevel)

	store, err := repomanager.New(ctx, repomanager.Options{
		Backend:       c.StoreBackend,
		DatabaseDSN:   c.DatabaseDSN,
		MongoURI:      c.MongoURI,
		MongoDatabase: c.MongoDatabase,
	})
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}

	app := &App{
		config:  c,
		logger:  logger,
		store:   store,
		service: services.NewAchievementService(store.Achievements(), logger, c),
	}

	if c.SessionFeedURL != "" {
		if err := app.initImporter(ctx); err != nil {
			_ = store.Close(ctx)
			return nil, err
		}
	}

	return app, nil
}

func (app *App) initImporter(ctx context.Context) error {
	c := app.config
	source := seed.NewHTTPSessionSource(c.SessionFeedURL, nil, c.FeedMaxRetries, app.logger)

	var images seed.ImageChecker
	if c.CheckImages {
		r, err := seed.NewS3ImageResolver(ctx, c)
		if err != nil {
			return fmt.Errorf("s3 init error: %w", err)
		}
		images = r
	}

	var locker seed.Locker
	if c.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
		})
		locker = seed.NewRedisLocker(app.redis, c.LockTTL)
	}

	app.importer = seed.NewImporter(c, app.service, source, images, locker, app.logger)
	return nil
}

// Service returns the achievement operation set for embedding transports.
func (app *App) Service() *services.AchievementService {
	return app.service
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

func (app *App) runImport(ctx context.Context) {
	rep, err := app.importer.Run(ctx)
	if err != nil {
		if errors.Is(err, seed.ErrLocked) || errors.Is(err, context.Canceled) {
			return
		}
		app.logger.Error(ctx, "seeding failed", "run", rep.RunID, "err", err)
		return
	}
	app.logger.Info(ctx, "seeding finished", "run", rep.RunID,
		"created", rep.Created, "skipped", rep.Skipped, "failed", rep.Failed)
}

// Run prepares the store, seeds once and, when a schedule is configured,
// keeps seeding until ctx is canceled or a termination signal arrives.
// A running import is awaited before the store is closed.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "backend", app.config.StoreBackend)

	app.initSignalHandler(cancelFunc)
	defer app.close()

	if err := app.store.RunMigrations(ctx); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}

	if app.importer == nil {
		app.logger.Info(ctx, "no session feed configured, seeding disabled")
		return nil
	}

	app.runImport(ctx)

	if app.config.SeedSchedule == "" {
		return nil
	}

	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(app.config.SeedSchedule, func() { app.runImport(ctx) }); err != nil {
		return fmt.Errorf("invalid seed schedule: %w", err)
	}
	c.Start()

	<-ctx.Done()
	app.logger.Info(context.WithoutCancel(ctx), "Stopping app...")
	<-c.Stop().Done()

	return nil
}

func (app *App) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.store.Close(ctx); err != nil {
		app.logger.Error(ctx, "error closing store", "err", err)
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error(ctx, "error closing redis", "err", err)
		}
	}
}
