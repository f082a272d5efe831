// Package app initializes and runs the main application service.
// It configures logging, storage, authentication, and routing,
// and handles graceful shutdown.
package app

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/patric-chuzhbe/shortly/internal/auth"
	"github.com/patric-chuzhbe/shortly/internal/clicks"
	"github.com/patric-chuzhbe/shortly/internal/config"
	"github.com/patric-chuzhbe/shortly/internal/db/jsondb"
	"github.com/patric-chuzhbe/shortly/internal/db/memorystorage"
	"github.com/patric-chuzhbe/shortly/internal/db/postgresdb"
	"github.com/patric-chuzhbe/shortly/internal/db/storage"
	"github.com/patric-chuzhbe/shortly/internal/hasher"
	"github.com/patric-chuzhbe/shortly/internal/ipchecker"
	"github.com/patric-chuzhbe/shortly/internal/logger"
	"github.com/patric-chuzhbe/shortly/internal/models"
	"github.com/patric-chuzhbe/shortly/internal/quota"
	"github.com/patric-chuzhbe/shortly/internal/router"
	"github.com/patric-chuzhbe/shortly/internal/service"
	"github.com/patric-chuzhbe/shortly/internal/token"
)

// App encapsulates the configuration, HTTP handler, storage backend,
// and the background click tracker needed to run the service.
type App struct {
	cfg               *config.Config
	db                storage.Storage
	clicksTracker     *clicks.Tracker
	stopClicksTracker context.CancelFunc
	httpHandler       http.Handler
}

// New initializes a new instance of App by:
// - loading configuration
// - initializing logger
// - selecting and setting up storage
// - setting up the token service, quota tracker and click tracker
// - setting up the router and middleware
func New() (*App, error) {
	var err error
	app := &App{}

	app.cfg, err = config.New()
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	app.db, err = getStorageByType(app.cfg)
	if err != nil {
		return nil, err
	}

	accessSecret, err := base64.URLEncoding.DecodeString(app.cfg.AccessTokenSecret)
	if err != nil {
		return nil, fmt.Errorf("decoding access token secret: %w", err)
	}
	refreshSecret, err := base64.URLEncoding.DecodeString(app.cfg.RefreshTokenSecret)
	if err != nil {
		return nil, fmt.Errorf("decoding refresh token secret: %w", err)
	}

	tokens := token.New(
		accessSecret,
		refreshSecret,
		app.cfg.AccessTokenTTL,
		app.cfg.RefreshTokenTTL,
	)

	app.clicksTracker = clicks.New(
		app.db,
		app.cfg.ClicksChannelCapacity,
		app.cfg.ClicksFlushInterval,
	)
	clicksTrackerRunCtx, stopClicksTracker := context.WithCancel(context.Background())
	app.stopClicksTracker = stopClicksTracker

	app.clicksTracker.Run(clicksTrackerRunCtx)
	app.clicksTracker.ListenErrors(func(err error) {
		logger.Log.Errorln("Error passed from the `app.clicksTracker.ListenErrors()`:", zap.Error(err))
	})

	ipChecker, err := ipchecker.New(app.cfg.TrustedSubnet)
	if err != nil {
		return nil, err
	}

	svc := service.New(
		app.db,
		tokens,
		hasher.NewBcrypt(0),
		quota.New(app.db, app.cfg.DailyLinkLimit),
		app.clicksTracker,
		app.cfg.ShortURLBase,
		app.cfg.ShortKeyLength,
	)

	app.httpHandler = router.New(
		svc,
		auth.New(tokens, app.cfg.AccessCookieName),
		ipChecker,
		app.cfg.RefreshCookieName,
		app.cfg.RefreshTokenTTL,
	)

	return app, nil
}

// Run starts the HTTP server with graceful shutdown support.
// It listens for system signals and cleans up resources upon termination.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log.Infoln("server running", "RunAddr", a.cfg.RunAddr)

	server := &http.Server{
		Addr:    a.cfg.RunAddr,
		Handler: a.httpHandler,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Saving database and exiting...")
		a.stopClicksTracker()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		return a.db.Close()

	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}

func getAvailableStorageType(cfg *config.Config) int {
	if cfg.DatabaseDSN != "" {
		return models.StorageTypePostgresql
	}

	if cfg.DBFileName != "" {
		return models.StorageTypeFile
	}

	return models.StorageTypeMemory
}

func getStorageByType(cfg *config.Config) (storage.Storage, error) {
	switch getAvailableStorageType(cfg) {
	case models.StorageTypeUnknown:
		return nil, errors.New("unknown storage type")

	case models.StorageTypePostgresql:
		return postgresdb.New(
			context.Background(),
			cfg.DatabaseDSN,
			cfg.DBConnectionTimeout,
			cfg.MigrationsDir,
		)

	case models.StorageTypeFile:
		return jsondb.New(cfg.DBFileName)
	}

	return memorystorage.New()
}
