package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"worksheet-sync/internal/config"
	"worksheet-sync/internal/logging"
	"worksheet-sync/internal/middleware"
	"worksheet-sync/internal/tablestore"
	"worksheet-sync/internal/worksheets"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app carries what every command needs once flags and environment are read
type app struct {
	cfg    config.Config
	logger zerolog.Logger

	apiBase   string
	cachePath string
	user      string
	folder    string
	logLevel  string
}

func main() {
	a := &app{}
	if err := newRootCmd(a).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "worksheets",
		Short:        "Keep worksheet links in sync between a shared table and this device",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.apiBase, "api", "", "worksheet API base URL (default $WORKSHEETS_API_BASE, empty keeps everything local)")
	flags.StringVar(&a.cachePath, "cache", "", "local cache file (default $WORKSHEETS_CACHE_PATH)")
	flags.StringVar(&a.user, "user", "", "display name recorded when opening sheets")
	flags.StringVar(&a.folder, "folder", "", "folder new sheets are filed in and listings are scoped to")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (default $LOG_LEVEL)")

	root.AddCommand(
		newServeCmd(a),
		newSheetsCmd(a),
		newFoldersCmd(a),
		newOpenCmd(a),
		newExportCmd(a),
	)
	return root
}

// load reads .env and the environment, then applies flag overrides
func (a *app) load(cmd *cobra.Command) error {
	envLoaded := config.LoadEnvFile()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("api") {
		cfg.APIBase = a.apiBase
	}
	if flags.Changed("cache") {
		cfg.CachePath = a.cachePath
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg
	a.logger = logging.New(os.Stderr).Level(cfg.LogLevel).Format(cfg.LogFormat).Make()

	if !envLoaded {
		a.logger.Debug().Msg("No .env file found, using system environment variables")
	}
	return nil
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the worksheet HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	store, closeStore := a.openStore()
	defer closeStore()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	initialize(e, a.cfg, store, a.logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := ":" + a.cfg.Port
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", addr).Msg("Starting worksheet API server")
		errCh <- e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.logger.Info().Msg("Shutting down")
	return e.Shutdown(shutdownCtx)
}

// openStore connects the table named by the configuration. A missing
// connection string leaves the store nil so every request reports it.
func (a *app) openStore() (worksheets.Store, func()) {
	if a.cfg.ConnectionString == "" {
		a.logger.Warn().Msg("no table connection string configured")
		return nil, func() {}
	}

	client, err := tablestore.Open(a.cfg.ConnectionString, a.cfg.TableName, tablestore.Options{
		Timeout: a.cfg.StoreTimeout,
		Logger:  &a.logger,
	})
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to open table store")
		return worksheets.UnavailableStore(err), func() {}
	}
	return client, func() {
		if err := client.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("close table store")
		}
	}
}

func initialize(e *echo.Echo, cfg config.Config, store worksheets.Store, logger zerolog.Logger) {
	// Middleware
	e.Use(middleware.RequestLogger(logger))
	e.Use(echoMiddleware.Recover())
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.CORS(cfg.AllowedOrigins))

	worksheetService := worksheets.NewService(store)
	worksheetHandler := worksheets.NewHandler(worksheetService, logger)
	worksheetHandler.RegisterRoutes(e)
}
