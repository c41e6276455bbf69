// Package bootstrap wires all dependencies and starts the application.
// Configuration comes from a YAML file with MODELKIT_* environment overrides,
// or from the environment alone when no file exists.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/artpar/modelkit/adapters/clock"
	apihttp "github.com/artpar/modelkit/adapters/http"
	"github.com/artpar/modelkit/adapters/idgen"
	"github.com/artpar/modelkit/adapters/memory"
	"github.com/artpar/modelkit/adapters/metrics"
	"github.com/artpar/modelkit/adapters/sqlite"
	"github.com/artpar/modelkit/app"
	"github.com/artpar/modelkit/config"
	"github.com/artpar/modelkit/core/fieldtype"
	"github.com/artpar/modelkit/core/model"
	"github.com/artpar/modelkit/core/registry"
	"github.com/artpar/modelkit/ports"
	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Holder
	DB         *sqlite.DB // nil with the memory driver
	Store      ports.SnapshotStore
	Classes    *registry.Registry
	Records    *app.RecordService
	Metrics    *metrics.Collector // nil when metrics are disabled
	HTTPServer *http.Server

	promRegistry *prometheus.Registry

	schemaMu      sync.Mutex
	schemaWatcher *fsnotify.Watcher
	schemaStop    chan struct{}
	schemaDir     string

	shutdownOnce sync.Once
}

// Options configures application initialization.
type Options struct {
	// ConfigPath is the YAML config file. When empty or missing, config is
	// read from the environment.
	ConfigPath string
	Version    string
	// LogOutput defaults to stdout.
	LogOutput io.Writer
}

// New creates and initializes the application.
func New(opts Options) (*App, error) {
	holder, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := holder.Get()

	out := opts.LogOutput
	if out == nil {
		out = os.Stdout
	}
	logger := SetupLogger(cfg.Logging, out)
	holder.SetLogger(logger)

	logger.Info().Str("config", holder.Path()).Msg("initializing modelkit")

	a := &App{
		Logger: logger,
		Config: holder,
	}

	if cfg.Metrics.Enabled {
		a.promRegistry = prometheus.NewRegistry()
		a.promRegistry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.Metrics = metrics.NewWithRegistry(a.promRegistry)
		logger.Info().Str("path", cfg.Metrics.Path).Msg("prometheus metrics enabled")
	}

	if err := a.initStore(cfg.Database); err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	a.Classes = registry.New(fieldtype.Standard(idgen.UUID{}), model.WithLogger(logger))
	if err := a.ReloadSchemas(); err != nil {
		a.closeStore()
		return nil, fmt.Errorf("load schemas: %w", err)
	}

	deps := app.RecordDeps{
		Classes: a.Classes,
		Store:   a.Store,
		Clock:   clock.Real{},
		IDGen:   idgen.UUID{},
		Logger:  logger,
	}
	if a.Metrics != nil {
		deps.Observer = a.Metrics
		deps.Live = a.Metrics.RecordsLive
		deps.Commits = a.Metrics
	}
	a.Records = app.NewRecordService(deps)

	a.initHTTPServer(cfg, opts.Version)

	holder.OnChange(a.applyConfig)

	return a, nil
}

func loadConfig(path string) (*config.Holder, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return config.NewHolder(path, zerolog.Nop())
		}
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}
	return config.NewStaticHolder(cfg, zerolog.Nop()), nil
}

func (a *App) initStore(cfg config.DatabaseConfig) error {
	switch cfg.Driver {
	case "memory":
		a.Store = memory.NewSnapshotStore()
		a.Logger.Warn().Msg("using in-memory store, records are lost on exit")
		return nil
	default:
		db, err := sqlite.Open(cfg.DSN, a.Logger)
		if err != nil {
			return err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return fmt.Errorf("migrate: %w", err)
		}
		a.DB = db
		a.Store = sqlite.NewSnapshotStore(db)
		a.Logger.Info().Str("dsn", cfg.DSN).Msg("database initialized")
		return nil
	}
}

func (a *App) initHTTPServer(cfg *config.Config, version string) {
	records := apihttp.NewRecordHandler(a.Records, a.Classes, a.Logger)

	routerCfg := apihttp.RouterConfig{
		Version:        version,
		MetricsPath:    cfg.Metrics.Path,
		RequestTimeout: cfg.Server.WriteTimeout,
	}
	if a.Metrics != nil {
		routerCfg.Metrics = a.Metrics
		routerCfg.MetricsHandler = promhttp.HandlerFor(a.promRegistry, promhttp.HandlerOpts{})
	}

	router := apihttp.NewRouter(records, a.Logger, routerCfg)

	a.HTTPServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("http server configured")
}

// Handler returns the application's HTTP handler.
func (a *App) Handler() http.Handler {
	return a.HTTPServer.Handler
}

// applyConfig reacts to a reloaded configuration. Only the log level and the
// schema settings take effect without a restart.
func (a *App) applyConfig(cfg *config.Config) {
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	if err := a.ReloadSchemas(); err != nil {
		a.Logger.Error().Err(err).Msg("schema reload after config change failed")
	}

	if cfg.Schemas.Watch {
		if err := a.WatchSchemas(); err != nil {
			a.Logger.Error().Err(err).Msg("schema watch failed")
		}
	} else {
		a.stopSchemaWatch()
	}
}

// Run starts the HTTP server and blocks until ctx is done, SIGINT or SIGTERM
// arrives, or the server fails.
func (a *App) Run(ctx context.Context) error {
	cfg := a.Config.Get()

	if err := a.Config.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config file watch unavailable")
	}
	if a.Config.Path() != "" {
		a.Config.WatchSignals()
	}
	if cfg.Schemas.Watch {
		if err := a.WatchSchemas(); err != nil {
			a.Logger.Warn().Err(err).Msg("schema watch unavailable")
		}
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		a.Shutdown()
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		a.Logger.Info().Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application. Later calls do nothing.
func (a *App) Shutdown() error {
	var err error
	a.shutdownOnce.Do(func() {
		timeout := a.Config.Get().Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if a.HTTPServer != nil {
			if serr := a.HTTPServer.Shutdown(ctx); serr != nil {
				a.Logger.Error().Err(serr).Msg("http server shutdown error")
				err = serr
			}
		}

		a.stopSchemaWatch()
		a.Config.Stop()

		if a.Records != nil {
			a.Records.Close()
		}

		a.closeStore()

		a.Logger.Info().Msg("shutdown complete")
	})
	return err
}

func (a *App) closeStore() {
	if a.DB == nil {
		return
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Error().Err(err).Msg("database close error")
	}
}

// SetupLogger builds the process logger from logging config. Unknown levels
// fall back to info.
func SetupLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(out).With().Timestamp().Logger()
}
