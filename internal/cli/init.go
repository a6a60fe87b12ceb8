// Package cli provides the process bootstrap shared by the commands:
// environment, configuration, logging, storage and service wiring.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"financas/internal/amqp"
	"financas/internal/cache"
	"financas/internal/config"
	"financas/internal/extract"
	"financas/internal/log"
	"financas/internal/report"
	"financas/internal/services"
	"financas/internal/storage"

	"github.com/joho/godotenv"
)

// App holds what every command needs after startup.
type App struct {
	Config   *config.Config
	Logger   *log.Logger
	Repo     *storage.SQLiteRepository
	Location *time.Location
	Caches   *cache.Manager

	amqpClient *amqp.Client
}

// Services are the use cases exposed by the commands.
type Services struct {
	Recurring    *services.RecurringProcessor
	Transactions *services.TransactionService
	Reports      *services.ReportService
	Import       *services.ImportService
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from cfg and makes it the slog default.
func SetupLogger(cfg *config.Config, component string) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := log.New(log.Config{
		Level:     level,
		Component: component,
		Format:    cfg.LogFormat,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return logger, nil
}

// Bootstrap loads .env and the configuration, sets up logging and opens the
// SQLite store with migrations applied.
func Bootstrap(component string) (*App, error) {
	LoadEnvFile()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := SetupLogger(cfg, component)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize SQLite repository at %s: %w", cfg.SQLiteDBPath, err)
	}

	logger.Info("Application initialized",
		log.FieldOperation, log.OpStartup,
		"db_path", cfg.SQLiteDBPath,
		"schema_version", repo.SchemaVersion(),
		"timezone", loc.String(),
		"amqp_enabled", cfg.AMQPEnabled())

	return &App{
		Config:   cfg,
		Logger:   logger,
		Repo:     repo,
		Location: loc,
		Caches:   cache.NewManager(logger),
	}, nil
}

// AMQP returns the broker client, dialing it on first use. It returns nil
// when AMQP is disabled.
func (a *App) AMQP() (*amqp.Client, error) {
	if !a.Config.AMQPEnabled() {
		return nil, nil
	}
	if a.amqpClient != nil {
		return a.amqpClient, nil
	}
	client, err := amqp.NewClient(a.Config.AMQPURL, a.Config.AMQPExchange, a.Config.AMQPQueue, a.Config.AMQPPrefetch, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("connect to AMQP: %w", err)
	}
	a.amqpClient = client
	return client, nil
}

// Services wires the use cases. Without a reachable broker the services run
// without publishing; without a Gemini key text import is unavailable.
func (a *App) Services(ctx context.Context) *Services {
	var publisher services.Publisher
	client, err := a.AMQP()
	switch {
	case err != nil:
		a.Logger.LogError(ctx, "AMQP unavailable, transactions will not be synced", err, log.OpStartup)
	case client != nil:
		publisher = client
	}

	reportCache := cache.NewLRUCache[report.Result](a.Config.ReportCacheSize, a.Config.ReportCacheTTL)
	a.Caches.Register(reportCache)

	reports := services.NewReportService(a.Repo, reportCache, a.Logger)
	transactions := services.NewTransactionService(a.Repo, publisher, reports, a.Logger)

	var extractor extract.Extractor
	if a.Config.GeminiAPIKey != "" {
		gemini, err := extract.NewGeminiExtractor(ctx, a.Config.GeminiAPIKey, a.Config.GeminiModel)
		if err != nil {
			a.Logger.LogError(ctx, "Text import disabled", err, log.OpStartup)
		} else {
			extractor = gemini
		}
	}

	return &Services{
		Recurring:    services.NewRecurringProcessor(a.Repo, publisher, reports, a.Location, a.Logger),
		Transactions: transactions,
		Reports:      reports,
		Import:       services.NewImportService(extractor, transactions, a.Logger),
	}
}

// Close releases the broker connection, the caches and the store.
func (a *App) Close() error {
	a.Caches.Stop()
	var errs []error
	if a.amqpClient != nil {
		errs = append(errs, a.amqpClient.Close())
	}
	errs = append(errs, a.Repo.Close())
	if err := errors.Join(errs...); err != nil {
		return err
	}
	a.Logger.Info("Application closed", log.FieldOperation, log.OpShutdown)
	return nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}

// Fatal logs err and exits.
func Fatal(logger *log.Logger, msg string, err error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger.Error(msg, log.FieldError, err)
	os.Exit(1)
}
