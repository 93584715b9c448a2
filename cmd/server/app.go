package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/cumo/internal/calendar"
	"github.com/phrazzld/cumo/internal/config"
	"github.com/phrazzld/cumo/internal/jobs"
	"github.com/phrazzld/cumo/internal/platform/gcal"
	"github.com/phrazzld/cumo/internal/platform/gemini"
	"github.com/phrazzld/cumo/internal/platform/postgres"
	"github.com/phrazzld/cumo/internal/platform/sqlite"
	"github.com/phrazzld/cumo/internal/redact"
	"github.com/phrazzld/cumo/internal/service"
	"github.com/phrazzld/cumo/internal/service/auth"
	"github.com/phrazzld/cumo/internal/settings"
	"github.com/phrazzld/cumo/internal/task"
)

// application holds the wired components of a running server.
type application struct {
	config *config.Config
	logger *slog.Logger

	queue     *task.Queue
	registry  *task.Registry
	manager   *task.Manager
	settings  *settings.FileStore
	calendar  *gcal.Client
	parser    *gemini.Parser // nil when no API key is configured
	scheduler *service.ScheduleService
	jwt       auth.JWTService // nil when API auth is disabled

	closeStore func() error
}

// newApplication wires every component from cfg. The consumer is not
// started; call start for that.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	store, closeStore, err := openTaskStore(ctx, cfg.Queue, logger)
	if err != nil {
		return nil, err
	}
	return newApplicationWithStore(cfg, logger, store, closeStore)
}

// newApplicationWithStore wires the application around an already opened
// task store. closeStore may be nil.
func newApplicationWithStore(
	cfg *config.Config,
	logger *slog.Logger,
	store task.Store,
	closeStore func() error,
) (*application, error) {
	app := &application{
		config:     cfg,
		logger:     logger,
		closeStore: closeStore,
	}

	app.queue = task.NewQueue(store, task.QueueConfig{PollInterval: cfg.Queue.PollInterval()}, logger)
	app.registry = task.NewRegistry()
	app.calendar = gcal.New(cfg.Calendar, logger)

	handlers := jobs.NewHandlers(app.calendar, calendar.NewSynthesizer(nil))
	if err := handlers.Register(app.registry); err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to register task handlers: %w", err)
	}

	app.manager = task.NewManager(app.queue, app.registry,
		task.ManagerConfig{RecoverRunning: cfg.Queue.RecoverRunning}, logger)
	app.manager.SetErrorHandler(func(t *task.Task, taskErr *task.Error) {
		logger.Warn("task failed",
			"task_id", t.ID,
			"task_name", t.Name,
			"error_kind", taskErr.Kind,
			"error", redact.String(taskErr.Message))
	})

	app.settings = settings.NewFileStore(cfg.Settings.Path, logger)

	var parser service.EventParser
	if cfg.LLM.GeminiAPIKey != "" {
		app.parser = gemini.NewParser(cfg.LLM, logger)
		parser = app.parser
	} else {
		logger.Warn("gemini API key not configured, natural language parsing disabled")
	}

	scheduler, err := service.NewScheduleService(app.queue, app.settings, parser, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create schedule service: %w", err)
	}
	app.scheduler = scheduler

	if cfg.Auth.JWTSecret != "" {
		jwtService, err := auth.NewJWTService(cfg.Auth)
		if err != nil {
			app.cleanup()
			return nil, fmt.Errorf("failed to create JWT service: %w", err)
		}
		app.jwt = jwtService
	}

	return app, nil
}

// openTaskStore opens the store selected by cfg.Driver and returns it with
// the function that releases it.
func openTaskStore(ctx context.Context, cfg config.QueueConfig, logger *slog.Logger) (task.Store, func() error, error) {
	switch cfg.Driver {
	case "sqlite":
		s, err := sqlite.Open(ctx, cfg.Path, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite task store: %w", err)
		}
		return s, s.Close, nil
	case "postgres":
		s, db, err := postgres.Open(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres task store: %s", redact.Error(err))
		}
		return s, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported queue driver %q", cfg.Driver)
	}
}

// start launches the task consumer.
func (app *application) start(ctx context.Context) error {
	if _, err := app.manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start task consumer: %w", err)
	}
	return nil
}

// shutdown stops the consumer, letting the task in flight finish within the
// configured timeout, then releases the store.
func (app *application) shutdown() {
	if err := app.manager.Stop(true, app.config.Queue.ShutdownTimeout()); err != nil {
		app.logger.Error("task consumer did not stop cleanly", "error", err)
	}
	app.cleanup()
}

func (app *application) cleanup() {
	if app.closeStore == nil {
		return
	}
	if err := app.closeStore(); err != nil {
		app.logger.Error("failed to close task store", "error", err)
	}
	app.closeStore = nil
}
