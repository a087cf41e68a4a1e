package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/zoobzio/railz/examples/registration"
)

// app holds what every command needs once the config is loaded.
type app struct {
	cfg     Config
	logger  *slog.Logger
	store   registration.Store
	service *registration.Service
	close   func() error
}

func newLogger(level string, w io.Writer) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

func openStore(cfg StoreConfig) (registration.Store, func() error, error) {
	switch cfg.Driver {
	case "sqlite":
		db, err := registration.NewSQLiteStore(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	case "memory":
		return registration.NewMemoryStore(), func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// newApp opens the configured store, builds the service and registers the
// seed users.
func newApp(ctx context.Context, cfg Config, logs io.Writer) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := newLogger(cfg.LogLevel, logs)

	store, closeStore, err := openStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	svc := registration.NewService(store, registration.NewLogNotifier(logger),
		registration.WithLogger(logger),
		registration.WithConcurrency(cfg.Workflow.Concurrency))
	if err := svc.LogEvents(); err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("register hooks: %w", err)
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		service: svc,
		close: func() error {
			_ = svc.Close()
			return closeStore()
		},
	}

	for _, in := range cfg.Seed {
		outcome, err := a.register(ctx, in)
		if err != nil {
			_ = a.close()
			return nil, fmt.Errorf("seed %s: %w", in.Email, err)
		}
		if outcome.IsRejected() {
			_ = a.close()
			return nil, fmt.Errorf("seed %s: %w: %v", in.Email, errRejected, outcome.Errors()[0])
		}
	}
	return a, nil
}

// register runs one registration under the configured timeout.
func (a *app) register(ctx context.Context, in registration.Input) (Outcome, error) {
	if a.cfg.Workflow.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Workflow.Timeout)
		defer cancel()
	}
	return a.service.Register(ctx, in)
}
