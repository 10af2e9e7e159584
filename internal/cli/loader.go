package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/pathql/internal/config"
	"github.com/roach88/pathql/internal/engine"
	"github.com/roach88/pathql/internal/meta"
	"github.com/roach88/pathql/internal/plansql"
	"github.com/roach88/pathql/internal/schema"
	"github.com/roach88/pathql/internal/store"
	"github.com/roach88/pathql/internal/store/pgstore"
)

// environment is everything a command needs: settings, metadata and,
// for commands that execute, an open store.
type environment struct {
	cfg      config.Config
	registry *meta.Registry
	engine   *engine.Engine
	close    func()
}

// loadSettings reads the config and applies the flag overrides.
func loadSettings(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.Config, ".")
	if err != nil {
		return cfg, err
	}
	if opts.Schema != "" {
		cfg.SchemaPath = opts.Schema
	}
	if opts.DSN != "" {
		cfg.Database.DSN = opts.DSN
	}
	if opts.Driver != "" {
		d, err := plansql.ParseDialect(opts.Driver)
		if err != nil {
			return cfg, err
		}
		cfg.Database.Dialect = d
	}
	return cfg, nil
}

// loadEnvironment loads settings and the schema. The store is opened only
// when connect is true; otherwise the engine can compile but not execute.
func loadEnvironment(ctx context.Context, opts *RootOptions, f *OutputFormatter, connect bool) (*environment, error) {
	cfg, err := loadSettings(opts)
	if err != nil {
		return nil, f.Fail(ErrCodeConfig, err)
	}
	if cfg.SchemaPath == "" {
		return nil, f.Fail(ErrCodeSchema, errors.New("no schema: set schema.path or pass --schema"))
	}

	registry, err := schema.Registry(cfg.SchemaPath)
	if err != nil {
		return nil, f.Fail(ErrCodeSchema, err)
	}
	f.VerboseLog("Loaded %d entity type(s) from %s", len(registry.Names()), cfg.SchemaPath)

	env := &environment{cfg: cfg, registry: registry, close: func() {}}

	var db store.Executor
	if connect {
		db, env.close, err = openStore(ctx, cfg.Database)
		if err != nil {
			return nil, f.Fail(ErrCodeStore, err)
		}
		f.VerboseLog("Connected to %s database %s", cfg.Database.Dialect, cfg.Database.DSN)
	}

	logger := newLogger(f.GetErrWriter(), cfg.LogLevel, opts.Verbose)
	slog.SetDefault(logger)
	engineOpts := append(cfg.EngineOptions(), engine.WithLogger(logger))
	env.engine = engine.New(registry, db, engineOpts...)
	return env, nil
}

func openStore(ctx context.Context, db config.Database) (store.Executor, func(), error) {
	switch db.Dialect {
	case plansql.Postgres:
		s, err := pgstore.Open(ctx, db.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		s, err := store.Open(db.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", db.DSN, err)
		}
		return s, func() { s.Close() }, nil
	}
}

// newLogger logs to w at the configured level; verbose forces debug.
func newLogger(w io.Writer, level slog.Level, verbose bool) *slog.Logger {
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
