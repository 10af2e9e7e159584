// Package config loads pathql settings from a pathql.yaml file and
// PATHQL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/roach88/pathql/internal/engine"
	"github.com/roach88/pathql/internal/plansql"
)

// EnvPrefix prefixes every environment override, e.g. PATHQL_DATABASE_DSN.
const EnvPrefix = "PATHQL"

// Config holds every pathql setting.
type Config struct {
	Database   Database
	SchemaPath string
	Paging     Paging
	BatchSize  int
	LogLevel   slog.Level
	// ConfigFile is the file the settings were read from, empty when none.
	ConfigFile string
}

// Database selects and locates the persistence engine.
type Database struct {
	Dialect plansql.Dialect
	DSN     string
}

// Paging bounds page sizes.
type Paging struct {
	DefaultSize int
	MaxSize     int
}

// Default returns the built-in settings: an SQLite file named pathql.db,
// the engine's paging and batch defaults, warn logging.
func Default() Config {
	return Config{
		Database: Database{Dialect: plansql.SQLite, DSN: "pathql.db"},
		Paging: Paging{
			DefaultSize: engine.DefaultPageSize,
			MaxSize:     engine.DefaultMaxPageSize,
		},
		BatchSize: engine.DefaultBatchSize,
		LogLevel:  slog.LevelWarn,
	}
}

// Load reads settings. file, when set, names the config file explicitly;
// otherwise pathql.yaml is looked up in dir. A missing file is not an
// error: defaults and the environment still apply.
func Load(file, dir string) (Config, error) {
	cfg := Default()

	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("pathql")
		v.SetConfigType("yaml")
		if dir == "" {
			dir = "."
		}
		v.AddConfigPath(dir)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range []string{
		"database.driver",
		"database.dsn",
		"schema.path",
		"paging.default_size",
		"paging.max_size",
		"collections.batch_size",
		"log.level",
	} {
		if err := v.BindEnv(key); err != nil {
			return cfg, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		slog.Debug("no pathql.yaml found, using defaults and environment", "dir", dir)
	} else {
		cfg.ConfigFile = v.ConfigFileUsed()
		slog.Debug("loaded config", "file", cfg.ConfigFile)
	}

	if v.IsSet("database.driver") {
		d, err := plansql.ParseDialect(v.GetString("database.driver"))
		if err != nil {
			return cfg, err
		}
		cfg.Database.Dialect = d
	}
	if v.IsSet("database.dsn") {
		cfg.Database.DSN = v.GetString("database.dsn")
	}
	if v.IsSet("schema.path") {
		cfg.SchemaPath = v.GetString("schema.path")
	}
	if v.IsSet("paging.default_size") {
		cfg.Paging.DefaultSize = v.GetInt("paging.default_size")
	}
	if v.IsSet("paging.max_size") {
		cfg.Paging.MaxSize = v.GetInt("paging.max_size")
	}
	if v.IsSet("collections.batch_size") {
		cfg.BatchSize = v.GetInt("collections.batch_size")
	}
	if v.IsSet("log.level") {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(v.GetString("log.level"))); err != nil {
			return cfg, fmt.Errorf("log.level: %w", err)
		}
		cfg.LogLevel = lvl
	}

	return cfg, cfg.Validate()
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("database.dsn must not be empty")
	}
	if c.Paging.DefaultSize < 1 {
		return fmt.Errorf("paging.default_size must be positive, got %d", c.Paging.DefaultSize)
	}
	if c.Paging.MaxSize < 0 {
		return fmt.Errorf("paging.max_size must not be negative, got %d", c.Paging.MaxSize)
	}
	if c.Paging.MaxSize > 0 && c.Paging.DefaultSize > c.Paging.MaxSize {
		return fmt.Errorf("paging.default_size %d exceeds paging.max_size %d", c.Paging.DefaultSize, c.Paging.MaxSize)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("collections.batch_size must be positive, got %d", c.BatchSize)
	}
	return nil
}

// EngineOptions translates the settings into engine options.
func (c Config) EngineOptions() []engine.Option {
	return []engine.Option{
		engine.WithDialect(c.Database.Dialect),
		engine.WithPaging(c.Paging.DefaultSize, c.Paging.MaxSize),
		engine.WithBatchSize(c.BatchSize),
	}
}
