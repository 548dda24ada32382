package config

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"escrutinio/internal/bootstrap/logging"
	"escrutinio/internal/errs"
)

const envPrefix = "ESCRUTINIO"

type Config struct {
	App      AppConfig                 `mapstructure:"app"`
	Database DatabaseConfig            `mapstructure:"database"`
	Ingest   IngestConfig              `mapstructure:"ingest"`
	Fetch    FetchConfig               `mapstructure:"fetch"`
	Sources  map[string]SourceOverride `mapstructure:"sources"`
	Metrics  MetricsConfig             `mapstructure:"metrics"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type IngestConfig struct {
	RawDir        string        `mapstructure:"raw_dir"`
	Timeout       time.Duration `mapstructure:"timeout"`
	StrictNetwork bool          `mapstructure:"strict_network"`
	SnapshotDate  string        `mapstructure:"snapshot_date"`
}

type FetchConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	UserAgent   string        `mapstructure:"user_agent"`
	InsecureTLS bool          `mapstructure:"insecure_tls"`
}

// SourceOverride replaces catalog defaults for one source id.
type SourceOverride struct {
	URL       string `mapstructure:"url"`
	MinLoaded *int   `mapstructure:"min_loaded"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithComponent(ctx, "bootstrap.config")

	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, errs.Wrap(err, "load .env")
		}
	} else {
		logging.Info(logCtx, "environment loaded from .env")
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("raw_dir", cfg.Ingest.RawDir),
	)

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}
	if c.Fetch.MaxAttempts < 1 {
		return errors.New("fetch.max_attempts must be >= 1")
	}
	if c.Ingest.Timeout <= 0 {
		return errors.New("ingest.timeout must be positive")
	}
	if c.Ingest.SnapshotDate != "" {
		if _, err := time.Parse(time.DateOnly, c.Ingest.SnapshotDate); err != nil {
			return errs.Wrap(err, "ingest.snapshot_date must be YYYY-MM-DD")
		}
	}
	return nil
}

// Source returns the override for id, or a zero value when none is configured.
func (c Config) Source(id string) SourceOverride {
	if c.Sources == nil {
		return SourceOverride{}
	}
	return c.Sources[id]
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "escrutinio")
	v.SetDefault("app.env", "local")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/escrutinio.sqlite")
	v.SetDefault("ingest.raw_dir", "data/raw")
	v.SetDefault("ingest.timeout", "30s")
	v.SetDefault("ingest.strict_network", false)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.base_delay", "500ms")
	v.SetDefault("fetch.max_delay", "30s")
	v.SetDefault("fetch.user_agent", "escrutinio/1.0 (+open-data ingestion)")
	v.SetDefault("fetch.insecure_tls", false)
}
