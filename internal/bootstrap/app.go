package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"escrutinio/internal/bootstrap/config"
	"escrutinio/internal/bootstrap/logging"
	"escrutinio/internal/errs"
	"escrutinio/internal/infrastructure/persistence/sqlite/model"
	"escrutinio/internal/metrics"
	"escrutinio/internal/sources"
)

type App struct {
	Config  config.Config
	DB      *gorm.DB
	Catalog sources.Catalog
	Sources *sources.Registry
	Metrics *metrics.Metrics
}

func (a *App) InitSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	logging.Info(logCtx, "start schema migration")

	if err := a.DB.WithContext(ctx).AutoMigrate(model.All()...); err != nil {
		return errs.Wrap(err, "auto migrate schema")
	}

	logging.Info(logCtx, "schema migration completed")
	return nil
}

// FlushMetrics writes the process registry to the configured textfile. It is
// a no-op when metrics.textfile is unset.
func (a *App) FlushMetrics(ctx context.Context) error {
	path := a.Config.Metrics.Textfile
	if path == "" {
		return nil
	}
	if err := a.Metrics.WriteTextfile(path); err != nil {
		return errs.Wrap(err, "write metrics textfile")
	}
	logging.Debug(logging.WithAttrs(ctx, slog.String("component", "bootstrap.app")), "metrics written", slog.String("path", path))
	return nil
}
