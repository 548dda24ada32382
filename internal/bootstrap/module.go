package bootstrap

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"escrutinio/internal/bootstrap/config"
	"escrutinio/internal/bootstrap/database"
	"escrutinio/internal/bootstrap/logging"
	"escrutinio/internal/fetch"
	cacheinfra "escrutinio/internal/infrastructure/cache"
	sqliterepo "escrutinio/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "escrutinio/internal/infrastructure/persistence/sqlite/uow"
	"escrutinio/internal/metrics"
	"escrutinio/internal/ports"
	"escrutinio/internal/rawstore"
	"escrutinio/internal/sources"
	"escrutinio/internal/sources/builtin"
	"escrutinio/internal/usecase/ingest"
	"escrutinio/internal/usecase/reconcile"
	"escrutinio/internal/usecase/roster"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(metrics.New),
	fx.Provide(provideCatalog),
	fx.Provide(provideFetchClient),
	fx.Provide(provideRegistry),
	fx.Provide(provideRawStore),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewIngestRepository,
			fx.As(new(ports.IngestRepository)),
			fx.As(new(ports.RunRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewReconcileRepository,
			fx.As(new(reconcile.Repository)),
			fx.As(new(ports.MandateRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewSQLiteCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(ingest.NewService),
	fx.Provide(reconcile.NewService),
	fx.Provide(roster.NewService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideCatalog(cfg config.Config) (sources.Catalog, error) {
	return sources.LoadCatalog(cfg.Sources)
}

func provideFetchClient(cfg config.Config, m *metrics.Metrics) *fetch.Client {
	return fetch.New(fetch.Options{
		MaxAttempts: cfg.Fetch.MaxAttempts,
		BaseDelay:   cfg.Fetch.BaseDelay,
		MaxDelay:    cfg.Fetch.MaxDelay,
		UserAgent:   cfg.Fetch.UserAgent,
		InsecureTLS: cfg.Fetch.InsecureTLS,
	}, m)
}

func provideRegistry(catalog sources.Catalog, client *fetch.Client) (*sources.Registry, error) {
	return builtin.NewRegistry(catalog, client)
}

func provideRawStore(cfg config.Config) *rawstore.Store {
	return rawstore.New(cfg.Ingest.RawDir)
}

func provideApp(cfg config.Config, db *gorm.DB, catalog sources.Catalog, registry *sources.Registry, m *metrics.Metrics) *App {
	return &App{
		Config:  cfg,
		DB:      db,
		Catalog: catalog,
		Sources: registry,
		Metrics: m,
	}
}
