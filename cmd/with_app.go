package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"escrutinio/internal/bootstrap"
	"escrutinio/internal/bootstrap/logging"
	"escrutinio/internal/errs"
	"escrutinio/internal/ports"
	"escrutinio/internal/usecase/ingest"
	"escrutinio/internal/usecase/reconcile"
	"escrutinio/internal/usecase/roster"
)

type services struct {
	Ingest    *ingest.Service
	Reconcile *reconcile.Service
	Roster    *roster.Service
	Runs      ports.RunRepository
}

func withApp(run func(cmd *cobra.Command, app *bootstrap.App, svc services) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := logging.WithAttrs(
			cmd.Context(),
			slog.String("command", cmd.CommandPath()),
			slog.String("config_file", cfgFile),
		)

		var app *bootstrap.App
		var svc services
		fxApp := fx.New(
			bootstrap.Module,
			fx.NopLogger,
			fx.Provide(func() context.Context { return ctx }),
			fx.Provide(
				fx.Annotate(
					func() string { return cfgFile },
					fx.ResultTags(`name:"configFile"`),
				),
			),
			fx.Populate(&app, &svc.Ingest, &svc.Reconcile, &svc.Roster, &svc.Runs),
		)

		startCtx, cancelStart := context.WithTimeout(ctx, 10*time.Second)
		defer cancelStart()
		if err := fxApp.Start(startCtx); err != nil {
			logging.Error(ctx, "bootstrap application failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "start fx application")
		}

		defer func() {
			stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelStop()
			if err := fxApp.Stop(stopCtx); err != nil {
				logging.Error(ctx, "fx application stop failed", slog.Any("err", errs.Loggable(err)))
			}
		}()

		runErr := run(cmd, app, svc)
		if err := app.FlushMetrics(ctx); err != nil {
			logging.Warn(ctx, "flush metrics failed", slog.Any("err", errs.Loggable(err)))
		}
		if runErr != nil {
			return errs.Wrap(runErr, "run command")
		}
		return nil
	}
}
