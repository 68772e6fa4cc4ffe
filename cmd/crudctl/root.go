package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/iota-uz/tenantcrud/pkg/application"
	"github.com/iota-uz/tenantcrud/pkg/configuration"
	"github.com/iota-uz/tenantcrud/pkg/tracing"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "crudctl",
		Short:        "Operational tools for tenant-scoped document collections",
		SilenceUsage: true,
	}
	cmd.AddCommand(newMigrateCmd(), newInvalidateCmd(), newCountCmd(), newAuthzVerifyCmd())
	return cmd
}

// withApp runs fn against an application built from the environment and
// releases it afterwards.
func withApp(ctx context.Context, fn func(ctx context.Context, app *application.Application) error) (err error) {
	conf := configuration.Use()
	shutdown, err := tracing.Setup(ctx, conf.OpenTelemetry)
	if err != nil {
		return err
	}
	defer func() {
		if shutdownErr := shutdown(context.Background()); err == nil {
			err = shutdownErr
		}
	}()

	app, err := application.New(ctx, conf)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := app.Close(context.Background()); err == nil {
			err = closeErr
		}
	}()
	return fn(ctx, app)
}
