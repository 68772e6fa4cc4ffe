package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iota-uz/tenantcrud/pkg/application"
)

type migrateOutput struct {
	Command     string   `json:"command"`
	Collections []string `json:"collections"`
	DurationMS  int64    `json:"duration_ms"`
}

func newMigrateCmd() *cobra.Command {
	var collections []string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the tables of document collections",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(collections) == 0 {
				return fmt.Errorf("at least one --collection is required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, app *application.Application) error {
				start := time.Now()
				if err := app.Migrate(ctx, collections...); err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), migrateOutput{
					Command:     "migrate",
					Collections: collections,
					DurationMS:  time.Since(start).Milliseconds(),
				})
			})
		},
	}

	cmd.Flags().StringSliceVar(&collections, "collection", nil, "Collection name (repeatable)")
	return cmd
}
