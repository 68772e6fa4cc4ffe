package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/iota-uz/tenantcrud/pkg/application"
)

type invalidateOutput struct {
	Command        string `json:"command"`
	Collection     string `json:"collection"`
	OrganizationID string `json:"organization_id"`
}

func newInvalidateCmd() *cobra.Command {
	var (
		collection string
		orgID      string
	)

	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Evict the cached counts and pages of one organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, app *application.Application) error {
				name := app.Configuration().CollectionName(collection)
				if err := app.Invalidator().InvalidateOrganization(ctx, name, orgID); err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), invalidateOutput{
					Command:        "invalidate",
					Collection:     name,
					OrganizationID: orgID,
				})
			})
		},
	}

	cmd.Flags().StringVar(&collection, "collection", "", "Collection name (required)")
	cmd.Flags().StringVar(&orgID, "org", "", "Organization id (required)")
	_ = cmd.MarkFlagRequired("collection")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}
