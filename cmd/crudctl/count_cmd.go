package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/iota-uz/tenantcrud/pkg/application"
)

type countOutput struct {
	Command        string `json:"command"`
	Collection     string `json:"collection"`
	OrganizationID string `json:"organization_id"`
	Count          int64  `json:"count"`
}

// document is an untyped view of a stored entity, enough to count.
type document struct {
	ID  string `json:"id"`
	Org string `json:"organizationId"`
}

func (d *document) EntityID() string            { return d.ID }
func (d *document) SetEntityID(id string)       { d.ID = id }
func (d *document) OrganizationID() string      { return d.Org }
func (d *document) SetOrganizationID(id string) { d.Org = id }

func newCountCmd() *cobra.Command {
	var (
		collection string
		orgID      string
	)

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count the documents of one organization through the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, app *application.Application) error {
				store := application.NewStore[*document](app, collection)
				n, err := store.CountByOrganization(ctx, orgID)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), countOutput{
					Command:        "count",
					Collection:     store.Name(),
					OrganizationID: orgID,
					Count:          n,
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
