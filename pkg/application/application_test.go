package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/tenantcrud/pkg/application"
	"github.com/iota-uz/tenantcrud/pkg/composables"
	"github.com/iota-uz/tenantcrud/pkg/configuration"
	"github.com/iota-uz/tenantcrud/pkg/crud"
	"github.com/iota-uz/tenantcrud/pkg/mapping"
	"github.com/iota-uz/tenantcrud/pkg/outcome"
)

type note struct {
	ID   string `json:"id"`
	Org  string `json:"organizationId,omitempty"`
	Text string `json:"text"`
}

func (n *note) EntityID() string            { return n.ID }
func (n *note) SetEntityID(id string)       { n.ID = id }
func (n *note) OrganizationID() string      { return n.Org }
func (n *note) SetOrganizationID(id string) { n.Org = id }

type createNote struct {
	Text string `json:"text" validate:"required"`
}

func newApp(t *testing.T, mode string) *application.Application {
	t.Helper()
	t.Setenv("STORAGE_PROVIDER", "memory")
	t.Setenv("CACHE_BACKEND", "memory")
	t.Setenv("INVALIDATION_MODE", mode)
	t.Setenv("SCOPE", "test")
	t.Setenv("PAGE_SIZE", "2")
	t.Setenv("LOG_LEVEL", "silent")

	conf, err := configuration.New()
	require.NoError(t, err)
	t.Cleanup(conf.Unload)

	app, err := application.New(context.Background(), conf)
	require.NoError(t, err)
	return app
}

func TestCollectionIsScopedAndShared(t *testing.T) {
	app := newApp(t, configuration.InvalidationSync)
	defer func() { require.NoError(t, app.Close(context.Background())) }()

	coll := app.Collection("notes")
	require.Equal(t, "test-notes", coll.Name())
	require.Same(t, coll, app.Collection("notes"))
	require.Nil(t, app.Pool())
	require.NoError(t, app.Migrate(context.Background(), "notes"))
}

func TestMigrateUsesApplicationPool(t *testing.T) {
	t.Setenv("STORAGE_PROVIDER", "postgres")
	t.Setenv("CACHE_BACKEND", "memory")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", "1")
	t.Setenv("LOG_LEVEL", "silent")

	conf, err := configuration.New()
	require.NoError(t, err)
	t.Cleanup(conf.Unload)

	app, err := application.New(context.Background(), conf)
	require.NoError(t, err)
	defer func() { require.NoError(t, app.Close(context.Background())) }()
	require.NotNil(t, app.Pool())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = app.Migrate(ctx, "notes")
	require.Error(t, err)
	require.NotErrorIs(t, err, composables.ErrNoPool)
}

func TestCountIsFreshAfterCreate(t *testing.T) {
	for _, mode := range []string{configuration.InvalidationSync, configuration.InvalidationAsync} {
		t.Run(mode, func(t *testing.T) {
			app := newApp(t, mode)
			defer func() { require.NoError(t, app.Close(context.Background())) }()

			store := application.NewStore[*note](app, "notes")
			registry := mapping.NewRegistry()
			mapping.Register(registry, func(c *createNote) (*note, error) { return &note{Text: c.Text}, nil })
			ctrl := crud.New[*note, *note, createNote, createNote](store,
				application.ControllerOptions(app, crud.Options[*note]{Mappings: registry}))
			ctx := composables.WithCaller(context.Background(), composables.Caller{Subject: "alice", OrganizationIDs: []string{"A"}})

			for i := 1; i <= 20; i++ {
				_, err := store.CountByOrganization(ctx, "A")
				require.NoError(t, err)
				page, err := ctrl.List(ctx, crud.ListParams{Limit: 50})
				require.NoError(t, err)
				require.Len(t, page.Value.Items, i-1)

				res, err := ctrl.Create(ctx, &createNote{Text: "n"})
				require.NoError(t, err)
				require.Equal(t, outcome.StatusCreated, res.Status)

				n, err := store.CountByOrganization(ctx, "A")
				require.NoError(t, err)
				require.EqualValues(t, i, n)
				page, err = ctrl.List(ctx, crud.ListParams{Limit: 50})
				require.NoError(t, err)
				require.Len(t, page.Value.Items, i)
			}
		})
	}
}

func TestApplicationServesController(t *testing.T) {
	for _, mode := range []string{configuration.InvalidationSync, configuration.InvalidationAsync} {
		t.Run(mode, func(t *testing.T) {
			app := newApp(t, mode)

			store := application.NewStore[*note](app, "notes")
			registry := mapping.NewRegistry()
			mapping.Register(registry, func(c *createNote) (*note, error) { return &note{Text: c.Text}, nil })
			ctrl := crud.New[*note, *note, createNote, createNote](store,
				application.ControllerOptions(app, crud.Options[*note]{Mappings: registry}))

			ctx := composables.WithCaller(context.Background(), composables.Caller{Subject: "alice", OrganizationIDs: []string{"A"}})
			for _, text := range []string{"one", "two", "three"} {
				res, err := ctrl.Create(ctx, &createNote{Text: text})
				require.NoError(t, err)
				require.Equal(t, outcome.StatusCreated, res.Status)
			}

			page, err := ctrl.List(ctx, crud.ListParams{})
			require.NoError(t, err)
			require.Len(t, page.Value.Items, 2)
			require.True(t, page.Value.HasMore)

			n, err := store.CountByOrganization(ctx, "A")
			require.NoError(t, err)
			require.EqualValues(t, 3, n)

			require.NoError(t, app.Close(context.Background()))
		})
	}
}
