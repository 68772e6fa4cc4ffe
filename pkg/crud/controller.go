// Package crud exposes a generic, tenant-scoped CRUD state machine over a
// docstore.Store. Each operation is a short linear flow whose result is an
// outcome; only store unavailability is returned as an error.
package crud

import (
	"context"
	"errors"
	"reflect"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/tenantcrud/pkg/authz"
	"github.com/iota-uz/tenantcrud/pkg/cursor"
	"github.com/iota-uz/tenantcrud/pkg/docstore"
	"github.com/iota-uz/tenantcrud/pkg/mapping"
	"github.com/iota-uz/tenantcrud/pkg/outcome"
	"github.com/iota-uz/tenantcrud/pkg/patch"
	"github.com/iota-uz/tenantcrud/pkg/tenancy"
)

// ListParams are the inbound list parameters. Before and After are cursor
// tokens; OrganizationID narrows the list to one authorized organization.
type ListParams struct {
	OrganizationID string
	Before         string
	After          string
	Limit          int
}

// Page is one page of Public-shape items. First and Last are the cursors of
// the boundary items, empty for an empty page.
type Page[P any] struct {
	Items   []P
	HasMore bool
	First   string
	Last    string
}

// Controller serves the storage shape S as public shape P, accepting C on
// create and a sparse U on update.
type Controller[S docstore.Entity, P, C, U any] struct {
	store *docstore.Store[S]
	opts  Options[S]
	log   *logrus.Entry
}

func New[S docstore.Entity, P, C, U any](store *docstore.Store[S], opts Options[S]) *Controller[S, P, C, U] {
	opts.setDefaults(store.Name())
	return &Controller[S, P, C, U]{
		store: store,
		opts:  opts,
		log:   opts.Logger.WithField("collection", store.Name()),
	}
}

// Mappings returns the registry holding the shape conversions.
func (c *Controller[S, P, C, U]) Mappings() *mapping.Registry { return c.opts.Mappings }

func (c *Controller[S, P, C, U]) List(ctx context.Context, params ListParams) (outcome.Outcome[Page[P]], error) {
	opts := docstore.FindOptions{
		Limit: c.clamp(params.Limit),
		Sort:  []docstore.SortField{{Field: c.opts.Codec.Field}},
	}
	if params.Before != "" {
		p, err := c.opts.Codec.Predicate(cursor.Before, params.Before)
		if err != nil {
			return outcome.BadRequest[Page[P]]("Invalid cursor."), nil
		}
		opts.Before = &p
	}
	if params.After != "" {
		p, err := c.opts.Codec.Predicate(cursor.After, params.After)
		if err != nil {
			return outcome.BadRequest[Page[P]]("Invalid cursor."), nil
		}
		opts.After = &p
	}

	items, hasMore, err := c.find(ctx, params.OrganizationID, opts)
	if err != nil {
		return outcome.Outcome[Page[P]]{}, err
	}
	public, err := mapping.MapAll[S, P](c.opts.Mappings, items)
	if err != nil {
		return outcome.Outcome[Page[P]]{}, err
	}
	page := Page[P]{Items: public, HasMore: hasMore}
	if len(items) > 0 {
		page.First = c.opts.Codec.Encode(c.opts.CursorKey(items[0]))
		page.Last = c.opts.Codec.Encode(c.opts.CursorKey(items[len(items)-1]))
	}
	return outcome.OK(page), nil
}

// find applies the tenant predicate. A single organization goes through the
// store's per-organization listing so the page is cached in its namespace.
func (c *Controller[S, P, C, U]) find(ctx context.Context, hint string, opts docstore.FindOptions) ([]S, bool, error) {
	if !c.store.OrganizationOwned() {
		return c.store.Find(ctx, &opts)
	}
	scope := tenancy.ScopeOf(ctx, c.opts.Identity)
	orgs := scope.OrganizationIDs()
	if hint != "" {
		if !scope.Contains(hint) {
			return nil, false, nil
		}
		orgs = []string{hint}
	}
	if len(orgs) == 1 {
		return c.store.FindByOrganizations(ctx, orgs, opts)
	}
	if pred, ok := scope.Predicate(true); ok {
		opts.Filter = opts.Filter.And(pred)
	}
	return c.store.Find(ctx, &opts)
}

func (c *Controller[S, P, C, U]) clamp(limit int) int {
	switch {
	case limit <= 0:
		return c.opts.PageSize
	case limit > c.opts.MaxPageSize:
		return c.opts.MaxPageSize
	}
	return limit
}

// Get hides entities of foreign organizations behind NotFound.
func (c *Controller[S, P, C, U]) Get(ctx context.Context, id string) (outcome.Outcome[P], error) {
	entity, err := c.store.GetByID(ctx, id, true)
	if errors.Is(err, docstore.ErrNotFound) {
		return outcome.NotFound[P](), nil
	}
	if err != nil {
		return outcome.Outcome[P]{}, err
	}
	if !tenancy.ScopeOf(ctx, c.opts.Identity).Visible(entity) {
		return outcome.NotFound[P](), nil
	}
	public, err := mapping.Map[S, P](c.opts.Mappings, entity)
	if err != nil {
		return outcome.Outcome[P]{}, err
	}
	return outcome.OK(public), nil
}

func (c *Controller[S, P, C, U]) Create(ctx context.Context, payload *C) (outcome.Outcome[P], error) {
	if payload == nil {
		return outcome.BadRequest[P]("Payload is empty."), nil
	}
	if v := reflect.ValueOf(*payload); !v.IsValid() || v.IsZero() {
		return outcome.BadRequest[P]("Payload is empty."), nil
	}
	if owned, ok := any(payload).(docstore.OrganizationOwned); ok && owned.OrganizationID() == "" {
		c.assignDefaultOrganization(ctx, owned)
	}
	if err := c.validate(payload); err != nil {
		return outcome.BadRequest[P](reason(err)), nil
	}

	entity, err := mapping.Map[*C, S](c.opts.Mappings, payload)
	if err != nil {
		return outcome.Outcome[P]{}, err
	}
	if owned, ok := any(entity).(docstore.OrganizationOwned); ok && owned.OrganizationID() == "" {
		c.assignDefaultOrganization(ctx, owned)
	}

	res, err := c.opts.Gate.CanAdd(ctx, entity)
	if err != nil {
		return outcome.Outcome[P]{}, err
	}
	if !res.Allowed() {
		return denied[P](res), nil
	}

	saved, err := c.store.Add(ctx, entity)
	if errors.Is(err, docstore.ErrConflict) {
		return outcome.Conflict[P](), nil
	}
	if err != nil {
		return outcome.Outcome[P]{}, err
	}
	public, err := mapping.Map[S, P](c.opts.Mappings, saved)
	if err != nil {
		return outcome.Outcome[P]{}, err
	}
	c.log.WithField("id", saved.EntityID()).Debug("created")
	return outcome.Created(c.opts.Location(saved.EntityID()), public), nil
}

func (c *Controller[S, P, C, U]) assignDefaultOrganization(ctx context.Context, owned docstore.OrganizationOwned) {
	if orgID := c.opts.Identity.DefaultOrganizationID(ctx); orgID != "" {
		owned.SetOrganizationID(orgID)
	}
}

func (c *Controller[S, P, C, U]) validate(payload *C) error {
	if reflect.TypeFor[C]().Kind() != reflect.Struct {
		return nil
	}
	if err := c.opts.Validator.Struct(payload); err != nil {
		return validationError(err)
	}
	return nil
}

// PatchJSON decodes raw against the update shape U and applies it.
func (c *Controller[S, P, C, U]) PatchJSON(ctx context.Context, id string, raw []byte) (outcome.Outcome[P], error) {
	delta, err := patch.Decode[U](raw)
	if err != nil {
		return outcome.BadRequest[P](reason(validationError(err))), nil
	}
	return c.Patch(ctx, id, delta)
}

// Patch applies delta to the entity. An empty delta succeeds without
// touching the store. The patched entity is not echoed.
func (c *Controller[S, P, C, U]) Patch(ctx context.Context, id string, delta patch.Delta) (outcome.Outcome[P], error) {
	if delta.IsEmpty() {
		return outcome.Empty[P](), nil
	}
	current, err := c.store.GetByID(ctx, id, false)
	if errors.Is(err, docstore.ErrNotFound) {
		return outcome.NotFound[P](), nil
	}
	if err != nil {
		return outcome.Outcome[P]{}, err
	}
	if !tenancy.ScopeOf(ctx, c.opts.Identity).Visible(current) {
		return outcome.NotFound[P](), nil
	}

	res, err := c.opts.Gate.CanUpdate(ctx, current, delta)
	if err != nil {
		return outcome.Outcome[P]{}, err
	}
	if !res.Allowed() {
		return denied[P](res), nil
	}

	_, err = c.store.Patch(ctx, id, delta)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return outcome.NotFound[P](), nil
	case errors.Is(err, docstore.ErrConflict):
		return outcome.Conflict[P](), nil
	case err != nil:
		return outcome.Outcome[P]{}, err
	}
	return outcome.Empty[P](), nil
}

// Delete reports an absent entity as BadRequest and an entity of a foreign
// organization as NotFound.
func (c *Controller[S, P, C, U]) Delete(ctx context.Context, id string) (outcome.Outcome[P], error) {
	entity, err := c.store.GetByID(ctx, id, false)
	if errors.Is(err, docstore.ErrNotFound) {
		return outcome.BadRequest[P]("Entity does not exist."), nil
	}
	if err != nil {
		return outcome.Outcome[P]{}, err
	}

	res, err := c.opts.Gate.CanDelete(ctx, entity)
	if err != nil {
		return outcome.Outcome[P]{}, err
	}
	if !res.Allowed() {
		return denied[P](res), nil
	}

	err = c.store.Delete(ctx, entity)
	if errors.Is(err, docstore.ErrNotFound) {
		return outcome.BadRequest[P]("Entity does not exist."), nil
	}
	if err != nil {
		return outcome.Outcome[P]{}, err
	}
	return outcome.NoContent[P](), nil
}

func denied[P any](res authz.Result) outcome.Outcome[P] {
	status, reason := res.Outcome(outcome.StatusForbidden)
	return outcome.WithStatus[P](status, reason)
}
