package authz

import (
	"context"
	"errors"

	"github.com/iota-uz/tenantcrud/pkg/composables"
	"github.com/iota-uz/tenantcrud/pkg/docstore"
	"github.com/iota-uz/tenantcrud/pkg/outcome"
	"github.com/iota-uz/tenantcrud/pkg/patch"
	"github.com/iota-uz/tenantcrud/pkg/tenancy"
)

const InvalidOrganizationReason = "Invalid organization id specified."

// Gate decides whether the caller in ctx may write an entity of shape S.
// An error is returned only when the decision itself could not be made.
type Gate[S any] interface {
	CanAdd(ctx context.Context, entity S) (Result, error)
	CanUpdate(ctx context.Context, current S, delta patch.Delta) (Result, error)
	CanDelete(ctx context.Context, entity S) (Result, error)
}

// OrganizationGate allows writes to organization-owned entities only inside
// the caller's authorized organizations. Other entities are always allowed.
type OrganizationGate[S any] struct {
	identity tenancy.Identity
}

func NewOrganizationGate[S any](identity tenancy.Identity) *OrganizationGate[S] {
	return &OrganizationGate[S]{identity: identity}
}

func (g *OrganizationGate[S]) CanAdd(ctx context.Context, entity S) (Result, error) {
	if g.authorized(ctx, entity) {
		return Allow(), nil
	}
	return DenyWith(outcome.StatusBadRequest, InvalidOrganizationReason), nil
}

func (g *OrganizationGate[S]) CanUpdate(ctx context.Context, current S, delta patch.Delta) (Result, error) {
	if !g.authorized(ctx, current) {
		return DenyWith(outcome.StatusBadRequest, InvalidOrganizationReason), nil
	}
	if _, owned := any(current).(docstore.OrganizationOwned); !owned {
		return Allow(), nil
	}
	if target, ok := delta.String(docstore.FieldOrganizationID); ok {
		if !tenancy.ScopeOf(ctx, g.identity).Contains(target) {
			return DenyWith(outcome.StatusBadRequest, InvalidOrganizationReason), nil
		}
	}
	return Allow(), nil
}

func (g *OrganizationGate[S]) CanDelete(ctx context.Context, entity S) (Result, error) {
	if g.authorized(ctx, entity) {
		return Allow(), nil
	}
	return DenyWith(outcome.StatusNotFound, ""), nil
}

func (g *OrganizationGate[S]) authorized(ctx context.Context, entity S) bool {
	return tenancy.ScopeOf(ctx, g.identity).Visible(entity)
}

// PolicyGate consults the policy service after next allowed the write.
type PolicyGate[S any] struct {
	next       Gate[S]
	service    *Service
	collection string
}

func NewPolicyGate[S any](next Gate[S], service *Service, collection string) *PolicyGate[S] {
	return &PolicyGate[S]{next: next, service: service, collection: collection}
}

func (g *PolicyGate[S]) CanAdd(ctx context.Context, entity S) (Result, error) {
	res, err := g.next.CanAdd(ctx, entity)
	if err != nil || !res.Allowed() {
		return res, err
	}
	return g.authorize(ctx, entity, ActionCreate)
}

func (g *PolicyGate[S]) CanUpdate(ctx context.Context, current S, delta patch.Delta) (Result, error) {
	res, err := g.next.CanUpdate(ctx, current, delta)
	if err != nil || !res.Allowed() {
		return res, err
	}
	return g.authorize(ctx, current, ActionUpdate)
}

func (g *PolicyGate[S]) CanDelete(ctx context.Context, entity S) (Result, error) {
	res, err := g.next.CanDelete(ctx, entity)
	if err != nil || !res.Allowed() {
		return res, err
	}
	return g.authorize(ctx, entity, ActionDelete)
}

func (g *PolicyGate[S]) authorize(ctx context.Context, entity S, action string) (Result, error) {
	req := NewRequest(
		SubjectForCaller(composables.CallerIdentity{}.Subject(ctx)),
		DomainForOrganization(organizationOf(entity)),
		g.collection,
		action,
	)
	err := g.service.Authorize(ctx, req)
	switch {
	case err == nil:
		return Allow(), nil
	case errors.Is(err, ErrForbidden):
		return Deny(), nil
	default:
		return Result{}, err
	}
}

func organizationOf(entity any) string {
	if owned, ok := entity.(docstore.OrganizationOwned); ok {
		return owned.OrganizationID()
	}
	return ""
}
