// Package tenancy restricts visibility of organization-owned entities to the
// organizations a caller is authorized for.
package tenancy

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/iota-uz/tenantcrud/pkg/docstore"
)

type OrganizationOwned = docstore.OrganizationOwned

// IsOrganizationOwned reports whether T carries the OrganizationOwned
// capability. It inspects the type only, so it is safe for nil pointers.
func IsOrganizationOwned[T any]() bool {
	return docstore.IsOrganizationOwned[T]()
}

// Identity supplies the caller's authorization context.
type Identity interface {
	OrganizationIDs(ctx context.Context) []string
	DefaultOrganizationID(ctx context.Context) string
}

// Scope is the set of organizations a caller may see.
type Scope struct {
	orgs  mapset.Set[string]
	order []string
}

func NewScope(orgIDs ...string) Scope {
	s := Scope{orgs: mapset.NewThreadUnsafeSet[string]()}
	for _, id := range orgIDs {
		if id == "" || s.orgs.Contains(id) {
			continue
		}
		s.orgs.Add(id)
		s.order = append(s.order, id)
	}
	return s
}

// ScopeOf resolves the caller's scope from identity.
func ScopeOf(ctx context.Context, identity Identity) Scope {
	if identity == nil {
		return NewScope()
	}
	return NewScope(identity.OrganizationIDs(ctx)...)
}

// OrganizationIDs returns the authorized ids in the order they were supplied.
func (s Scope) OrganizationIDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s Scope) IsEmpty() bool {
	return len(s.order) == 0
}

func (s Scope) Contains(orgID string) bool {
	if orgID == "" || s.orgs == nil {
		return false
	}
	return s.orgs.Contains(orgID)
}

// Predicate returns the visibility predicate to AND into list queries. ok is
// false when the entity type is not organization-owned and no predicate
// applies. An empty scope produces a predicate matching nothing.
func (s Scope) Predicate(owned bool) (docstore.Predicate, bool) {
	if !owned {
		return docstore.Predicate{}, false
	}
	return docstore.In(docstore.FieldOrganizationID, s.order), true
}

// Visible reports whether entity may be returned to the caller. Entities
// without the OrganizationOwned capability are always visible.
func (s Scope) Visible(entity any) bool {
	owned, ok := entity.(OrganizationOwned)
	if !ok {
		return true
	}
	return s.Contains(owned.OrganizationID())
}
