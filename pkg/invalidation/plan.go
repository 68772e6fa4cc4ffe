package invalidation

import (
	"github.com/iota-uz/tenantcrud/pkg/cache"
	"github.com/iota-uz/tenantcrud/pkg/docstore"
)

// Plan lists what one mutation evicts: exact keys and key prefixes.
type Plan struct {
	Collection string
	Keys       []string
	Prefixes   []string
}

func (p Plan) IsEmpty() bool {
	return len(p.Keys) == 0 && len(p.Prefixes) == 0
}

// PlanFor evicts the count entry and the paged namespace of every organization
// touched by m, plus the id entries of updated and deleted documents.
// Documents without an organization contribute no tenant keys.
func PlanFor(m docstore.Mutation) Plan {
	keys := cache.Keys{Collection: m.Collection}
	plan := Plan{Collection: m.Collection}
	for _, org := range m.OrganizationIDs() {
		plan.Keys = append(plan.Keys, keys.Count(org))
		plan.Prefixes = append(plan.Prefixes, keys.PagedPrefix(org))
	}
	if m.Kind == docstore.MutationUpdated || m.Kind == docstore.MutationDeleted {
		seen := make(map[string]struct{}, len(m.Documents))
		for _, id := range m.IDs() {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			plan.Keys = append(plan.Keys, keys.ID(id))
		}
	}
	return plan
}

// OrganizationPlan evicts the tenant entries of one organization.
func OrganizationPlan(collection, orgID string) Plan {
	keys := cache.Keys{Collection: collection}
	return Plan{
		Collection: collection,
		Keys:       []string{keys.Count(orgID)},
		Prefixes:   []string{keys.PagedPrefix(orgID)},
	}
}
