package docstore

type MutationKind string

const (
	MutationAdded   MutationKind = "added"
	MutationUpdated MutationKind = "updated"
	MutationDeleted MutationKind = "deleted"
)

// Affected identifies one document touched by a mutation.
type Affected struct {
	ID             string
	OrganizationID string
}

// Mutation is published after a write has been committed.
type Mutation struct {
	Collection string
	Kind       MutationKind
	Documents  []Affected
}

// OrganizationIDs returns the distinct non-empty organizations touched by m
// in first-seen order.
func (m Mutation) OrganizationIDs() []string {
	seen := make(map[string]struct{}, len(m.Documents))
	var out []string
	for _, d := range m.Documents {
		if d.OrganizationID == "" {
			continue
		}
		if _, ok := seen[d.OrganizationID]; ok {
			continue
		}
		seen[d.OrganizationID] = struct{}{}
		out = append(out, d.OrganizationID)
	}
	return out
}

func (m Mutation) IDs() []string {
	out := make([]string, 0, len(m.Documents))
	for _, d := range m.Documents {
		if d.ID != "" {
			out = append(out, d.ID)
		}
	}
	return out
}
