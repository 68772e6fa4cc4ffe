package tenancy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/tenantcrud/pkg/docstore"
)

type ownedDoc struct{ org string }

func (d *ownedDoc) OrganizationID() string      { return d.org }
func (d *ownedDoc) SetOrganizationID(id string) { d.org = id }

type plainDoc struct{}

type staticIdentity []string

func (s staticIdentity) OrganizationIDs(context.Context) []string { return s }
func (s staticIdentity) DefaultOrganizationID(context.Context) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

func TestIsOrganizationOwned(t *testing.T) {
	require.True(t, IsOrganizationOwned[*ownedDoc]())
	require.True(t, IsOrganizationOwned[ownedDoc]())
	require.False(t, IsOrganizationOwned[*plainDoc]())
	require.False(t, IsOrganizationOwned[plainDoc]())
}

func TestScope_PredicateForNonOwnedIsNoop(t *testing.T) {
	_, ok := NewScope("a").Predicate(false)
	require.False(t, ok)
	require.True(t, NewScope().Visible(&plainDoc{}))
}

func TestScope_PredicateRestrictsToAuthorizedOrgs(t *testing.T) {
	p, ok := NewScope("a", "b", "a", "").Predicate(true)
	require.True(t, ok)
	require.Equal(t, docstore.In(docstore.FieldOrganizationID, []string{"a", "b"}), p)

	p, ok = NewScope().Predicate(true)
	require.True(t, ok)
	require.Empty(t, p.Value)
}

func TestScope_Visible(t *testing.T) {
	s := ScopeOf(context.Background(), staticIdentity{"a"})
	require.True(t, s.Visible(&ownedDoc{org: "a"}))
	require.False(t, s.Visible(&ownedDoc{org: "b"}))
	require.False(t, s.Visible(&ownedDoc{}))
	require.Equal(t, []string{"a"}, s.OrganizationIDs())
}
