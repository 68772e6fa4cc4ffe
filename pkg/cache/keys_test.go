package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeys_Layout(t *testing.T) {
	k := Keys{Collection: "dev-projects"}
	require.Equal(t, "dev-projects:id:42", k.ID("42"))
	require.Equal(t, "dev-projects:count:Organization:org1", k.Count("org1"))
	require.Equal(t, "dev-projects:paged:Organization:org1:", k.PagedPrefix("org1"))

	paged := k.Paged("org1", "after=x|limit=10")
	require.True(t, strings.HasPrefix(paged, k.PagedPrefix("org1")))
	require.Equal(t, paged, k.Paged("org1", "after=x|limit=10"))
	require.NotEqual(t, paged, k.Paged("org1", "after=y|limit=10"))
}

func TestOrganizationNamespace(t *testing.T) {
	k := Keys{Collection: "projects"}
	require.Equal(t, k.PagedPrefix("org1"), OrganizationNamespace(k.Paged("org1", "p")))
	require.Empty(t, OrganizationNamespace(k.Count("org1")))
	require.Empty(t, OrganizationNamespace(k.ID("1")))
	require.Empty(t, OrganizationNamespace("projects:paged:Organization:dangling"))
}
