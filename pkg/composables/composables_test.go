package composables

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestCallerIdentity(t *testing.T) {
	var id CallerIdentity
	ctx := context.Background()

	require.Empty(t, id.OrganizationIDs(ctx))
	require.Empty(t, id.DefaultOrganizationID(ctx))
	require.Empty(t, id.Subject(ctx))

	ctx = WithCaller(ctx, Caller{Subject: "u1", OrganizationIDs: []string{"A", "B"}})
	require.Equal(t, []string{"A", "B"}, id.OrganizationIDs(ctx))
	require.Equal(t, "A", id.DefaultOrganizationID(ctx))
	require.Equal(t, "u1", id.Subject(ctx))

	ctx = WithCaller(ctx, Caller{OrganizationIDs: []string{"A", "B"}, DefaultOrganizationID: "B"})
	require.Equal(t, "B", id.DefaultOrganizationID(ctx))
}

func TestCallerIdentity_ReturnsCopy(t *testing.T) {
	ctx := WithCaller(context.Background(), Caller{OrganizationIDs: []string{"A"}})
	orgs := CallerIdentity{}.OrganizationIDs(ctx)
	orgs[0] = "Z"
	require.Equal(t, []string{"A"}, CallerIdentity{}.OrganizationIDs(ctx))
}

func TestUseLogger(t *testing.T) {
	ctx := context.Background()
	require.NotNil(t, UseLogger(ctx, nil))

	fallback := logrus.NewEntry(logrus.New())
	require.Same(t, fallback, UseLogger(ctx, fallback))

	own := logrus.NewEntry(logrus.New()).WithField("request", "r1")
	require.Same(t, own, UseLogger(WithLogger(ctx, own), fallback))
}

func TestUseTx_NoPool(t *testing.T) {
	_, err := UseTx(context.Background())
	require.ErrorIs(t, err, ErrNoPool)

	err = InTx(context.Background(), func(context.Context) error { return nil })
	require.ErrorIs(t, err, ErrNoPool)
}
