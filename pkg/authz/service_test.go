package authz

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, mode Mode) *Service {
	t.Helper()
	root := filepath.Join("testdata")
	svc, err := NewService(Config{
		ModelPath:    filepath.Join(root, "model.conf"),
		PolicyPath:   filepath.Join(root, "policy.csv"),
		FlagProvider: StaticFlagProvider(mode),
	})
	require.NoError(t, err)
	return svc
}

func TestServiceAuthorize(t *testing.T) {
	svc := newTestService(t, ModeEnforce)
	req := NewRequest(SubjectForCaller("alice"), DomainForOrganization("org-a"), "projects", ActionCreate)
	require.NoError(t, svc.Authorize(context.Background(), req))
}

func TestServiceAuthorizeDenied(t *testing.T) {
	svc := newTestService(t, ModeEnforce)
	req := NewRequest(SubjectForCaller("bob"), DomainForOrganization("org-a"), "projects", ActionDelete)
	err := svc.Authorize(context.Background(), req)
	require.ErrorIs(t, err, ErrForbidden)

	var forbidden *ForbiddenError
	require.ErrorAs(t, err, &forbidden)
	require.Equal(t, "user:bob", forbidden.Request.Subject)
}

func TestServiceAuthorizeExplicitDeny(t *testing.T) {
	svc := newTestService(t, ModeEnforce)
	req := NewRequest(SubjectForCaller("alice"), "org-locked", "projects", ActionUpdate)
	require.ErrorIs(t, svc.Authorize(context.Background(), req), ErrForbidden)
}

func TestServiceAuthorizeDirectGrant(t *testing.T) {
	svc := newTestService(t, ModeEnforce)
	ctx := context.Background()

	require.NoError(t, svc.Authorize(ctx, NewRequest("user:carol", "org-a", "projects", ActionCreate)))
	require.ErrorIs(t, svc.Authorize(ctx, NewRequest("user:carol", "org-b", "projects", ActionCreate)), ErrForbidden)
	require.ErrorIs(t, svc.Authorize(ctx, NewRequest("user:carol", "org-a", "tags", ActionCreate)), ErrForbidden)
}

func TestServiceAuthorizeShadowMode(t *testing.T) {
	svc := newTestService(t, ModeShadow)
	req := NewRequest(SubjectForCaller("mallory"), DomainForOrganization(""), "projects", ActionDelete)
	require.NoError(t, svc.Authorize(context.Background(), req))

	allowed, err := svc.Check(context.Background(), req)
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestServiceMode(t *testing.T) {
	svc := newTestService(t, ModeDisabled)
	require.Equal(t, ModeDisabled, svc.Mode())
	require.NoError(t, svc.Authorize(context.Background(), NewRequest("user:mallory", "org-a", "projects", ActionDelete)))
}

func TestServiceReloadPolicy(t *testing.T) {
	svc := newTestService(t, ModeEnforce)
	require.NoError(t, svc.ReloadPolicy(context.Background()))
}

func TestNewServiceValidatesConfig(t *testing.T) {
	_, err := NewService(Config{PolicyPath: "testdata/policy.csv", FlagPath: "x"})
	require.Error(t, err)
	_, err = NewService(Config{ModelPath: "testdata/model.conf", FlagPath: "x"})
	require.Error(t, err)
	_, err = NewService(Config{ModelPath: "testdata/model.conf", PolicyPath: "testdata/policy.csv"})
	require.Error(t, err)
}

func TestFileFlagProvider(t *testing.T) {
	p := NewFileFlagProvider(filepath.Join("testdata", "authz_flags.yaml"), ModeShadow)
	require.Equal(t, ModeEnforce, p.Mode())
}

func TestFileFlagProviderFallbackAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flags.yaml")
	p := NewFileFlagProvider(path, ModeDisabled)
	require.Equal(t, ModeDisabled, p.Mode())

	require.NoError(t, os.WriteFile(path, []byte("mode: enforce\n"), 0o600))
	require.Equal(t, ModeEnforce, p.Mode())

	require.NoError(t, os.WriteFile(path, []byte("mode: bogus\n"), 0o600))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))
	require.Equal(t, ModeShadow, p.Mode())

	require.NoError(t, os.Remove(path))
	require.Equal(t, ModeShadow, p.Mode())
}

func TestSanitizeMode(t *testing.T) {
	require.Equal(t, ModeEnforce, sanitizeMode(" ENFORCE "))
	require.Equal(t, ModeDisabled, sanitizeMode("disabled"))
	require.Equal(t, ModeShadow, sanitizeMode(""))
}
