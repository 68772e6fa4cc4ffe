package composables

import (
	"context"
	"errors"
)

var ErrNoCaller = errors.New("caller not found in context")

// Caller is the authenticated principal of a request as resolved by the
// (external) authentication layer.
type Caller struct {
	Subject         string
	OrganizationIDs []string
	// DefaultOrganizationID overrides the first authorized organization as
	// the target of creates that omit one.
	DefaultOrganizationID string
}

func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

func UseCaller(ctx context.Context) (Caller, error) {
	caller, ok := ctx.Value(callerKey).(Caller)
	if !ok {
		return Caller{}, ErrNoCaller
	}
	return caller, nil
}

// CallerIdentity reads the caller from the request context. A context
// without a caller is authorized for no organization.
type CallerIdentity struct{}

func (CallerIdentity) OrganizationIDs(ctx context.Context) []string {
	caller, err := UseCaller(ctx)
	if err != nil {
		return nil
	}
	out := make([]string, len(caller.OrganizationIDs))
	copy(out, caller.OrganizationIDs)
	return out
}

func (CallerIdentity) DefaultOrganizationID(ctx context.Context) string {
	caller, err := UseCaller(ctx)
	if err != nil {
		return ""
	}
	if caller.DefaultOrganizationID != "" {
		return caller.DefaultOrganizationID
	}
	if len(caller.OrganizationIDs) > 0 {
		return caller.OrganizationIDs[0]
	}
	return ""
}

// Subject returns the caller's subject, or "" for anonymous contexts.
func (CallerIdentity) Subject(ctx context.Context) string {
	caller, err := UseCaller(ctx)
	if err != nil {
		return ""
	}
	return caller.Subject
}
