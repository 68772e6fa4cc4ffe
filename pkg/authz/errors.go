package authz

import (
	"errors"
	"fmt"
)

// ErrForbidden is matched by every policy denial.
var ErrForbidden = errors.New("authz: permission denied")

// ForbiddenError carries the denied request.
type ForbiddenError struct {
	Request Request
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("authz: permission denied: %s may not %s %s in %s",
		e.Request.Subject, e.Request.Action, e.Request.Object, e.Request.Domain)
}

func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}

func forbiddenError(req Request) error {
	return &ForbiddenError{Request: req}
}

// configError standardizes configuration validation errors.
func configError(msg string, args ...any) error {
	return fmt.Errorf("authz: "+msg, args...)
}
