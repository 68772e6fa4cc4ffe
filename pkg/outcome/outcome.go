// Package outcome defines the transport-neutral results produced by the CRUD
// controller. An excluded transport layer maps them onto its own codes.
package outcome

type Status int

const (
	StatusOK Status = iota + 1
	StatusCreated
	StatusNoContent
	StatusBadRequest
	StatusNotFound
	StatusConflict
	StatusForbidden
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusCreated:
		return "created"
	case StatusNoContent:
		return "no_content"
	case StatusBadRequest:
		return "bad_request"
	case StatusNotFound:
		return "not_found"
	case StatusConflict:
		return "conflict"
	case StatusForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// IsSuccess reports whether the status represents a completed operation.
func (s Status) IsSuccess() bool {
	return s == StatusOK || s == StatusCreated || s == StatusNoContent
}

// Outcome is the result of a single controller operation. Value is only
// meaningful for StatusOK and StatusCreated.
type Outcome[T any] struct {
	Status   Status
	Reason   string
	Location string
	Value    T
	HasValue bool
}

func OK[T any](v T) Outcome[T] {
	return Outcome[T]{Status: StatusOK, Value: v, HasValue: true}
}

// Empty is a successful result without a body.
func Empty[T any]() Outcome[T] {
	return Outcome[T]{Status: StatusOK}
}

func Created[T any](location string, v T) Outcome[T] {
	return Outcome[T]{Status: StatusCreated, Location: location, Value: v, HasValue: true}
}

func NoContent[T any]() Outcome[T] {
	return Outcome[T]{Status: StatusNoContent}
}

func BadRequest[T any](reason string) Outcome[T] {
	return Outcome[T]{Status: StatusBadRequest, Reason: reason}
}

func NotFound[T any]() Outcome[T] {
	return Outcome[T]{Status: StatusNotFound}
}

func Conflict[T any]() Outcome[T] {
	return Outcome[T]{Status: StatusConflict}
}

func Forbidden[T any](reason string) Outcome[T] {
	return Outcome[T]{Status: StatusForbidden, Reason: reason}
}

// WithStatus builds a body-less outcome for an arbitrary status, used when a
// permission decision carries its own status.
func WithStatus[T any](status Status, reason string) Outcome[T] {
	return Outcome[T]{Status: status, Reason: reason}
}
