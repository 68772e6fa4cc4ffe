package docstore

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("docstore: document not found")
	// ErrConflict is returned when a uniqueness or version constraint rejects a write.
	ErrConflict = errors.New("docstore: write conflict")
	// ErrUnavailable wraps transport and infrastructure failures.
	ErrUnavailable = errors.New("docstore: store unavailable")
	// ErrReservedField is returned when a bulk update names a reserved field.
	ErrReservedField = errors.New("docstore: reserved field")
)

// Unavailable wraps err so that errors.Is(err, ErrUnavailable) holds while the
// original cause stays inspectable.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
