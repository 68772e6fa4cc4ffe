package httpapi

import (
	"errors"
	"net/http"

	"github.com/iota-uz/tenantcrud/pkg/docstore"
	"github.com/iota-uz/tenantcrud/pkg/outcome"
)

// StatusCode maps an outcome status onto its HTTP status code.
func StatusCode(s outcome.Status) int {
	switch s {
	case outcome.StatusOK:
		return http.StatusOK
	case outcome.StatusCreated:
		return http.StatusCreated
	case outcome.StatusNoContent:
		return http.StatusNoContent
	case outcome.StatusBadRequest:
		return http.StatusBadRequest
	case outcome.StatusNotFound:
		return http.StatusNotFound
	case outcome.StatusConflict:
		return http.StatusConflict
	case outcome.StatusForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// WriteOutcome renders the result of a controller operation. A non-nil err
// takes precedence over o.
func WriteOutcome[T any](w http.ResponseWriter, o outcome.Outcome[T], err error) error {
	if err != nil {
		if errors.Is(err, docstore.ErrUnavailable) {
			return WriteError(w, http.StatusServiceUnavailable, "unavailable", "Store is unavailable.")
		}
		return WriteError(w, http.StatusInternalServerError, "internal", http.StatusText(http.StatusInternalServerError))
	}

	status := StatusCode(o.Status)
	if !o.Status.IsSuccess() {
		message := o.Reason
		if message == "" {
			message = http.StatusText(status)
		}
		return WriteError(w, status, o.Status.String(), message)
	}
	if o.Location != "" && w != nil {
		w.Header().Set("Location", o.Location)
	}
	if !o.HasValue {
		if w != nil {
			w.WriteHeader(status)
		}
		return nil
	}
	return WriteJSON(w, status, o.Value)
}
