package pgstore

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iota-uz/tenantcrud/pkg/docstore"
)

func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return docstore.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w: %s", op, docstore.ErrConflict, pgErr.ConstraintName)
		case "40001": // serialization_failure
			return fmt.Errorf("%s: %w: %s", op, docstore.ErrConflict, pgErr.Message)
		}
	}
	return docstore.Unavailable(op, err)
}
