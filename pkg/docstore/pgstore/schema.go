package pgstore

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/tenantcrud/pkg/composables"
)

func schemaStatements(collection string) []string {
	table := TableName(collection)
	index := pgx.Identifier{"docs_" + sanitizeName(collection) + "_organization_idx"}.Sanitize()
	return []string{
		`CREATE TABLE IF NOT EXISTS ` + table + ` (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL DEFAULT '',
	version BIGINT NOT NULL DEFAULT 1,
	data JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE INDEX IF NOT EXISTS ` + index + ` ON ` + table + ` (organization_id, id COLLATE "C")`,
	}
}

// EnsureSchema creates the tables of the given collections in one
// transaction. It is idempotent.
func EnsureSchema(ctx context.Context, collections ...string) error {
	return composables.InTx(ctx, func(txCtx context.Context) error {
		tx, err := composables.UseTx(txCtx)
		if err != nil {
			return err
		}
		for _, name := range collections {
			for _, stmt := range schemaStatements(name) {
				if _, err := tx.Exec(txCtx, stmt); err != nil {
					return mapError("pgstore ensure schema "+name, err)
				}
			}
		}
		return nil
	})
}
