// Package pgstore stores each collection as a PostgreSQL table holding one
// JSONB document per row next to its id, owner and version columns.
package pgstore

import (
	"context"
	"fmt"
	"strings"

	gerrors "github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iota-uz/tenantcrud/pkg/composables"
	"github.com/iota-uz/tenantcrud/pkg/docstore"
)

type Collection struct {
	name  string
	table string
	pool  *pgxpool.Pool
}

var _ docstore.Collection = (*Collection)(nil)

// New returns the collection stored in the table named after name. pool is
// used when the context carries neither a transaction nor a pool; it may be nil.
func New(name string, pool *pgxpool.Pool) *Collection {
	return &Collection{
		name:  name,
		table: TableName(name),
		pool:  pool,
	}
}

// TableName returns the quoted table identifier of a collection.
func TableName(collection string) string {
	return pgx.Identifier{"docs_" + sanitizeName(collection)}.Sanitize()
}

func sanitizeName(collection string) string {
	return strings.NewReplacer("-", "_", ".", "_", ":", "_").Replace(collection)
}

func (c *Collection) Name() string { return c.name }

func (c *Collection) conn(ctx context.Context) (composables.Tx, error) {
	tx, err := composables.UseTx(ctx)
	if err == nil {
		return tx, nil
	}
	if c.pool != nil {
		return c.pool, nil
	}
	return nil, docstore.Unavailable("pgstore: connection", err)
}

func scanRecord(row pgx.Row) (docstore.Record, error) {
	var rec docstore.Record
	err := row.Scan(&rec.ID, &rec.OrganizationID, &rec.Version, &rec.Data, &rec.CreatedAt, &rec.UpdatedAt)
	return rec, err
}

func (c *Collection) Find(ctx context.Context, q docstore.Query) ([]docstore.Record, error) {
	sql, args, err := buildSelect(c.table, q)
	if err != nil {
		return nil, err
	}
	tx, err := c.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError("pgstore find "+c.name, err)
	}
	defer rows.Close()

	var out []docstore.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, mapError("pgstore find "+c.name, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("pgstore find "+c.name, err)
	}
	return out, nil
}

func (c *Collection) Count(ctx context.Context, f docstore.Filter) (int64, error) {
	sql, args, err := buildCount(c.table, f)
	if err != nil {
		return 0, err
	}
	tx, err := c.conn(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := tx.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, mapError("pgstore count "+c.name, err)
	}
	return n, nil
}

func (c *Collection) Get(ctx context.Context, id string) (docstore.Record, error) {
	tx, err := c.conn(ctx)
	if err != nil {
		return docstore.Record{}, err
	}
	sql := "SELECT " + fmt.Sprintf(recordColumns, "data") + " FROM " + c.table + " WHERE id = $1"
	rec, err := scanRecord(tx.QueryRow(ctx, sql, id))
	if err != nil {
		return docstore.Record{}, mapError("pgstore get "+c.name, err)
	}
	return rec, nil
}

func (c *Collection) Insert(ctx context.Context, rec docstore.Record) (docstore.Record, error) {
	if rec.ID == "" {
		return docstore.Record{}, gerrors.New("pgstore insert: empty id")
	}
	tx, err := c.conn(ctx)
	if err != nil {
		return docstore.Record{}, err
	}
	sql := "INSERT INTO " + c.table + " (id, organization_id, version, data) VALUES ($1, $2, 1, $3) RETURNING " +
		fmt.Sprintf(recordColumns, "data")
	saved, err := scanRecord(tx.QueryRow(ctx, sql, rec.ID, rec.OrganizationID, rec.Data))
	if err != nil {
		return docstore.Record{}, mapError("pgstore insert "+c.name, err)
	}
	return saved, nil
}

func (c *Collection) Replace(ctx context.Context, rec docstore.Record, expectedVersion int64) (docstore.Record, error) {
	tx, err := c.conn(ctx)
	if err != nil {
		return docstore.Record{}, err
	}
	sql := "UPDATE " + c.table + " SET organization_id = $2, data = $3, version = version + 1, updated_at = now()" +
		" WHERE id = $1 AND version = $4 RETURNING " + fmt.Sprintf(recordColumns, "data")
	saved, err := scanRecord(tx.QueryRow(ctx, sql, rec.ID, rec.OrganizationID, rec.Data, expectedVersion))
	if err == nil {
		return saved, nil
	}
	mapped := mapError("pgstore replace "+c.name, err)
	if !gerrors.Is(mapped, docstore.ErrNotFound) {
		return docstore.Record{}, mapped
	}

	var exists bool
	if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM "+c.table+" WHERE id = $1)", rec.ID).Scan(&exists); err != nil {
		return docstore.Record{}, mapError("pgstore replace "+c.name, err)
	}
	if exists {
		return docstore.Record{}, fmt.Errorf("pgstore replace %s %s: %w", c.name, rec.ID, docstore.ErrConflict)
	}
	return docstore.Record{}, docstore.ErrNotFound
}

func (c *Collection) Delete(ctx context.Context, id string) error {
	tx, err := c.conn(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, "DELETE FROM "+c.table+" WHERE id = $1", id)
	if err != nil {
		return mapError("pgstore delete "+c.name, err)
	}
	if tag.RowsAffected() == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (c *Collection) UpdateMany(ctx context.Context, ids []string, u docstore.BulkUpdate) ([]docstore.Record, error) {
	if len(ids) == 0 || u.IsEmpty() {
		return nil, nil
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	sql, args, err := buildUpdateMany(c.table, ids, u)
	if err != nil {
		return nil, err
	}
	tx, err := c.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError("pgstore update many "+c.name, err)
	}
	defer rows.Close()

	var out []docstore.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, mapError("pgstore update many "+c.name, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("pgstore update many "+c.name, err)
	}
	return out, nil
}
