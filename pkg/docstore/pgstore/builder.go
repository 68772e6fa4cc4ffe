package pgstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	gerrors "github.com/go-faster/errors"

	"github.com/iota-uz/tenantcrud/pkg/docstore"
)

const recordColumns = "id, organization_id, version, %s, created_at, updated_at"

// builder accumulates positional arguments while a statement is rendered.
type builder struct {
	args []any
}

func (b *builder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func column(field string) (string, bool) {
	switch field {
	case docstore.FieldID:
		return `id COLLATE "C"`, true
	case docstore.FieldOrganizationID:
		return `organization_id COLLATE "C"`, true
	case docstore.FieldCreatedAt:
		return "created_at", true
	case docstore.FieldUpdatedAt:
		return "updated_at", true
	}
	return "", false
}

// operand renders the expression a predicate value is compared with. Document
// fields are cast after the type of the value.
func (b *builder) operand(field string, value any) (string, error) {
	if col, ok := column(field); ok {
		return col, nil
	}
	key := b.arg(field) + "::text"
	switch value.(type) {
	case string, []string:
		return fmt.Sprintf(`(data->>%s) COLLATE "C"`, key), nil
	case time.Time:
		return fmt.Sprintf("(data->>%s)::timestamptz", key), nil
	case int, int32, int64, float32, float64:
		return fmt.Sprintf("(data->>%s)::numeric", key), nil
	case bool:
		return fmt.Sprintf("(data->>%s)::boolean", key), nil
	}
	return "", gerrors.Errorf("pgstore: unsupported value %T for field %q", value, field)
}

func (b *builder) predicate(p docstore.Predicate) (string, error) {
	if p.Op == docstore.OpAny {
		return b.disjunction(p)
	}
	lhs, err := b.operand(p.Field, p.Value)
	if err != nil {
		return "", err
	}
	switch p.Op {
	case docstore.OpEq:
		return lhs + " = " + b.arg(p.Value), nil
	case docstore.OpLt:
		return lhs + " < " + b.arg(p.Value), nil
	case docstore.OpGt:
		return lhs + " > " + b.arg(p.Value), nil
	case docstore.OpIn:
		values, ok := p.Value.([]string)
		if !ok {
			return "", gerrors.Errorf("pgstore: in-predicate on %q needs []string, got %T", p.Field, p.Value)
		}
		if len(values) == 0 {
			return "FALSE", nil
		}
		return lhs + " = ANY(" + b.arg(values) + ")", nil
	}
	return "", gerrors.Errorf("pgstore: unsupported operator %q", p.Op)
}

func (b *builder) disjunction(p docstore.Predicate) (string, error) {
	alternatives, ok := p.Value.([]docstore.Filter)
	if !ok {
		return "", gerrors.Errorf("pgstore: any-predicate needs []docstore.Filter, got %T", p.Value)
	}
	if len(alternatives) == 0 {
		return "FALSE", nil
	}
	parts := make([]string, 0, len(alternatives))
	for _, f := range alternatives {
		sql, err := b.conjunction(f)
		if err != nil {
			return "", err
		}
		parts = append(parts, "("+sql+")")
	}
	return "(" + strings.Join(parts, " OR ") + ")", nil
}

func (b *builder) conjunction(f docstore.Filter) (string, error) {
	if len(f) == 0 {
		return "TRUE", nil
	}
	parts := make([]string, 0, len(f))
	for _, p := range f {
		sql, err := b.predicate(p)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	return strings.Join(parts, " AND "), nil
}

func (b *builder) where(f docstore.Filter) (string, error) {
	if len(f) == 0 {
		return "", nil
	}
	sql, err := b.conjunction(f)
	if err != nil {
		return "", err
	}
	return " WHERE " + sql, nil
}

func (b *builder) orderBy(sort []docstore.SortField) string {
	if len(sort) == 0 {
		return ` ORDER BY id COLLATE "C"`
	}
	parts := make([]string, 0, len(sort)+1)
	hasID := false
	for _, f := range sort {
		expr, ok := column(f.Field)
		if !ok {
			expr = "data->" + b.arg(f.Field) + "::text"
		}
		if f.Field == docstore.FieldID {
			hasID = true
		}
		if f.Desc {
			expr += " DESC"
		}
		parts = append(parts, expr)
	}
	if !hasID {
		tie := `id COLLATE "C"`
		if sort[0].Desc {
			tie += " DESC"
		}
		parts = append(parts, tie)
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func (b *builder) projection(fields []string) string {
	if len(fields) == 0 {
		return "data"
	}
	keep := append([]string{docstore.FieldID, docstore.FieldOrganizationID}, fields...)
	return fmt.Sprintf("COALESCE((SELECT jsonb_object_agg(key, value) FROM jsonb_each(data) WHERE key = ANY(%s::text[])), '{}'::jsonb)", b.arg(keep))
}

func buildSelect(table string, q docstore.Query) (string, []any, error) {
	b := &builder{}
	cols := fmt.Sprintf(recordColumns, b.projection(q.Fields))
	where, err := b.where(q.Filter)
	if err != nil {
		return "", nil, err
	}
	sql := "SELECT " + cols + " FROM " + table + where + b.orderBy(q.Sort)
	if q.Limit > 0 {
		sql += " LIMIT " + b.arg(q.Limit)
	}
	return sql, b.args, nil
}

func buildCount(table string, f docstore.Filter) (string, []any, error) {
	b := &builder{}
	where, err := b.where(f)
	if err != nil {
		return "", nil, err
	}
	return "SELECT count(*) FROM " + table + where, b.args, nil
}

// buildUpdateMany renders a single UPDATE applying u to every id. Fields are
// visited in sorted order so the statement text is stable.
func buildUpdateMany(table string, ids []string, u docstore.BulkUpdate) (string, []any, error) {
	b := &builder{}
	expr := "data"
	for _, field := range sortedKeys(u.Set) {
		raw, err := json.Marshal(u.Set[field])
		if err != nil {
			return "", nil, gerrors.Wrapf(err, "pgstore: encode %q", field)
		}
		expr = fmt.Sprintf("jsonb_set(%s, ARRAY[%s::text], %s::jsonb, true)", expr, b.arg(field), b.arg(string(raw)))
	}
	for _, field := range sortedKeys(u.Inc) {
		key := b.arg(field) + "::text"
		expr = fmt.Sprintf("jsonb_set(%s, ARRAY[%s], to_jsonb(COALESCE((data->>%s)::numeric, 0) + %s::numeric), true)",
			expr, key, key, b.arg(u.Inc[field]))
	}
	sql := "UPDATE " + table + " SET data = " + expr + ", version = version + 1, updated_at = now()" +
		" WHERE id = ANY(" + b.arg(ids) + ") RETURNING " + fmt.Sprintf(recordColumns, "data")
	return sql, b.args, nil
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
