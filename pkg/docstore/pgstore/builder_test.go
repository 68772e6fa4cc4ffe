package pgstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/tenantcrud/pkg/docstore"
)

func TestTableName(t *testing.T) {
	require.Equal(t, `"docs_acme_projects"`, TableName("acme-projects"))
}

func TestBuildSelect_PageQuery(t *testing.T) {
	sql, args, err := buildSelect(`"docs_projects"`, docstore.Query{
		Filter: docstore.Filter{
			docstore.In(docstore.FieldOrganizationID, []string{"A", "B"}),
			docstore.Gt(docstore.FieldID, "item-10"),
		},
		Limit: 11,
	})
	require.NoError(t, err)
	require.Equal(t, `SELECT id, organization_id, version, data, created_at, updated_at FROM "docs_projects"`+
		` WHERE organization_id COLLATE "C" = ANY($1) AND id COLLATE "C" > $2 ORDER BY id COLLATE "C" LIMIT $3`, sql)
	require.Equal(t, []any{[]string{"A", "B"}, "item-10", 11}, args)
}

func TestBuildSelect_DocumentFields(t *testing.T) {
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sql, args, err := buildSelect(`"docs_projects"`, docstore.Query{
		Filter: docstore.Filter{
			docstore.Gt("dueAt", since),
			docstore.Eq("score", int64(3)),
		},
		Sort:   []docstore.SortField{{Field: "score", Desc: true}},
		Fields: []string{"name"},
	})
	require.NoError(t, err)
	require.Equal(t, `SELECT id, organization_id, version, `+
		`COALESCE((SELECT jsonb_object_agg(key, value) FROM jsonb_each(data) WHERE key = ANY($1::text[])), '{}'::jsonb), `+
		`created_at, updated_at FROM "docs_projects"`+
		` WHERE (data->>$2::text)::timestamptz > $3 AND (data->>$4::text)::numeric = $5`+
		` ORDER BY data->$6::text DESC, id COLLATE "C" DESC`, sql)
	require.Equal(t, []any{[]string{"id", "organizationId", "name"}, "dueAt", since, "score", int64(3), "score"}, args)
}

func TestBuildSelect_CompoundCursor(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	sql, args, err := buildSelect(`"docs_projects"`, docstore.Query{
		Filter: docstore.Filter{
			docstore.Eq(docstore.FieldOrganizationID, "A"),
			docstore.Any(
				docstore.Filter{docstore.Gt(docstore.FieldCreatedAt, at)},
				docstore.Filter{docstore.Eq(docstore.FieldCreatedAt, at), docstore.Gt(docstore.FieldID, "item-3")},
			),
		},
		Sort:  []docstore.SortField{{Field: docstore.FieldCreatedAt}},
		Limit: 3,
	})
	require.NoError(t, err)
	require.Equal(t, `SELECT id, organization_id, version, data, created_at, updated_at FROM "docs_projects"`+
		` WHERE organization_id COLLATE "C" = $1 AND ((created_at > $2) OR (created_at = $3 AND id COLLATE "C" > $4))`+
		` ORDER BY created_at, id COLLATE "C" LIMIT $5`, sql)
	require.Equal(t, []any{"A", at, at, "item-3", 3}, args)
}

func TestBuildSelect_EmptyInMatchesNothing(t *testing.T) {
	sql, args, err := buildSelect(`"docs_projects"`, docstore.Query{
		Filter: docstore.Filter{docstore.In(docstore.FieldOrganizationID, nil)},
	})
	require.NoError(t, err)
	require.Contains(t, sql, " WHERE FALSE ")
	require.Empty(t, args)
}

func TestBuildSelect_RejectsUnsupportedValues(t *testing.T) {
	_, _, err := buildSelect(`"docs_projects"`, docstore.Query{
		Filter: docstore.Filter{docstore.Eq("meta", map[string]any{"a": 1})},
	})
	require.Error(t, err)
}

func TestBuildCount(t *testing.T) {
	sql, args, err := buildCount(`"docs_projects"`, docstore.Filter{docstore.Eq(docstore.FieldOrganizationID, "A")})
	require.NoError(t, err)
	require.Equal(t, `SELECT count(*) FROM "docs_projects" WHERE organization_id COLLATE "C" = $1`, sql)
	require.Equal(t, []any{"A"}, args)
}

func TestBuildUpdateMany(t *testing.T) {
	sql, args, err := buildUpdateMany(`"docs_projects"`, []string{"a", "b"}, docstore.BulkUpdate{
		Set: map[string]any{"status": "archived"},
		Inc: map[string]int64{"hits": 2},
	})
	require.NoError(t, err)
	require.Equal(t, `UPDATE "docs_projects" SET data = `+
		`jsonb_set(jsonb_set(data, ARRAY[$1::text], $2::jsonb, true), ARRAY[$3::text], `+
		`to_jsonb(COALESCE((data->>$3::text)::numeric, 0) + $4::numeric), true), `+
		`version = version + 1, updated_at = now() WHERE id = ANY($5) RETURNING `+
		`id, organization_id, version, data, created_at, updated_at`, sql)
	require.Equal(t, []any{"status", `"archived"`, "hits", int64(2), []string{"a", "b"}}, args)
}
