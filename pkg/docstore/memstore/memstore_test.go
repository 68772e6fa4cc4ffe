package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/tenantcrud/pkg/docstore"
)

func insert(t *testing.T, c *Collection, id, org, data string) docstore.Record {
	t.Helper()
	rec, err := c.Insert(context.Background(), docstore.Record{ID: id, OrganizationID: org, Data: []byte(data)})
	require.NoError(t, err)
	return rec
}

func recordIDs(recs []docstore.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func TestCollection_ReplaceChecksVersion(t *testing.T) {
	c := New("docs")
	ctx := context.Background()
	rec := insert(t, c, "a", "A", `{"n":1}`)
	require.EqualValues(t, 1, rec.Version)

	rec.Data = []byte(`{"n":2}`)
	saved, err := c.Replace(ctx, rec, 1)
	require.NoError(t, err)
	require.EqualValues(t, 2, saved.Version)
	require.Equal(t, rec.CreatedAt, saved.CreatedAt)

	_, err = c.Replace(ctx, rec, 1)
	require.ErrorIs(t, err, docstore.ErrConflict)

	_, err = c.Replace(ctx, docstore.Record{ID: "missing"}, 1)
	require.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestCollection_FindFiltersAndSorts(t *testing.T) {
	c := New("docs")
	ctx := context.Background()
	insert(t, c, "a", "A", `{"score":3,"name":"x"}`)
	insert(t, c, "b", "B", `{"score":1,"name":"y"}`)
	insert(t, c, "c", "A", `{"score":2,"name":"z"}`)

	recs, err := c.Find(ctx, docstore.Query{
		Filter: docstore.Filter{docstore.In(docstore.FieldOrganizationID, []string{"A"})},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "c"}, recordIDs(recs))

	recs, err = c.Find(ctx, docstore.Query{
		Filter: docstore.Filter{docstore.Gt("score", int64(1))},
		Sort:   []docstore.SortField{{Field: "score", Desc: true}},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "c"}, recordIDs(recs))

	recs, err = c.Find(ctx, docstore.Query{Sort: []docstore.SortField{{Field: docstore.FieldID, Desc: true}}, Limit: 2})
	require.NoError(t, err)
	require.Equal(t, []string{"c", "b"}, recordIDs(recs))

	n, err := c.Count(ctx, docstore.Filter{docstore.Eq("name", "y")})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestCollection_TimePredicates(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	c := New("docs").WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})
	ctx := context.Background()
	insert(t, c, "a", "", `{}`)
	second := insert(t, c, "b", "", `{}`)
	insert(t, c, "c", "", `{}`)

	recs, err := c.Find(ctx, docstore.Query{
		Filter: docstore.Filter{docstore.Gt(docstore.FieldCreatedAt, second.CreatedAt)},
		Sort:   []docstore.SortField{{Field: docstore.FieldCreatedAt}},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"c"}, recordIDs(recs))
}

func TestCollection_UpdateMany(t *testing.T) {
	c := New("docs")
	ctx := context.Background()
	insert(t, c, "a", "A", `{"hits":1}`)
	insert(t, c, "b", "B", `{}`)

	recs, err := c.UpdateMany(ctx, []string{"a", "b", "a", "zzz"}, docstore.BulkUpdate{
		Inc: map[string]int64{"hits": 2},
		Set: map[string]any{"flag": true},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, recordIDs(recs))

	got, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.JSONEq(t, `{"hits":3,"flag":true}`, string(got.Data))
	require.EqualValues(t, 2, got.Version)

	got, err = c.Get(ctx, "b")
	require.NoError(t, err)
	require.JSONEq(t, `{"hits":2,"flag":true}`, string(got.Data))
}

func TestCollection_UpdateManyKeepsIntegerPrecision(t *testing.T) {
	c := New("docs")
	ctx := context.Background()
	insert(t, c, "a", "A", `{"ticks":638000000000000001,"ratio":1.5}`)

	_, err := c.UpdateMany(ctx, []string{"a"}, docstore.BulkUpdate{
		Inc: map[string]int64{"ticks": 864000000000, "ratio": 1},
	})
	require.NoError(t, err)

	got, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.JSONEq(t, `{"ticks":638000864000000001,"ratio":2.5}`, string(got.Data))

	page, err := c.Find(ctx, docstore.Query{Fields: []string{"ticks"}})
	require.NoError(t, err)
	require.JSONEq(t, `{"ticks":638000864000000001}`, string(page[0].Data))
}

func TestCollection_UpdateManyRejectsNonNumbers(t *testing.T) {
	c := New("docs")
	ctx := context.Background()
	insert(t, c, "a", "A", `{"hits":1}`)
	insert(t, c, "b", "A", `{"hits":"many"}`)

	_, err := c.UpdateMany(ctx, []string{"a", "b"}, docstore.BulkUpdate{Inc: map[string]int64{"hits": 1}})
	require.Error(t, err)

	got, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.JSONEq(t, `{"hits":1}`, string(got.Data))
	require.EqualValues(t, 1, got.Version)
}

func TestCollection_AnyPredicate(t *testing.T) {
	at := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	c := New("docs").WithClock(func() time.Time { return at })
	for _, id := range []string{"a", "b", "c", "d"} {
		insert(t, c, id, "A", `{}`)
	}

	got, err := c.Find(context.Background(), docstore.Query{
		Filter: docstore.Filter{docstore.Any(
			docstore.Filter{docstore.Gt(docstore.FieldCreatedAt, at)},
			docstore.Filter{docstore.Eq(docstore.FieldCreatedAt, at), docstore.Gt(docstore.FieldID, "b")},
		)},
		Sort: []docstore.SortField{{Field: docstore.FieldCreatedAt}},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"c", "d"}, recordIDs(got))
}

func TestCollection_FailureIsUnavailable(t *testing.T) {
	c := New("docs")
	c.SetFailure(errors.New("disk on fire"))
	_, err := c.Get(context.Background(), "a")
	require.ErrorIs(t, err, docstore.ErrUnavailable)

	c.SetFailure(nil)
	_, err = c.Get(context.Background(), "a")
	require.ErrorIs(t, err, docstore.ErrNotFound)
	require.EqualValues(t, 2, c.Operations())
}

func TestCollection_DuplicateInsertConflicts(t *testing.T) {
	c := New("docs")
	insert(t, c, "a", "", `{}`)
	_, err := c.Insert(context.Background(), docstore.Record{ID: "a", Data: []byte(`{}`)})
	require.ErrorIs(t, err, docstore.ErrConflict)
	require.ErrorIs(t, c.Delete(context.Background(), "zzz"), docstore.ErrNotFound)
}
