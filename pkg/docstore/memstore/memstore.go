// Package memstore is an in-process docstore.Collection. It mirrors the
// semantics of the PostgreSQL collection and backs tests and local runs.
package memstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iota-uz/tenantcrud/pkg/docstore"
)

type Collection struct {
	name string
	now  func() time.Time

	mu      sync.RWMutex
	records map[string]docstore.Record
	failure error

	ops atomic.Int64
}

var _ docstore.Collection = (*Collection)(nil)

func New(name string) *Collection {
	return &Collection{
		name:    name,
		now:     time.Now,
		records: make(map[string]docstore.Record),
	}
}

// WithClock replaces the timestamp source.
func (c *Collection) WithClock(now func() time.Time) *Collection {
	c.now = now
	return c
}

func (c *Collection) Name() string { return c.name }

// Operations returns how many store operations have been executed.
func (c *Collection) Operations() int64 { return c.ops.Load() }

// SetFailure makes every following operation fail as unavailable with err.
// A nil err restores normal operation.
func (c *Collection) SetFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failure = err
}

func (c *Collection) begin(op string) error {
	c.ops.Add(1)
	if c.failure != nil {
		return docstore.Unavailable("memstore "+op, c.failure)
	}
	return nil
}

func (c *Collection) Find(_ context.Context, q docstore.Query) ([]docstore.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.begin("find"); err != nil {
		return nil, err
	}

	var matched []document
	for _, rec := range c.records {
		doc, err := newDocument(rec)
		if err != nil {
			return nil, err
		}
		if doc.matches(q.Filter) {
			matched = append(matched, doc)
		}
	}
	sortDocuments(matched, q.Sort)
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]docstore.Record, 0, len(matched))
	for _, doc := range matched {
		rec, err := doc.project(q.Fields)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (c *Collection) Count(_ context.Context, f docstore.Filter) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.begin("count"); err != nil {
		return 0, err
	}
	var n int64
	for _, rec := range c.records {
		doc, err := newDocument(rec)
		if err != nil {
			return 0, err
		}
		if doc.matches(f) {
			n++
		}
	}
	return n, nil
}

func (c *Collection) Get(_ context.Context, id string) (docstore.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.begin("get"); err != nil {
		return docstore.Record{}, err
	}
	rec, ok := c.records[id]
	if !ok {
		return docstore.Record{}, docstore.ErrNotFound
	}
	return clone(rec), nil
}

func (c *Collection) Insert(_ context.Context, rec docstore.Record) (docstore.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("insert"); err != nil {
		return docstore.Record{}, err
	}
	if rec.ID == "" {
		return docstore.Record{}, fmt.Errorf("memstore insert: empty id")
	}
	if _, exists := c.records[rec.ID]; exists {
		return docstore.Record{}, fmt.Errorf("memstore insert %s: %w", rec.ID, docstore.ErrConflict)
	}
	now := c.now().UTC()
	rec = clone(rec)
	rec.Version = 1
	rec.CreatedAt = now
	rec.UpdatedAt = now
	c.records[rec.ID] = rec
	return clone(rec), nil
}

func (c *Collection) Replace(_ context.Context, rec docstore.Record, expectedVersion int64) (docstore.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("replace"); err != nil {
		return docstore.Record{}, err
	}
	current, ok := c.records[rec.ID]
	if !ok {
		return docstore.Record{}, docstore.ErrNotFound
	}
	if current.Version != expectedVersion {
		return docstore.Record{}, fmt.Errorf("memstore replace %s: version %d, expected %d: %w",
			rec.ID, current.Version, expectedVersion, docstore.ErrConflict)
	}
	rec = clone(rec)
	rec.Version = current.Version + 1
	rec.CreatedAt = current.CreatedAt
	rec.UpdatedAt = c.now().UTC()
	c.records[rec.ID] = rec
	return clone(rec), nil
}

func (c *Collection) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("delete"); err != nil {
		return err
	}
	if _, ok := c.records[id]; !ok {
		return docstore.ErrNotFound
	}
	delete(c.records, id)
	return nil
}

func (c *Collection) UpdateMany(_ context.Context, ids []string, u docstore.BulkUpdate) ([]docstore.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("update many"); err != nil {
		return nil, err
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}

	updated := make(map[string]docstore.Record, len(ids))
	now := c.now().UTC()
	for _, id := range ids {
		rec, ok := c.records[id]
		if !ok {
			continue
		}
		if _, done := updated[id]; done {
			continue
		}
		fields, err := decodeFields(rec.Data)
		if err != nil {
			return nil, fmt.Errorf("memstore update %s: %w", id, err)
		}
		if fields == nil {
			fields = make(map[string]any)
		}
		for k, v := range u.Set {
			fields[k] = v
		}
		for k, delta := range u.Inc {
			sum, err := increment(fields[k], delta)
			if err != nil {
				return nil, fmt.Errorf("memstore update %s field %q: %w", id, k, err)
			}
			fields[k] = sum
		}
		data, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("memstore update %s: %w", id, err)
		}
		rec.Data = data
		rec.Version++
		rec.UpdatedAt = now
		updated[id] = rec
	}

	// All documents are written only after every one of them was prepared.
	out := make([]docstore.Record, 0, len(updated))
	for _, id := range ids {
		rec, ok := updated[id]
		if !ok {
			continue
		}
		c.records[id] = rec
		out = append(out, clone(rec))
		delete(updated, id)
	}
	return out, nil
}

// decodeFields keeps numbers as json.Number so integers survive a round trip
// without going through float64.
func decodeFields(data []byte) (map[string]any, error) {
	var fields map[string]any
	if len(data) == 0 {
		return fields, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// increment adds delta exactly. Integers are summed as big integers, other
// numbers as float64. A missing field counts as 0.
func increment(current any, delta int64) (json.Number, error) {
	if current == nil {
		return json.Number(strconv.FormatInt(delta, 10)), nil
	}
	n, ok := current.(json.Number)
	if !ok {
		return "", fmt.Errorf("not a number: %v", current)
	}
	if i, ok := new(big.Int).SetString(n.String(), 10); ok {
		return json.Number(i.Add(i, big.NewInt(delta)).String()), nil
	}
	f, err := n.Float64()
	if err != nil {
		return "", err
	}
	return json.Number(strconv.FormatFloat(f+float64(delta), 'g', -1, 64)), nil
}

func clone(rec docstore.Record) docstore.Record {
	rec.Data = append([]byte(nil), rec.Data...)
	return rec
}

// document is a record with its decoded fields for filtering and sorting.
type document struct {
	rec    docstore.Record
	fields map[string]any
}

func newDocument(rec docstore.Record) (document, error) {
	fields, err := decodeFields(rec.Data)
	if err != nil {
		return document{}, fmt.Errorf("memstore: decode %s: %w", rec.ID, err)
	}
	return document{rec: rec, fields: fields}, nil
}

func (d document) value(field string) any {
	switch field {
	case docstore.FieldID:
		return d.rec.ID
	case docstore.FieldOrganizationID:
		return d.rec.OrganizationID
	case docstore.FieldCreatedAt:
		return d.rec.CreatedAt
	case docstore.FieldUpdatedAt:
		return d.rec.UpdatedAt
	}
	return d.fields[field]
}

func (d document) matches(f docstore.Filter) bool {
	for _, p := range f {
		if !d.match(p) {
			return false
		}
	}
	return true
}

func (d document) match(p docstore.Predicate) bool {
	if p.Op == docstore.OpAny {
		alternatives, _ := p.Value.([]docstore.Filter)
		for _, f := range alternatives {
			if d.matches(f) {
				return true
			}
		}
		return false
	}
	v := d.value(p.Field)
	switch p.Op {
	case docstore.OpIn:
		values, _ := p.Value.([]string)
		s, ok := v.(string)
		if !ok {
			return false
		}
		for _, candidate := range values {
			if candidate == s {
				return true
			}
		}
		return false
	case docstore.OpEq:
		cmp, ok := compare(v, p.Value)
		return ok && cmp == 0
	case docstore.OpLt:
		cmp, ok := compare(v, p.Value)
		return ok && cmp < 0
	case docstore.OpGt:
		cmp, ok := compare(v, p.Value)
		return ok && cmp > 0
	}
	return false
}

func (d document) project(fields []string) (docstore.Record, error) {
	rec := clone(d.rec)
	if len(fields) == 0 {
		return rec, nil
	}
	out := make(map[string]any, len(fields)+2)
	for _, keep := range append([]string{docstore.FieldID, docstore.FieldOrganizationID}, fields...) {
		if v, ok := d.fields[keep]; ok {
			out[keep] = v
		}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return docstore.Record{}, fmt.Errorf("memstore: project %s: %w", rec.ID, err)
	}
	rec.Data = data
	return rec, nil
}

// compare orders a document value against a predicate or another document
// value. ok is false when the two are not comparable.
func compare(a, b any) (int, bool) {
	switch bv := b.(type) {
	case string:
		switch av := a.(type) {
		case string:
			return strings.Compare(av, bv), true
		case time.Time:
			t, err := time.Parse(time.RFC3339Nano, bv)
			if err != nil {
				return 0, false
			}
			return av.Compare(t), true
		}
		return 0, false
	case time.Time:
		switch av := a.(type) {
		case time.Time:
			return av.Compare(bv), true
		case string:
			t, err := time.Parse(time.RFC3339Nano, av)
			if err != nil {
				return 0, false
			}
			return t.Compare(bv), true
		}
		return 0, false
	case bool:
		av, ok := a.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		default:
			return 1, true
		}
	case nil:
		if a == nil {
			return 0, true
		}
		return 1, true
	}
	bf, ok := toFloat(b)
	if !ok {
		return 0, false
	}
	af, ok := toFloat(a)
	if !ok {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	}
	return 0, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// sortDocuments orders by the sort fields, breaking ties by id in the
// direction of the first field. Missing values sort first.
func sortDocuments(docs []document, fields []docstore.SortField) {
	desc := len(fields) > 0 && fields[0].Desc
	sort.SliceStable(docs, func(i, j int) bool {
		for _, f := range fields {
			cmp := orderValues(docs[i].value(f.Field), docs[j].value(f.Field))
			if cmp == 0 {
				continue
			}
			if f.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		if desc {
			return docs[i].rec.ID > docs[j].rec.ID
		}
		return docs[i].rec.ID < docs[j].rec.ID
	})
}

func orderValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if cmp, ok := compare(a, b); ok {
		return cmp
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
