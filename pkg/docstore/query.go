package docstore

import (
	"fmt"
	"time"
)

// Reserved document fields. Collections map them onto record columns rather
// than document content.
const (
	FieldID             = "id"
	FieldOrganizationID = "organizationId"
	FieldCreatedAt      = "createdAt"
	FieldUpdatedAt      = "updatedAt"
)

type Op string

const (
	OpEq Op = "eq"
	OpIn Op = "in"
	OpLt Op = "lt"
	OpGt Op = "gt"
	// OpAny holds a []Filter and matches when any one of them does.
	OpAny Op = "any"
)

// Predicate is a single comparison against a document field. Value is a
// string, time.Time, int64, float64, bool, []string for OpIn or []Filter for
// OpAny.
type Predicate struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, v any) Predicate { return Predicate{Field: field, Op: OpEq, Value: v} }
func Lt(field string, v any) Predicate { return Predicate{Field: field, Op: OpLt, Value: v} }
func Gt(field string, v any) Predicate { return Predicate{Field: field, Op: OpGt, Value: v} }

// Any matches when at least one of alternatives matches. Field is unused.
func Any(alternatives ...Filter) Predicate {
	cp := make([]Filter, len(alternatives))
	copy(cp, alternatives)
	return Predicate{Op: OpAny, Value: cp}
}

func In(field string, values []string) Predicate {
	cp := make([]string, len(values))
	copy(cp, values)
	return Predicate{Field: field, Op: OpIn, Value: cp}
}

// Filter is a conjunction of predicates. The zero value matches everything.
type Filter []Predicate

// And returns a new filter holding the predicates of f followed by ps.
func (f Filter) And(ps ...Predicate) Filter {
	out := make(Filter, 0, len(f)+len(ps))
	out = append(out, f...)
	return append(out, ps...)
}

type SortField struct {
	Field string
	Desc  bool
}

// Query is what a Collection executes: filter, ordering, limit and an optional
// projection. Limit <= 0 means unbounded.
type Query struct {
	Filter Filter
	Sort   []SortField
	Limit  int
	Fields []string
}

// BulkUpdate is applied to many documents in one store-level operation. Set
// overwrites fields, Inc adds to numeric fields (missing fields count as 0).
type BulkUpdate struct {
	Set map[string]any
	Inc map[string]int64
}

func (u BulkUpdate) IsEmpty() bool {
	return len(u.Set) == 0 && len(u.Inc) == 0
}

// Validate rejects updates touching reserved fields; ownership and identity
// are never changed in bulk.
func (u BulkUpdate) Validate() error {
	for field := range u.Set {
		if IsReserved(field) {
			return fmt.Errorf("%w: %s", ErrReservedField, field)
		}
	}
	for field := range u.Inc {
		if IsReserved(field) {
			return fmt.Errorf("%w: %s", ErrReservedField, field)
		}
	}
	return nil
}

func IsReserved(field string) bool {
	switch field {
	case FieldID, FieldOrganizationID, FieldCreatedAt, FieldUpdatedAt:
		return true
	}
	return false
}

// Record is the persisted representation of an entity.
type Record struct {
	ID             string
	OrganizationID string
	Version        int64
	Data           []byte
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
