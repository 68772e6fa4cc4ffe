// Package patch implements sparse updates: a Delta is an explicit set of
// (field, new value) pairs applied to a stored JSON document as an RFC 7386
// merge patch.
package patch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

var ErrNotObject = errors.New("patch: delta must be a JSON object")

// Delta is immutable once built; With and Without return copies.
type Delta struct {
	values map[string]json.RawMessage
}

// FromJSON builds a delta from the top-level members of a JSON object. An
// empty body or a JSON null yields an empty delta.
func FromJSON(raw []byte) (Delta, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Delta{}, nil
	}
	if raw[0] != '{' {
		return Delta{}, ErrNotObject
	}
	values := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &values); err != nil {
		return Delta{}, fmt.Errorf("patch: decode delta: %w", err)
	}
	return Delta{values: values}, nil
}

// Decode builds a delta accepted by the update shape U: every member must map
// onto a field of U with a compatible type. Only members present in raw end
// up in the delta.
func Decode[U any](raw []byte) (Delta, error) {
	d, err := FromJSON(raw)
	if err != nil {
		return Delta{}, err
	}
	if d.IsEmpty() {
		return d, nil
	}
	var shape U
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&shape); err != nil {
		return Delta{}, fmt.Errorf("patch: delta does not match update shape: %w", err)
	}
	return d, nil
}

// FromMap encodes every value of fields into a delta.
func FromMap(fields map[string]any) (Delta, error) {
	d := Delta{}
	for name, v := range fields {
		next, err := d.With(name, v)
		if err != nil {
			return Delta{}, err
		}
		d = next
	}
	return d, nil
}

func (d Delta) IsEmpty() bool {
	return len(d.values) == 0
}

// ChangedFields returns the names of the fields carried by the delta, sorted.
func (d Delta) ChangedFields() []string {
	out := make([]string, 0, len(d.values))
	for name := range d.values {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (d Delta) Has(field string) bool {
	_, ok := d.values[field]
	return ok
}

func (d Delta) Value(field string) (json.RawMessage, bool) {
	v, ok := d.values[field]
	return v, ok
}

// String returns the string value of field. ok is false when the field is
// absent or not a JSON string.
func (d Delta) String(field string) (string, bool) {
	raw, ok := d.values[field]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func (d Delta) With(field string, v any) (Delta, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Delta{}, fmt.Errorf("patch: encode %q: %w", field, err)
	}
	values := make(map[string]json.RawMessage, len(d.values)+1)
	for k, existing := range d.values {
		values[k] = existing
	}
	values[field] = raw
	return Delta{values: values}, nil
}

func (d Delta) Without(fields ...string) Delta {
	values := make(map[string]json.RawMessage, len(d.values))
	for k, v := range d.values {
		values[k] = v
	}
	for _, f := range fields {
		delete(values, f)
	}
	return Delta{values: values}
}

// MarshalJSON renders the delta as a merge patch document.
func (d Delta) MarshalJSON() ([]byte, error) {
	if d.values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d.values)
}
