// Package cursor encodes pagination boundaries into opaque, versioned tokens
// and decodes them back into strict comparison predicates.
package cursor

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iota-uz/tenantcrud/pkg/docstore"
)

var ErrInvalid = errors.New("cursor: invalid token")

const version = "v1"

type Kind string

const (
	KindID   Kind = "id"
	KindTime Kind = "ts"
)

type Direction int

const (
	Before Direction = iota + 1
	After
)

// Key is the ordering-key value of a boundary record. Time keys carry the
// record id in Value to break ties between equal timestamps.
type Key struct {
	Kind  Kind
	Value string
	Time  time.Time
}

func IDKey(id string) Key { return Key{Kind: KindID, Value: id} }

func TimeKey(t time.Time, id string) Key { return Key{Kind: KindTime, Value: id, Time: t.UTC()} }

// Codec binds tokens to one ordering field. Tokens produced for another kind
// are rejected so a page sequence cannot silently switch ordering fields.
type Codec struct {
	Field string
	Kind  Kind
}

// ByID orders by the document identifier.
func ByID() Codec {
	return Codec{Field: docstore.FieldID, Kind: KindID}
}

func ByTime(field string) Codec {
	return Codec{Field: field, Kind: KindTime}
}

func (c Codec) Encode(k Key) string {
	var value string
	switch k.Kind {
	case KindTime:
		value = k.Time.UTC().Format(time.RFC3339Nano)
		if k.Value != "" {
			value += "|" + k.Value
		}
	default:
		value = k.Value
	}
	raw := version + "|" + string(k.Kind) + "|" + value
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode parses a token. Tokens without a version prefix are treated as raw
// identifiers, which is what unversioned clients send.
func (c Codec) Decode(token string) (Key, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Key{}, ErrInvalid
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || !strings.HasPrefix(string(raw), version+"|") {
		if c.Kind != KindID {
			return Key{}, fmt.Errorf("%w: unversioned token for %s ordering", ErrInvalid, c.Kind)
		}
		return IDKey(token), nil
	}
	parts := strings.SplitN(string(raw), "|", 3)
	if len(parts) != 3 {
		return Key{}, ErrInvalid
	}
	kind := Kind(parts[1])
	if kind != c.Kind {
		return Key{}, fmt.Errorf("%w: token kind %q does not match %q", ErrInvalid, kind, c.Kind)
	}
	switch kind {
	case KindID:
		if parts[2] == "" {
			return Key{}, ErrInvalid
		}
		return IDKey(parts[2]), nil
	case KindTime:
		stamp, id, _ := strings.Cut(parts[2], "|")
		t, err := time.Parse(time.RFC3339Nano, stamp)
		if err != nil {
			return Key{}, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		return TimeKey(t, id), nil
	default:
		return Key{}, fmt.Errorf("%w: unknown kind %q", ErrInvalid, kind)
	}
}

// Predicate decodes token into "strictly before" or "strictly after" on the
// codec field, assuming ascending order with ties broken by ascending id.
// Time tokens without an id compare on the timestamp alone.
func (c Codec) Predicate(dir Direction, token string) (docstore.Predicate, error) {
	k, err := c.Decode(token)
	if err != nil {
		return docstore.Predicate{}, err
	}
	beyond := docstore.Gt
	if dir == Before {
		beyond = docstore.Lt
	}
	if k.Kind != KindTime {
		return beyond(c.Field, k.Value), nil
	}
	if k.Value == "" {
		return beyond(c.Field, k.Time), nil
	}
	return docstore.Any(
		docstore.Filter{beyond(c.Field, k.Time)},
		docstore.Filter{docstore.Eq(c.Field, k.Time), beyond(docstore.FieldID, k.Value)},
	), nil
}
