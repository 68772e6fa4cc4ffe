package crud

import (
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/tenantcrud/pkg/authz"
	"github.com/iota-uz/tenantcrud/pkg/composables"
	"github.com/iota-uz/tenantcrud/pkg/cursor"
	"github.com/iota-uz/tenantcrud/pkg/docstore"
	"github.com/iota-uz/tenantcrud/pkg/mapping"
	"github.com/iota-uz/tenantcrud/pkg/tenancy"
)

const (
	DefaultPageSize    = 10
	DefaultMaxPageSize = 100
)

// Validate is shared by every controller that does not bring its own.
var Validate = validator.New(validator.WithRequiredStructEnabled())

// Options configures a Controller over the storage shape S.
type Options[S docstore.Entity] struct {
	// Identity defaults to the caller stored in the request context.
	Identity tenancy.Identity
	// Gate defaults to an organization gate over Identity.
	Gate     authz.Gate[S]
	Mappings *mapping.Registry
	Codec    cursor.Codec
	// CursorKey extracts the ordering key of a boundary item. The default
	// follows Codec: the entity id for cursor.ByID, and for cursor.ByTime the
	// record timestamps of a docstore.TimestampSource or a time-valued
	// document field.
	CursorKey   func(S) cursor.Key
	PageSize    int
	MaxPageSize int
	// Location builds the reference returned by Create.
	Location  func(id string) string
	Validator *validator.Validate
	Logger    *logrus.Entry
}

func (o *Options[S]) setDefaults(collection string) {
	if o.Identity == nil {
		o.Identity = composables.CallerIdentity{}
	}
	if o.Gate == nil {
		o.Gate = authz.NewOrganizationGate[S](o.Identity)
	}
	if o.Mappings == nil {
		o.Mappings = mapping.NewRegistry()
	}
	if o.Codec.Field == "" {
		o.Codec = cursor.ByID()
	}
	if o.CursorKey == nil {
		if o.Codec.Kind == cursor.KindTime && isRecordTime(o.Codec.Field) && !hasTimestamps[S]() {
			panic(fmt.Sprintf("crud: %s ordering of %s needs a CursorKey or a docstore.TimestampSource entity", o.Codec.Field, collection))
		}
		o.CursorKey = defaultCursorKey[S](o.Codec)
	}
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.MaxPageSize <= 0 {
		o.MaxPageSize = DefaultMaxPageSize
	}
	if o.PageSize > o.MaxPageSize {
		o.PageSize = o.MaxPageSize
	}
	if o.Location == nil {
		o.Location = func(id string) string { return path.Join("/", collection, id) }
	}
	if o.Validator == nil {
		o.Validator = Validate
	}
	if o.Logger == nil {
		o.Logger = composables.NopLogger()
	}
}

func isRecordTime(field string) bool {
	return field == docstore.FieldCreatedAt || field == docstore.FieldUpdatedAt
}

func hasTimestamps[S any]() bool {
	var zero S
	_, ok := any(zero).(docstore.TimestampSource)
	return ok
}

func defaultCursorKey[S docstore.Entity](codec cursor.Codec) func(S) cursor.Key {
	if codec.Kind != cursor.KindTime {
		return func(s S) cursor.Key { return cursor.IDKey(s.EntityID()) }
	}
	return func(s S) cursor.Key {
		return cursor.TimeKey(timeOf(s, codec.Field), s.EntityID())
	}
}

// timeOf reads the ordering time of s. Record timestamps come from a
// TimestampSource, other fields from the document encoding.
func timeOf(s any, field string) time.Time {
	if src, ok := s.(docstore.TimestampSource); ok {
		created, updated := src.Timestamps()
		switch field {
		case docstore.FieldCreatedAt:
			return created
		case docstore.FieldUpdatedAt:
			return updated
		}
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return time.Time{}
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return time.Time{}
	}
	var t time.Time
	if v, ok := doc[field]; ok {
		_ = json.Unmarshal(v, &t)
	}
	return t
}
