package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iota-uz/tenantcrud/pkg/cache"
	"github.com/iota-uz/tenantcrud/pkg/eventbus"
	"github.com/iota-uz/tenantcrud/pkg/patch"
)

const (
	DefaultCacheTTL = 5 * time.Minute
	DefaultMaxLimit = 100
)

// Entity is the capability every stored type provides.
type Entity interface {
	EntityID() string
	SetEntityID(id string)
}

// OrganizationOwned is the marker capability of entities whose access is
// restricted per organization.
type OrganizationOwned interface {
	OrganizationID() string
	SetOrganizationID(id string)
}

// IsOrganizationOwned reports whether T carries the OrganizationOwned
// capability. It inspects the type only, so it is safe for nil pointers.
func IsOrganizationOwned[T any]() bool {
	var zero T
	if _, ok := any(zero).(OrganizationOwned); ok {
		return true
	}
	_, ok := any(&zero).(OrganizationOwned)
	return ok
}

// Timestamped entities receive the record timestamps on every read.
type Timestamped interface {
	SetTimestamps(createdAt, updatedAt time.Time)
}

// TimestampSource entities report the record timestamps they received.
type TimestampSource interface {
	Timestamps() (createdAt, updatedAt time.Time)
}

// FindOptions is owned by a single request and must not be shared.
type FindOptions struct {
	Filter Filter
	Before *Predicate
	After  *Predicate
	// Limit is clamped to the store maximum; <= 0 means the maximum.
	Limit  int
	Fields []string
	// Sort defaults to ascending id.
	Sort []SortField
	// CacheKey enables read-through caching of the page under this key.
	CacheKey string
}

type Options struct {
	Cache    cache.Store
	CacheTTL time.Duration
	// MaxLimit bounds the page size of every find.
	MaxLimit int
	Bus      *eventbus.Bus[Mutation]
	Logger   *logrus.Entry
	Tracer   trace.Tracer
}

func (o *Options) setDefaults() {
	if o.CacheTTL <= 0 {
		o.CacheTTL = DefaultCacheTTL
	}
	if o.MaxLimit <= 0 {
		o.MaxLimit = DefaultMaxLimit
	}
	if o.Logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		o.Logger = logrus.NewEntry(l)
	}
	if o.Tracer == nil {
		o.Tracer = otel.Tracer("github.com/iota-uz/tenantcrud/pkg/docstore")
	}
}

// Store is the generic repository over one collection. Entities are persisted
// as their JSON encoding.
type Store[T Entity] struct {
	coll   Collection
	keys   cache.Keys
	owned  bool
	cache  cache.Store
	ttl    time.Duration
	limit  int
	bus    *eventbus.Bus[Mutation]
	log    *logrus.Entry
	tracer trace.Tracer
}

func NewStore[T Entity](coll Collection, opts Options) *Store[T] {
	opts.setDefaults()
	return &Store[T]{
		coll:   coll,
		keys:   cache.Keys{Collection: coll.Name()},
		owned:  IsOrganizationOwned[T](),
		cache:  opts.Cache,
		ttl:    opts.CacheTTL,
		limit:  opts.MaxLimit,
		bus:    opts.Bus,
		log:    opts.Logger.WithField("collection", coll.Name()),
		tracer: opts.Tracer,
	}
}

func (s *Store[T]) Name() string { return s.coll.Name() }

// Keys returns the cache key builder of the collection.
func (s *Store[T]) Keys() cache.Keys { return s.keys }

// OrganizationOwned reports whether T is restricted per organization.
func (s *Store[T]) OrganizationOwned() bool { return s.owned }

// Find returns one page and whether more records follow it. With only a
// Before bound the store scans backwards from the cursor and returns the page
// in the regular order.
func (s *Store[T]) Find(ctx context.Context, opts *FindOptions) (_ []T, _ bool, err error) {
	ctx, span := s.startSpan(ctx, "docstore.Find")
	defer func() { endSpan(span, err) }()

	if opts == nil {
		opts = &FindOptions{}
	}
	page, err := s.findPage(ctx, *opts)
	if err != nil {
		return nil, false, err
	}
	items, err := s.decodeAll(page.Records)
	if err != nil {
		return nil, false, err
	}
	span.SetAttributes(attribute.Int("docstore.results", len(items)), attribute.Bool("docstore.has_more", page.HasMore))
	return items, page.HasMore, nil
}

type pageEntry struct {
	Records []Record `json:"records"`
	HasMore bool     `json:"hasMore"`
}

func (s *Store[T]) findPage(ctx context.Context, opts FindOptions) (pageEntry, error) {
	if opts.CacheKey != "" {
		var cached pageEntry
		if s.readCache(ctx, opts.CacheKey, "paged", &cached) {
			return cached, nil
		}
	}

	opts.Limit = s.clamp(opts.Limit)
	q := Query{Filter: opts.Filter, Fields: opts.Fields, Sort: opts.Sort, Limit: opts.Limit + 1}
	if opts.Before != nil {
		q.Filter = q.Filter.And(*opts.Before)
	}
	if opts.After != nil {
		q.Filter = q.Filter.And(*opts.After)
	}
	if len(q.Sort) == 0 {
		q.Sort = []SortField{{Field: FieldID}}
	}
	reverse := opts.Before != nil && opts.After == nil
	if reverse {
		q.Sort = invertSort(q.Sort)
	}
	records, err := s.coll.Find(ctx, q)
	if err != nil {
		return pageEntry{}, err
	}
	page := pageEntry{Records: records}
	if len(records) > opts.Limit {
		page.Records = records[:opts.Limit]
		page.HasMore = true
	}
	if reverse {
		for i, j := 0, len(page.Records)-1; i < j; i, j = i+1, j-1 {
			page.Records[i], page.Records[j] = page.Records[j], page.Records[i]
		}
	}

	if opts.CacheKey != "" {
		s.writeCache(ctx, opts.CacheKey, page)
	}
	return page, nil
}

func (s *Store[T]) clamp(limit int) int {
	if limit <= 0 || limit > s.limit {
		return s.limit
	}
	return limit
}

func invertSort(sort []SortField) []SortField {
	out := make([]SortField, len(sort))
	for i, f := range sort {
		out[i] = SortField{Field: f.Field, Desc: !f.Desc}
	}
	return out
}

// FindByOrganizations lists the documents of orgIDs. An empty id set returns
// nothing without touching the store. Pages of a single organization are
// cached in that organization's paged namespace unless opts names a key.
func (s *Store[T]) FindByOrganizations(ctx context.Context, orgIDs []string, opts FindOptions) ([]T, bool, error) {
	if len(orgIDs) == 0 {
		return nil, false, nil
	}
	opts.Filter = opts.Filter.And(In(FieldOrganizationID, orgIDs))
	opts.Limit = s.clamp(opts.Limit)
	if len(orgIDs) == 1 && opts.CacheKey == "" {
		opts.CacheKey = s.keys.Paged(orgIDs[0], PageIdentity(opts))
	}
	return s.Find(ctx, &opts)
}

// PageIdentity describes everything that shapes a page so that distinct pages
// never share a cache key.
func PageIdentity(opts FindOptions) string {
	return fmt.Sprintf("f=%v|b=%v|a=%v|l=%d|p=%v|s=%v", opts.Filter, opts.Before, opts.After, opts.Limit, opts.Fields, opts.Sort)
}

// GetByID returns ErrNotFound when no document has id. With cached set the
// id cache key is consulted first and filled on a miss.
func (s *Store[T]) GetByID(ctx context.Context, id string, cached bool) (_ T, err error) {
	ctx, span := s.startSpan(ctx, "docstore.GetByID", attribute.String("docstore.id", id), attribute.Bool("docstore.cached", cached))
	defer func() { endSpan(span, err) }()

	var zero T
	key := s.keys.ID(id)
	if cached {
		var rec Record
		if s.readCache(ctx, key, "id", &rec) {
			return s.decode(rec)
		}
	}
	rec, err := s.coll.Get(ctx, id)
	if err != nil {
		return zero, err
	}
	if cached {
		s.writeCache(ctx, key, rec)
	}
	return s.decode(rec)
}

// Add persists entity, assigning a time-ordered id when it has none.
func (s *Store[T]) Add(ctx context.Context, entity T) (_ T, err error) {
	ctx, span := s.startSpan(ctx, "docstore.Add")
	defer func() { endSpan(span, err) }()

	var zero T
	if entity.EntityID() == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return zero, fmt.Errorf("generate id: %w", err)
		}
		entity.SetEntityID(id.String())
	}
	rec, err := s.encode(entity)
	if err != nil {
		return zero, err
	}
	saved, err := s.coll.Insert(ctx, rec)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			recordWriteConflict(s.coll.Name(), "add")
		}
		return zero, err
	}
	s.publish(ctx, MutationAdded, Affected{ID: saved.ID, OrganizationID: saved.OrganizationID})
	return s.decode(saved)
}

// Patch merges d into the stored document. A delta that leaves the document
// unchanged returns the current entity without writing.
func (s *Store[T]) Patch(ctx context.Context, id string, d patch.Delta) (_ T, err error) {
	ctx, span := s.startSpan(ctx, "docstore.Patch", attribute.String("docstore.id", id))
	defer func() { endSpan(span, err) }()

	var zero T
	current, err := s.coll.Get(ctx, id)
	if err != nil {
		return zero, err
	}
	d = d.Without(FieldID, FieldCreatedAt, FieldUpdatedAt)
	if d.IsEmpty() {
		return s.decode(current)
	}

	merged, err := patch.Apply(current.Data, d)
	if err != nil {
		return zero, err
	}
	changed, err := patch.ChangedFields(current.Data, merged)
	if err != nil {
		return zero, err
	}
	if len(changed) == 0 {
		return s.decode(current)
	}
	span.SetAttributes(attribute.StringSlice("docstore.changed_fields", changed))

	next := current
	next.Data = merged
	if orgID, ok := d.String(FieldOrganizationID); ok {
		next.OrganizationID = orgID
	}
	entity, err := s.decode(next)
	if err != nil {
		return zero, err
	}
	rec, err := s.encode(entity)
	if err != nil {
		return zero, err
	}
	saved, err := s.coll.Replace(ctx, rec, current.Version)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			recordWriteConflict(s.coll.Name(), "patch")
		}
		return zero, err
	}

	affected := []Affected{{ID: saved.ID, OrganizationID: current.OrganizationID}}
	if saved.OrganizationID != current.OrganizationID {
		affected = append(affected, Affected{ID: saved.ID, OrganizationID: saved.OrganizationID})
	}
	s.publish(ctx, MutationUpdated, affected...)
	return s.decode(saved)
}

// Delete removes entity, returning ErrNotFound when it is already gone.
func (s *Store[T]) Delete(ctx context.Context, entity T) (err error) {
	ctx, span := s.startSpan(ctx, "docstore.Delete", attribute.String("docstore.id", entity.EntityID()))
	defer func() { endSpan(span, err) }()

	if err := s.coll.Delete(ctx, entity.EntityID()); err != nil {
		return err
	}
	s.publish(ctx, MutationDeleted, Affected{ID: entity.EntityID(), OrganizationID: organizationOf(entity)})
	return nil
}

// PatchAll applies u to every document in ids with a single bulk update and
// publishes one mutation covering all affected organizations.
func (s *Store[T]) PatchAll(ctx context.Context, ids []string, u BulkUpdate) (_ int, err error) {
	ctx, span := s.startSpan(ctx, "docstore.PatchAll", attribute.Int("docstore.ids", len(ids)))
	defer func() { endSpan(span, err) }()

	if len(ids) == 0 || u.IsEmpty() {
		return 0, nil
	}
	if err := u.Validate(); err != nil {
		return 0, err
	}
	records, err := s.coll.UpdateMany(ctx, ids, u)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	affected := make([]Affected, len(records))
	for i, rec := range records {
		affected[i] = Affected{ID: rec.ID, OrganizationID: rec.OrganizationID}
	}
	s.publish(ctx, MutationUpdated, affected...)
	return len(records), nil
}

// Count counts the documents matching f, cached under cacheKey when set.
func (s *Store[T]) Count(ctx context.Context, f Filter, cacheKey string) (_ int64, err error) {
	ctx, span := s.startSpan(ctx, "docstore.Count")
	defer func() { endSpan(span, err) }()

	if cacheKey != "" {
		var n int64
		if s.readCache(ctx, cacheKey, "count", &n) {
			return n, nil
		}
	}
	n, err := s.coll.Count(ctx, f)
	if err != nil {
		return 0, err
	}
	if cacheKey != "" {
		s.writeCache(ctx, cacheKey, n)
	}
	return n, nil
}

func (s *Store[T]) CountByOrganization(ctx context.Context, orgID string) (int64, error) {
	return s.Count(ctx, Filter{Eq(FieldOrganizationID, orgID)}, s.keys.Count(orgID))
}

// Subscribe registers h for the mutations of this store.
func (s *Store[T]) Subscribe(h eventbus.Handler[Mutation]) func() {
	if s.bus == nil {
		s.bus = eventbus.New[Mutation](s.log)
	}
	return s.bus.Subscribe(h)
}

func (s *Store[T]) publish(ctx context.Context, kind MutationKind, docs ...Affected) {
	recordMutation(s.coll.Name(), kind)
	if s.bus == nil {
		return
	}
	m := Mutation{Collection: s.coll.Name(), Kind: kind, Documents: docs}
	if err := s.bus.Publish(ctx, m); err != nil {
		s.log.WithError(err).WithField("kind", kind).Warn("mutation handlers failed")
	}
}

func (s *Store[T]) readCache(ctx context.Context, key, kind string, dst any) bool {
	if s.cache == nil {
		return false
	}
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("cache read failed")
		return false
	}
	recordCacheRequest(s.coll.Name(), kind, ok)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("discarding undecodable cache entry")
		return false
	}
	return true
}

func (s *Store[T]) writeCache(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("cache encode failed")
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("cache write failed")
	}
}

func (s *Store[T]) encode(entity T) (Record, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return Record{}, fmt.Errorf("encode %s document: %w", s.coll.Name(), err)
	}
	return Record{
		ID:             entity.EntityID(),
		OrganizationID: organizationOf(entity),
		Data:           data,
	}, nil
}

func (s *Store[T]) decode(rec Record) (T, error) {
	var entity T
	if err := json.Unmarshal(rec.Data, &entity); err != nil {
		return entity, fmt.Errorf("decode %s document %s: %w", s.coll.Name(), rec.ID, err)
	}
	entity.SetEntityID(rec.ID)
	if owned, ok := any(entity).(OrganizationOwned); ok {
		owned.SetOrganizationID(rec.OrganizationID)
	}
	if ts, ok := any(entity).(Timestamped); ok {
		ts.SetTimestamps(rec.CreatedAt, rec.UpdatedAt)
	}
	return entity, nil
}

func (s *Store[T]) decodeAll(records []Record) ([]T, error) {
	out := make([]T, 0, len(records))
	for _, rec := range records {
		entity, err := s.decode(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, nil
}

func organizationOf(entity any) string {
	if owned, ok := entity.(OrganizationOwned); ok {
		return owned.OrganizationID()
	}
	return ""
}

func (s *Store[T]) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("docstore.collection", s.coll.Name()))
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
