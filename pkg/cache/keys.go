package cache

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	separator     = ":"
	organization  = "Organization"
	kindID        = "id"
	kindCount     = "count"
	kindPaged     = "paged"
	pagedMarker   = separator + kindPaged + separator + organization + separator
	hashedIDRadix = 16
)

// Key joins parts with the cache key separator.
func Key(parts ...string) string {
	return strings.Join(parts, separator)
}

// Keys builds the cache keys of one collection.
type Keys struct {
	Collection string
}

func (k Keys) ID(id string) string {
	return Key(k.Collection, kindID, id)
}

func (k Keys) Count(orgID string) string {
	return Key(k.Collection, kindCount, organization, orgID)
}

// PagedPrefix is the namespace holding every cached page of orgID.
func (k Keys) PagedPrefix(orgID string) string {
	return Key(k.Collection, kindPaged, organization, orgID) + separator
}

// Paged returns the key of one cached page; identity describes the page
// (cursor, limit, sort) and is hashed to keep keys short.
func (k Keys) Paged(orgID, identity string) string {
	return k.PagedPrefix(orgID) + strconv.FormatUint(xxhash.Sum64String(identity), hashedIDRadix)
}

// OrganizationNamespace maps a paged key onto its organization namespace
// (the value of Keys.PagedPrefix). Other keys have no namespace.
func OrganizationNamespace(key string) string {
	i := strings.Index(key, pagedMarker)
	if i < 0 {
		return ""
	}
	rest := key[i+len(pagedMarker):]
	j := strings.Index(rest, separator)
	if j < 0 {
		return ""
	}
	return key[:i+len(pagedMarker)+j+1]
}
