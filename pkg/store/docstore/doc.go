// SPDX-License-Identifier: Apache-2.0

// Package docstore implements component A, the document-store DAO: CRUD on
// JSON-like records keyed by a tuple (collection, index-fields) with
// soft-delete and versioning, grounded on pgroll's pkg/state (which performs
// the analogous job of keeping a JSONB-backed history of migrations with a
// linear, append-only, uniquely-indexed schema).
package docstore

import (
	"time"

	"github.com/signalstore/signalstore-go/internal/objectid"
)

// Document is a JSON-like record. Values are whatever encoding/json would
// decode a document into: string, float64, bool, nil, []any, map[string]any,
// plus the two managed time fields which the DAO stores as time.Time in
// memory and as signed 64-bit microseconds on the wire.
type Document map[string]any

const (
	FieldTimeOfSave        = "time_of_save"
	FieldTimeOfRemoval     = "time_of_removal"
	FieldVersionTimestamp  = "version_timestamp"
)

// Clone returns a defensive shallow copy of the document.
func (d Document) Clone() Document {
	cp := make(Document, len(d))
	for k, v := range d {
		cp[k] = v
	}
	return cp
}

// TimeOfRemoval returns the document's removal timestamp and whether it is
// set (nil / absent means the document is live).
func (d Document) TimeOfRemoval() (time.Time, bool) {
	v, ok := d[FieldTimeOfRemoval]
	if !ok || v == nil {
		return time.Time{}, false
	}
	t, ok := v.(time.Time)
	return t, ok
}

// VersionTimestampValue returns the document's version_timestamp as a
// microsecond integer, defaulting to the unversioned sentinel 0.
func (d Document) VersionTimestampValue() int64 {
	v, ok := d[FieldVersionTimestamp]
	if !ok || v == nil {
		return objectid.UnversionedTimestamp
	}
	switch t := v.(type) {
	case int64:
		return t
	case time.Time:
		return objectid.DatetimeToMicroseconds(t)
	case float64:
		return int64(t)
	default:
		return objectid.UnversionedTimestamp
	}
}

// Identity is the (index fields..., version_timestamp) tuple uniquely
// naming a document within a collection, excluding time_of_removal (which
// distinguishes live rows from tombstones of the same identity).
type Identity struct {
	Index            map[string]any
	VersionTimestamp int64
}

func indexMatches(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		ov, ok := b[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}
