// SPDX-License-Identifier: Apache-2.0

package docstore

import (
	"fmt"
	"sort"
	"time"

	"github.com/signalstore/signalstore-go/internal/objectid"
	"github.com/signalstore/signalstore-go/pkg/storeerrors"
)

const layerName = "docstore"

// Filter is an equality-based pass-through filter: a document matches if
// every key in the filter is present in the document with an equal value.
// §1 Non-goals explicitly excludes "query-planning beyond pass-through
// filters", so this is the entire query surface by design.
type Filter map[string]any

// Projection lists the document fields to keep in Find results. A nil or
// empty Projection returns every field. Internal id keys (there are none in
// this implementation beyond the managed fields) are always stripped by the
// caller-visible Document.
type Projection []string

// DAO is component A: CRUD on JSON-like documents keyed by
// (collection, index-fields, version_timestamp) with soft-delete and
// versioning. Two implementations are provided: MemoryDAO (the default,
// used by the UoW provider and by tests) and a Postgres/JSONB-backed DAO in
// postgres.go, grounded on pgroll's pkg/state connection handling.
type DAO interface {
	Get(collection string, index map[string]any, versionTimestamp int64) (Document, error)
	Find(collection string, filter Filter, projection Projection) ([]Document, error)
	Exists(collection string, index map[string]any, versionTimestamp int64) (bool, error)
	Add(collection string, index map[string]any, doc Document, timestamp time.Time, versioningOn bool) error
	MarkForDeletion(collection string, index map[string]any, versionTimestamp int64, timestamp time.Time) error
	ListMarkedForDeletion(collection string, timeThreshold *time.Time) ([]Document, error)
	Restore(collection string, index map[string]any, nthMostRecent int) error
	Purge(collection string, timeThreshold *time.Time) (int, error)
}

type row struct {
	index            map[string]any
	versionTimestamp int64
	doc              Document
}

// MemoryDAO is an in-process, mutex-free (single-threaded-per-UoW, per §5)
// implementation of DAO backed by per-collection slices of rows. It
// maintains the invariant that within one collection, at most one row per
// (index, version_timestamp) has a nil time_of_removal.
type MemoryDAO struct {
	collections map[string][]*row
	clock       objectid.Clock
}

func NewMemoryDAO(clock objectid.Clock) *MemoryDAO {
	return &MemoryDAO{collections: make(map[string][]*row), clock: clock}
}

func (m *MemoryDAO) rows(collection string) []*row {
	return m.collections[collection]
}

func (m *MemoryDAO) findLive(collection string, index map[string]any, versionTimestamp int64) *row {
	for _, r := range m.rows(collection) {
		if r.versionTimestamp == versionTimestamp && indexMatches(r.index, index) {
			if _, removed := r.doc.TimeOfRemoval(); !removed {
				return r
			}
		}
	}
	return nil
}

func (m *MemoryDAO) Get(collection string, index map[string]any, versionTimestamp int64) (Document, error) {
	r := m.findLive(collection, index, versionTimestamp)
	if r == nil {
		return nil, nil
	}
	return r.doc.Clone(), nil
}

func (m *MemoryDAO) Exists(collection string, index map[string]any, versionTimestamp int64) (bool, error) {
	return m.findLive(collection, index, versionTimestamp) != nil, nil
}

func (m *MemoryDAO) Find(collection string, filter Filter, projection Projection) ([]Document, error) {
	var out []Document
	for _, r := range m.rows(collection) {
		if _, removed := r.doc.TimeOfRemoval(); removed {
			continue
		}
		if !matchesFilter(r.doc, filter) {
			continue
		}
		out = append(out, applyProjection(r.doc, projection))
	}
	return out, nil
}

func matchesFilter(doc Document, filter Filter) bool {
	for k, v := range filter {
		if doc[k] != v {
			return false
		}
	}
	return true
}

func applyProjection(doc Document, projection Projection) Document {
	if len(projection) == 0 {
		return doc.Clone()
	}
	out := make(Document, len(projection))
	for _, k := range projection {
		if v, ok := doc[k]; ok {
			out[k] = v
		}
	}
	return out
}

func (m *MemoryDAO) Add(collection string, index map[string]any, doc Document, timestamp time.Time, versioningOn bool) error {
	vt := doc.VersionTimestampValue()
	if versioningOn {
		if _, hasVT := doc[FieldVersionTimestamp]; !hasVT {
			vt = objectid.DatetimeToMicroseconds(timestamp)
		}
	} else {
		vt = objectid.UnversionedTimestamp
	}

	if m.findLive(collection, index, vt) != nil {
		return &storeerrors.AlreadyExistsError{LayerName: layerName, Collection: collection, Identity: identityString(index, vt)}
	}

	stored := doc.Clone()
	stored[FieldTimeOfSave] = timestamp
	stored[FieldTimeOfRemoval] = nil
	stored[FieldVersionTimestamp] = vt

	m.collections[collection] = append(m.collections[collection], &row{
		index:            index,
		versionTimestamp: vt,
		doc:              stored,
	})
	return nil
}

func (m *MemoryDAO) MarkForDeletion(collection string, index map[string]any, versionTimestamp int64, timestamp time.Time) error {
	r := m.findLive(collection, index, versionTimestamp)
	if r == nil {
		return &storeerrors.NotFoundError{LayerName: layerName, Collection: collection, Identity: identityString(index, versionTimestamp)}
	}

	// Ensure strict monotonicity of time_of_removal across tombstones of the
	// same identity: bump by 1µs if the requested timestamp would collide.
	ts := timestamp
	for _, other := range m.rows(collection) {
		if indexMatches(other.index, index) && other.versionTimestamp == versionTimestamp {
			if ot, removed := other.doc.TimeOfRemoval(); removed && !ts.After(ot) {
				ts = ot.Add(time.Microsecond)
			}
		}
	}

	r.doc[FieldTimeOfRemoval] = ts
	return nil
}

func (m *MemoryDAO) ListMarkedForDeletion(collection string, timeThreshold *time.Time) ([]Document, error) {
	var out []Document
	for _, r := range m.rows(collection) {
		tor, removed := r.doc.TimeOfRemoval()
		if !removed {
			continue
		}
		if timeThreshold != nil && !tor.Before(*timeThreshold) {
			continue
		}
		out = append(out, r.doc.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		ti, _ := out[i].TimeOfRemoval()
		tj, _ := out[j].TimeOfRemoval()
		return ti.After(tj)
	})
	return out, nil
}

func (m *MemoryDAO) Restore(collection string, index map[string]any, nthMostRecent int) error {
	if nthMostRecent < 1 {
		return &storeerrors.ArgumentValueError{LayerName: layerName, Name: "nth_most_recent", Message: "must be >= 1"}
	}

	var candidates []*row
	for _, r := range m.rows(collection) {
		if !indexMatches(r.index, index) {
			continue
		}
		if _, removed := r.doc.TimeOfRemoval(); removed {
			candidates = append(candidates, r)
		}
	}
	// ascending by time_of_removal, per §4.A "sorted ascending by
	// time_of_removal" — the Nth oldest tombstone.
	sort.Slice(candidates, func(i, j int) bool {
		ti, _ := candidates[i].doc.TimeOfRemoval()
		tj, _ := candidates[j].doc.TimeOfRemoval()
		return ti.Before(tj)
	})

	if nthMostRecent > len(candidates) {
		return &storeerrors.RangeError{LayerName: layerName, Message: "nth_most_recent exceeds available tombstones"}
	}
	target := candidates[nthMostRecent-1]

	if m.findLive(collection, index, target.versionTimestamp) != nil {
		return &storeerrors.AlreadyExistsError{LayerName: layerName, Collection: collection, Identity: identityString(index, target.versionTimestamp)}
	}

	target.doc[FieldTimeOfRemoval] = nil
	target.doc[FieldTimeOfSave] = m.clock.Now()
	return nil
}

func (m *MemoryDAO) Purge(collection string, timeThreshold *time.Time) (int, error) {
	kept := m.rows(collection)[:0]
	count := 0
	for _, r := range m.rows(collection) {
		tor, removed := r.doc.TimeOfRemoval()
		if removed && (timeThreshold == nil || tor.Before(*timeThreshold)) {
			count++
			continue
		}
		kept = append(kept, r)
	}
	m.collections[collection] = kept
	return count, nil
}

func identityString(index map[string]any, versionTimestamp int64) string {
	keys := make([]string, 0, len(index))
	for k := range index {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s := "{"
	for i, k := range keys {
		if i > 0 {
			s += ","
		}
		s += k + "=" + fmt.Sprint(index[k])
	}
	s += "}"
	return fmt.Sprintf("%s@%d", s, versionTimestamp)
}
