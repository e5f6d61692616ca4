// SPDX-License-Identifier: Apache-2.0

// Package memstore implements component C, the in-memory object DAO: CRUD
// on live process-local handles keyed by a string tag, with soft-delete.
// Per §4.C, mark_for_deletion moves the binding between the live and
// removed maps without cloning the underlying object, so external code
// already holding a reference to it is unaffected.
package memstore

import (
	"time"

	"github.com/google/uuid"

	"github.com/signalstore/signalstore-go/pkg/storeerrors"
)

const layerName = "memstore"

// NewTag generates an opaque unique tag for a caller that wants the DAO to
// assign one rather than supplying its own, the same role google/uuid
// plays for pgroll's migration-name/advisory-lock id generation.
func NewTag() string {
	return uuid.NewString()
}

// Entry pairs a live object with the identity used to detect conflicting
// re-adds (§4.C "rejects if either the tag or the object's identity is
// already registered").
type Entry struct {
	Tag      string
	Identity string
	Object   any
}

type removedEntry struct {
	entry         Entry
	timeOfRemoval time.Time
}

// DAO is a process-local map tag -> live object plus a map tag -> removed
// entry.
type DAO struct {
	live    map[string]Entry
	removed map[string]removedEntry
}

func NewDAO() *DAO {
	return &DAO{
		live:    make(map[string]Entry),
		removed: make(map[string]removedEntry),
	}
}

// Get returns the live object registered under tag, or nil if absent.
func (d *DAO) Get(tag string) (any, bool) {
	e, ok := d.live[tag]
	if !ok {
		return nil, false
	}
	return e.Object, true
}

// Exists reports whether tag currently names a live object.
func (d *DAO) Exists(tag string) bool {
	_, ok := d.live[tag]
	return ok
}

// Find returns every live entry, optionally filtered by a predicate.
// Normalizing the ambiguous dual contract called out in §9 design note 4
// ("In-memory DAO's find interprets the first positional dict as either the
// whole collection or as (objects, tags, removed)"), this implementation
// has exactly one contract: Find always operates over the live map and an
// optional predicate.
func (d *DAO) Find(predicate func(Entry) bool) []Entry {
	var out []Entry
	for _, e := range d.live {
		if predicate == nil || predicate(e) {
			out = append(out, e)
		}
	}
	return out
}

// Add registers tag -> obj, rejecting if either the tag or identity is
// already registered as live.
func (d *DAO) Add(tag, identity string, obj any) error {
	if _, ok := d.live[tag]; ok {
		return &storeerrors.AlreadyExistsError{LayerName: layerName, Collection: "objects", Identity: tag}
	}
	for _, e := range d.live {
		if e.Identity == identity {
			return &storeerrors.AlreadyExistsError{LayerName: layerName, Collection: "objects", Identity: identity}
		}
	}

	d.live[tag] = Entry{Tag: tag, Identity: identity, Object: obj}
	return nil
}

// MarkForDeletion moves tag from the live map to the removed map, preserving
// object identity: the same Entry.Object reference is carried over, never
// copied, so any external holder of that reference is unaffected.
func (d *DAO) MarkForDeletion(tag string, timestamp time.Time) error {
	e, ok := d.live[tag]
	if !ok {
		return &storeerrors.NotFoundError{LayerName: layerName, Collection: "objects", Identity: tag}
	}
	delete(d.live, tag)
	d.removed[tag] = removedEntry{entry: e, timeOfRemoval: timestamp}
	return nil
}

// Restore is the inverse of MarkForDeletion.
func (d *DAO) Restore(tag string) error {
	r, ok := d.removed[tag]
	if !ok {
		return &storeerrors.NotFoundError{LayerName: layerName, Collection: "objects", Identity: tag}
	}
	if _, live := d.live[tag]; live {
		return &storeerrors.AlreadyExistsError{LayerName: layerName, Collection: "objects", Identity: tag}
	}
	delete(d.removed, tag)
	d.live[tag] = r.entry
	return nil
}

// Purge drops removed objects whose removal timestamp precedes threshold
// (or all removed objects, if threshold is nil), returning the count
// dropped.
func (d *DAO) Purge(threshold *time.Time) int {
	count := 0
	for tag, r := range d.removed {
		if threshold == nil || r.timeOfRemoval.Before(*threshold) {
			delete(d.removed, tag)
			count++
		}
	}
	return count
}

// ListMarkedForDeletion returns the tags currently in the removed map whose
// removal timestamp precedes threshold (or all, if threshold is nil).
func (d *DAO) ListMarkedForDeletion(threshold *time.Time) []string {
	var out []string
	for tag, r := range d.removed {
		if threshold == nil || r.timeOfRemoval.Before(*threshold) {
			out = append(out, tag)
		}
	}
	return out
}
