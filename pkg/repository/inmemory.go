// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"time"

	"github.com/signalstore/signalstore-go/internal/objectid"
	"github.com/signalstore/signalstore-go/pkg/store/memstore"
	"github.com/signalstore/signalstore-go/pkg/storeerrors"
)

const inMemoryCollectionName = "in_memory_objects"

// InMemoryRepository is component G: a thin wrapper around the in-memory
// object DAO (memstore) that records every add/remove in an operation
// history so the unit of work can roll it back like the other two
// repositories.
type InMemoryRepository struct {
	dao   *memstore.DAO
	clock objectid.Clock

	history *storeerrors.History
}

func NewInMemoryRepository(dao *memstore.DAO, clock objectid.Clock) *InMemoryRepository {
	return &InMemoryRepository{dao: dao, clock: clock, history: &storeerrors.History{}}
}

// Add registers obj under tag, keyed for uniqueness also by identity.
func (r *InMemoryRepository) Add(tag, identity string, obj any) error {
	if err := r.dao.Add(tag, identity, obj); err != nil {
		return err
	}
	r.history.Append(storeerrors.NewHistoryEntry(r.clock.Now(), inMemoryCollectionName, storeerrors.OperationAdded, map[string]any{"tag": tag, "identity": identity}, false, ""))
	return nil
}

// Get returns the live object registered under tag.
func (r *InMemoryRepository) Get(tag string) (any, bool) {
	return r.dao.Get(tag)
}

// Find returns every live entry matching predicate (nil matches all).
func (r *InMemoryRepository) Find(predicate func(memstore.Entry) bool) []memstore.Entry {
	return r.dao.Find(predicate)
}

// Remove marks tag for deletion.
func (r *InMemoryRepository) Remove(tag string) error {
	timestamp := r.clock.Now()
	if err := r.dao.MarkForDeletion(tag, timestamp); err != nil {
		return err
	}
	r.history.Append(storeerrors.NewHistoryEntry(timestamp, inMemoryCollectionName, storeerrors.OperationRemoved, map[string]any{"tag": tag}, false, ""))
	return nil
}

// Undo inverts the most recent history entry.
func (r *InMemoryRepository) Undo() error {
	entry, ok := r.history.Last()
	if !ok {
		return &storeerrors.RangeError{LayerName: "inmemoryrepository", Message: "no operations to undo"}
	}

	tag, _ := entry.Identity["tag"].(string)
	switch entry.Kind {
	case storeerrors.OperationAdded:
		if err := r.dao.MarkForDeletion(tag, entry.Timestamp); err != nil {
			return err
		}
	case storeerrors.OperationRemoved:
		if err := r.dao.Restore(tag); err != nil {
			return err
		}
	}

	r.history.PopLast()
	return nil
}

// UndoAll inverts every pending history entry, used by the unit of work's
// rollback path (applied first, per §4.H's fixed ordering: in-memory, data,
// domain-models).
func (r *InMemoryRepository) UndoAll() error {
	for r.history.Len() > 0 {
		if err := r.Undo(); err != nil {
			return err
		}
	}
	return nil
}

// Commit snapshots and clears the operation history.
func (r *InMemoryRepository) Commit() []storeerrors.HistoryEntry {
	snapshot := r.history.Snapshot()
	r.history.Clear()
	return snapshot
}

// Purge drops removed objects whose removal timestamp precedes threshold.
func (r *InMemoryRepository) Purge(threshold *time.Time) int {
	return r.dao.Purge(threshold)
}

// ListMarkedForDeletion returns tags currently tombstoned before threshold.
func (r *InMemoryRepository) ListMarkedForDeletion(threshold *time.Time) []string {
	return r.dao.ListMarkedForDeletion(threshold)
}
