// SPDX-License-Identifier: Apache-2.0

// Package uow implements components H and I: the unit of work, the scoped
// transaction boundary grouping mutations across the domain-model registry,
// the data repository and the in-memory repository with history-based
// rollback, and the provider that hands out one UoW per project. Grounded
// on pgroll's pkg/roll.Roll construction pattern (a long-lived set of
// per-project handles assembled once, used for the lifetime of a command)
// generalized into an explicit scope-enter/exit contract.
package uow

import (
	"time"

	"github.com/signalstore/signalstore-go/pkg/dataobject"
	"github.com/signalstore/signalstore-go/pkg/domainmodel"
	"github.com/signalstore/signalstore-go/pkg/repository"
	"github.com/signalstore/signalstore-go/pkg/storeerrors"
)

const layerName = "uow"

// Snapshot is the combined, per-repository history returned by Commit.
type Snapshot struct {
	InMemory    []storeerrors.HistoryEntry
	Data        []storeerrors.HistoryEntry
	DomainModel []storeerrors.HistoryEntry
}

// UnitOfWork is a scoped resource wrapping the three repositories. Per
// §4.H, repository accessors refuse to hand out a handle outside the
// entered scope.
type UnitOfWork struct {
	domainModels *domainmodel.Registry
	data         *repository.DataRepository
	inMemory     *repository.InMemoryRepository
	adapter      dataobject.Adapter

	inContext bool
}

func newUnitOfWork(domainModels *domainmodel.Registry, data *repository.DataRepository, inMemory *repository.InMemoryRepository, adapter dataobject.Adapter) *UnitOfWork {
	return &UnitOfWork{domainModels: domainModels, data: data, inMemory: inMemory, adapter: adapter}
}

// Enter marks the UoW as in scope and clears all three operation histories,
// so that any mutation left over from a prior use of the same UoW instance
// cannot leak into this scope.
func (u *UnitOfWork) Enter() *UnitOfWork {
	u.domainModels.Commit()
	u.data.Commit()
	u.inMemory.Commit()
	u.inContext = true
	return u
}

// Exit implements the "close a scope" half of the contract: if commit was
// not already called, it rolls back regardless of whether the caller is
// exiting because of an error. Intended to be deferred immediately after
// Enter:
//
//	u, err := provider.Get("demo")
//	if err != nil {
//		return err
//	}
//	u.Enter()
//	defer u.Exit()
func (u *UnitOfWork) Exit() error {
	if !u.inContext {
		return nil
	}
	defer func() { u.inContext = false }()
	return u.Rollback()
}

// DomainModels returns the domain-model registry, or a
// *storeerrors.ConfigError if the UoW is not currently entered (storeerrors
// has no separate error kind for use outside a scope).
func (u *UnitOfWork) DomainModels() (*domainmodel.Registry, error) {
	if !u.inContext {
		return nil, &storeerrors.ConfigError{LayerName: layerName, Message: "domain model registry accessed outside an active unit-of-work scope"}
	}
	return u.domainModels, nil
}

// Data returns the data repository, or a *storeerrors.ConfigError if the
// UoW is not currently entered.
func (u *UnitOfWork) Data() (*repository.DataRepository, error) {
	if !u.inContext {
		return nil, &storeerrors.ConfigError{LayerName: layerName, Message: "data repository accessed outside an active unit-of-work scope"}
	}
	return u.data, nil
}

// InMemory returns the in-memory repository, or a *storeerrors.ConfigError
// if the UoW is not currently entered.
func (u *UnitOfWork) InMemory() (*repository.InMemoryRepository, error) {
	if !u.inContext {
		return nil, &storeerrors.ConfigError{LayerName: layerName, Message: "in-memory repository accessed outside an active unit-of-work scope"}
	}
	return u.inMemory, nil
}

// Adapter returns the project's default file-format adapter, the one
// Data().Add/Remove/Find use when the caller doesn't need to pick a
// different one explicitly.
func (u *UnitOfWork) Adapter() dataobject.Adapter {
	return u.adapter
}

// Commit snapshots and clears every repository's operation history,
// returning the snapshot to the caller.
func (u *UnitOfWork) Commit() Snapshot {
	return Snapshot{
		InMemory:    u.inMemory.Commit(),
		Data:        u.data.Commit(),
		DomainModel: u.domainModels.Commit(),
	}
}

// Rollback inverts every pending mutation in the fixed order specified by
// §4.H: in-memory, then data, then domain-models, so that dangling
// references between them are resolved safely (e.g. the data repository's
// rollback can still resolve schema_ref while the domain-model registry's
// own entries are still live).
func (u *UnitOfWork) Rollback() error {
	if err := u.inMemory.UndoAll(); err != nil {
		return err
	}
	if err := u.data.UndoAll(u.adapter); err != nil {
		return err
	}
	if err := u.domainModels.UndoAll(); err != nil {
		return err
	}
	return nil
}

// Purge fans out to all three repositories, returning the combined count of
// hard-deleted rows/files/objects.
func (u *UnitOfWork) Purge(threshold *time.Time) (int, error) {
	total := 0
	total += u.inMemory.Purge(threshold)

	n, err := u.data.Purge(threshold, u.adapter)
	if err != nil {
		return total, err
	}
	total += n

	dn, err := u.domainModels.Purge(threshold)
	if err != nil {
		return total, err
	}
	total += dn

	return total, nil
}
