// SPDX-License-Identifier: Apache-2.0

package repository_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalstore/signalstore-go/internal/objectid"
	"github.com/signalstore/signalstore-go/pkg/dataobject"
	"github.com/signalstore/signalstore-go/pkg/domainmodel"
	"github.com/signalstore/signalstore-go/pkg/repository"
	"github.com/signalstore/signalstore-go/pkg/store/docstore"
	"github.com/signalstore/signalstore-go/pkg/store/filestore"
)

func newDataRepository(t *testing.T) (*repository.DataRepository, dataobject.Adapter) {
	t.Helper()

	clock := objectid.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Microsecond)
	docs := docstore.NewMemoryDAO(clock)

	registry, err := domainmodel.New(docs, clock)
	require.NoError(t, err)
	require.NoError(t, registry.SeedBuiltins())
	require.NoError(t, registry.Add(domainmodel.DomainModel{
		SchemaName:        "temperature",
		SchemaTitle:       "Temperature",
		SchemaDescription: "A temperature reading.",
		SchemaType:        domainmodel.SchemaTypePropertyModel,
		JSONSchema:        map[string]any{"type": "object"},
	}))
	registry.Commit()

	fs := filestore.NewLocalFilesystem(t.TempDir())
	adapters := dataobject.NewRegistry(fs)
	adapter := dataobject.NewRawBinaryAdapter()
	adapter.SetFilesystem(fs)

	repo := repository.New(docs, filestore.NewDAO(fs), registry, adapters, clock, false)
	return repo, adapter
}

func TestDataRepositoryAddGetFind(t *testing.T) {
	repo, adapter := newDataRepository(t)

	record := repository.Record{"schema_ref": "temperature", "data_name": "reading-1"}
	require.NoError(t, repo.Add(record, nil, adapter))

	found, err := repo.Find(docstore.Filter{"data_name": "reading-1"}, nil, false, adapter)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "temperature", found[0].Record["schema_ref"])
}

func TestDataRepositoryAddRejectsUnknownSchema(t *testing.T) {
	repo, adapter := newDataRepository(t)

	record := repository.Record{"schema_ref": "does-not-exist", "data_name": "reading-1"}
	err := repo.Add(record, nil, adapter)
	assert.Error(t, err)
}

func TestDataRepositoryRemoveThenUndoRestores(t *testing.T) {
	repo, adapter := newDataRepository(t)

	record := repository.Record{"schema_ref": "temperature", "data_name": "reading-1"}
	require.NoError(t, repo.Add(record, nil, adapter))
	repo.Commit()

	require.NoError(t, repo.Remove("temperature", "reading-1", 0, adapter))

	found, err := repo.Find(docstore.Filter{"data_name": "reading-1"}, nil, false, adapter)
	require.NoError(t, err)
	assert.Empty(t, found, "removed record should not appear in live Find results")

	require.NoError(t, repo.Undo(adapter))

	found, err = repo.Find(docstore.Filter{"data_name": "reading-1"}, nil, false, adapter)
	require.NoError(t, err)
	assert.Len(t, found, 1, "undoing a remove should restore the record")
}

func TestDataRepositoryUndoAllReversesPendingAdd(t *testing.T) {
	repo, adapter := newDataRepository(t)

	record := repository.Record{"schema_ref": "temperature", "data_name": "reading-1"}
	require.NoError(t, repo.Add(record, nil, adapter))

	require.NoError(t, repo.UndoAll(adapter))

	found, err := repo.Find(docstore.Filter{"data_name": "reading-1"}, nil, false, adapter)
	require.NoError(t, err)
	assert.Empty(t, found, "UndoAll should reverse an uncommitted add")
}
