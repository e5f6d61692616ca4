// SPDX-License-Identifier: Apache-2.0

package repository_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalstore/signalstore-go/internal/objectid"
	"github.com/signalstore/signalstore-go/pkg/repository"
	"github.com/signalstore/signalstore-go/pkg/store/memstore"
)

func newInMemoryRepository() *repository.InMemoryRepository {
	clock := objectid.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Microsecond)
	return repository.NewInMemoryRepository(memstore.NewDAO(), clock)
}

func TestInMemoryRepositoryAddGetRemove(t *testing.T) {
	repo := newInMemoryRepository()

	require.NoError(t, repo.Add("tag-a", "sensor-1", 99))
	obj, ok := repo.Get("tag-a")
	require.True(t, ok)
	assert.Equal(t, 99, obj)

	require.NoError(t, repo.Remove("tag-a"))
	_, ok = repo.Get("tag-a")
	assert.False(t, ok)
}

func TestInMemoryRepositoryUndoReversesAdd(t *testing.T) {
	repo := newInMemoryRepository()

	require.NoError(t, repo.Add("tag-a", "sensor-1", 1))
	require.NoError(t, repo.Undo())

	_, ok := repo.Get("tag-a")
	assert.False(t, ok, "undoing an add should make the tag absent again")
}

func TestInMemoryRepositoryUndoAllReversesEveryPendingAdd(t *testing.T) {
	repo := newInMemoryRepository()

	require.NoError(t, repo.Add("tag-a", "sensor-1", 1))
	require.NoError(t, repo.Add("tag-b", "sensor-2", 2))

	require.NoError(t, repo.UndoAll())

	_, okA := repo.Get("tag-a")
	_, okB := repo.Get("tag-b")
	assert.False(t, okA)
	assert.False(t, okB)
}
