// SPDX-License-Identifier: Apache-2.0

package docstore_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalstore/signalstore-go/internal/objectid"
	"github.com/signalstore/signalstore-go/pkg/store/docstore"
	"github.com/signalstore/signalstore-go/pkg/testutils"
)

func TestPostgresDAOAddGetExists(t *testing.T) {
	dao := testutils.WithPostgresDocStore(t, "signalstore_test_add_get_exists")
	index := map[string]any{"schema_ref": "temperature", "data_name": "reading-1"}
	doc := docstore.Document{"value": 21.5}

	require.NoError(t, dao.Add("records", index, doc, time.Now().UTC(), false))

	exists, err := dao.Exists("records", index, objectid.UnversionedTimestamp)
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := dao.Get("records", index, objectid.UnversionedTimestamp)
	require.NoError(t, err)
	assert.Equal(t, 21.5, got["value"])
}

func TestPostgresDAOAddDuplicateIsAlreadyExists(t *testing.T) {
	dao := testutils.WithPostgresDocStore(t, "signalstore_test_add_duplicate")
	index := map[string]any{"schema_ref": "temperature", "data_name": "reading-1"}
	doc := docstore.Document{"value": 1}

	require.NoError(t, dao.Add("records", index, doc, time.Now().UTC(), false))
	err := dao.Add("records", index, doc, time.Now().UTC(), false)
	assert.Error(t, err)
}

func TestPostgresDAOMarkForDeletionAndRestore(t *testing.T) {
	dao := testutils.WithPostgresDocStore(t, "signalstore_test_mark_restore")
	index := map[string]any{"schema_ref": "temperature", "data_name": "reading-1"}
	doc := docstore.Document{"value": 1}

	now := time.Now().UTC()
	require.NoError(t, dao.Add("records", index, doc, now, false))
	require.NoError(t, dao.MarkForDeletion("records", index, objectid.UnversionedTimestamp, now.Add(time.Second)))

	exists, err := dao.Exists("records", index, objectid.UnversionedTimestamp)
	require.NoError(t, err)
	assert.False(t, exists, "tombstoned record should no longer be live")

	tombstones, err := dao.ListMarkedForDeletion("records", nil)
	require.NoError(t, err)
	require.Len(t, tombstones, 1)

	require.NoError(t, dao.Restore("records", index, 1))

	exists, err = dao.Exists("records", index, objectid.UnversionedTimestamp)
	require.NoError(t, err)
	assert.True(t, exists, "restore should bring the record back to life")
}

func TestPostgresDAOPurgeOnlyRemovesPastThreshold(t *testing.T) {
	dao := testutils.WithPostgresDocStore(t, "signalstore_test_purge")
	index := map[string]any{"schema_ref": "temperature", "data_name": "reading-1"}
	doc := docstore.Document{"value": 1}

	now := time.Now().UTC()
	require.NoError(t, dao.Add("records", index, doc, now, false))
	require.NoError(t, dao.MarkForDeletion("records", index, objectid.UnversionedTimestamp, now))

	threshold := now.Add(-time.Hour)
	count, err := dao.Purge("records", &threshold)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "tombstone newer than the threshold must survive the purge")

	future := now.Add(time.Hour)
	count, err = dao.Purge("records", &future)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPostgresDAOFindAppliesEqualityFilter(t *testing.T) {
	dao := testutils.WithPostgresDocStore(t, "signalstore_test_find")
	now := time.Now().UTC()

	require.NoError(t, dao.Add("records", map[string]any{"schema_ref": "temperature", "data_name": "a"}, docstore.Document{"schema_ref": "temperature", "site": "north"}, now, false))
	require.NoError(t, dao.Add("records", map[string]any{"schema_ref": "temperature", "data_name": "b"}, docstore.Document{"schema_ref": "temperature", "site": "south"}, now, false))

	docs, err := dao.Find("records", docstore.Filter{"site": "north"}, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "north", docs[0]["site"])
}
