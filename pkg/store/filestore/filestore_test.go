// SPDX-License-Identifier: Apache-2.0

package filestore_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalstore/signalstore-go/pkg/dataobject"
	"github.com/signalstore/signalstore-go/pkg/store/filestore"
)

func newAdapter(t *testing.T) (*filestore.DAO, dataobject.Adapter) {
	t.Helper()
	fs := filestore.NewLocalFilesystem(t.TempDir())
	adapter := dataobject.NewRawBinaryAdapter()
	adapter.SetFilesystem(fs)
	return filestore.NewDAO(fs), adapter
}

func object(schemaRef, dataName string, versionTimestamp int64, body string) *dataobject.DataObject {
	return &dataobject.DataObject{
		Kind: dataobject.KindRawBinary,
		Attrs: map[string]any{
			"schema_ref":        schemaRef,
			"data_name":         dataName,
			"version_timestamp": versionTimestamp,
		},
		Body: []byte(body),
	}
}

func TestFilestoreAddGetRoundtrip(t *testing.T) {
	dao, adapter := newAdapter(t)

	require.NoError(t, dao.Add(object("temperature", "reading-1", 0, "hello"), adapter))

	got, err := dao.Get("temperature", "reading-1", 0, 1, adapter)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hello", string(got.Body))
}

func TestFilestoreGetMissingReturnsNilNotError(t *testing.T) {
	dao, adapter := newAdapter(t)

	got, err := dao.Get("temperature", "does-not-exist", 0, 1, adapter)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFilestoreAddDuplicateFails(t *testing.T) {
	dao, adapter := newAdapter(t)

	require.NoError(t, dao.Add(object("temperature", "reading-1", 0, "hello"), adapter))
	err := dao.Add(object("temperature", "reading-1", 0, "again"), adapter)
	assert.Error(t, err)
}

func TestFilestoreMarkForDeletionAndRestore(t *testing.T) {
	dao, adapter := newAdapter(t)

	require.NoError(t, dao.Add(object("temperature", "reading-1", 0, "hello"), adapter))
	require.NoError(t, dao.MarkForDeletion("temperature", "reading-1", 0, time.Now().UTC(), adapter))

	got, err := dao.Get("temperature", "reading-1", 0, 1, adapter)
	require.NoError(t, err)
	assert.Nil(t, got, "tombstoned file should no longer be visible to Get")

	require.NoError(t, dao.Restore("temperature", "reading-1", 1, adapter))

	got, err = dao.Get("temperature", "reading-1", 0, 1, adapter)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hello", string(got.Body))
}

func TestFilestorePurgeRemovesOnlyTombstonesPastThreshold(t *testing.T) {
	dao, adapter := newAdapter(t)

	require.NoError(t, dao.Add(object("temperature", "reading-1", 0, "hello"), adapter))
	now := time.Now().UTC()
	require.NoError(t, dao.MarkForDeletion("temperature", "reading-1", 0, now, adapter))

	past := now.Add(-time.Hour)
	count, err := dao.Purge(&past, adapter)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	future := now.Add(time.Hour)
	count, err = dao.Purge(&future, adapter)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
