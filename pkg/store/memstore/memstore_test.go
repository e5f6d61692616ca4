// SPDX-License-Identifier: Apache-2.0

package memstore_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalstore/signalstore-go/pkg/store/memstore"
)

func TestDAOAddGetExists(t *testing.T) {
	dao := memstore.NewDAO()
	tag := memstore.NewTag()

	require.NoError(t, dao.Add(tag, "sensor-1", 42))
	assert.True(t, dao.Exists(tag))

	obj, ok := dao.Get(tag)
	require.True(t, ok)
	assert.Equal(t, 42, obj)
}

func TestDAORejectsDuplicateTagAndIdentity(t *testing.T) {
	dao := memstore.NewDAO()

	require.NoError(t, dao.Add("tag-a", "sensor-1", 1))
	assert.Error(t, dao.Add("tag-a", "sensor-2", 2), "duplicate tag must be rejected")
	assert.Error(t, dao.Add("tag-b", "sensor-1", 3), "duplicate identity must be rejected")
}

func TestDAOMarkForDeletionPreservesObjectIdentity(t *testing.T) {
	dao := memstore.NewDAO()
	obj := &struct{ Value int }{Value: 7}

	require.NoError(t, dao.Add("tag-a", "sensor-1", obj))
	require.NoError(t, dao.MarkForDeletion("tag-a", time.Now()))

	assert.False(t, dao.Exists("tag-a"))

	require.NoError(t, dao.Restore("tag-a"))
	restored, ok := dao.Get("tag-a")
	require.True(t, ok)
	assert.Same(t, obj, restored, "restore must hand back the exact same object reference")
}

func TestDAOPurgeRespectsThreshold(t *testing.T) {
	dao := memstore.NewDAO()
	require.NoError(t, dao.Add("tag-a", "sensor-1", 1))

	now := time.Now()
	require.NoError(t, dao.MarkForDeletion("tag-a", now))

	past := now.Add(-time.Hour)
	assert.Equal(t, 0, dao.Purge(&past))

	future := now.Add(time.Hour)
	assert.Equal(t, 1, dao.Purge(&future))
}
