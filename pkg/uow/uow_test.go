// SPDX-License-Identifier: Apache-2.0

package uow_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalstore/signalstore-go/internal/objectid"
	"github.com/signalstore/signalstore-go/pkg/dataobject"
	"github.com/signalstore/signalstore-go/pkg/domainmodel"
	"github.com/signalstore/signalstore-go/pkg/store/docstore"
	"github.com/signalstore/signalstore-go/pkg/store/filestore"
	"github.com/signalstore/signalstore-go/pkg/uow"
)

type memoryDocStoreClient struct {
	clock objectid.Clock
}

func (c *memoryDocStoreClient) DAO(projectName string) (docstore.DAO, error) {
	return docstore.NewMemoryDAO(c.clock), nil
}

type tempFilesystemRoot struct {
	t *testing.T
}

func (r *tempFilesystemRoot) Subdirectory(projectName string) (filestore.Filesystem, error) {
	return filestore.NewLocalFilesystem(r.t.TempDir()), nil
}

func newProvider(t *testing.T) *uow.Provider {
	t.Helper()
	clock := objectid.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Microsecond)
	return uow.NewProvider(&memoryDocStoreClient{clock: clock}, &tempFilesystemRoot{t: t}, clock, false, dataobject.FileTypeSelfDescribingArray)
}

func TestProviderGetCachesPerProject(t *testing.T) {
	p := newProvider(t)

	u1, err := p.Get("demo")
	require.NoError(t, err)
	u2, err := p.Get("demo")
	require.NoError(t, err)
	assert.Same(t, u1, u2, "repeated Get for the same project must return the same UnitOfWork")

	other, err := p.Get("other")
	require.NoError(t, err)
	assert.NotSame(t, u1, other)
}

func TestProviderGetRejectsEmptyProjectName(t *testing.T) {
	p := newProvider(t)
	_, err := p.Get("")
	assert.Error(t, err)
}

func TestUnitOfWorkAccessorsRequireEnter(t *testing.T) {
	p := newProvider(t)
	u, err := p.Get("demo")
	require.NoError(t, err)

	_, err = u.Data()
	assert.Error(t, err, "accessing Data outside Enter()/Exit() scope must fail")

	u.Enter()
	defer u.Exit()

	_, err = u.Data()
	assert.NoError(t, err)
}

func TestUnitOfWorkRollbackUndoesUncommittedSchema(t *testing.T) {
	p := newProvider(t)
	u, err := p.Get("demo")
	require.NoError(t, err)

	u.Enter()

	models, err := u.DomainModels()
	require.NoError(t, err)

	exists, err := models.Exists("temperature")
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, models.Add(domainModel("temperature")))

	require.NoError(t, u.Rollback())

	u.Enter()
	defer u.Exit()
	models, err = u.DomainModels()
	require.NoError(t, err)
	exists, err = models.Exists("temperature")
	require.NoError(t, err)
	assert.False(t, exists, "rollback must undo the uncommitted Add")
}

func TestUnitOfWorkCommitClearsHistory(t *testing.T) {
	p := newProvider(t)
	u, err := p.Get("demo")
	require.NoError(t, err)
	u.Enter()
	defer u.Exit()

	models, err := u.DomainModels()
	require.NoError(t, err)
	require.NoError(t, models.Add(domainModel("temperature")))

	snapshot := u.Commit()
	assert.NotEmpty(t, snapshot.DomainModel)
	require.NoError(t, u.Rollback())

	exists, err := models.Exists("temperature")
	require.NoError(t, err)
	assert.True(t, exists, "a committed add must survive a later rollback attempt")
}

func domainModel(name string) domainmodel.DomainModel {
	return domainmodel.DomainModel{
		SchemaName:        name,
		SchemaTitle:       "Temperature",
		SchemaDescription: "A temperature reading.",
		SchemaType:        domainmodel.SchemaTypePropertyModel,
		JSONSchema:        map[string]any{"type": "number"},
	}
}
