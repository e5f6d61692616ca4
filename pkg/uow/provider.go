// SPDX-License-Identifier: Apache-2.0

package uow

import (
	"sync"

	"github.com/signalstore/signalstore-go/internal/objectid"
	"github.com/signalstore/signalstore-go/pkg/dataobject"
	"github.com/signalstore/signalstore-go/pkg/domainmodel"
	"github.com/signalstore/signalstore-go/pkg/repository"
	"github.com/signalstore/signalstore-go/pkg/store/docstore"
	"github.com/signalstore/signalstore-go/pkg/store/filestore"
	"github.com/signalstore/signalstore-go/pkg/store/memstore"
	"github.com/signalstore/signalstore-go/pkg/storeerrors"
)

const providerLayerName = "uowprovider"

// DocumentStoreClient opens a per-project document-store DAO. Concrete
// implementations live outside the core (in-memory for tests, Postgres/
// JSONB for production), per §1's "the concrete document-database and
// filesystem implementations (only their contracts are specified)".
type DocumentStoreClient interface {
	DAO(projectName string) (docstore.DAO, error)
}

// FilesystemRoot opens a per-project subdirectory filesystem.
type FilesystemRoot interface {
	Subdirectory(projectName string) (filestore.Filesystem, error)
}

// Provider is component I: given a document-store client, a filesystem
// root and a default file-format adapter selection, it returns a
// UnitOfWork per project name, creating and caching one on first request.
// Per §4.I, each project gets its own document-store database, filesystem
// subdirectory and in-memory submap. The in-memory submaps are kept in a
// map the Provider creates itself; callers do not supply one.
//
// The adapter registry cannot be shared across projects: each adapter
// binds to the filesystem handle it writes through (SetFilesystem), and
// every project gets its own subdirectory filesystem, so Provider builds a
// fresh dataobject.Registry per project instead of reusing one passed in.
type Provider struct {
	docs       DocumentStoreClient
	fsRoot     FilesystemRoot
	clock      objectid.Clock
	defaultExt dataobject.DefaultFileType

	versioningOn bool

	mu       sync.Mutex
	perProj  map[string]*UnitOfWork
	inMemMap map[string]*memstore.DAO
}

func NewProvider(docs DocumentStoreClient, fsRoot FilesystemRoot, clock objectid.Clock, versioningOn bool, defaultExt dataobject.DefaultFileType) *Provider {
	return &Provider{
		docs:         docs,
		fsRoot:       fsRoot,
		clock:        clock,
		versioningOn: versioningOn,
		defaultExt:   defaultExt,
		perProj:      make(map[string]*UnitOfWork),
		inMemMap:     make(map[string]*memstore.DAO),
	}
}

// Get returns the UnitOfWork for projectName, constructing it (and its
// backing per-project document-store database, filesystem subdirectory,
// and in-memory submap) on first request.
func (p *Provider) Get(projectName string) (*UnitOfWork, error) {
	if projectName == "" {
		return nil, &storeerrors.ArgumentValueError{LayerName: providerLayerName, Name: "project_name", Message: "must be a non-empty string"}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if u, ok := p.perProj[projectName]; ok {
		return u, nil
	}

	docsDAO, err := p.docs.DAO(projectName)
	if err != nil {
		return nil, &storeerrors.UncaughtError{LayerName: providerLayerName, Op: "open_document_store", Err: err}
	}
	fs, err := p.fsRoot.Subdirectory(projectName)
	if err != nil {
		return nil, &storeerrors.UncaughtError{LayerName: providerLayerName, Op: "open_filesystem", Err: err}
	}
	memDAO := memstore.NewDAO()
	p.inMemMap[projectName] = memDAO

	// The domain-model registry and the data repository share one
	// document-store DAO: both address it by collection name
	// ("domain_models" vs "records"), so one connection per project
	// suffices.
	registry, err := domainmodel.New(docsDAO, p.clock)
	if err != nil {
		return nil, err
	}
	if err := registry.SeedBuiltins(); err != nil {
		return nil, err
	}

	adapters := dataobject.NewRegistry(fs)
	fileDAO := filestore.NewDAO(fs)
	dataRepo := repository.New(docsDAO, fileDAO, registry, adapters, p.clock, p.versioningOn)
	inMemRepo := repository.NewInMemoryRepository(memDAO, p.clock)

	adapter, err := adapters.Get(p.defaultExt)
	if err != nil {
		return nil, &storeerrors.ConfigError{LayerName: providerLayerName, Message: err.Error()}
	}

	u := newUnitOfWork(registry, dataRepo, inMemRepo, adapter)
	p.perProj[projectName] = u
	return u, nil
}
