// SPDX-License-Identifier: Apache-2.0

package cmdutil

import (
	"context"
	"path/filepath"

	"github.com/signalstore/signalstore-go/internal/config"
	"github.com/signalstore/signalstore-go/internal/objectid"
	"github.com/signalstore/signalstore-go/pkg/store/docstore"
	"github.com/signalstore/signalstore-go/pkg/store/filestore"
)

// DocumentStoreClient adapts config.Config into uow.DocumentStoreClient: a
// Postgres-backed DAO per project (one schema per project name) when
// cfg.DocumentStoreURL is set, otherwise an in-process MemoryDAO per
// project, grounded on pgroll's cmd/root.go building one state.State per
// invocation from the resolved Postgres URL.
type DocumentStoreClient struct {
	cfg   config.Config
	clock objectid.Clock
}

func NewDocumentStoreClient(cfg config.Config, clock objectid.Clock) *DocumentStoreClient {
	return &DocumentStoreClient{cfg: cfg, clock: clock}
}

func (c *DocumentStoreClient) DAO(projectName string) (docstore.DAO, error) {
	if c.cfg.DocumentStoreURL == "" {
		return docstore.NewMemoryDAO(c.clock), nil
	}
	return docstore.NewPostgresDAO(context.Background(), c.cfg.DocumentStoreURL, "signalstore_"+projectName)
}

// FilesystemRoot adapts config.Config into uow.FilesystemRoot: every
// project gets its own subdirectory under cfg.FilesystemRoot.
type FilesystemRoot struct {
	root string
}

func NewFilesystemRoot(cfg config.Config) *FilesystemRoot {
	return &FilesystemRoot{root: cfg.FilesystemRoot}
}

func (r *FilesystemRoot) Subdirectory(projectName string) (filestore.Filesystem, error) {
	fs := filestore.NewLocalFilesystem(filepath.Join(r.root, projectName))
	if err := fs.MkdirAll(""); err != nil {
		return nil, err
	}
	return fs, nil
}
