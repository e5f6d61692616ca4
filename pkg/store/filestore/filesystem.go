// SPDX-License-Identifier: Apache-2.0

// Package filestore implements component B, the filesystem DAO: CRUD on
// opaque data files via a pluggable file-format adapter, with soft-delete by
// rename, restore, and purge.
package filestore

import (
	"io"
	"os"
	"path/filepath"

	"github.com/signalstore/signalstore-go/pkg/dataobject"
)

// Filesystem is the capability set the filestore DAO needs beyond what an
// adapter needs (dataobject.Filesystem): listing, renaming, and removing
// paths. LocalFilesystem implements it over the OS filesystem; tests use a
// LocalFilesystem rooted in a temporary directory.
type Filesystem interface {
	dataobject.Filesystem

	// Glob returns paths under root matching shell pattern pattern (as
	// path/filepath.Glob would).
	Glob(pattern string) ([]string, error)

	// Rename atomically moves oldPath to newPath, the filesystem DAO's sole
	// atomicity primitive for soft-delete and restore. It must fail if
	// newPath already exists.
	Rename(oldPath, newPath string) error

	// Exists reports whether path names an existing file or directory.
	Exists(path string) (bool, error)

	// RemoveAll deletes path, recursively if it is a directory (used to
	// purge chunked-array-directory files).
	RemoveAll(path string) error
}

// LocalFilesystem implements Filesystem over the local OS filesystem rooted
// at Root.
type LocalFilesystem struct {
	Root string
}

func NewLocalFilesystem(root string) *LocalFilesystem {
	return &LocalFilesystem{Root: root}
}

func (fs *LocalFilesystem) full(path string) string {
	return filepath.Join(fs.Root, path)
}

func (fs *LocalFilesystem) Open(path string) (io.ReadCloser, error) {
	return os.Open(fs.full(path))
}

func (fs *LocalFilesystem) Create(path string) (io.WriteCloser, error) {
	full := fs.full(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(full, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
}

func (fs *LocalFilesystem) MkdirAll(path string) error {
	return os.MkdirAll(fs.full(path), 0o755)
}

func (fs *LocalFilesystem) Glob(pattern string) ([]string, error) {
	matches, err := filepath.Glob(fs.full(pattern))
	if err != nil {
		return nil, err
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		rel, err := filepath.Rel(fs.Root, m)
		if err != nil {
			return nil, err
		}
		out[i] = rel
	}
	return out, nil
}

func (fs *LocalFilesystem) Rename(oldPath, newPath string) error {
	newFull := fs.full(newPath)
	if _, err := os.Stat(newFull); err == nil {
		return os.ErrExist
	}
	if err := os.MkdirAll(filepath.Dir(newFull), 0o755); err != nil {
		return err
	}
	return os.Rename(fs.full(oldPath), newFull)
}

func (fs *LocalFilesystem) Exists(path string) (bool, error) {
	_, err := os.Stat(fs.full(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (fs *LocalFilesystem) RemoveAll(path string) error {
	return os.RemoveAll(fs.full(path))
}
