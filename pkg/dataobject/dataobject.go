// SPDX-License-Identifier: Apache-2.0

// Package dataobject defines the polymorphic file-format adapter contract
// (component D of the store) and the concrete adapters the filesystem DAO
// ships with: a self-describing array container (grounded on the original
// XarrayDataArrayNetCDFAdapter), an uncompressed chunked array directory
// (grounded on XarrayDataArrayZarrAdapter), and a raw binary adapter used
// for mutable model checkpoints and in tests.
package dataobject

import "io"

// Identity is the (schema_ref, data_name, version_timestamp) tuple that
// names a data file.
type Identity struct {
	SchemaRef        string
	DataName         string
	VersionTimestamp int64
}

// Kind discriminates the concrete shape of a DataObject's body. It plays the
// role "type(obj)" plays in the original Python implementation's duck-typed
// dispatch: the filesystem DAO checks that a DataObject's Kind matches the
// adapter's declared DataObjectType before attempting to write it.
type Kind string

const (
	KindSelfDescribingArray Kind = "self_describing_array"
	KindChunkedArrayDir     Kind = "chunked_array_directory"
	KindRawBinary           Kind = "raw_binary"
)

// DataObject is the payload the filesystem DAO persists: an attribute
// dictionary (validated by the data repository to be a subset of the
// companion record) plus a body. It models the tagged union from §9 "Tagged
// variants for records vs. files" — callers that only want to add a record
// construct nothing of this shape; callers attaching a file construct a
// DataObject.
type DataObject struct {
	Kind  Kind
	Attrs map[string]any

	// Shape, when non-nil, is the dimension sizes of a self-describing or
	// chunked array; Dims names each axis. Body carries the flattened
	// little-endian float64 payload for array adapters, or the raw bytes
	// verbatim for the binary adapter.
	Shape []int
	Dims  []string
	Body  []byte
}

// Adapter is the capability set the filesystem DAO is polymorphic over, per
// §9 "Polymorphism of data objects": identify, read, and write one data
// object type on a filesystem.
type Adapter interface {
	// FileExtension is appended to the encoded file name; the empty string
	// for adapters (like the chunked-array-directory adapter) whose files
	// are directories rather than single files.
	FileExtension() string

	// FileFormat is a human-readable name for diagnostics.
	FileFormat() string

	// DataObjectType is the discriminant the filesystem DAO uses to verify
	// that the object passed to Add matches what this adapter can handle.
	DataObjectType() Kind

	// GetIDKwargs extracts (schema_ref, data_name, version_timestamp) from
	// the object's attribute dict.
	GetIDKwargs(obj *DataObject) (Identity, error)

	// ReadFile reads and decodes the object at path.
	ReadFile(path string) (*DataObject, error)

	// WriteFile encodes obj and writes it at path. Adapters must not
	// overwrite an existing file; the filesystem DAO enforces that
	// contract at a higher level but adapters must not silently truncate
	// either.
	WriteFile(path string, obj *DataObject) error
}

// FilesystemSetter is implemented by adapters that need a handle to the
// backing filesystem (as opposed to stateless adapters that take an
// absolute path and use package-level I/O).
type FilesystemSetter interface {
	SetFilesystem(fs Filesystem)
}

// Filesystem is the minimal capability an adapter needs from the backing
// store: open for reading, create for writing, and a directory-aware MkdirAll
// for adapters (chunked-array-directory) whose "file" is a directory tree.
type Filesystem interface {
	Open(path string) (io.ReadCloser, error)
	Create(path string) (io.WriteCloser, error)
	MkdirAll(path string) error
}
