// SPDX-License-Identifier: Apache-2.0

package filestore

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/signalstore/signalstore-go/internal/objectid"
	"github.com/signalstore/signalstore-go/pkg/dataobject"
	"github.com/signalstore/signalstore-go/pkg/storeerrors"
)

const layerName = "filestore"

// DAO is component B: CRUD on opaque data files via a pluggable file-format
// adapter, with soft-delete by rename, restore, and purge.
type DAO struct {
	fs Filesystem

	// MillisecondFallback controls the §9 Open Question 2 behavior: when a
	// microsecond-precision Get misses but a file sharing the same
	// millisecond prefix exists, fall back to it. Disabled by default
	// (NewDAO leaves it false); callers opt in by setting this exported
	// field, so it is never always-on legacy behavior.
	MillisecondFallback bool
}

func NewDAO(fs Filesystem) *DAO {
	return &DAO{fs: fs}
}

// Add writes obj via adapter, refusing to overwrite an existing path. The
// object's attribute dict is serialized for storage before writing and the
// caller's in-memory copy is left untouched (attrs are read back out of
// obj.Attrs after GetIDKwargs, not mutated in place).
func (d *DAO) Add(obj *dataobject.DataObject, adapter dataobject.Adapter) error {
	if obj.Kind != adapter.DataObjectType() {
		return &storeerrors.ArgumentTypeError{LayerName: layerName, Name: "data_object", Want: string(adapter.DataObjectType()), Got: string(obj.Kind)}
	}

	id, err := adapter.GetIDKwargs(obj)
	if err != nil {
		return &storeerrors.ArgumentValueError{LayerName: layerName, Name: "data_object", Message: err.Error()}
	}

	path := fileName(id.SchemaRef, id.DataName, id.VersionTimestamp, nil, adapter.FileExtension())
	exists, err := d.fs.Exists(path)
	if err != nil {
		return &storeerrors.UncaughtError{LayerName: layerName, Op: "add", Err: err}
	}
	if exists {
		return &storeerrors.AlreadyExistsError{LayerName: layerName, Collection: "files", Identity: path}
	}

	if err := adapter.WriteFile(path, obj); err != nil {
		return &storeerrors.UncaughtError{LayerName: layerName, Op: "add", Err: err}
	}
	return nil
}

// Get locates a data file by identity. If versionTimestamp is a concrete
// instant (non-zero), it must match exactly. Otherwise every live version
// is globbed, sorted lexicographically (valid because microsecond suffixes
// are zero-padded to a fixed width), and the nthMostRecent from the tail is
// returned. Returns (nil, nil) on absence, never a NotFound error, per §8
// "get with a non-existent identity returns null, never raises NotFound".
func (d *DAO) Get(schemaRef, dataName string, versionTimestamp int64, nthMostRecent int, adapter dataobject.Adapter) (*dataobject.DataObject, error) {
	if nthMostRecent < 1 {
		nthMostRecent = 1
	}

	if !objectid.IsUnversioned(versionTimestamp) {
		path := fileName(schemaRef, dataName, versionTimestamp, nil, adapter.FileExtension())
		exists, err := d.fs.Exists(path)
		if err != nil {
			return nil, &storeerrors.UncaughtError{LayerName: layerName, Op: "get", Err: err}
		}
		if exists {
			return d.readAt(path, adapter)
		}
		if d.MillisecondFallback {
			if alt, ok, err := d.millisecondFallbackPath(schemaRef, dataName, versionTimestamp, adapter); err != nil {
				return nil, err
			} else if ok {
				return d.readAt(alt, adapter)
			}
		}
		return nil, nil
	}

	versions, err := d.liveVersions(schemaRef, dataName, adapter)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		// No versioned files at all: fall back to the plain, version-less
		// name used for unversioned objects (version_timestamp sentinel 0,
		// no "__version_" component in the file name).
		plainPath := fileName(schemaRef, dataName, 0, nil, adapter.FileExtension())
		exists, err := d.fs.Exists(plainPath)
		if err != nil {
			return nil, &storeerrors.UncaughtError{LayerName: layerName, Op: "get", Err: err}
		}
		if !exists {
			return nil, nil
		}
		return d.readAt(plainPath, adapter)
	}
	if nthMostRecent > len(versions) {
		return nil, nil
	}
	target := versions[len(versions)-nthMostRecent]
	return d.readAt(target.path, adapter)
}

// millisecondFallbackPath relaxes a microsecond-precision miss to
// millisecond precision, per §9 Open Question 2.
func (d *DAO) millisecondFallbackPath(schemaRef, dataName string, versionTimestamp int64, adapter dataobject.Adapter) (string, bool, error) {
	msPrefix := formatMicroseconds(versionTimestamp)[:microsecondWidth-3]
	versions, err := d.liveVersions(schemaRef, dataName, adapter)
	if err != nil {
		return "", false, err
	}
	for _, v := range versions {
		if strings.HasPrefix(formatMicroseconds(v.versionTimestamp), msPrefix) {
			return v.path, true, nil
		}
	}
	return "", false, nil
}

type versionedPath struct {
	path             string
	versionTimestamp int64
}

// liveVersions returns every non-tombstoned versioned file for
// (schemaRef, dataName), sorted ascending by version_timestamp (equivalently,
// lexically, since suffixes are zero-padded).
func (d *DAO) liveVersions(schemaRef, dataName string, adapter dataobject.Adapter) ([]versionedPath, error) {
	pattern := fmt.Sprintf("%s__%s__version_*%s", schemaRef, dataName, adapter.FileExtension())
	matches, err := d.fs.Glob(pattern)
	if err != nil {
		return nil, &storeerrors.UncaughtError{LayerName: layerName, Op: "glob", Err: err}
	}

	var out []versionedPath
	for _, m := range matches {
		p, ok := parseFileName(baseName(m), adapter.FileExtension())
		if !ok || p.IsTombstone || !p.HasVersion {
			continue
		}
		out = append(out, versionedPath{path: m, versionTimestamp: p.VersionTimestamp})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out, nil
}

func (d *DAO) readAt(path string, adapter dataobject.Adapter) (*dataobject.DataObject, error) {
	obj, err := adapter.ReadFile(path)
	if err != nil {
		return nil, &storeerrors.UncaughtError{LayerName: layerName, Op: "read", Err: err}
	}
	return obj, nil
}

// MarkForDeletion renames the live file for the given identity to its
// tombstoned name. Fails with NotFound if no live file exists, and with
// Uncaught (wrapping the filesystem's collision error) if the destination
// name already exists, since that implies clock skew and the caller should
// retry with a later timestamp.
func (d *DAO) MarkForDeletion(schemaRef, dataName string, versionTimestamp int64, timeOfRemoval time.Time, adapter dataobject.Adapter) error {
	livePath := fileName(schemaRef, dataName, versionTimestamp, nil, adapter.FileExtension())
	exists, err := d.fs.Exists(livePath)
	if err != nil {
		return &storeerrors.UncaughtError{LayerName: layerName, Op: "mark_for_deletion", Err: err}
	}
	if !exists {
		return &storeerrors.NotFoundError{LayerName: layerName, Collection: "files", Identity: livePath}
	}

	tor := objectid.DatetimeToMicroseconds(timeOfRemoval)
	tombPath := fileName(schemaRef, dataName, versionTimestamp, &tor, adapter.FileExtension())
	if err := d.fs.Rename(livePath, tombPath); err != nil {
		return &storeerrors.UncaughtError{LayerName: layerName, Op: "mark_for_deletion", Err: fmt.Errorf("rename collision (retry with a later timestamp): %w", err)}
	}
	return nil
}

// Restore is the inverse rename: it finds the nthMostRecent oldest
// tombstone for the identity and renames it back to its live name.
func (d *DAO) Restore(schemaRef, dataName string, nthMostRecent int, adapter dataobject.Adapter) error {
	if nthMostRecent < 1 {
		nthMostRecent = 1
	}

	tombstones, err := d.tombstones(schemaRef, dataName, adapter, nil)
	if err != nil {
		return err
	}
	sort.Slice(tombstones, func(i, j int) bool { return tombstones[i].timeOfRemoval < tombstones[j].timeOfRemoval })

	if nthMostRecent > len(tombstones) {
		return &storeerrors.RangeError{LayerName: layerName, Message: "nth_most_recent exceeds available tombstones"}
	}
	target := tombstones[nthMostRecent-1]

	livePath := fileName(schemaRef, dataName, target.versionTimestamp, nil, adapter.FileExtension())
	exists, err := d.fs.Exists(livePath)
	if err != nil {
		return &storeerrors.UncaughtError{LayerName: layerName, Op: "restore", Err: err}
	}
	if exists {
		return &storeerrors.AlreadyExistsError{LayerName: layerName, Collection: "files", Identity: livePath}
	}

	if err := d.fs.Rename(target.path, livePath); err != nil {
		return &storeerrors.UncaughtError{LayerName: layerName, Op: "restore", Err: err}
	}
	return nil
}

type tombstonedPath struct {
	path             string
	versionTimestamp int64
	timeOfRemoval    int64
}

func (d *DAO) tombstones(schemaRef, dataName string, adapter dataobject.Adapter, threshold *time.Time) ([]tombstonedPath, error) {
	pattern := fmt.Sprintf("%s__%s*__time_of_removal_*%s", schemaRef, dataName, adapter.FileExtension())
	matches, err := d.fs.Glob(pattern)
	if err != nil {
		return nil, &storeerrors.UncaughtError{LayerName: layerName, Op: "glob", Err: err}
	}

	var out []tombstonedPath
	for _, m := range matches {
		p, ok := parseFileName(baseName(m), adapter.FileExtension())
		if !ok || !p.IsTombstone {
			continue
		}
		if threshold != nil && p.TimeOfRemoval >= objectid.DatetimeToMicroseconds(*threshold) {
			continue
		}
		out = append(out, tombstonedPath{path: m, versionTimestamp: p.VersionTimestamp, timeOfRemoval: p.TimeOfRemoval})
	}
	return out, nil
}

// ListMarkedForDeletion returns the paths of every tombstoned file across
// all identities whose time_of_removal is before threshold (or every
// tombstone if threshold is nil), sorted by removal time descending.
func (d *DAO) ListMarkedForDeletion(threshold *time.Time, adapter dataobject.Adapter) ([]string, error) {
	pattern := "*__time_of_removal_*" + adapter.FileExtension()
	matches, err := d.fs.Glob(pattern)
	if err != nil {
		return nil, &storeerrors.UncaughtError{LayerName: layerName, Op: "glob", Err: err}
	}

	type entry struct {
		path string
		tor  int64
	}
	var entries []entry
	for _, m := range matches {
		p, ok := parseFileName(baseName(m), adapter.FileExtension())
		if !ok || !p.IsTombstone {
			continue
		}
		if threshold != nil && p.TimeOfRemoval >= objectid.DatetimeToMicroseconds(*threshold) {
			continue
		}
		entries = append(entries, entry{path: m, tor: p.TimeOfRemoval})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].tor > entries[j].tor })

	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.path
	}
	return out, nil
}

// Purge hard-deletes every tombstoned file under threshold and returns the
// count removed.
func (d *DAO) Purge(threshold *time.Time, adapter dataobject.Adapter) (int, error) {
	paths, err := d.ListMarkedForDeletion(threshold, adapter)
	if err != nil {
		return 0, err
	}
	for _, p := range paths {
		if err := d.fs.RemoveAll(p); err != nil {
			return 0, &storeerrors.UncaughtError{LayerName: layerName, Op: "purge", Err: err}
		}
	}
	return len(paths), nil
}

// NVersions counts the non-tombstoned versions currently stored for
// (schemaRef, dataName).
func (d *DAO) NVersions(schemaRef, dataName string, adapter dataobject.Adapter) (int, error) {
	versions, err := d.liveVersions(schemaRef, dataName, adapter)
	if err != nil {
		return 0, err
	}
	return len(versions), nil
}

func baseName(path string) string {
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
