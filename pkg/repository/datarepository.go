// SPDX-License-Identifier: Apache-2.0

// Package repository implements components F and G: the data repository,
// the cross-collection coordinator that keeps a record and its optional
// data file in sync and validates both against the domain-model registry,
// and the in-memory repository, a thin wrapper around the in-memory object
// DAO integrating with unit-of-work history. Grounded on pgroll's
// pkg/roll.Roll, which plays the analogous role of a coordinator composing
// pkg/state (history) with pkg/migrations (validated mutation) behind one
// high-level add/remove/undo surface.
package repository

import (
	"sort"
	"strings"
	"time"

	"github.com/signalstore/signalstore-go/internal/objectid"
	"github.com/signalstore/signalstore-go/pkg/dataobject"
	"github.com/signalstore/signalstore-go/pkg/domainmodel"
	"github.com/signalstore/signalstore-go/pkg/store/docstore"
	"github.com/signalstore/signalstore-go/pkg/store/filestore"
	"github.com/signalstore/signalstore-go/pkg/storeerrors"
)

const (
	layerName      = "datarepository"
	collectionName = "records"

	fieldSchemaRef = "schema_ref"
	fieldDataName  = "data_name"
	fieldHasFile   = "has_file"

	dataRefPropertyModel = "data_ref"
	dataRefSuffix        = "_data_ref"
)

// DataRepository composes the document-store DAO, the filesystem DAO and
// the domain-model registry (via the narrow SchemaResolver interface, per
// §9 design note 2) into the add/remove/undo/find surface described in
// §4.F.
type DataRepository struct {
	docs     docstore.DAO
	files    *filestore.DAO
	schemas  domainmodel.SchemaResolver
	adapters *dataobject.Registry
	clock    objectid.Clock

	versioningOn bool
	history      *storeerrors.History
}

// Record is a JSON-like document governed by a domain model, carrying the
// identity fields schema_ref/data_name/has_file alongside arbitrary
// record-specific properties.
type Record = docstore.Document

// RecordWithPath pairs a record with the schema_ref__data_name prefix of
// its data file's name, or the empty string when no data file is reported.
type RecordWithPath struct {
	Record Record
	Path   string
}

func New(docs docstore.DAO, files *filestore.DAO, schemas domainmodel.SchemaResolver, adapters *dataobject.Registry, clock objectid.Clock, versioningOn bool) *DataRepository {
	return &DataRepository{
		docs:         docs,
		files:        files,
		schemas:      schemas,
		adapters:     adapters,
		clock:        clock,
		versioningOn: versioningOn,
		history:      &storeerrors.History{},
	}
}

// Add validates and inserts record, and — when obj is non-nil — its
// companion data file, per §4.F steps 1-6. The record is written first and
// the file second (§5 "writing the record first, then the file, so that a
// crash leaves an orphan record, never an orphan file").
func (r *DataRepository) Add(record Record, obj *dataobject.DataObject, adapter dataobject.Adapter) error {
	schemaRef, _ := record[fieldSchemaRef].(string)
	dataName, _ := record[fieldDataName].(string)
	if schemaRef == "" {
		return &storeerrors.ArgumentValueError{LayerName: layerName, Name: fieldSchemaRef, Message: "must be a non-empty string"}
	}
	if dataName == "" {
		return &storeerrors.ArgumentValueError{LayerName: layerName, Name: fieldDataName, Message: "must be a non-empty string"}
	}

	hasFile := obj != nil
	if explicit, ok := record[fieldHasFile].(bool); ok && !hasFile {
		hasFile = explicit
	}
	record = record.Clone()
	record[fieldHasFile] = hasFile

	if err := r.validateRecord(record); err != nil {
		return err
	}

	timestamp := r.clock.Now()

	vt := objectid.UnversionedTimestamp
	if r.versioningOn {
		if explicit := record.VersionTimestampValue(); explicit != objectid.UnversionedTimestamp {
			vt = explicit
		} else {
			vt = objectid.DatetimeToMicroseconds(timestamp)
		}
	}
	record[docstore.FieldVersionTimestamp] = vt

	index := map[string]any{fieldSchemaRef: schemaRef, fieldDataName: dataName}
	if err := r.docs.Add(collectionName, index, record, timestamp, r.versioningOn); err != nil {
		return err
	}

	if hasFile {
		if obj == nil {
			return &storeerrors.ArgumentValueError{LayerName: layerName, Name: "obj", Message: "has_file is true but no data object was supplied"}
		}
		if err := r.files.Add(obj, adapter); err != nil {
			// The record is now orphaned (record without file); detectable
			// via FindOrphans and reportable, per §5.
			return err
		}
	}

	entryIdentity := map[string]any{fieldSchemaRef: schemaRef, fieldDataName: dataName, docstore.FieldVersionTimestamp: vt}
	r.history.Append(storeerrors.NewHistoryEntry(timestamp, collectionName, storeerrors.OperationAdded, entryIdentity, hasFile, adapterExtension(adapter)))
	return nil
}

// validateRecord implements §4.F step 4: resolve the domain model at
// schema_ref, validate the record body against its json_schema, then
// validate each top-level property against the property model named after
// that key (or the shared data_ref property model for *_data_ref keys).
func (r *DataRepository) validateRecord(record Record) error {
	schemaRef, _ := record[fieldSchemaRef].(string)

	model, err := r.schemas.Resolve(schemaRef)
	if err != nil {
		return &storeerrors.ValidationError{
			LayerName:  layerName,
			SchemaName: schemaRef,
			Property:   fieldSchemaRef,
			SchemaPath: "#/schema_ref",
			Instance:   schemaRef,
			Reason:     "schema_ref does not resolve to a live domain model: " + err.Error(),
		}
	}

	bodySchema, err := domainmodel.CompileSchema(model.JSONSchema)
	if err != nil {
		return &storeerrors.ValidationError{LayerName: layerName, SchemaName: schemaRef, SchemaPath: "#", Instance: schemaRef, Reason: "compiling schema: " + err.Error()}
	}
	if err := bodySchema.Validate(map[string]any(record)); err != nil {
		return &storeerrors.ValidationError{LayerName: layerName, SchemaName: schemaRef, SchemaPath: "#", Instance: schemaRef, Reason: err.Error()}
	}

	for key, value := range record {
		if isManagedField(key) {
			continue
		}

		propertySchemaName := key
		if strings.HasSuffix(key, dataRefSuffix) {
			propertySchemaName = dataRefPropertyModel
		}

		propertyModel, err := r.schemas.Resolve(propertySchemaName)
		if err != nil {
			return &storeerrors.ValidationError{
				LayerName:  layerName,
				SchemaName: propertySchemaName,
				Property:   key,
				SchemaPath: "#/" + key,
				Instance:   key,
				Reason:     "no property model named " + propertySchemaName,
			}
		}

		propertySchema, err := domainmodel.CompileSchema(propertyModel.JSONSchema)
		if err != nil {
			return &storeerrors.ValidationError{LayerName: layerName, SchemaName: propertySchemaName, Property: key, SchemaPath: "#/" + key, Instance: key, Reason: "compiling schema: " + err.Error()}
		}
		if err := propertySchema.Validate(value); err != nil {
			return &storeerrors.ValidationError{LayerName: layerName, SchemaName: propertySchemaName, Property: key, SchemaPath: "#/" + key, Instance: key, Reason: err.Error()}
		}
	}

	return nil
}

func isManagedField(key string) bool {
	switch key {
	case fieldSchemaRef, fieldDataName, fieldHasFile,
		docstore.FieldTimeOfSave, docstore.FieldTimeOfRemoval, docstore.FieldVersionTimestamp:
		return true
	}
	return false
}

// Remove marks record and (if has_file) its data file for deletion under a
// single shared time_of_removal.
func (r *DataRepository) Remove(schemaRef, dataName string, versionTimestamp int64, adapter dataobject.Adapter) error {
	index := map[string]any{fieldSchemaRef: schemaRef, fieldDataName: dataName}
	doc, err := r.docs.Get(collectionName, index, versionTimestamp)
	if err != nil {
		return &storeerrors.UncaughtError{LayerName: layerName, Op: "remove", Err: err}
	}
	if doc == nil {
		return &storeerrors.NotFoundError{LayerName: layerName, Collection: collectionName, Identity: schemaRef + "/" + dataName}
	}
	hasFile, _ := doc[fieldHasFile].(bool)

	timestamp := r.clock.Now()
	if err := r.docs.MarkForDeletion(collectionName, index, versionTimestamp, timestamp); err != nil {
		return err
	}
	if hasFile {
		if err := r.files.MarkForDeletion(schemaRef, dataName, versionTimestamp, timestamp, adapter); err != nil {
			return err
		}
	}

	entryIdentity := map[string]any{fieldSchemaRef: schemaRef, fieldDataName: dataName, docstore.FieldVersionTimestamp: versionTimestamp}
	r.history.Append(storeerrors.NewHistoryEntry(timestamp, collectionName, storeerrors.OperationRemoved, entryIdentity, hasFile, adapterExtension(adapter)))
	return nil
}

// Undo inverts the most recent history entry: an "added" entry is undone by
// marking record (and file) for deletion; a "removed" entry is undone by
// restoring both. The entry is popped only after the inversion succeeds.
func (r *DataRepository) Undo(adapter dataobject.Adapter) error {
	entry, ok := r.history.Last()
	if !ok {
		return &storeerrors.RangeError{LayerName: layerName, Message: "no operations to undo"}
	}

	schemaRef, _ := entry.Identity[fieldSchemaRef].(string)
	dataName, _ := entry.Identity[fieldDataName].(string)
	versionTimestamp, _ := entry.Identity[docstore.FieldVersionTimestamp].(int64)
	index := map[string]any{fieldSchemaRef: schemaRef, fieldDataName: dataName}

	switch entry.Kind {
	case storeerrors.OperationAdded:
		if err := r.docs.MarkForDeletion(collectionName, index, versionTimestamp, entry.Timestamp); err != nil {
			return err
		}
		if entry.HasFile {
			if err := r.files.MarkForDeletion(schemaRef, dataName, versionTimestamp, entry.Timestamp, adapter); err != nil {
				return err
			}
		}
	case storeerrors.OperationRemoved:
		if err := r.docs.Restore(collectionName, index, 1); err != nil {
			return err
		}
		if entry.HasFile {
			if err := r.files.Restore(schemaRef, dataName, 1, adapter); err != nil {
				return err
			}
		}
	}

	r.history.PopLast()
	return nil
}

// UndoAll inverts every pending history entry in reverse append order,
// used by the unit of work's rollback path.
func (r *DataRepository) UndoAll(adapter dataobject.Adapter) error {
	for r.history.Len() > 0 {
		if err := r.Undo(adapter); err != nil {
			return err
		}
	}
	return nil
}

// Commit snapshots and clears the operation history, returning the
// snapshot to the caller.
func (r *DataRepository) Commit() []storeerrors.HistoryEntry {
	snapshot := r.history.Snapshot()
	r.history.Clear()
	return snapshot
}

// Find returns live records matching filter/projection. When getData is
// true, each record with has_file is looked up in the filesystem DAO and,
// if its data file is found, Path is set; the decoded data object itself
// is not returned.
func (r *DataRepository) Find(filter docstore.Filter, projection docstore.Projection, getData bool, adapter dataobject.Adapter) ([]RecordWithPath, error) {
	docs, err := r.docs.Find(collectionName, filter, projection)
	if err != nil {
		return nil, &storeerrors.UncaughtError{LayerName: layerName, Op: "find", Err: err}
	}

	out := make([]RecordWithPath, 0, len(docs))
	for _, doc := range docs {
		rp := RecordWithPath{Record: doc}
		if getData {
			hasFile, _ := doc[fieldHasFile].(bool)
			if hasFile {
				schemaRef, _ := doc[fieldSchemaRef].(string)
				dataName, _ := doc[fieldDataName].(string)
				vt := doc.VersionTimestampValue()
				if obj, err := r.files.Get(schemaRef, dataName, vt, 1, adapter); err == nil && obj != nil {
					rp.Path = schemaRef + "__" + dataName
				}
			}
		}
		out = append(out, rp)
	}
	return out, nil
}

// ListMarkedForDeletion returns (record, path-or-empty) pairs for
// tombstoned records sorted by time_of_removal ascending (the document
// DAO already returns them descending; this reverses to the order §4.F
// specifies).
func (r *DataRepository) ListMarkedForDeletion(threshold *time.Time, adapter dataobject.Adapter) ([]RecordWithPath, error) {
	docs, err := r.docs.ListMarkedForDeletion(collectionName, threshold)
	if err != nil {
		return nil, &storeerrors.UncaughtError{LayerName: layerName, Op: "list_marked_for_deletion", Err: err}
	}

	out := make([]RecordWithPath, len(docs))
	for i, doc := range docs {
		hasFile, _ := doc[fieldHasFile].(bool)
		path := ""
		if hasFile {
			schemaRef, _ := doc[fieldSchemaRef].(string)
			dataName, _ := doc[fieldDataName].(string)
			path = schemaRef + "__" + dataName
		}
		out[i] = RecordWithPath{Record: doc, Path: path}
	}
	sort.Slice(out, func(i, j int) bool {
		ti, _ := out[i].Record.TimeOfRemoval()
		tj, _ := out[j].Record.TimeOfRemoval()
		return ti.Before(tj)
	})
	return out, nil
}

// Purge delegates to both underlying DAOs and returns the combined count of
// hard-deleted records and files.
func (r *DataRepository) Purge(threshold *time.Time, adapter dataobject.Adapter) (int, error) {
	n, err := r.docs.Purge(collectionName, threshold)
	if err != nil {
		return 0, &storeerrors.UncaughtError{LayerName: layerName, Op: "purge", Err: err}
	}
	fn, err := r.files.Purge(threshold, adapter)
	if err != nil {
		return n, err
	}
	return n + fn, nil
}

// FindOrphans reports live records with has_file=true whose companion data
// file is missing, by looking each one up in the filesystem DAO. Data files
// with no matching live record are not reported. Supplements
// §5's "has_file mismatches are detectable and reportable" note, which the
// distilled specification names as a requirement but does not turn into an
// operation.
func (r *DataRepository) FindOrphans(adapter dataobject.Adapter) ([]string, error) {
	docs, err := r.docs.Find(collectionName, nil, nil)
	if err != nil {
		return nil, &storeerrors.UncaughtError{LayerName: layerName, Op: "find_orphans", Err: err}
	}

	var orphans []string
	for _, doc := range docs {
		hasFile, _ := doc[fieldHasFile].(bool)
		if !hasFile {
			continue
		}
		schemaRef, _ := doc[fieldSchemaRef].(string)
		dataName, _ := doc[fieldDataName].(string)
		vt := doc.VersionTimestampValue()
		obj, err := r.files.Get(schemaRef, dataName, vt, 1, adapter)
		if err != nil {
			return nil, err
		}
		if obj == nil {
			orphans = append(orphans, schemaRef+"__"+dataName+": record claims has_file but no data file exists")
		}
	}
	return orphans, nil
}

func adapterExtension(adapter dataobject.Adapter) string {
	if adapter == nil {
		return ""
	}
	return adapter.FileExtension()
}
