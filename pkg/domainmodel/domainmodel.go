// SPDX-License-Identifier: Apache-2.0

// Package domainmodel implements component E, the domain-model registry: a
// self-describing schema repository in which domain models (metamodels,
// property models, data models) validate each other and validate records by
// composition of JSON-Schema fragments. Grounded on pgroll's use of
// santhosh-tekuri/jsonschema/v6 to validate its own schema.json
// (internal/jsonschema), generalized here to compile and validate an
// arbitrary number of user-supplied schema fragments rather than one fixed
// document.
package domainmodel

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/oapi-codegen/nullable"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/signalstore/signalstore-go/internal/objectid"
	"github.com/signalstore/signalstore-go/pkg/store/docstore"
	"github.com/signalstore/signalstore-go/pkg/storeerrors"
)

const (
	layerName      = "domainmodel"
	collectionName = "domain_models"
)

// SchemaType is the role a DomainModel plays: it describes a single record
// field (property_model), governs other domain models (metamodel), or
// describes a whole record referencing a metamodel (data_model).
type SchemaType string

const (
	SchemaTypePropertyModel SchemaType = "property_model"
	SchemaTypeMetamodel     SchemaType = "metamodel"
	SchemaTypeDataModel     SchemaType = "data_model"
)

// DomainModel is a self-describing schema document, per §3 "Domain model".
// MetamodelRef uses oapi-codegen/nullable, the same
// null-vs-absent-vs-present representation pgroll's generated types use for
// optional migration fields. toDocument writes metamodel_ref only when a
// value is set, and validation treats an unset, null or empty reference
// alike, so a data_model without one is invalid (§3 invariant 3) whichever
// of those states it is in.
type DomainModel struct {
	SchemaName        string
	SchemaTitle       string
	SchemaDescription string
	SchemaType        SchemaType
	JSONSchema        map[string]any
	MetamodelRef      nullable.Nullable[string]

	TimeOfSave       time.Time
	TimeOfRemoval    *time.Time
	VersionTimestamp int64
}

// toDocument converts m into the map[string]any representation the
// metaschema validates and the document store persists.
func (m DomainModel) toDocument() map[string]any {
	doc := map[string]any{
		"schema_name":        m.SchemaName,
		"schema_title":       m.SchemaTitle,
		"schema_description": m.SchemaDescription,
		"schema_type":        string(m.SchemaType),
		"json_schema":        m.JSONSchema,
	}
	if ref, ok := m.MetamodelRef.Get(); ok {
		doc["metamodel_ref"] = ref
	}
	return doc
}

func domainModelFromDocument(doc docstore.Document) DomainModel {
	m := DomainModel{
		SchemaName:        stringField(doc, "schema_name"),
		SchemaTitle:       stringField(doc, "schema_title"),
		SchemaDescription: stringField(doc, "schema_description"),
		SchemaType:        SchemaType(stringField(doc, "schema_type")),
		MetamodelRef:      nullable.NewNullNullable[string](),
	}
	if js, ok := doc["json_schema"].(map[string]any); ok {
		m.JSONSchema = js
	}
	if ref, ok := doc["metamodel_ref"].(string); ok {
		m.MetamodelRef = nullable.NewNullableWithValue(ref)
	}
	if t, ok := doc[docstore.FieldTimeOfSave].(time.Time); ok {
		m.TimeOfSave = t
	}
	if t, ok := doc.TimeOfRemoval(); ok {
		m.TimeOfRemoval = &t
	}
	m.VersionTimestamp = doc.VersionTimestampValue()
	return m
}

func stringField(doc docstore.Document, key string) string {
	s, _ := doc[key].(string)
	return s
}

// SchemaResolver is the narrow interface the data repository depends on
// (§9 design note 2), so it never needs to know how domain models are
// stored or validated, only how to resolve one by name.
type SchemaResolver interface {
	Resolve(schemaName string) (*DomainModel, error)
}

// Registry wraps a document-store DAO keyed by schema_name, validating
// every document against the metaschema (and, when applicable, against a
// referenced metamodel) on both read and add.
type Registry struct {
	dao   docstore.DAO
	clock objectid.Clock

	metaschema *jsonschema.Schema
	history    *storeerrors.History
}

// New compiles the metaschema and builds a Registry over dao.
func New(dao docstore.DAO, clock objectid.Clock) (*Registry, error) {
	compiler := jsonschema.NewCompiler()
	var raw any
	if err := json.Unmarshal([]byte(metaschemaJSON), &raw); err != nil {
		return nil, &storeerrors.ConfigError{LayerName: layerName, Message: "invalid embedded metaschema: " + err.Error()}
	}
	if err := compiler.AddResource("signalstore://metaschema.json", raw); err != nil {
		return nil, &storeerrors.ConfigError{LayerName: layerName, Message: "invalid embedded metaschema: " + err.Error()}
	}
	sch, err := compiler.Compile("signalstore://metaschema.json")
	if err != nil {
		return nil, &storeerrors.ConfigError{LayerName: layerName, Message: "compiling metaschema: " + err.Error()}
	}

	return &Registry{dao: dao, clock: clock, metaschema: sch, history: &storeerrors.History{}}, nil
}

// Add validates model (metaschema, then metamodel body if applicable) and
// inserts it.
func (r *Registry) Add(model DomainModel) error {
	if err := r.validate(model); err != nil {
		return err
	}

	doc := docstore.Document(model.toDocument())
	index := map[string]any{"schema_name": model.SchemaName}
	timestamp := r.clock.Now()
	if err := r.dao.Add(collectionName, index, doc, timestamp, false); err != nil {
		return err
	}
	r.history.Append(storeerrors.NewHistoryEntry(timestamp, collectionName, storeerrors.OperationAdded, index, false, ""))
	return nil
}

// Undo inverts the most recent history entry.
func (r *Registry) Undo() error {
	entry, ok := r.history.Last()
	if !ok {
		return &storeerrors.RangeError{LayerName: layerName, Message: "no operations to undo"}
	}

	switch entry.Kind {
	case storeerrors.OperationAdded:
		if err := r.dao.MarkForDeletion(collectionName, entry.Identity, objectid.UnversionedTimestamp, entry.Timestamp); err != nil {
			return err
		}
	case storeerrors.OperationRemoved:
		if err := r.dao.Restore(collectionName, entry.Identity, 1); err != nil {
			return err
		}
	}

	r.history.PopLast()
	return nil
}

// UndoAll inverts every pending history entry. Applied last in the unit of
// work's fixed rollback order (in-memory, data, domain-models), per §4.H,
// so that data-repository rollback can still resolve schema references
// while it runs.
func (r *Registry) UndoAll() error {
	for r.history.Len() > 0 {
		if err := r.Undo(); err != nil {
			return err
		}
	}
	return nil
}

// Commit snapshots and clears the operation history.
func (r *Registry) Commit() []storeerrors.HistoryEntry {
	snapshot := r.history.Snapshot()
	r.history.Clear()
	return snapshot
}

// Resolve fetches the live domain model named schemaName, re-validating it
// (metaschema plus metamodel resolution) so that a model whose metamodel
// was since removed is reported as invalid at read time, per §8 scenario 6.
func (r *Registry) Resolve(schemaName string) (*DomainModel, error) {
	doc, err := r.dao.Get(collectionName, map[string]any{"schema_name": schemaName}, objectid.UnversionedTimestamp)
	if err != nil {
		return nil, &storeerrors.UncaughtError{LayerName: layerName, Op: "resolve", Err: err}
	}
	if doc == nil {
		return nil, &storeerrors.NotFoundError{LayerName: layerName, Collection: collectionName, Identity: schemaName}
	}

	model := domainModelFromDocument(doc)
	if err := r.validate(model); err != nil {
		return nil, err
	}
	return &model, nil
}

// Remove soft-deletes the domain model named schemaName. Per §8 scenario 6,
// removing a metamodel does not cascade to data models that reference it;
// those become invalid only when next resolved.
func (r *Registry) Remove(schemaName string, timestamp time.Time) error {
	index := map[string]any{"schema_name": schemaName}
	if err := r.dao.MarkForDeletion(collectionName, index, objectid.UnversionedTimestamp, timestamp); err != nil {
		return err
	}
	r.history.Append(storeerrors.NewHistoryEntry(timestamp, collectionName, storeerrors.OperationRemoved, index, false, ""))
	return nil
}

// Restore undoes a soft-delete.
func (r *Registry) Restore(schemaName string) error {
	return r.dao.Restore(collectionName, map[string]any{"schema_name": schemaName}, 1)
}

// Purge hard-deletes tombstoned domain models whose time_of_removal
// precedes threshold (or all, if threshold is nil), returning the count
// removed.
func (r *Registry) Purge(threshold *time.Time) (int, error) {
	return r.dao.Purge(collectionName, threshold)
}

// ListMarkedForDeletion returns tombstoned domain models before threshold.
func (r *Registry) ListMarkedForDeletion(threshold *time.Time) ([]DomainModel, error) {
	docs, err := r.dao.ListMarkedForDeletion(collectionName, threshold)
	if err != nil {
		return nil, err
	}
	out := make([]DomainModel, len(docs))
	for i, doc := range docs {
		out[i] = domainModelFromDocument(doc)
	}
	return out, nil
}

// Exists reports whether a live domain model is registered under
// schemaName, without re-validating it (used by undo/rollback bookkeeping,
// which must not fail just because a referenced metamodel has since gone
// missing).
func (r *Registry) Exists(schemaName string) (bool, error) {
	return r.dao.Exists(collectionName, map[string]any{"schema_name": schemaName}, objectid.UnversionedTimestamp)
}

// DataRefPropertyModelName is the property model every `*_data_ref` field
// validates against (pkg/repository.DataRepository assumes it exists).
const DataRefPropertyModelName = "data_ref"

// SeedBuiltins registers the built-in property models every fresh project
// needs before its first record can be added, a no-op if they already
// exist. The original implementation ships `data_ref` as a built-in
// property model for every `*_data_ref` field (§3's Record entity); unlike
// a hard-coded schema, it is stored as an ordinary domain model here and
// can be overridden like any other.
func (r *Registry) SeedBuiltins() error {
	exists, err := r.Exists(DataRefPropertyModelName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return r.Add(DomainModel{
		SchemaName:        DataRefPropertyModelName,
		SchemaTitle:       "Data reference",
		SchemaDescription: "Identity tuple pointing at a record elsewhere in the same or another project.",
		SchemaType:        SchemaTypePropertyModel,
		JSONSchema: map[string]any{
			"type":     "object",
			"required": []any{"schema_ref", "data_name"},
			"properties": map[string]any{
				"schema_ref": map[string]any{"type": "string", "minLength": 1},
				"data_name":  map[string]any{"type": "string", "minLength": 1},
			},
		},
	})
}

func (r *Registry) validate(model DomainModel) error {
	instance := model.toDocument()

	if err := r.metaschema.Validate(instance); err != nil {
		return &storeerrors.ValidationError{
			LayerName:  layerName,
			SchemaName: "metaschema",
			Property:   "schema_name",
			SchemaPath: "#",
			Instance:   model.SchemaName,
			Reason:     err.Error(),
		}
	}

	if model.SchemaType == SchemaTypeDataModel {
		metamodelRef, hasRef := model.MetamodelRef.Get()
		if !hasRef || metamodelRef == "" {
			return &storeerrors.ValidationError{
				LayerName:  layerName,
				SchemaName: model.SchemaName,
				Property:   "metamodel_ref",
				SchemaPath: "#/metamodel_ref",
				Instance:   "null",
				Reason:     "data_model requires metamodel_ref",
			}
		}

		metamodelDoc, err := r.dao.Get(collectionName, map[string]any{"schema_name": metamodelRef}, objectid.UnversionedTimestamp)
		if err != nil {
			return &storeerrors.UncaughtError{LayerName: layerName, Op: "resolve_metamodel", Err: err}
		}
		if metamodelDoc == nil {
			return &storeerrors.ValidationError{
				LayerName:  layerName,
				SchemaName: model.SchemaName,
				Property:   "metamodel_ref",
				SchemaPath: "#/metamodel_ref",
				Instance:   metamodelRef,
				Reason:     "referenced metamodel does not exist or is not live",
			}
		}

		metamodel := domainModelFromDocument(metamodelDoc)
		if metamodel.SchemaType != SchemaTypeMetamodel {
			return &storeerrors.ValidationError{
				LayerName:  layerName,
				SchemaName: model.SchemaName,
				Property:   "metamodel_ref",
				SchemaPath: "#/metamodel_ref",
				Instance:   metamodelRef,
				Reason:     "metamodel_ref does not name a metamodel",
			}
		}

		metaSchema, err := CompileSchema(metamodel.JSONSchema)
		if err != nil {
			return &storeerrors.ValidationError{
				LayerName:  layerName,
				SchemaName: model.SchemaName,
				Property:   "json_schema",
				SchemaPath: "#/json_schema",
				Instance:   model.SchemaName,
				Reason:     "compiling referenced metamodel schema: " + err.Error(),
			}
		}
		if err := metaSchema.Validate(model.JSONSchema); err != nil {
			return &storeerrors.ValidationError{
				LayerName:  layerName,
				SchemaName: model.SchemaName,
				Property:   "json_schema",
				SchemaPath: "#/json_schema",
				Instance:   model.SchemaName,
				Reason:     err.Error(),
			}
		}
	}

	return nil
}

// CompileSchema compiles an ad hoc JSON-Schema fragment (a domain model's
// own json_schema field, or a metamodel's json_schema used to validate
// other domain models) without requiring it to live at a stable URL. It is
// exported so the data repository can validate record bodies and
// properties against the same compiler this registry uses for its own
// cross-validation.
func CompileSchema(schemaDoc map[string]any) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	resourceURL := "signalstore://inline/" + uniqueSuffix()
	if err := compiler.AddResource(resourceURL, schemaDoc); err != nil {
		return nil, err
	}
	return compiler.Compile(resourceURL)
}

var inlineCounter atomic.Int64

func uniqueSuffix() string {
	return itoa(inlineCounter.Add(1))
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
