// SPDX-License-Identifier: Apache-2.0

package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloudflare/backoff"
	"github.com/lib/pq"

	"github.com/signalstore/signalstore-go/internal/objectid"
	"github.com/signalstore/signalstore-go/pkg/storeerrors"
)

const (
	uniqueViolationErrorCode pq.ErrorCode = "23505"
	pgMaxBackoff                          = 2 * time.Second
	pgBackoffInterval                     = 20 * time.Millisecond
)

// PostgresDAO is a reference implementation of DAO backed by one JSONB
// table per project, grounded on pgroll's pkg/state connection handling
// (search_path wiring, pq.QuoteIdentifier, cloudflare/backoff retry loop
// for lock/uniqueness races). It is not required by the core spec, which
// only mandates the DAO interface and semantics, but is provided as a
// second concrete backend alongside MemoryDAO.
type PostgresDAO struct {
	conn   *sql.DB
	schema string
	ctx    context.Context
}

// NewPostgresDAO opens a connection scoped to schema (the project
// namespace) and ensures the backing table exists.
func NewPostgresDAO(ctx context.Context, pgURL, schemaName string) (*PostgresDAO, error) {
	dsn, err := pq.ParseURL(pgURL)
	if err != nil {
		dsn = pgURL
	}
	dsn += " search_path=" + schemaName

	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, &storeerrors.UncaughtError{LayerName: layerName, Op: "open", Err: err}
	}
	if err := conn.PingContext(ctx); err != nil {
		return nil, &storeerrors.UncaughtError{LayerName: layerName, Op: "ping", Err: err}
	}

	dao := &PostgresDAO{conn: conn, schema: schemaName, ctx: ctx}
	if err := dao.init(ctx); err != nil {
		return nil, err
	}
	return dao, nil
}

func (d *PostgresDAO) init(ctx context.Context) error {
	stmt := fmt.Sprintf(`
CREATE SCHEMA IF NOT EXISTS %[1]s;

CREATE TABLE IF NOT EXISTS %[1]s.documents (
	id					BIGSERIAL PRIMARY KEY,
	collection			TEXT NOT NULL,
	index_fields		JSONB NOT NULL,
	version_timestamp	BIGINT NOT NULL DEFAULT 0,
	time_of_removal		BIGINT,
	body				JSONB NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS documents_live_identity ON %[1]s.documents
	(collection, index_fields, version_timestamp)
	WHERE time_of_removal IS NULL;

CREATE UNIQUE INDEX IF NOT EXISTS documents_tombstone_identity ON %[1]s.documents
	(collection, index_fields, version_timestamp, time_of_removal);
`, pq.QuoteIdentifier(d.schema))

	_, err := d.conn.ExecContext(ctx, stmt)
	if err != nil {
		return &storeerrors.UncaughtError{LayerName: layerName, Op: "init", Err: err}
	}
	return nil
}

func (d *PostgresDAO) tableName() string {
	return pq.QuoteIdentifier(d.schema) + ".documents"
}

func encodeIndex(index map[string]any) ([]byte, error) {
	return json.Marshal(index)
}

func (d *PostgresDAO) Get(collection string, index map[string]any, versionTimestamp int64) (Document, error) {
	idx, err := encodeIndex(index)
	if err != nil {
		return nil, err
	}

	var body []byte
	query := fmt.Sprintf(`SELECT body FROM %s WHERE collection=$1 AND index_fields=$2 AND version_timestamp=$3 AND time_of_removal IS NULL`, d.tableName())
	err = d.conn.QueryRowContext(d.ctx, query, collection, idx, versionTimestamp).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &storeerrors.UncaughtError{LayerName: layerName, Op: "get", Err: err}
	}

	return decodeDocument(body)
}

func (d *PostgresDAO) Exists(collection string, index map[string]any, versionTimestamp int64) (bool, error) {
	doc, err := d.Get(collection, index, versionTimestamp)
	return doc != nil, err
}

func (d *PostgresDAO) Find(collection string, filter Filter, projection Projection) ([]Document, error) {
	query := fmt.Sprintf(`SELECT body FROM %s WHERE collection=$1 AND time_of_removal IS NULL`, d.tableName())
	rows, err := d.conn.QueryContext(d.ctx, query, collection)
	if err != nil {
		return nil, &storeerrors.UncaughtError{LayerName: layerName, Op: "find", Err: err}
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, &storeerrors.UncaughtError{LayerName: layerName, Op: "find", Err: err}
		}
		doc, err := decodeDocument(body)
		if err != nil {
			return nil, err
		}
		if matchesFilter(doc, filter) {
			out = append(out, applyProjection(doc, projection))
		}
	}
	return out, rows.Err()
}

func (d *PostgresDAO) Add(collection string, index map[string]any, doc Document, timestamp time.Time, versioningOn bool) error {
	vt := doc.VersionTimestampValue()
	if versioningOn {
		if _, hasVT := doc[FieldVersionTimestamp]; !hasVT {
			vt = objectid.DatetimeToMicroseconds(timestamp)
		}
	} else {
		vt = objectid.UnversionedTimestamp
	}

	stored := doc.Clone()
	stored[FieldTimeOfSave] = timestamp
	stored[FieldTimeOfRemoval] = nil
	stored[FieldVersionTimestamp] = vt

	body, err := json.Marshal(serializableDocument(stored))
	if err != nil {
		return err
	}
	idx, err := encodeIndex(index)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO %s (collection, index_fields, version_timestamp, time_of_removal, body) VALUES ($1, $2, $3, NULL, $4)`, d.tableName())
	_, err = d.conn.ExecContext(d.ctx, query, collection, idx, vt, body)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationErrorCode {
			return &storeerrors.AlreadyExistsError{LayerName: layerName, Collection: collection, Identity: identityString(index, vt)}
		}
		return &storeerrors.UncaughtError{LayerName: layerName, Op: "add", Err: err}
	}
	return nil
}

// MarkForDeletion retries on unique-violation races the same way pgroll's
// db.RDB retries on lock_timeout: the violation here means two callers
// picked the same microsecond for time_of_removal on the same identity,
// which clock skew can legitimately cause under load.
func (d *PostgresDAO) MarkForDeletion(collection string, index map[string]any, versionTimestamp int64, timestamp time.Time) error {
	idx, err := encodeIndex(index)
	if err != nil {
		return err
	}

	b := backoff.New(pgMaxBackoff, pgBackoffInterval)
	ts := timestamp
	for {
		query := fmt.Sprintf(`UPDATE %s SET time_of_removal=$1 WHERE collection=$2 AND index_fields=$3 AND version_timestamp=$4 AND time_of_removal IS NULL`, d.tableName())
		res, err := d.conn.ExecContext(d.ctx, query, objectid.DatetimeToMicroseconds(ts), collection, idx, versionTimestamp)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationErrorCode {
				ts = ts.Add(time.Microsecond)
				time.Sleep(b.Duration())
				continue
			}
			return &storeerrors.UncaughtError{LayerName: layerName, Op: "mark_for_deletion", Err: err}
		}

		n, err := res.RowsAffected()
		if err != nil {
			return &storeerrors.UncaughtError{LayerName: layerName, Op: "mark_for_deletion", Err: err}
		}
		if n == 0 {
			return &storeerrors.NotFoundError{LayerName: layerName, Collection: collection, Identity: identityString(index, versionTimestamp)}
		}
		return nil
	}
}

func (d *PostgresDAO) ListMarkedForDeletion(collection string, timeThreshold *time.Time) ([]Document, error) {
	var (
		query string
		args  []any
	)
	args = append(args, collection)
	if timeThreshold != nil {
		query = fmt.Sprintf(`SELECT body FROM %s WHERE collection=$1 AND time_of_removal IS NOT NULL AND time_of_removal < $2 ORDER BY time_of_removal DESC`, d.tableName())
		args = append(args, objectid.DatetimeToMicroseconds(*timeThreshold))
	} else {
		query = fmt.Sprintf(`SELECT body FROM %s WHERE collection=$1 AND time_of_removal IS NOT NULL ORDER BY time_of_removal DESC`, d.tableName())
	}

	rows, err := d.conn.QueryContext(d.ctx, query, args...)
	if err != nil {
		return nil, &storeerrors.UncaughtError{LayerName: layerName, Op: "list_marked_for_deletion", Err: err}
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, &storeerrors.UncaughtError{LayerName: layerName, Op: "list_marked_for_deletion", Err: err}
		}
		doc, err := decodeDocument(body)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (d *PostgresDAO) Restore(collection string, index map[string]any, nthMostRecent int) error {
	if nthMostRecent < 1 {
		return &storeerrors.ArgumentValueError{LayerName: layerName, Name: "nth_most_recent", Message: "must be >= 1"}
	}
	idx, err := encodeIndex(index)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`SELECT version_timestamp, time_of_removal FROM %s WHERE collection=$1 AND index_fields=$2 AND time_of_removal IS NOT NULL ORDER BY time_of_removal ASC`, d.tableName())
	rows, err := d.conn.QueryContext(d.ctx, query, collection, idx)
	if err != nil {
		return &storeerrors.UncaughtError{LayerName: layerName, Op: "restore", Err: err}
	}

	type candidate struct {
		vt  int64
		tor int64
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.vt, &c.tor); err != nil {
			rows.Close()
			return &storeerrors.UncaughtError{LayerName: layerName, Op: "restore", Err: err}
		}
		candidates = append(candidates, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return &storeerrors.UncaughtError{LayerName: layerName, Op: "restore", Err: err}
	}

	if nthMostRecent > len(candidates) {
		return &storeerrors.RangeError{LayerName: layerName, Message: "nth_most_recent exceeds available tombstones"}
	}
	target := candidates[nthMostRecent-1]

	live, err := d.Exists(collection, index, target.vt)
	if err != nil {
		return err
	}
	if live {
		return &storeerrors.AlreadyExistsError{LayerName: layerName, Collection: collection, Identity: identityString(index, target.vt)}
	}

	update := fmt.Sprintf(`UPDATE %s SET time_of_removal=NULL WHERE collection=$1 AND index_fields=$2 AND version_timestamp=$3 AND time_of_removal=$4`, d.tableName())
	_, err = d.conn.ExecContext(d.ctx, update, collection, idx, target.vt, target.tor)
	if err != nil {
		return &storeerrors.UncaughtError{LayerName: layerName, Op: "restore", Err: err}
	}
	return nil
}

func (d *PostgresDAO) Purge(collection string, timeThreshold *time.Time) (int, error) {
	var (
		query string
		args  []any
	)
	args = append(args, collection)
	if timeThreshold != nil {
		query = fmt.Sprintf(`DELETE FROM %s WHERE collection=$1 AND time_of_removal IS NOT NULL AND time_of_removal < $2`, d.tableName())
		args = append(args, objectid.DatetimeToMicroseconds(*timeThreshold))
	} else {
		query = fmt.Sprintf(`DELETE FROM %s WHERE collection=$1 AND time_of_removal IS NOT NULL`, d.tableName())
	}

	res, err := d.conn.ExecContext(d.ctx, query, args...)
	if err != nil {
		return 0, &storeerrors.UncaughtError{LayerName: layerName, Op: "purge", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &storeerrors.UncaughtError{LayerName: layerName, Op: "purge", Err: err}
	}
	return int(n), nil
}

func (d *PostgresDAO) Close() error {
	return d.conn.Close()
}

// serializableDocument converts managed time.Time fields to microsecond
// integers for JSONB storage, per §6 "Document-store schema".
func serializableDocument(doc Document) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		if t, ok := v.(time.Time); ok {
			out[k] = objectid.DatetimeToMicroseconds(t)
			continue
		}
		out[k] = v
	}
	return out
}

func decodeDocument(body []byte) (Document, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &storeerrors.UncaughtError{LayerName: layerName, Op: "decode", Err: err}
	}

	doc := Document(raw)
	if v, ok := doc[FieldTimeOfSave].(float64); ok {
		doc[FieldTimeOfSave] = objectid.MicrosecondsToDatetime(int64(v))
	}
	if v, ok := doc[FieldTimeOfRemoval].(float64); ok {
		doc[FieldTimeOfRemoval] = objectid.MicrosecondsToDatetime(int64(v))
	}
	return doc, nil
}
