// SPDX-License-Identifier: Apache-2.0

package storeerrors_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/signalstore/signalstore-go/pkg/storeerrors"
)

func TestKindOfMatchesConcreteErrorType(t *testing.T) {
	err := &storeerrors.NotFoundError{LayerName: "docstore", Collection: "records", Identity: "a/b"}

	kind, ok := storeerrors.KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, storeerrors.KindNotFound, kind)
}

func TestKindOfUnwrapsWrappedErrors(t *testing.T) {
	inner := &storeerrors.AlreadyExistsError{LayerName: "memstore", Collection: "objects", Identity: "tag-1"}
	wrapped := fmt.Errorf("context: %w", inner)

	kind, ok := storeerrors.KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, storeerrors.KindAlreadyExists, kind)
}

func TestKindOfFalseForPlainError(t *testing.T) {
	_, ok := storeerrors.KindOf(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestUncaughtErrorUnwrapsOriginal(t *testing.T) {
	inner := fmt.Errorf("disk full")
	err := &storeerrors.UncaughtError{LayerName: "filestore", Op: "add", Err: inner}

	assert.ErrorIs(t, err, inner)
}

func TestHistoryAppendLastPopLast(t *testing.T) {
	h := &storeerrors.History{}
	assert.Equal(t, 0, h.Len())

	e1 := storeerrors.NewHistoryEntry(time.Now(), "records", storeerrors.OperationAdded, map[string]any{"data_name": "a"}, false, "")
	e2 := storeerrors.NewHistoryEntry(time.Now(), "records", storeerrors.OperationRemoved, map[string]any{"data_name": "b"}, false, "")
	h.Append(e1)
	h.Append(e2)

	assert.Equal(t, 2, h.Len())

	last, ok := h.Last()
	assert.True(t, ok)
	assert.True(t, last.Equal(e2))

	popped, ok := h.PopLast()
	assert.True(t, ok)
	assert.True(t, popped.Equal(e2))
	assert.Equal(t, 1, h.Len())

	h.Clear()
	assert.Equal(t, 0, h.Len())
	_, ok = h.Last()
	assert.False(t, ok)
}

func TestHistorySnapshotIsDefensiveCopy(t *testing.T) {
	h := &storeerrors.History{}
	h.Append(storeerrors.NewHistoryEntry(time.Now(), "records", storeerrors.OperationAdded, map[string]any{"data_name": "a"}, false, ""))

	snap := h.Snapshot()
	h.Append(storeerrors.NewHistoryEntry(time.Now(), "records", storeerrors.OperationAdded, map[string]any{"data_name": "b"}, false, ""))

	assert.Len(t, snap, 1, "a prior snapshot must not see later appends")
}
