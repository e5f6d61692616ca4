// SPDX-License-Identifier: Apache-2.0

package storeerrors

import "time"

// OperationKind distinguishes an addition from a removal in an operation
// history entry.
type OperationKind string

const (
	OperationAdded   OperationKind = "added"
	OperationRemoved OperationKind = "removed"
)

// HistoryEntry is an immutable value recording one reversible mutation
// against one collection. It carries everything undo needs to invert the
// mutation without consulting the document/file itself: the identity
// keyword arguments, whether a companion data file was involved, and (for
// data-repository entries) the file extension of the data-format adapter
// in use. DataRepository.Undo does not read DataAdapterExt; it addresses
// the file through the adapter its caller passes.
type HistoryEntry struct {
	Timestamp      time.Time
	CollectionName string
	Kind           OperationKind
	Identity       map[string]any
	HasFile        bool
	DataAdapterExt string
}

// NewHistoryEntry copies identity defensively so later mutation of the
// caller's map cannot corrupt a recorded entry.
func NewHistoryEntry(ts time.Time, collection string, kind OperationKind, identity map[string]any, hasFile bool, dataAdapterExt string) HistoryEntry {
	cp := make(map[string]any, len(identity))
	for k, v := range identity {
		cp[k] = v
	}
	return HistoryEntry{
		Timestamp:      ts,
		CollectionName: collection,
		Kind:           kind,
		Identity:       cp,
		HasFile:        hasFile,
		DataAdapterExt: dataAdapterExt,
	}
}

// Before reports whether e occurred strictly before other, ordering by
// Timestamp as required by the append-only, append-sequence-ordered history
// contract.
func (e HistoryEntry) Before(other HistoryEntry) bool {
	return e.Timestamp.Before(other.Timestamp)
}

// Equal is a value-type comparison used by tests; it compares every field,
// including the identity map contents (not pointer identity).
func (e HistoryEntry) Equal(other HistoryEntry) bool {
	if !e.Timestamp.Equal(other.Timestamp) ||
		e.CollectionName != other.CollectionName ||
		e.Kind != other.Kind ||
		e.HasFile != other.HasFile ||
		e.DataAdapterExt != other.DataAdapterExt ||
		len(e.Identity) != len(other.Identity) {
		return false
	}
	for k, v := range e.Identity {
		ov, ok := other.Identity[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// History is a per-repository append-only vector of HistoryEntry. It is
// cleared on UoW entry, on commit, and after a successful rollback.
type History struct {
	entries []HistoryEntry
}

// Append adds e to the end of the history.
func (h *History) Append(e HistoryEntry) {
	h.entries = append(h.entries, e)
}

// Len reports the number of entries currently recorded.
func (h *History) Len() int {
	return len(h.entries)
}

// Last returns the most recently appended entry and true, or the zero value
// and false if the history is empty.
func (h *History) Last() (HistoryEntry, bool) {
	if len(h.entries) == 0 {
		return HistoryEntry{}, false
	}
	return h.entries[len(h.entries)-1], true
}

// PopLast removes and returns the most recently appended entry.
func (h *History) PopLast() (HistoryEntry, bool) {
	e, ok := h.Last()
	if ok {
		h.entries = h.entries[:len(h.entries)-1]
	}
	return e, ok
}

// Snapshot returns a defensive copy of the current entries, in append order.
func (h *History) Snapshot() []HistoryEntry {
	cp := make([]HistoryEntry, len(h.entries))
	copy(cp, h.entries)
	return cp
}

// Clear empties the history, as done on commit or after rollback.
func (h *History) Clear() {
	h.entries = nil
}
