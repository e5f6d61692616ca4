// SPDX-License-Identifier: Apache-2.0

package dataobject

import (
	"encoding/json"
	"fmt"
	"sort"
)

// SerializeAttrsForStorage converts an attribute dict into the
// string-keyed, string-valued form every concrete adapter writes to its
// container format: booleans become "true"/"false", nil becomes "None",
// strings are kept as they are, and every other value (maps, slices,
// numbers) is replaced by its JSON text, mirroring the
// original _clean_attributes step ("make sure attrs are strings") that
// every xarray-backed adapter applied before calling to_netcdf/to_zarr.
func SerializeAttrsForStorage(attrs map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		s, err := serializeAttrValue(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		out[k] = s
	}
	return out, nil
}

func serializeAttrValue(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "None", nil
	case bool:
		if t {
			return "true", nil
		}
		return "false", nil
	case string:
		return t, nil
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

// DeserializeAttrsFromStorage is the best-effort inverse of
// SerializeAttrsForStorage: "true"/"false" become bool, "None" becomes nil,
// values that parse as JSON objects/arrays are restored as such, and
// everything else is left as a string. The first Serialize/Deserialize
// cycle may change a value's type: an int 3 is stored as "3" and comes back
// as the string "3", not as a number. Every value the first cycle returns
// is then a fixed point, so a second and further cycles change nothing
// (§8's serialization round-trip law).
func DeserializeAttrsFromStorage(raw map[string]string) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = deserializeAttrValue(v)
	}
	return out
}

func deserializeAttrValue(s string) any {
	switch s {
	case "None":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if len(s) > 0 && (s[0] == '{' || s[0] == '[') {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return v
		}
	}
	return s
}

// SortedKeys returns the keys of attrs in sorted order, used when writing
// attributes to a deterministic container layout.
func SortedKeys(attrs map[string]any) []string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
