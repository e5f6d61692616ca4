// SPDX-License-Identifier: Apache-2.0

package filestore

import (
	"fmt"
	"strconv"
	"strings"
)

// microsecondWidth is wide enough that every representable
// microseconds-since-epoch value (an int64, so up to 19 decimal digits) sorts
// lexically the same as it sorts numerically, per §6 "unsigned_microseconds
// ... rendered as a fixed-width decimal string so lexical sort equals
// chronological sort".
const microsecondWidth = 20

func formatMicroseconds(us int64) string {
	return fmt.Sprintf("%0*d", microsecondWidth, us)
}

// fileName builds the {schema_ref}__{data_name}[__version_{us}][__time_of_removal_{us}]{ext}
// name described in §6 "File naming (filesystem DAO)". schema_ref never
// contains "__" (the domain-model schema_name pattern forbids it), so the
// first "__" always ends it. data_name is not checked for "__" here or by
// the data repository; a data_name containing it yields a name that
// parseFileName cannot split back into the same fields.
func fileName(schemaRef, dataName string, versionTimestamp int64, timeOfRemoval *int64, ext string) string {
	name := schemaRef + "__" + dataName
	if versionTimestamp != 0 {
		name += "__version_" + formatMicroseconds(versionTimestamp)
	}
	if timeOfRemoval != nil {
		name += "__time_of_removal_" + formatMicroseconds(*timeOfRemoval)
	}
	return name + ext
}

// parsedFileName is the decomposition of a file name produced by fileName.
type parsedFileName struct {
	SchemaRef        string
	DataName         string
	VersionTimestamp int64
	HasVersion       bool
	TimeOfRemoval    int64
	IsTombstone      bool
}

func parseFileName(base string, ext string) (parsedFileName, bool) {
	if ext != "" {
		if !strings.HasSuffix(base, ext) {
			return parsedFileName{}, false
		}
		base = strings.TrimSuffix(base, ext)
	}

	parts := strings.Split(base, "__")
	if len(parts) < 2 {
		return parsedFileName{}, false
	}

	p := parsedFileName{SchemaRef: parts[0], DataName: parts[1]}
	for _, part := range parts[2:] {
		switch {
		case strings.HasPrefix(part, "version_"):
			v, err := strconv.ParseInt(strings.TrimPrefix(part, "version_"), 10, 64)
			if err != nil {
				return parsedFileName{}, false
			}
			p.VersionTimestamp = v
			p.HasVersion = true
		case strings.HasPrefix(part, "time_of_removal_"):
			v, err := strconv.ParseInt(strings.TrimPrefix(part, "time_of_removal_"), 10, 64)
			if err != nil {
				return parsedFileName{}, false
			}
			p.TimeOfRemoval = v
			p.IsTombstone = true
		default:
			return parsedFileName{}, false
		}
	}
	return p, true
}
