// SPDX-License-Identifier: Apache-2.0

package domainmodel

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"
)

// compileMetaschema mirrors the compilation steps New() performs, so the
// test exercises the exact same schema a Registry validates against without
// needing a docstore.DAO.
func compileMetaschema(t *testing.T) *jsonschema.Schema {
	t.Helper()

	compiler := jsonschema.NewCompiler()
	var raw any
	require.NoError(t, json.Unmarshal([]byte(metaschemaJSON), &raw))
	require.NoError(t, compiler.AddResource("signalstore://metaschema.json", raw))

	sch, err := compiler.Compile("signalstore://metaschema.json")
	require.NoError(t, err)
	return sch
}

// TestMetaschemaValidation walks testdata/, each file a txtar archive with an
// instance.json document and a valid boolean flag, and checks the compiled
// metaschema agrees, grounded on pgroll's own
// internal/jsonschema/jsonschema_test.go table-driven pattern.
func TestMetaschemaValidation(t *testing.T) {
	sch := compileMetaschema(t)

	const testDataDir = "testdata"
	entries, err := os.ReadDir(testDataDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	for _, entry := range entries {
		entry := entry
		t.Run(entry.Name(), func(t *testing.T) {
			ar, err := txtar.ParseFile(filepath.Join(testDataDir, entry.Name()))
			require.NoError(t, err)

			var instanceRaw, validRaw []byte
			for _, f := range ar.Files {
				switch f.Name {
				case "instance.json":
					instanceRaw = f.Data
				case "valid":
					validRaw = f.Data
				}
			}
			require.NotNil(t, instanceRaw, "missing instance.json section")
			require.NotNil(t, validRaw, "missing valid section")

			var instance any
			require.NoError(t, json.Unmarshal(instanceRaw, &instance))

			var wantValid bool
			require.NoError(t, json.Unmarshal([]byte(asJSONBool(validRaw)), &wantValid))

			err = sch.Validate(instance)
			if wantValid && err != nil {
				t.Errorf("expected instance to validate, got: %v", err)
			}
			if !wantValid && err == nil {
				t.Errorf("expected instance to be rejected, but it validated")
			}
		})
	}
}

// asJSONBool trims the trailing newline txtar leaves on a section's raw
// bytes so "true\n"/"false\n" unmarshal as bool.
func asJSONBool(b []byte) string {
	s := string(b)
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r' || s[len(s)-1] == ' ') {
		s = s[:len(s)-1]
	}
	return s
}
