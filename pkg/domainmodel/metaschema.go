// SPDX-License-Identifier: Apache-2.0

package domainmodel

// metaschemaJSON is the authoritative metaschema from §6 "Domain-model
// metaschema", encoding §3 invariants 1 and 3 and the data_model =>
// metamodel_ref requirement. It is compiled once at registry construction
// with santhosh-tekuri/jsonschema/v6, the same library pgroll compiles its
// own top-level schema.json with (internal/jsonschema).
//
// The schema_name "no double underscore" and "forbidden substring" rules
// are expressed with "not"/"pattern" rather than a lookahead, since Go's
// RE2-based regexp engine (which jsonschema/v6 uses for the "pattern"
// keyword) does not support lookahead assertions.
const metaschemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["schema_name", "schema_title", "schema_description", "schema_type", "json_schema"],
  "additionalProperties": false,
  "properties": {
    "schema_name": {
      "type": "string",
      "pattern": "^[a-z][a-z0-9_]*[a-z0-9]$",
      "not": {
        "anyOf": [
          {"pattern": "__"},
          {"pattern": "time_of_save"},
          {"pattern": "time_of_removal"}
        ]
      }
    },
    "schema_title": {
      "type": "string",
      "pattern": "^[A-Za-z0-9][A-Za-z0-9 ]+[A-Za-z0-9]$"
    },
    "schema_description": {
      "type": "string",
      "minLength": 1,
      "pattern": "^\\S(.*\\S)?$"
    },
    "schema_type": {
      "type": "string",
      "enum": ["property_model", "metamodel", "data_model"]
    },
    "json_schema": {
      "type": "object"
    },
    "metamodel_ref": {
      "type": ["string", "null"]
    },
    "time_of_save": {},
    "time_of_removal": {},
    "version_timestamp": {}
  },
  "allOf": [
    {
      "if": {
        "properties": {"schema_type": {"const": "data_model"}},
        "required": ["schema_type"]
      },
      "then": {
        "required": ["metamodel_ref"]
      }
    },
    {
      "if": {
        "properties": {"schema_type": {"enum": ["metamodel", "data_model"]}},
        "required": ["schema_type"]
      },
      "then": {
        "properties": {
          "json_schema": {
            "type": "object",
            "required": ["type"],
            "properties": {"type": {"const": "object"}}
          }
        }
      }
    }
  ]
}`
