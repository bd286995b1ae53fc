// Package schemas holds the JSON Schemas for documents the service writes.
package schemas

import _ "embed"

// OutcomeFile is the file name of the outcome schema.
const OutcomeFile = "outcome.schema.json"

// Outcome is the JSON Schema for persisted report outcomes.
//
//go:embed outcome.schema.json
var Outcome []byte
