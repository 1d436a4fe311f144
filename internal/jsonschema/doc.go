// Package jsonschema derives JSON Schema documents from Go types by
// reflection, for declaring tool parameters to providers.
//
// [FromType] is the entry point. Structs map to object schemas with json
// tag names; jsonschema struct tags contribute descriptions, enums, and
// explicit required markers. Self-referential types are emitted once
// under $defs and referenced with $ref.
package jsonschema
