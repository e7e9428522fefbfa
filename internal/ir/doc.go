// Package ir provides the intermediate representation of declarative
// behavioral programs and the value types their payloads use.
//
// This package imports nothing internal. The compiler produces ir types,
// the store persists them and the harness compares them.
//
// Key design constraints:
//   - NO float types anywhere - use int64 for numbers
//   - All JSON tags use snake_case
//   - Hashes use RFC 8785 canonical JSON with domain separation
package ir
