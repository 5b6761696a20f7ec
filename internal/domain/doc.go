// Package domain defines the core domain types for the codescape code-graph visualization system.
//
// This package contains the entities and value objects that represent a parsed
// codebase as a graph: nodes (functions, variables, modules, vulnerabilities,
// calls), typed edges between them, and the positions a layout assigns.
//
// # Core Types
//
// Node represents a code entity with a type, a visual size, an initial spatial
// hint, and free-form metadata carried over from the analysis payload.
//
// Edge represents a directed relationship between two nodes with a typed
// relationship (call, dataflow, reference, dependency) and a strength that
// scales layout forces.
//
// Graph is one immutable generation of the model. It is rebuilt wholesale
// from every analysis payload and guarantees that no edge names a node that
// does not exist.
//
// # Payload Normalization
//
// Build turns a decoded Payload into a Graph. Every section is optional and
// normalized independently: malformed entries are skipped, dangling edges are
// dropped, and the counts are reported in a BuildReport instead of an error.
//
// # Design Principles
//
// - Immutable value objects where possible
// - No database or external dependencies
// - Pure domain logic without infrastructure concerns
// - Rich type system with meaningful constants and enumerations
package domain
