// Package repository defines the data access interfaces for codescape.
//
// Only state the user creates is persisted: the positions of pinned nodes
// and a short history of loaded graph generations. Layout positions of free
// nodes are recomputed from every payload and never stored.
//
// # Scopes
//
// Pins are keyed by scope and node id. The scope is the analysed project
// directory, so pins made on one project never leak into another. Payloads
// loaded from a file or message without a project share the empty scope.
//
// # SQLite Implementation
//
// The sqlite subpackage implements the interfaces using the pure Go
// modernc.org/sqlite driver with WAL mode. Tests run against in-memory
// databases.
package repository
