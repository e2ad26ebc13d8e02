// Package repository defines the data access interfaces for Flowscope.
//
// This package provides the repository abstraction layer for persisting
// and querying transactions and account reference data. The actual
// implementation is in the sqlite subpackage.
//
// # Repository Interface
//
// The Repository interface defines transaction import, account lookup,
// and the network aggregation query that turns raw transactions into the
// node/flow dataset the visualization consumes.
//
// # SQLite Implementation
//
// The sqlite implementation provides a complete repository using SQLite
// with WAL mode for concurrency. It handles:
//
// - Transactional bulk imports from the codec layer
// - Account upserts preserving reference data across imports
// - Focus-account neighborhood expansion with result caps
// - Per-pair and per-account aggregation into flows and node metrics
//
// Monetary amounts are stored as exact decimal strings; a shadow numeric
// column carries the comparable value for SQL range filters.
//
// # Testing
//
// The sqlite repository is tested against temporary database files to
// ensure aggregation correctness and proper handling of edge cases.
package repository
