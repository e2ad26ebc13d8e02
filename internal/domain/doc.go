// Package domain defines the core domain types for the Flowscope
// transaction-flow visualization engine.
//
// This package contains the entities and value objects shared by every other
// layer: nodes (accounts with aggregate metrics), flows (directed transaction
// edges), risk tiers, dataset snapshots, layout positions, selection state,
// and resolved geographic locations.
//
// # Risk Tiers
//
// All risk-dependent behavior in the system (layout banding, edge coloring,
// dash patterns, node styling) derives from a single three-way split:
// TierForRisk. The breakpoints are exported so tests can assert the split is
// exhaustive and non-overlapping.
//
// # Dataset Snapshots
//
// A Dataset is replaced wholesale on every reload; nothing patches nodes or
// flows in place. Each snapshot carries a Generation id so asynchronous work
// started against an older snapshot can be recognized and discarded.
//
// # Design Principles
//
//   - No database or transport dependencies
//   - Pure functions for filtering and aggregation
//   - Money amounts are decimal, never float, until the render boundary
package domain
