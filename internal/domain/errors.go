package domain

import "errors"

var (
	// ErrMalformedDataset indicates a payload missing both nodes and edges
	// arrays. Fatal for the current render only; the view shows an empty
	// state instead of attempting a partial one.
	ErrMalformedDataset = errors.New("malformed dataset: missing nodes/edges")

	// ErrNotFound indicates a missing entity (node, flow, location).
	ErrNotFound = errors.New("not found")
)
