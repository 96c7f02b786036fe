package store

import "errors"

// Sentinel errors for the KeyValueIndex, checked with errors.Is/errors.As —
// the idiomatic rendering of the validation/transient/durability/integrity
// error taxonomy.
var (
	// ErrDuplicate is returned by Insert when fuzzy dedupe is enabled and
	// hash_normalized already matches a current fact.
	ErrDuplicate = errors.New("store: duplicate fact (fuzzy dedupe)")

	// ErrIndexUnavailable signals permanent corruption; fatal for the
	// process.
	ErrIndexUnavailable = errors.New("store: index unavailable")

	// ErrNotFound is returned when a requested id has no current row.
	ErrNotFound = errors.New("store: not found")

	// ErrScopeTargetRequired is returned when scope is user|agent|session
	// and scope_target is empty.
	ErrScopeTargetRequired = errors.New("store: scope_target required for non-global scope")

	// ErrDimensionMismatch signals a vector whose dimension does not match
	// the index's fixed dimension.
	ErrDimensionMismatch = errors.New("store: vector dimension mismatch")
)
