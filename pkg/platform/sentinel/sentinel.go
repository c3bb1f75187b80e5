package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers
// return these (optionally wrapped) so services can translate them into
// domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record does not exist in store
// - ErrMigrated: listing was handed off to a successor registrar (terminal)
// - ErrLockHeld: another registration holds the per-label lock
var (
	ErrNotFound = errors.New("not found")
	ErrMigrated = errors.New("migrated")
	ErrLockHeld = errors.New("lock held")
)
