package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers
// return these (optionally wrapped) so services can translate them into domain
// errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: no persisted session/clock in the store
// - ErrStale: async result belongs to an older session epoch
// - ErrUnavailable: backing storage temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors
// directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrStale       = errors.New("stale")
	ErrUnavailable = errors.New("unavailable")
)
