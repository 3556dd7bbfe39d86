package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and state backends return
// these (optionally wrapped) so services can translate them into coded domain
// errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record does not exist in the backend
// - ErrConflict: record already exists or was concurrently modified
// - ErrInvalidState: record in wrong state for the requested transition
// - ErrUnavailable: backend temporarily unreachable
//
// For input validation, use pkg/errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
