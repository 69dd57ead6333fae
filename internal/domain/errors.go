package domain

import (
	"errors"
)

// Sentinel errors for the core's error taxonomy - match with errors.Is().
// All of them are terminal for the request except ErrTimeout, which the
// caller may retry; the pipeline itself never retries.
var (
	// ErrNotFound: the referenced raid (or soft-reserve) does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden: the caller lacks the required role (admin, owner or
	// claim owner) for the requested mutation.
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthorized: the request carried no usable identity.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrLocked: the sheet is locked and the mutation would change claims.
	ErrLocked = errors.New("raid is locked")

	// ErrTimeout: lock acquisition or the transaction exceeded its bound.
	// The transaction was rolled back; the caller may retry.
	ErrTimeout = errors.New("transaction timed out")

	// ErrValidation: malformed operation parameters.
	ErrValidation = errors.New("validation failed")
)
