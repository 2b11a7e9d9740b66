package ports

import "errors"

// Sentinel errors shared by store implementations.
var (
	// ErrNotFound indicates no row matched the lookup.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate indicates a uniqueness violation.
	ErrDuplicate = errors.New("already exists")

	// ErrFreeKeyExists indicates the account already holds a free key.
	ErrFreeKeyExists = errors.New("account already has a free key")

	// ErrFreeKeyPermanent indicates a free key cannot be deleted.
	ErrFreeKeyPermanent = errors.New("free keys cannot be deleted")
)
