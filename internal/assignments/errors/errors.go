package errors

import "errors"

var (
	// ErrNoAssignment is returned when a property has no ledger rows.
	ErrNoAssignment = errors.New("property has no assignment")

	ErrPropertyNotFound = errors.New("property not found")
)
