package model

import "github.com/rotisserie/eris"

var (
	// ErrNotFound is returned when a supplied identifier does not resolve to
	// an existing record.
	ErrNotFound = eris.New("not found")

	// ErrInsufficientData is returned when an operation cannot proceed
	// meaningfully because its inputs are empty, e.g. no competitor has
	// tenants.
	ErrInsufficientData = eris.New("insufficient data")

	// ErrInvalidInput is returned for malformed or ambiguous requests.
	ErrInvalidInput = eris.New("invalid input")
)
