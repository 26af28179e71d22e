package model

import "errors"

// Error taxonomy shared by every stage of an analysis run. Stages classify
// failures with errkind.Wrap so callers can use errors.Is on these kinds.
var (
	// ErrSchema marks missing or malformed required input columns or fields,
	// and references to undefined segments or events.
	ErrSchema = errors.New("schema error")
	// ErrConfiguration marks inconsistent course configuration: inverted
	// chainage, non-positive width or length, contradictory overlap rows.
	ErrConfiguration = errors.New("configuration error")
	// ErrValidation marks event or resolution settings outside accepted bounds.
	ErrValidation = errors.New("validation error")
)
