package pace

import "errors"

// Sentinel kinds for pace profile errors.
var (
	ErrInvalidPace  = errors.New("invalid pace")
	ErrInvalidTable = errors.New("invalid pace table")
)
