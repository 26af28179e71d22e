package aggregate

import "errors"

// ErrUnknownBasis is returned for a peak basis other than stacked or per_event.
var ErrUnknownBasis = errors.New("unknown peak basis")
