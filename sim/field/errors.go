package field

import "errors"

// ErrOutOfBounds is returned when a write targets a coordinate outside a
// bounded structure.
var ErrOutOfBounds = errors.New("coordinate out of bounds")
