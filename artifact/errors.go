package artifact

import "errors"

// ErrNotFound is returned when no artifact exists for the given id.
var ErrNotFound = errors.New("artifact not found")
