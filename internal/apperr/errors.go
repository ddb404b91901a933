// Package apperr holds sentinel errors shared across layers. Handlers map
// them to status codes with errors.Is.
package apperr

import "errors"

// ErrNotFound is returned when a lookup by slug matches no note.
var ErrNotFound = errors.New("not found")
