// Package repository holds the storage layer for cafe records. Handlers
// translate its sentinel errors into HTTP responses.
package repository

import "errors"

// ErrNotFound is returned when no cafe matches an id or location.
var ErrNotFound = errors.New("cafe not found")

// ErrEmpty is returned by Random when the table has no rows.
var ErrEmpty = errors.New("no cafes stored")

// ErrDuplicateName is returned when a cafe with the same name already exists.
var ErrDuplicateName = errors.New("cafe name already exists")
