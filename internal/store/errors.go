package store

import "errors"

// ErrNotFound means the row does not exist.
var ErrNotFound = errors.New("not found")
