package domain

import "errors"

// ErrNotFound is returned by store lookups when the record does not exist.
var ErrNotFound = errors.New("record not found")
