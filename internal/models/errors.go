package models

import "errors"

// ErrNotFound is the storage layer's "no such record". Services map their
// driver's not-found error to this so callers never import the driver.
var ErrNotFound = errors.New("record not found")
