package company

import "errors"

// ErrNotFound indicates a lookup for a company or image that does not exist.
var ErrNotFound = errors.New("company not found")
