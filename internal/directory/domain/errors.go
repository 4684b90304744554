package directory

import "errors"

// ErrNotFound indicates a directory entity does not exist.
var ErrNotFound = errors.New("directory: not found")

// ErrValidation indicates a malformed directory entity.
var ErrValidation = errors.New("directory: validation failed")
