package alerts

import "errors"

// ErrNotFound indicates the alert does not exist.
var ErrNotFound = errors.New("alerts: not found")

// ErrConflict indicates the device already has an alert.
var ErrConflict = errors.New("alerts: device already has an alert")

// ErrValidation indicates a malformed alert configuration.
var ErrValidation = errors.New("alerts: validation failed")
