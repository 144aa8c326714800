package service

import "errors"

// ErrNotFound is returned when a referenced record does not exist
var ErrNotFound = errors.New("not found")
