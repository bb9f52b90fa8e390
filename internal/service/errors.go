package service

import "errors"

var (
	// ErrValidation is returned when a required caller input is empty or out of range.
	ErrValidation = errors.New("validation failed")
	// ErrLoad is returned when the remote store failed and no cached fallback exists.
	ErrLoad = errors.New("load failed")
	// ErrNotFound is returned when the target id exists in neither the remote store nor the cache.
	ErrNotFound = errors.New("not found")
	// ErrTransientCache marks local cache failures. It is logged, never returned.
	ErrTransientCache = errors.New("transient cache failure")
)
