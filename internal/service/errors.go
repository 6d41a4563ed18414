package service

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidInput     = errors.New("invalid input")
	ErrConflict         = errors.New("conflict")

	// ErrDetectionUnavailable is kept distinct from plain API failures: the
	// dashboard offers a manual retry specifically for the detection
	// pipeline.
	ErrDetectionUnavailable = errors.New("detection service unavailable")
)
