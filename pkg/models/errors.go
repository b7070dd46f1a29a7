package models

import "errors"

var (
	// ErrInvalidArgument marks input rejected before it reaches a store.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrHostNotConfigured is returned when a record is built from an empty HostIdentity.
	ErrHostNotConfigured = errors.New("host identity not configured")
)
