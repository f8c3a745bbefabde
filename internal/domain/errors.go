package domain

import "errors"

var (
	// Validation errors. Detected before any write is attempted.
	ErrInvalidCoordinates    = errors.New("coordinates out of range")
	ErrDegenerateCoordinates = errors.New("zero coordinates indicate a failed position fix")
	ErrMissingAddress        = errors.New("virtual location requires an address")
	ErrInvalidSource         = errors.New("unknown location source")

	// Feature / lookup errors.
	ErrFeatureDisabled  = errors.New("virtual locations are disabled")
	ErrLocationNotFound = errors.New("location not found")
	ErrUserNotFound     = errors.New("user not found")

	// ErrUpstreamUnavailable marks a failed best-effort enrichment call
	// (IP geolocation). Never fatal for core sharing or search.
	ErrUpstreamUnavailable = errors.New("upstream location provider unavailable")
)
