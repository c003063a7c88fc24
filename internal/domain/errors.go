package domain

import "errors"

// Terminal error kinds of a simulation run. None of them is retried: each one
// comes from static configuration or malformed input, never from a transient
// condition. Callers wrap them with context and test with errors.Is.
var (
	// ErrInsufficientData means there are too few observation rows
	// (covariance needs at least two).
	ErrInsufficientData = errors.New("insufficient data")

	// ErrDimensionMismatch means weight, mean and covariance lengths disagree.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrInvalidDimension means the asset universe is empty.
	ErrInvalidDimension = errors.New("invalid dimension")

	// ErrInvalidParameter means a configuration value is out of range.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrMalformedInput means a returns or prices file could not be parsed.
	ErrMalformedInput = errors.New("malformed input")
)
