package flags

import "errors"

// Predefined errors for the flags package.
var (
	// ErrFlagNotFound indicates that the requested feature flag was not found.
	ErrFlagNotFound = errors.New("feature flag not found")

	// ErrOverrideNotFound indicates that no override exists for the requested
	// flag and user pair.
	ErrOverrideNotFound = errors.New("flag override not found")

	// ErrInvalidFlag indicates that the provided flag parameters are invalid.
	ErrInvalidFlag = errors.New("invalid feature flag parameters")

	// ErrInvalidRule indicates that the provided rule parameters are invalid.
	ErrInvalidRule = errors.New("invalid flag rule parameters")

	// ErrNilStorage indicates an evaluator was constructed without a storage collaborator.
	ErrNilStorage = errors.New("flag storage cannot be nil")

	// ErrParsingConfig is returned when environment variables cannot be parsed
	// into the engine configuration.
	ErrParsingConfig = errors.New("failed to parse flags configuration from environment")

	// ErrRecorderClosed indicates the evaluation recorder has been shut down.
	ErrRecorderClosed = errors.New("evaluation recorder is closed")

	// ErrRecorderFull indicates the recorder buffer is full and the record was
	// dropped rather than stalling the evaluation hot path.
	ErrRecorderFull = errors.New("evaluation recorder buffer is full")
)
