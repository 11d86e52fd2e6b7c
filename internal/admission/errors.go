package admission

import "errors"

var (
	// ErrInvalidSignal is returned before any store access for malformed input.
	ErrInvalidSignal = errors.New("invalid signal")
	// ErrStoreUnavailable wraps every repository failure. Nothing is appended.
	ErrStoreUnavailable = errors.New("store unavailable")
)
