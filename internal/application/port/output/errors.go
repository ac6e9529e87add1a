package output

import (
	"errors"
	"fmt"
)

// NetworkError reports a non-2xx response from the record service
type NetworkError struct {
	StatusCode int
	Body       string
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("record service returned %d: %s", e.StatusCode, e.Body)
}

// DecodingError reports a response body that could not be decoded
type DecodingError struct {
	Err error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("decode record service response: %v", e.Err)
}

func (e *DecodingError) Unwrap() error {
	return e.Err
}

// ErrAuthExpired is returned when the token provider cannot produce a valid
// bearer token
var ErrAuthExpired = errors.New("authorization expired")

// ErrPermissionDenied is returned when the microphone-use grant was refused
var ErrPermissionDenied = errors.New("microphone permission denied")

// ErrFileMissing is returned when a Note's audio reference cannot be resolved
// to a readable file
var ErrFileMissing = errors.New("audio file missing")

// ErrLocationUnavailable is returned when no location fix could be obtained.
// Callers degrade silently; a memo without a location is still a memo.
var ErrLocationUnavailable = errors.New("location unavailable")
