package classify

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCredentials is returned when no API key is configured.
	ErrNoCredentials = errors.New("no classifier api key configured")
	// ErrEmptyResponse is returned when a backend replies with nothing usable.
	ErrEmptyResponse = errors.New("empty classifier response")
	// ErrInvalidResponse matches any InvalidResponseError.
	ErrInvalidResponse = errors.New("invalid classifier response")
	// ErrBackendsExhausted is returned after every key and model failed.
	ErrBackendsExhausted = errors.New("all classifier backends failed")
	// ErrInvalidImage is returned for uploads that are not a usable picture.
	ErrInvalidImage = errors.New("invalid image")
)

// InvalidResponseError carries a reply that did not look like a word.
type InvalidResponseError struct {
	Reply string
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("invalid classifier response %q", e.Reply)
}

func (e *InvalidResponseError) Is(target error) bool {
	return target == ErrInvalidResponse
}

// exhaustedError wraps the last backend failure.
type exhaustedError struct {
	attempts int
	last     error
}

func (e *exhaustedError) Error() string {
	if e.last == nil {
		return fmt.Sprintf("%s after %d attempts", ErrBackendsExhausted, e.attempts)
	}
	return fmt.Sprintf("%s after %d attempts: %v", ErrBackendsExhausted, e.attempts, e.last)
}

func (e *exhaustedError) Unwrap() []error {
	if e.last == nil {
		return []error{ErrBackendsExhausted}
	}
	return []error{ErrBackendsExhausted, e.last}
}
