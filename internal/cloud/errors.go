package cloud

import (
	"errors"
	"fmt"
)

// ErrNotFound is wrapped by a RemoteError when the provider answers 404.
var ErrNotFound = errors.New("remote resource not found")

// ErrMalformedPayload is wrapped by a RemoteError when a successful reply
// does not carry the JSON body the call expects.
var ErrMalformedPayload = errors.New("malformed payload")

// RemoteError describes a failed call to a provider.
type RemoteError struct {
	Provider   string
	Operation  string
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider '%s': %s: status %d: %v", e.Provider, e.Operation, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider '%s': %s: %v", e.Provider, e.Operation, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a remote 404.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
