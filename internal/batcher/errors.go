package batcher

import (
	"errors"
	"fmt"
)

// ErrDispatcherStopped is returned for payloads submitted after Stop
var ErrDispatcherStopped = errors.New("dispatcher stopped")

// TransportError reports a failed call to the remote endpoint.
// Every item of the affected destination group settles with it.
type TransportError struct {
	Destination string
	Mode        Mode
	Err         error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s request to %s failed: %v", e.Mode, e.Destination, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ResponseShapeError reports a combined response that could not be mapped
// back onto the items of its group.
type ResponseShapeError struct {
	Destination string
	Expected    int
	Got         int // -1 when the body could not be parsed
	Err         error
}

func (e *ResponseShapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("combined response from %s is malformed: %v", e.Destination, e.Err)
	}
	return fmt.Sprintf("combined response from %s size mismatch: expected %d, got %d", e.Destination, e.Expected, e.Got)
}

func (e *ResponseShapeError) Unwrap() error {
	return e.Err
}

// DrainConsistencyError reports a drain that disagrees with the queue's counter
type DrainConsistencyError struct {
	Expected int
	Got      int
}

func (e *DrainConsistencyError) Error() string {
	return fmt.Sprintf("drain returned %d items, queue counted %d", e.Got, e.Expected)
}
