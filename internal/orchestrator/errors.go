package orchestrator

import (
	"errors"
	"fmt"
	"time"
)

// ErrRouterBusy is returned when a router start/stop is already in flight.
var ErrRouterBusy = errors.New("host router operation already in progress")

// ErrNotFound is returned when an operation names an id the store does not hold.
var ErrNotFound = errors.New("not found")

// TimeoutError reports a bridge call that did not answer within its bound.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timeout after %s", e.Op, e.After)
}

// ValidationError is a field-level input problem caught before the bridge.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}
