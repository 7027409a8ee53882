package models

import (
	"context"
	"errors"
	"fmt"
)

// FetchError is returned by fetch clients on network or parse failures.
type FetchError struct {
	SourceID int64
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch source %d: %v", e.SourceID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Transient reports whether the next tick may succeed without intervention:
// timeouts and upstream errors that say so. Malformed payloads are not transient.
func (e *FetchError) Transient() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Temporary() bool }
	return errors.As(e.Err, &t) && t.Temporary()
}
