package telemetry

import "fmt"

// ValidationError describes a rejected event or request. It maps to
// HTTP 400 at the API boundary; the event is dropped, never broadcast,
// never retried here.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid event: %s: %s", e.Field, e.Detail)
}

// NotFoundError reports a lookup miss on a known resource kind. Maps to
// HTTP 404.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Resource, e.ID)
}

// TransientError wraps a recoverable I/O failure (archive queries,
// storage hiccups). The operation may succeed on retry. Maps to
// HTTP 502.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure: %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }
