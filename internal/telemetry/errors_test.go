package telemetry

import (
	"errors"
	"fmt"
	"testing"
)

func TestTransientErrorUnwraps(t *testing.T) {
	base := errors.New("database is closed")
	terr := &TransientError{Op: "query event archive", Err: base}

	if !errors.Is(terr, base) {
		t.Error("TransientError must unwrap to its cause")
	}

	wrapped := fmt.Errorf("handler: %w", terr)
	var got *TransientError
	if !errors.As(wrapped, &got) {
		t.Error("errors.As must find TransientError through wrapping")
	}
}

func TestNotFoundErrorMessage(t *testing.T) {
	err := &NotFoundError{Resource: "device", ID: "edge-404"}
	if got := err.Error(); got != `unknown device "edge-404"` {
		t.Errorf("Error() = %q", got)
	}
}
