package gateway

import (
	"errors"
	"fmt"
)

// Error is any failure reaching or reported by the gateway.
type Error struct {
	StatusCode int
	Body       any
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("gateway: status %d: %v", e.StatusCode, e.Err)
	case e.Err != nil:
		return "gateway: " + e.Err.Error()
	default:
		return fmt.Sprintf("gateway: status %d", e.StatusCode)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Detail is what callers surface to clients: the gateway's response body
// when there is one, otherwise the error message.
func (e *Error) Detail() any {
	if e.Body != nil {
		return e.Body
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Error()
}

// Detail extracts the client-facing detail from any error.
func Detail(err error) any {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Detail()
	}
	return err.Error()
}
