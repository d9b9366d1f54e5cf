package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest        = errors.New("bad request")
	ErrMethodNotAllowed  = errors.New("method not allowed")
	ErrRateLimitExceeded = errors.New("too many requests")
)

// wrapKind annotates err with the operation and the sentinel kind so that
// both errors.Is(kind) and the original cause survive.
func wrapKind(op string, kind, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", op, kind)
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}
