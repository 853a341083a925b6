package network

import (
	"context"

	"github.com/go-errors/errors"
)

var ErrNoWifiDevice = errors.New("no wifi device found")

// OpError is returned by Network implementations when an operation
// on the backend fails or does not complete in time.
type OpError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *OpError) Error() string {
	if e.Timeout {
		return e.Op + " timed out: " + e.Err.Error()
	}

	return e.Op + " failed: " + e.Err.Error()
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func opError(op string, err error) error {
	return &OpError{
		Op:      op,
		Timeout: errors.Is(err, context.DeadlineExceeded),
		Err:     err,
	}
}

// IsTimeout reports whether err is a timed out network operation
func IsTimeout(err error) bool {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Timeout
	}

	return errors.Is(err, context.DeadlineExceeded)
}
