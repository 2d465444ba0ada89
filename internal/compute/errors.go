package compute

import (
	"fmt"

	"github.com/born-ml/lower/internal/dnn"
	"github.com/pkg/errors"
)

// Error classes. Every error returned by this package wraps exactly one of
// them; use errors.Is or StatusOf to classify.
var (
	ErrInvalidShape  = errors.New("invalid shape")
	ErrUnsupported   = errors.New("unsupported")
	ErrNativeFailure = errors.New("native failure")
	ErrLookup        = errors.New("lookup failure")
	ErrInvalidValue  = errors.New("invalid value")
)

// Status is the coarse result class of an API call.
type Status int

// Status values.
const (
	Success Status = iota
	InvalidShape
	Unsupported
	NativeFailure
	LookupFailure
	InvalidValue

	numStatuses
)

var statusNames = [...]string{
	Success:       "success",
	InvalidShape:  "invalid_shape",
	Unsupported:   "unsupported",
	NativeFailure: "native_failure",
	LookupFailure: "lookup_failure",
	InvalidValue:  "invalid_value",
}

var _ = [1]struct{}{}[len(statusNames)-int(numStatuses)]

func (s Status) String() string {
	if s < 0 || s >= numStatuses {
		return fmt.Sprintf("unknown(%d)", int(s))
	}
	return statusNames[s]
}

// StatusOf maps an error returned by this package to its Status. Errors from
// the kernel library, and errors of unknown origin, are native failures.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, ErrInvalidShape):
		return InvalidShape
	case errors.Is(err, ErrUnsupported):
		return Unsupported
	case errors.Is(err, ErrLookup):
		return LookupFailure
	case errors.Is(err, ErrInvalidValue):
		return InvalidValue
	default:
		return NativeFailure
	}
}

// native wraps a kernel library error so it classifies as ErrNativeFailure
// while keeping the library message.
func native(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, dnn.ErrInvalidDesc) || errors.Is(err, dnn.ErrExecution) {
		return errors.Wrapf(ErrNativeFailure, "%s: %v", fmt.Sprintf(format, args...), err)
	}
	return errors.Wrapf(err, format, args...)
}
