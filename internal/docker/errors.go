package docker

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies engine-layer failures. Callers branch on the
// kind to decide retry policy instead of matching error strings.
type ErrorKind int

const (
	// KindConnection: a host cannot be reached or authenticated.
	KindConnection ErrorKind = iota + 1
	// KindCreation: image pull or container create failed.
	KindCreation
	// KindExecution: an exec/stop/remove/restart engine call failed.
	KindExecution
	// KindResourceLimit: quota validation failed before any engine call.
	KindResourceLimit
	// KindMonitor: a stats sampling window failed mid-loop.
	KindMonitor
	// KindNotFound: the referenced container or host does not exist.
	KindNotFound
	// KindState: the operation is illegal for the container's state.
	KindState
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindCreation:
		return "creation"
	case KindExecution:
		return "execution"
	case KindResourceLimit:
		return "resource_limit"
	case KindMonitor:
		return "monitor"
	case KindNotFound:
		return "not_found"
	case KindState:
		return "state"
	default:
		return "unknown"
	}
}

// Error is the single error type surfaced by this package.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// wrapErr classifies err under kind for operation op. Existing engine
// errors keep their original kind so the taxonomy survives routing
// layers.
func wrapErr(kind ErrorKind, op string, err error) *Error {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		kind = engineErr.Kind
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// newErr builds a classified error from a message.
func newErr(kind ErrorKind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// isPortConflict reports whether an engine creation error means the
// requested host port is taken. The engine only signals this through
// its message text, so the fragile substring match lives here and
// nowhere else.
func isPortConflict(err error) bool {
	return err != nil && strings.Contains(err.Error(), "port is already allocated")
}
