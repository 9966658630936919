package tunnel

import "fmt"

// TunnelError indicates a tunnel create or close failure.
type TunnelError struct {
	Op      string
	Message string
	Cause   error
}

func (e *TunnelError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("tunnel %s failed: %s: %v", e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("tunnel %s failed: %s", e.Op, e.Message)
}

func (e *TunnelError) Unwrap() error {
	return e.Cause
}

// PortConflictError indicates the bridge port was occupied when start
// tried to bind it. Distinguished so callers can tell the operator to
// look for another bridge instance.
type PortConflictError struct {
	Port  int
	Cause error
}

func (e *PortConflictError) Error() string {
	return fmt.Sprintf("bridge port %d is already in use", e.Port)
}

func (e *PortConflictError) Unwrap() error {
	return e.Cause
}

// RestartError wraps any failure during restart.
type RestartError struct {
	Cause error
}

func (e *RestartError) Error() string {
	return fmt.Sprintf("bridge restart failed: %v", e.Cause)
}

func (e *RestartError) Unwrap() error {
	return e.Cause
}
