package proxy

import "fmt"

// AlreadyRunningError indicates Start was called while the server was
// already bound.
type AlreadyRunningError struct {
	Port int
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("proxy server is already running on port %d", e.Port)
}

// PortInUseError indicates the bridge port is occupied by another
// process. Callers surface this distinctly: it usually means a second
// bridge instance, which the fixed-port design does not allow.
type PortInUseError struct {
	Port  int
	Cause error
}

func (e *PortInUseError) Error() string {
	return fmt.Sprintf("port %d is already in use", e.Port)
}

func (e *PortInUseError) Unwrap() error {
	return e.Cause
}

// BindError indicates the listener could not be created for a reason
// other than port occupancy.
type BindError struct {
	Port  int
	Cause error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to bind proxy server on port %d: %v", e.Port, e.Cause)
}

func (e *BindError) Unwrap() error {
	return e.Cause
}
