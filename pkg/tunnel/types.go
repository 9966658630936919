package tunnel

import "time"

// Options describes the tunnel to provision. AuthToken and Domain are
// omitted from the wire entirely when blank; the relay treats an empty
// string differently from an absent field.
type Options struct {
	// Addr is the local address the tunnel forwards to, as a full URL
	// (e.g. "http://localhost:8082").
	Addr string `json:"addr"`

	// Region selects the relay region.
	Region string `json:"region"`

	// AuthToken authenticates against the relay. Optional.
	AuthToken string `json:"authtoken,omitempty"`

	// Domain requests a fixed hostname instead of a generated one.
	// Optional.
	Domain string `json:"domain,omitempty"`
}

// Status is an immutable snapshot of the manager's state. Callers get
// a copy; mutating it has no effect on the manager.
type Status struct {
	// Running is true while both the proxy and the tunnel are up.
	Running bool

	// Starting is true while a start attempt is in flight.
	Starting bool

	// URL is the public tunnel URL when Running.
	URL string

	// Err holds the last lifecycle failure message, cleared on a
	// successful start.
	Err string

	// LastStarted is when the bridge last reached Running.
	LastStarted time.Time
}
