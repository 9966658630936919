package tunnel

import "context"

// Handle is an active tunnel. The manager owns exactly one at a time.
type Handle interface {
	// URL returns the public URL the relay assigned.
	URL() string

	// Close tears the tunnel down at the relay.
	Close(ctx context.Context) error
}

// Provisioner creates tunnels. The wire protocol to the relay is
// deliberately outside this package's scope; the manager only needs
// open and close.
type Provisioner interface {
	Open(ctx context.Context, opts Options) (Handle, error)
}
