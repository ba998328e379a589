package realtime

import (
	"context"
	"errors"
)

// ErrTransportClosed is returned by writes on a transport that has been closed.
var ErrTransportClosed = errors.New("transport closed")

// Transport is a server-push stream owned by exactly one registry entry.
type Transport interface {
	// Write hands one encoded frame to the stream. It must return once ctx is done.
	Write(ctx context.Context, frame []byte) error
	// Close releases the stream. It is safe to call more than once.
	Close() error
	// Closed reports whether the stream is known to be unusable.
	Closed() bool
}
