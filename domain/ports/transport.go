package ports

import (
	"context"

	"github.com/carlosrabelo/nxproxy/domain/entities"
)

// Transport defines the port for sending command batches to a device
type Transport interface {
	Kind() entities.TransportKind
	Connect(ctx context.Context) error
	// Send runs commands in order and returns one body per command on
	// NX-API, or the single framed payload on terminal transports.
	Send(ctx context.Context, commands []string, mode entities.Mode) ([]any, error)
	IsAlive() bool
	Close() error
}

// TransportFactory builds an unconnected transport for a connection spec
type TransportFactory func(spec entities.ConnectionSpec) (Transport, error)

// Session is a worker's connected transport. Send re-establishes a dead
// connection before running the batch.
type Session interface {
	Kind() entities.TransportKind
	Send(ctx context.Context, commands []string, mode entities.Mode) ([]any, error)
	IsAlive() bool
	Reconnect(ctx context.Context) error
	SaveConfigOnApply() bool
}

// SessionProvider returns the calling worker's session, connecting it on first use
type SessionProvider interface {
	Session(ctx context.Context) (Session, error)
}
