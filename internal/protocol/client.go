// Package protocol describes the contract between the session core and the
// messaging protocol library. The core never interprets the wire format; it
// only sees opaque handles and the normalized event stream declared here.
package protocol

import (
	"context"
	"time"

	"github.com/talkincode/wagate/internal/domain"
)

// Handle is one live protocol connection owned by a session.
type Handle interface {
	// InstanceID returns the instance the handle was opened for.
	InstanceID() string
	// Done is closed once the handle is finished and will emit no more events.
	Done() <-chan struct{}
	// Close releases the connection. Safe to call more than once.
	Close()
}

// Client opens and drives protocol connections.
type Client interface {
	// Open starts a connection for instanceID. creds is nil for an instance that
	// was never paired. Events for the handle arrive on the returned channel in
	// protocol order.
	Open(ctx context.Context, instanceID string, creds *domain.Credentials) (Handle, <-chan Event, error)
	// Logout revokes the linked device remotely.
	Logout(ctx context.Context, h Handle) error
	Send(ctx context.Context, h Handle, msg OutboundMessage) (Ack, error)
}

// OutboundKind selects the populated fields of an OutboundMessage.
type OutboundKind int

const (
	OutboundText OutboundKind = iota
	OutboundLocation
	OutboundReaction
	// OutboundRevoke deletes TargetID for everyone
	OutboundRevoke
)

type OutboundMessage struct {
	Kind      OutboundKind
	To        string
	Text      string
	Latitude  float64
	Longitude float64
	// reaction or revoke target
	TargetID     string
	TargetFromMe bool
}

type Ack struct {
	MessageID string
	Timestamp time.Time
}
