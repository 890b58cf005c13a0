package protocol

import (
	"time"

	"github.com/talkincode/wagate/internal/domain"
)

// Event is the closed set of notifications a handle emits.
type Event interface {
	isEvent()
}

// PairingChallenge carries a raw one-time pairing code.
type PairingChallenge struct {
	Code string
}

// PairingConsumed reports the challenge was scanned; the handshake continues.
type PairingConsumed struct{}

// Connected reports a completed handshake.
type Connected struct {
	AccountIdentifier string
}

// CredentialsUpdated reports rotated key material that must be persisted.
type CredentialsUpdated struct {
	Credentials domain.Credentials
}

// Closed reports the end of the transport. No further events follow.
type Closed struct {
	Reason CloseReason
	Err    error
}

// MessageBatch carries inbound or echoed messages.
type MessageBatch struct {
	Messages []RawMessage
}

// StatusBatch carries delivery status changes of earlier messages.
type StatusBatch struct {
	Updates []StatusUpdate
}

// MetadataUpdate carries presence or group changes; informational only.
type MetadataUpdate struct {
	Kind   string
	Remote string
	Detail string
}

func (PairingChallenge) isEvent()   {}
func (PairingConsumed) isEvent()    {}
func (Connected) isEvent()          {}
func (CredentialsUpdated) isEvent() {}
func (Closed) isEvent()             {}
func (MessageBatch) isEvent()       {}
func (StatusBatch) isEvent()        {}
func (MetadataUpdate) isEvent()     {}

type CloseReason int

const (
	CloseConnectionLost CloseReason = iota
	CloseRestartRequired
	CloseLoggedOut
	CloseReplaced
	ClosePairingTimeout
	CloseFailure
)

func (r CloseReason) String() string {
	switch r {
	case CloseRestartRequired:
		return "restart_required"
	case CloseLoggedOut:
		return "logged_out"
	case CloseReplaced:
		return "replaced"
	case ClosePairingTimeout:
		return "pairing_timeout"
	case CloseFailure:
		return "failure"
	default:
		return "connection_lost"
	}
}

// Terminal reports whether the remote revoked the credentials.
func (r CloseReason) Terminal() bool {
	return r == CloseLoggedOut
}

// RawMessage is one protocol message before normalization.
type RawMessage struct {
	ID        string
	Remote    string
	FromMe    bool
	Timestamp time.Time
	Payload   Payload
}

// StatusUpdate is a delivery status change for a message id.
type StatusUpdate struct {
	MessageID string
	Remote    string
	FromMe    bool
	Status    string
	Timestamp time.Time
}
