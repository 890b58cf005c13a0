package session

import (
	"sync"
	"time"

	"github.com/talkincode/wagate/internal/domain"
	"github.com/talkincode/wagate/internal/protocol"
)

type Status int

const (
	Disconnected Status = iota
	Connecting
	AwaitingPairing
	Connected
)

// String returns the persisted form of the status.
func (s Status) String() string {
	switch s {
	case Connecting:
		return domain.StatusConnecting
	case AwaitingPairing:
		return domain.StatusAwaitingPairing
	case Connected:
		return domain.StatusConnected
	default:
		return domain.StatusDisconnected
	}
}

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	ID                 string
	Name               string
	Status             Status
	PairingArtifact    string
	AccountIdentifier  string
	CreatedAt          time.Time
	LastStatusChangeAt time.Time
}

// Session is the live record of one instance. All state changes go through
// the methods below; each one validates the transition against the current
// status and the handle generation it was issued for.
type Session struct {
	id        string
	name      string
	createdAt time.Time

	mu                 sync.Mutex
	status             Status
	handle             protocol.Handle
	artifact           string
	accountID          string
	lastStatusChangeAt time.Time
	// generation identifies the current connect attempt. Events carrying an
	// older generation come from a superseded handle.
	generation uint64
	removed    bool
}

func newSession(id, name string) *Session {
	now := time.Now()
	return &Session{
		id:                 id,
		name:               name,
		createdAt:          now,
		status:             Disconnected,
		lastStatusChangeAt: now,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:                 s.id,
		Name:               s.name,
		Status:             s.status,
		PairingArtifact:    s.artifact,
		AccountIdentifier:  s.accountID,
		CreatedAt:          s.createdAt,
		LastStatusChangeAt: s.lastStatusChangeAt,
	}
}

func (s *Session) setStatusLocked(to Status) Status {
	from := s.status
	if from != to {
		s.status = to
		s.lastStatusChangeAt = time.Now()
	}
	if to != AwaitingPairing {
		s.artifact = ""
	}
	return from
}

// restoreAccount seeds the account identifier of a rehydrated instance.
func (s *Session) restoreAccount(accountID string) {
	s.mu.Lock()
	if s.accountID == "" {
		s.accountID = accountID
	}
	s.mu.Unlock()
}

// beginConnect reserves the session for a new connect attempt. It fails when
// the session is removed, not Disconnected, or still owns a handle.
func (s *Session) beginConnect() (uint64, Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed || s.status != Disconnected || s.handle != nil {
		return 0, s.status, false
	}
	s.generation++
	return s.generation, s.setStatusLocked(Connecting), true
}

// attach hands the opened handle to the session if the attempt is still current.
func (s *Session) attach(gen uint64, h protocol.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed || s.generation != gen || s.status == Disconnected || s.handle != nil {
		return false
	}
	s.handle = h
	return true
}

// abort returns a failed connect attempt to Disconnected.
func (s *Session) abort(gen uint64) (Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed || s.generation != gen || s.status == Disconnected {
		return s.status, false
	}
	return s.setStatusLocked(Disconnected), true
}

func (s *Session) challenge(gen uint64, artifact string) (Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed || s.generation != gen {
		return s.status, false
	}
	switch s.status {
	case Connecting, AwaitingPairing:
		from := s.setStatusLocked(AwaitingPairing)
		s.artifact = artifact
		return from, true
	default:
		return s.status, false
	}
}

func (s *Session) consumed(gen uint64) (Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed || s.generation != gen || s.status != AwaitingPairing {
		return s.status, false
	}
	return s.setStatusLocked(Connecting), true
}

func (s *Session) connected(gen uint64, accountID string) (Status, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed || s.generation != gen {
		return s.status, s.accountID, false
	}
	switch s.status {
	case Connecting, AwaitingPairing:
		from := s.setStatusLocked(Connected)
		if s.accountID == "" {
			s.accountID = accountID
		}
		return from, s.accountID, true
	default:
		return s.status, s.accountID, false
	}
}

// closed moves a live session to Disconnected and releases its handle.
func (s *Session) closed(gen uint64) (Status, protocol.Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed || s.generation != gen || s.status == Disconnected {
		return s.status, nil, false
	}
	h := s.handle
	s.handle = nil
	return s.setStatusLocked(Disconnected), h, true
}

// release detaches the handle without removing the session, invalidating
// any in-flight events.
func (s *Session) release() (Status, protocol.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	h := s.handle
	s.handle = nil
	return s.setStatusLocked(Disconnected), h
}

// terminate marks the session removed. It reports false if it already was.
func (s *Session) terminate() (Status, protocol.Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed {
		return s.status, nil, false
	}
	s.removed = true
	s.generation++
	h := s.handle
	s.handle = nil
	return s.setStatusLocked(Disconnected), h, true
}

func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.removed && s.generation == gen
}

// reconnectable reports whether a deferred reconnect may start a new attempt.
func (s *Session) reconnectable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.removed && s.status == Disconnected && s.handle == nil
}

// connectedHandle returns the handle of a Connected session.
func (s *Session) connectedHandle() (protocol.Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed || s.status != Connected || s.handle == nil {
		return nil, false
	}
	return s.handle, true
}
