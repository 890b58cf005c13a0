package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/talkincode/wagate/internal/domain"
	"github.com/talkincode/wagate/internal/errs"
	"github.com/talkincode/wagate/internal/ingest"
	"github.com/talkincode/wagate/internal/protocol"
	"github.com/talkincode/wagate/internal/store"
	"github.com/talkincode/wagate/internal/webhook"
)

type fakeHandle struct {
	id     string
	done   chan struct{}
	once   sync.Once
	client *fakeClient
}

func (h *fakeHandle) InstanceID() string    { return h.id }
func (h *fakeHandle) Done() <-chan struct{} { return h.done }

func (h *fakeHandle) Close() {
	h.once.Do(func() {
		close(h.done)
		h.client.mu.Lock()
		h.client.live[h.id]--
		h.client.mu.Unlock()
	})
}

func (h *fakeHandle) isClosed() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

type fakeConn struct {
	handle *fakeHandle
	events chan protocol.Event
}

type fakeClient struct {
	mu        sync.Mutex
	opens     map[string]int
	live      map[string]int
	maxLive   map[string]int
	conns     map[string][]*fakeConn
	openErrs  int
	logouts   int
	logoutErr error
	sent      []protocol.OutboundMessage
	// when set, Open waits for it to be closed
	openGate chan struct{}
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		opens:   map[string]int{},
		live:    map[string]int{},
		maxLive: map[string]int{},
		conns:   map[string][]*fakeConn{},
	}
}

func (f *fakeClient) Open(_ context.Context, id string, _ *domain.Credentials) (protocol.Handle, <-chan protocol.Event, error) {
	f.mu.Lock()
	gate := f.openGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens[id]++
	if f.openErrs > 0 {
		f.openErrs--
		return nil, nil, errors.New("dial failed")
	}
	f.live[id]++
	if f.live[id] > f.maxLive[id] {
		f.maxLive[id] = f.live[id]
	}
	conn := &fakeConn{
		handle: &fakeHandle{id: id, done: make(chan struct{}), client: f},
		events: make(chan protocol.Event, 16),
	}
	f.conns[id] = append(f.conns[id], conn)
	return conn.handle, conn.events, nil
}

func (f *fakeClient) Logout(context.Context, protocol.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts++
	return f.logoutErr
}

func (f *fakeClient) Send(_ context.Context, _ protocol.Handle, msg protocol.OutboundMessage) (protocol.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return protocol.Ack{MessageID: "out-1", Timestamp: time.Now()}, nil
}

// emit pushes an event on the most recent connection of id.
func (f *fakeClient) emit(id string, ev protocol.Event) {
	f.mu.Lock()
	conns := f.conns[id]
	conn := conns[len(conns)-1]
	f.mu.Unlock()
	conn.events <- ev
}

func (f *fakeClient) conn(id string, i int) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[id][i]
}

func (f *fakeClient) openCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens[id]
}

func (f *fakeClient) maxLiveCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxLive[id]
}

func (f *fakeClient) liveCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live[id]
}

func (f *fakeClient) logoutCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logouts
}

type memoryAuth struct {
	mu    sync.Mutex
	creds map[string]domain.Credentials
}

func newMemoryAuth() *memoryAuth {
	return &memoryAuth{creds: map[string]domain.Credentials{}}
}

func (m *memoryAuth) Save(_ context.Context, id string, creds domain.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[id] = creds
	return nil
}

func (m *memoryAuth) Load(_ context.Context, id string) (*domain.Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *memoryAuth) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.creds, id)
	return nil
}

func (m *memoryAuth) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.creds[id]
	return ok
}

type memoryInstances struct {
	mu   sync.Mutex
	rows map[string]domain.Instance
}

func newMemoryInstances() *memoryInstances {
	return &memoryInstances{rows: map[string]domain.Instance{}}
}

func (m *memoryInstances) Create(_ context.Context, inst *domain.Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[inst.ID] = *inst
	return nil
}

func (m *memoryInstances) GetByID(_ context.Context, id string) (*domain.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, errs.NotFound("instance %s not found", id)
	}
	return &row, nil
}

func (m *memoryInstances) List(context.Context) ([]*domain.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Instance, 0, len(m.rows))
	for _, row := range m.rows {
		row := row
		out = append(out, &row)
	}
	return out, nil
}

func (m *memoryInstances) UpdateStatus(_ context.Context, id, status, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil
	}
	row.Status = status
	if account != "" {
		row.AccountIdentifier = account
	}
	m.rows[id] = row
	return nil
}

func (m *memoryInstances) UpdatePairingArtifact(_ context.Context, id, artifact string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil
	}
	row.PairingArtifact = artifact
	m.rows[id] = row
	return nil
}

func (m *memoryInstances) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

func (m *memoryInstances) row(id string) (domain.Instance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	return row, ok
}

type nopMessages struct{}

func (nopMessages) Upsert(context.Context, *domain.Message) error { return nil }
func (nopMessages) UpdateStatus(context.Context, string, string, string) (bool, error) {
	return false, nil
}
func (nopMessages) List(context.Context, string, store.MessageFilter) ([]*domain.Message, error) {
	return nil, nil
}
func (nopMessages) DeleteOlderThan(context.Context, time.Time) (int64, error) { return 0, nil }

type recordingSink struct {
	mu     sync.Mutex
	events []webhook.Event
}

func (s *recordingSink) Dispatch(ev webhook.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *recordingSink) kinds() []webhook.EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]webhook.EventKind, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Kind)
	}
	return out
}

type plainEncoder struct{}

func (plainEncoder) Encode(code string) (string, error) { return "img:" + code, nil }

type harness struct {
	ctrl      *Controller
	client    *fakeClient
	auth      *memoryAuth
	instances *memoryInstances
	sink      *recordingSink
}

func newHarness(opts Options, limit int) *harness {
	h := &harness{
		client:    newFakeClient(),
		auth:      newMemoryAuth(),
		instances: newMemoryInstances(),
		sink:      &recordingSink{},
	}
	h.ctrl = NewController(opts, Deps{
		Registry:  NewRegistry(limit),
		Client:    h.client,
		Auth:      h.auth,
		Instances: h.instances,
		Pipeline:  ingest.NewPipeline(nopMessages{}, h.sink),
		Sink:      h.sink,
		Encoder:   plainEncoder{},
	})
	return h
}

func (h *harness) status(id string) Status {
	snap, err := h.ctrl.Get(id)
	if err != nil {
		return -1
	}
	return snap.Status
}

func (f *fakeClient) Groups(h protocol.Handle) (protocol.Groups, error) {
	return &fakeGroups{handle: h.(*fakeHandle)}, nil
}

// fakeGroups knows one group; anything else fails like a server refusal.
type fakeGroups struct {
	handle *fakeHandle
}

const fakeGroupJID = "1203630@g.us"

func (g *fakeGroups) Create(_ context.Context, name string, participants []string) (protocol.Group, error) {
	if name == "" {
		return protocol.Group{}, errs.Validation("subject is required")
	}
	out := protocol.Group{JID: fakeGroupJID, Name: name}
	for _, p := range participants {
		out.Participants = append(out.Participants, protocol.GroupParticipant{JID: p})
	}
	return out, nil
}

func (g *fakeGroups) List(context.Context) ([]protocol.Group, error) {
	return []protocol.Group{{JID: fakeGroupJID, Name: "team"}}, nil
}

func (g *fakeGroups) Info(_ context.Context, jid string) (protocol.Group, error) {
	if jid != fakeGroupJID {
		return protocol.Group{}, errors.New("item-not-found")
	}
	return protocol.Group{JID: jid, Name: "team"}, nil
}

func (g *fakeGroups) SetSubject(_ context.Context, jid, _ string) error {
	_, err := g.Info(context.Background(), jid)
	return err
}

func (g *fakeGroups) SetDescription(_ context.Context, jid, _ string) error {
	_, err := g.Info(context.Background(), jid)
	return err
}

func (g *fakeGroups) UpdateParticipants(_ context.Context, jid string, _ protocol.ParticipantAction, participants []string) ([]protocol.GroupParticipant, error) {
	if _, err := g.Info(context.Background(), jid); err != nil {
		return nil, err
	}
	out := make([]protocol.GroupParticipant, 0, len(participants))
	for _, p := range participants {
		out = append(out, protocol.GroupParticipant{JID: p})
	}
	return out, nil
}

func (g *fakeGroups) Leave(_ context.Context, jid string) error {
	_, err := g.Info(context.Background(), jid)
	return err
}

func (g *fakeGroups) InviteLink(_ context.Context, jid string, _ bool) (string, error) {
	if _, err := g.Info(context.Background(), jid); err != nil {
		return "", err
	}
	return "https://chat.whatsapp.com/abc", nil
}
