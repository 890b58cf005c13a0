package whatsapp

import (
	"sync"
	"time"

	"github.com/talkincode/wagate/internal/domain"
	"github.com/talkincode/wagate/internal/protocol"
	"go.mau.fi/whatsmeow"
	waTypes "go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
)

const (
	firstCodeTimeout = 60 * time.Second
	nextCodeTimeout  = 20 * time.Second
)

// connection is the protocol.Handle of one whatsmeow client.
type connection struct {
	id        string
	cli       *whatsmeow.Client
	handlerID uint32
	events    chan protocol.Event
	done      chan struct{}
	closeOnce sync.Once

	rotationMu   sync.Mutex
	rotationStop chan struct{}
}

func newConnection(id string, cli *whatsmeow.Client, buffer int) *connection {
	if buffer <= 0 {
		buffer = 64
	}
	return &connection{
		id:     id,
		cli:    cli,
		events: make(chan protocol.Event, buffer),
		done:   make(chan struct{}),
	}
}

func (cn *connection) InstanceID() string { return cn.id }

func (cn *connection) Done() <-chan struct{} { return cn.done }

// Close disconnects the client and stops event delivery. Safe to call more
// than once.
func (cn *connection) Close() {
	cn.closeOnce.Do(func() {
		close(cn.done)
		cn.stopRotation()
		cn.cli.RemoveEventHandler(cn.handlerID)
		cn.cli.Disconnect()
		zap.L().Debug("whatsapp: connection closed", zap.String("instance_id", cn.id))
	})
}

func (cn *connection) emit(ev protocol.Event) {
	select {
	case cn.events <- ev:
	case <-cn.done:
	}
}

func (cn *connection) handle(evt interface{}) {
	switch e := evt.(type) {
	case *events.QR:
		cn.rotateCodes(e.Codes)
		return
	case *events.PairSuccess, *events.Connected:
		cn.stopRotation()
	}
	for _, ev := range translate(evt, cn.cli.Store.ID) {
		cn.emit(ev)
	}
}

// rotateCodes publishes each pairing code in turn and gives up with a
// pairing timeout once the last one expires.
func (cn *connection) rotateCodes(codes []string) {
	stop := make(chan struct{})
	cn.rotationMu.Lock()
	if cn.rotationStop != nil {
		close(cn.rotationStop)
	}
	cn.rotationStop = stop
	cn.rotationMu.Unlock()

	go func() {
		timeout := firstCodeTimeout
		for _, code := range codes {
			cn.emit(protocol.PairingChallenge{Code: code})
			select {
			case <-time.After(timeout):
			case <-stop:
				return
			case <-cn.done:
				return
			}
			timeout = nextCodeTimeout
		}
		zap.L().Info("whatsapp: pairing codes exhausted", zap.String("instance_id", cn.id))
		cn.emit(protocol.Closed{Reason: protocol.ClosePairingTimeout})
	}()
}

func (cn *connection) stopRotation() {
	cn.rotationMu.Lock()
	defer cn.rotationMu.Unlock()
	if cn.rotationStop != nil {
		close(cn.rotationStop)
		cn.rotationStop = nil
	}
}

// translate maps a whatsmeow event to gateway events. self is the device
// JID, nil until paired.
func translate(evt interface{}, self *waTypes.JID) []protocol.Event {
	switch e := evt.(type) {
	case *events.PairSuccess:
		return []protocol.Event{
			protocol.PairingConsumed{},
			credentials(e.ID),
		}
	case *events.PairError:
		return []protocol.Event{protocol.Closed{Reason: protocol.CloseFailure, Err: e.Error}}
	case *events.Connected:
		if self == nil {
			return []protocol.Event{protocol.Connected{}}
		}
		return []protocol.Event{
			credentials(*self),
			protocol.Connected{AccountIdentifier: self.User},
		}
	case *events.LoggedOut:
		return []protocol.Event{protocol.Closed{Reason: protocol.CloseLoggedOut}}
	case *events.StreamReplaced:
		return []protocol.Event{protocol.Closed{Reason: protocol.CloseReplaced}}
	case *events.Disconnected:
		return []protocol.Event{protocol.Closed{Reason: protocol.CloseConnectionLost}}
	case *events.ConnectFailure:
		if e.Reason.IsLoggedOut() {
			return []protocol.Event{protocol.Closed{Reason: protocol.CloseLoggedOut}}
		}
		return []protocol.Event{protocol.Closed{Reason: protocol.CloseFailure}}
	case *events.TemporaryBan, *events.ClientOutdated:
		return []protocol.Event{protocol.Closed{Reason: protocol.CloseFailure}}
	case *events.ManualLoginReconnect:
		return []protocol.Event{protocol.Closed{Reason: protocol.CloseRestartRequired}}
	case *events.StreamError:
		return []protocol.Event{protocol.Closed{Reason: protocol.CloseConnectionLost}}
	case *events.Message:
		return []protocol.Event{protocol.MessageBatch{Messages: []protocol.RawMessage{rawMessage(e)}}}
	case *events.Receipt:
		if updates := statusUpdates(e); len(updates) > 0 {
			return []protocol.Event{protocol.StatusBatch{Updates: updates}}
		}
	case *events.Presence:
		detail := "available"
		if e.Unavailable {
			detail = "unavailable"
		}
		return []protocol.Event{protocol.MetadataUpdate{Kind: "presence", Remote: e.From.String(), Detail: detail}}
	case *events.GroupInfo:
		return []protocol.Event{protocol.MetadataUpdate{Kind: "group", Remote: e.JID.String()}}
	case *events.Contact:
		return []protocol.Event{protocol.MetadataUpdate{Kind: "contact", Remote: e.JID.String()}}
	}
	return nil
}

func credentials(jid waTypes.JID) protocol.CredentialsUpdated {
	return protocol.CredentialsUpdated{Credentials: domain.Credentials{Creds: []byte(jid.String())}}
}

func rawMessage(e *events.Message) protocol.RawMessage {
	return protocol.RawMessage{
		ID:        e.Info.ID,
		Remote:    e.Info.Chat.String(),
		FromMe:    e.Info.IsFromMe,
		Timestamp: e.Info.Timestamp,
		Payload:   payloadOf(e.Message),
	}
}

func statusUpdates(e *events.Receipt) []protocol.StatusUpdate {
	var status string
	switch e.Type {
	case waTypes.ReceiptTypeDelivered:
		status = domain.MessageStatusDelivered
	case waTypes.ReceiptTypeRead, waTypes.ReceiptTypeReadSelf:
		status = domain.MessageStatusRead
	case waTypes.ReceiptTypePlayed:
		status = domain.MessageStatusPlayed
	default:
		return nil
	}
	updates := make([]protocol.StatusUpdate, 0, len(e.MessageIDs))
	for _, id := range e.MessageIDs {
		updates = append(updates, protocol.StatusUpdate{
			MessageID: id,
			Remote:    e.Chat.String(),
			// receipts from others refer to our own messages
			FromMe:    !e.IsFromMe,
			Status:    status,
			Timestamp: e.Timestamp,
		})
	}
	return updates
}
