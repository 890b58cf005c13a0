package ingest

import (
	"context"
	"time"

	"github.com/talkincode/wagate/internal/metrics"
	"github.com/talkincode/wagate/internal/protocol"
	"github.com/talkincode/wagate/internal/store"
	"github.com/talkincode/wagate/internal/webhook"
	"go.uber.org/zap"
)

// Lifecycle receives the events that drive a session's state machine. Calls
// are made synchronously from the pipeline goroutine of the handle.
type Lifecycle interface {
	HandleLifecycle(ctx context.Context, instanceID string, generation uint64, ev protocol.Event)
}

// StatusPayload is the data of a message.status webhook.
type StatusPayload struct {
	MessageID string    `json:"messageId"`
	RemoteJid string    `json:"remoteJid"`
	FromMe    bool      `json:"fromMe"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Pipeline persists and forwards the events of every session handle.
type Pipeline struct {
	messages store.MessageRepository
	sink     webhook.Sink
}

func NewPipeline(messages store.MessageRepository, sink webhook.Sink) *Pipeline {
	if sink == nil {
		sink = webhook.NopSink{}
	}
	return &Pipeline{messages: messages, sink: sink}
}

// Run consumes events of one handle in arrival order until the handle is done,
// the channel is closed or ctx is cancelled. Events already queued when the
// handle finishes are still processed.
func (p *Pipeline) Run(ctx context.Context, instanceID string, generation uint64, h protocol.Handle, events <-chan protocol.Event, lc Lifecycle) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			p.handle(ctx, instanceID, generation, ev, lc)
		case <-h.Done():
			for {
				select {
				case ev, ok := <-events:
					if !ok {
						return
					}
					p.handle(ctx, instanceID, generation, ev, lc)
				default:
					return
				}
			}
		}
	}
}

func (p *Pipeline) handle(ctx context.Context, instanceID string, generation uint64, ev protocol.Event, lc Lifecycle) {
	switch e := ev.(type) {
	case protocol.MessageBatch:
		for _, raw := range e.Messages {
			p.ingestMessage(ctx, instanceID, raw)
		}
	case protocol.StatusBatch:
		for _, u := range e.Updates {
			p.ingestStatus(ctx, instanceID, u)
		}
	case protocol.MetadataUpdate:
		zap.L().Debug("ingest: metadata update",
			zap.String("instance_id", instanceID),
			zap.String("kind", e.Kind),
			zap.String("remote", e.Remote),
			zap.String("detail", e.Detail))
	default:
		if lc != nil {
			lc.HandleLifecycle(ctx, instanceID, generation, ev)
		}
	}
}

func (p *Pipeline) ingestMessage(ctx context.Context, instanceID string, raw protocol.RawMessage) {
	msg := Normalize(instanceID, raw)
	if err := p.messages.Upsert(ctx, msg); err != nil {
		metrics.MessagesIngested.WithLabelValues("dropped").Inc()
		zap.L().Error("ingest: message dropped",
			zap.String("instance_id", instanceID),
			zap.String("message_id", raw.ID),
			zap.Error(err))
		return
	}
	metrics.MessagesIngested.WithLabelValues("stored").Inc()
	if msg.FromMe {
		return
	}
	p.sink.Dispatch(webhook.NewEvent(instanceID, webhook.EventMessageReceived, msg))
	zap.L().Info("ingest: message processed",
		zap.String("instance_id", instanceID),
		zap.String("message_id", msg.MessageID))
}

func (p *Pipeline) ingestStatus(ctx context.Context, instanceID string, u protocol.StatusUpdate) {
	if _, err := p.messages.UpdateStatus(ctx, instanceID, u.MessageID, u.Status); err != nil {
		zap.L().Warn("ingest: status update not stored",
			zap.String("instance_id", instanceID),
			zap.String("message_id", u.MessageID),
			zap.Error(err))
	}
	p.sink.Dispatch(webhook.NewEvent(instanceID, webhook.EventMessageStatus, StatusPayload{
		MessageID: u.MessageID,
		RemoteJid: u.Remote,
		FromMe:    u.FromMe,
		Status:    u.Status,
		Timestamp: u.Timestamp,
	}))
}
