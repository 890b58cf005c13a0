package webhook

import "time"

type EventKind string

const (
	EventMessageReceived  EventKind = "message.received"
	EventMessageStatus    EventKind = "message.status"
	EventConnectionUpdate EventKind = "connection.update"
)

// Event is one outbound callback. It is never persisted.
type Event struct {
	InstanceID string      `json:"instanceId"`
	Kind       EventKind   `json:"event"`
	Data       interface{} `json:"data"`
	Timestamp  time.Time   `json:"timestamp"`
}

func NewEvent(instanceID string, kind EventKind, data interface{}) Event {
	return Event{InstanceID: instanceID, Kind: kind, Data: data, Timestamp: time.Now()}
}

// Sink accepts events for delivery. Dispatch must not block the caller on
// network I/O.
type Sink interface {
	Dispatch(ev Event)
}

// NopSink drops every event.
type NopSink struct{}

func (NopSink) Dispatch(Event) {}
