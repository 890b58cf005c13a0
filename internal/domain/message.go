package domain

import "time"

// MessageType is the normalized payload kind of a message.
type MessageType string

const (
	MessageText     MessageType = "text"
	MessageImage    MessageType = "image"
	MessageVideo    MessageType = "video"
	MessageAudio    MessageType = "audio"
	MessageDocument MessageType = "document"
	MessageUnknown  MessageType = "unknown"
)

// Delivery status values.
const (
	MessageStatusReceived  = "received"
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
	MessageStatusPlayed    = "played"
)

// Message is one stored message. (InstanceID, MessageID) is unique.
type Message struct {
	ID             int64       `json:"-" gorm:"primaryKey;autoIncrement"`
	InstanceID     string      `json:"instanceId" gorm:"size:64;uniqueIndex:idx_messages_instance_message,priority:1"`
	MessageID      string      `json:"messageId" gorm:"size:128;uniqueIndex:idx_messages_instance_message,priority:2"`
	RemoteID       string      `json:"remoteJid" gorm:"size:128;index"`
	FromMe         bool        `json:"fromMe"`
	Type           MessageType `json:"messageType" gorm:"size:16"`
	Content        string      `json:"content" gorm:"type:text"`
	MediaReference *string     `json:"mediaUrl"`
	Timestamp      time.Time   `json:"timestamp" gorm:"index"`
	Status         string      `json:"status" gorm:"size:16"`
	CreatedAt      time.Time   `json:"-"`
	UpdatedAt      time.Time   `json:"-"`
}

func (Message) TableName() string {
	return "messages"
}
