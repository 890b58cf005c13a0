package ingest

import (
	"github.com/talkincode/wagate/internal/domain"
	"github.com/talkincode/wagate/internal/protocol"
)

// Normalize maps a raw protocol message onto the stored message model.
func Normalize(instanceID string, raw protocol.RawMessage) *domain.Message {
	msg := &domain.Message{
		InstanceID: instanceID,
		MessageID:  raw.ID,
		RemoteID:   raw.Remote,
		FromMe:     raw.FromMe,
		Timestamp:  raw.Timestamp,
		Status:     domain.MessageStatusReceived,
	}
	msg.Type, msg.Content, msg.MediaReference = classify(raw.Payload)
	return msg
}

func classify(p protocol.Payload) (domain.MessageType, string, *string) {
	switch v := p.(type) {
	case protocol.Conversation:
		return domain.MessageText, v.Text, nil
	case protocol.ExtendedText:
		return domain.MessageText, v.Text, nil
	case protocol.Image:
		return domain.MessageImage, v.Caption, mediaRef(v.MediaRef)
	case protocol.Video:
		return domain.MessageVideo, v.Caption, mediaRef(v.MediaRef)
	case protocol.Audio:
		return domain.MessageAudio, "", mediaRef(v.MediaRef)
	case protocol.Document:
		return domain.MessageDocument, v.FileName, mediaRef(v.MediaRef)
	case protocol.Other, nil:
		return domain.MessageUnknown, "", nil
	default:
		return domain.MessageUnknown, "", nil
	}
}

func mediaRef(ref string) *string {
	if ref == "" {
		return nil
	}
	return &ref
}
