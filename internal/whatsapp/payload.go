package whatsapp

import (
	"github.com/talkincode/wagate/internal/protocol"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
)

func payloadOf(m *waE2E.Message) protocol.Payload {
	if m == nil {
		return protocol.Other{Kind: "empty"}
	}
	switch {
	case m.Conversation != nil:
		return protocol.Conversation{Text: m.GetConversation()}
	case m.ExtendedTextMessage != nil:
		return protocol.ExtendedText{Text: m.GetExtendedTextMessage().GetText()}
	case m.ImageMessage != nil:
		img := m.GetImageMessage()
		return protocol.Image{Caption: img.GetCaption(), MediaRef: img.GetURL()}
	case m.VideoMessage != nil:
		v := m.GetVideoMessage()
		return protocol.Video{Caption: v.GetCaption(), MediaRef: v.GetURL()}
	case m.AudioMessage != nil:
		return protocol.Audio{MediaRef: m.GetAudioMessage().GetURL()}
	case m.DocumentMessage != nil:
		doc := m.GetDocumentMessage()
		return protocol.Document{FileName: doc.GetFileName(), MediaRef: doc.GetURL()}
	case m.StickerMessage != nil:
		return protocol.Other{Kind: "sticker"}
	case m.ReactionMessage != nil:
		return protocol.Other{Kind: "reaction"}
	case m.LocationMessage != nil:
		return protocol.Other{Kind: "location"}
	case m.ContactMessage != nil:
		return protocol.Other{Kind: "contact"}
	}
	return protocol.Other{Kind: "other"}
}
