package whatsapp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/wagate/internal/protocol"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	waTypes "go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

func TestTranslateLifecycle(t *testing.T) {
	self := waTypes.NewJID("6281234", waTypes.DefaultUserServer)

	evs := translate(&events.PairSuccess{ID: self}, nil)
	require.Len(t, evs, 2)
	assert.Equal(t, protocol.PairingConsumed{}, evs[0])
	creds := evs[1].(protocol.CredentialsUpdated)
	assert.Equal(t, "6281234@s.whatsapp.net", string(creds.Credentials.Creds))

	evs = translate(&events.Connected{}, &self)
	require.Len(t, evs, 2)
	assert.Equal(t, protocol.Connected{AccountIdentifier: "6281234"}, evs[1])

	closes := []struct {
		evt    interface{}
		reason protocol.CloseReason
	}{
		{&events.LoggedOut{}, protocol.CloseLoggedOut},
		{&events.StreamReplaced{}, protocol.CloseReplaced},
		{&events.Disconnected{}, protocol.CloseConnectionLost},
		{&events.ManualLoginReconnect{}, protocol.CloseRestartRequired},
		{&events.StreamError{Code: "503"}, protocol.CloseConnectionLost},
		{&events.ConnectFailure{Reason: events.ConnectFailureLoggedOut}, protocol.CloseLoggedOut},
		{&events.ConnectFailure{Reason: events.ConnectFailureServiceUnavailable}, protocol.CloseFailure},
	}
	for _, tc := range closes {
		evs := translate(tc.evt, &self)
		require.Len(t, evs, 1)
		assert.Equal(t, tc.reason, evs[0].(protocol.Closed).Reason, "%T", tc.evt)
	}
}

func TestTranslateMessage(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	chat := waTypes.NewJID("6289999", waTypes.DefaultUserServer)
	evt := &events.Message{
		Info: waTypes.MessageInfo{
			MessageSource: waTypes.MessageSource{Chat: chat, Sender: chat},
			ID:            "ABC",
			Timestamp:     ts,
		},
		Message: &waE2E.Message{Conversation: proto.String("hello")},
	}

	evs := translate(evt, nil)
	require.Len(t, evs, 1)
	batch := evs[0].(protocol.MessageBatch)
	require.Len(t, batch.Messages, 1)
	raw := batch.Messages[0]
	assert.Equal(t, "ABC", raw.ID)
	assert.Equal(t, "6289999@s.whatsapp.net", raw.Remote)
	assert.False(t, raw.FromMe)
	assert.Equal(t, ts, raw.Timestamp)
	assert.Equal(t, protocol.Conversation{Text: "hello"}, raw.Payload)
}

func TestTranslateReceipt(t *testing.T) {
	chat := waTypes.NewJID("6289999", waTypes.DefaultUserServer)
	evt := &events.Receipt{
		MessageSource: waTypes.MessageSource{Chat: chat, Sender: chat},
		MessageIDs:    []waTypes.MessageID{"m1", "m2"},
		Type:          waTypes.ReceiptTypeRead,
	}

	evs := translate(evt, nil)
	require.Len(t, evs, 1)
	updates := evs[0].(protocol.StatusBatch).Updates
	require.Len(t, updates, 2)
	assert.Equal(t, "m2", updates[1].MessageID)
	assert.Equal(t, "read", updates[0].Status)
	assert.True(t, updates[0].FromMe)

	evt.Type = waTypes.ReceiptTypeRetry
	assert.Empty(t, translate(evt, nil))
}

func TestPayloadOf(t *testing.T) {
	tests := []struct {
		name string
		in   *waE2E.Message
		want protocol.Payload
	}{
		{"nil", nil, protocol.Other{Kind: "empty"}},
		{"extended text", &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("link")}},
			protocol.ExtendedText{Text: "link"}},
		{"image", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{Caption: proto.String("cap"), URL: proto.String("https://mmg/1")}},
			protocol.Image{Caption: "cap", MediaRef: "https://mmg/1"}},
		{"audio", &waE2E.Message{AudioMessage: &waE2E.AudioMessage{}}, protocol.Audio{}},
		{"document", &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{FileName: proto.String("a.pdf")}},
			protocol.Document{FileName: "a.pdf"}},
		{"sticker", &waE2E.Message{StickerMessage: &waE2E.StickerMessage{}}, protocol.Other{Kind: "sticker"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, payloadOf(tt.in))
		})
	}
}
