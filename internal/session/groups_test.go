package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/wagate/internal/errs"
	"github.com/talkincode/wagate/internal/protocol"
)

func TestGroupsRequireConnected(t *testing.T) {
	h := newHarness(testOptions(), 10)
	ctx := context.Background()

	_, err := h.ctrl.Groups("missing")
	assert.True(t, errs.Is(err, errs.KindNotFound))

	_, err = h.ctrl.Create(ctx, "i1", "")
	require.NoError(t, err)
	_, err = h.ctrl.Groups("i1")
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestGroupsClassifyFailures(t *testing.T) {
	h := newHarness(testOptions(), 10)
	connect(t, h, "i1")
	ctx := context.Background()

	g, err := h.ctrl.Groups("i1")
	require.NoError(t, err)

	group, err := g.Create(ctx, "team", []string{"6281@s.whatsapp.net"})
	require.NoError(t, err)
	assert.Equal(t, fakeGroupJID, group.JID)
	require.Len(t, group.Participants, 1)

	_, err = g.Create(ctx, "", nil)
	assert.True(t, errs.Is(err, errs.KindValidation))

	err = g.SetSubject(ctx, "other@g.us", "x")
	assert.True(t, errs.Is(err, errs.KindProtocol))

	link, err := g.InviteLink(ctx, fakeGroupJID, false)
	require.NoError(t, err)
	assert.Equal(t, "https://chat.whatsapp.com/abc", link)

	changed, err := g.UpdateParticipants(ctx, fakeGroupJID, protocol.ParticipantPromote, []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, changed, 2)
	assert.NoError(t, g.Leave(ctx, fakeGroupJID))
}
