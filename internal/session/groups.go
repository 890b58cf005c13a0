package session

import (
	"context"

	"github.com/talkincode/wagate/internal/errs"
	"github.com/talkincode/wagate/internal/protocol"
	"go.uber.org/zap"
)

// Groups returns the group operations of a Connected instance. Failures
// other than bad input surface as protocol errors.
func (c *Controller) Groups(id string) (protocol.Groups, error) {
	sess, ok := c.registry.Get(id)
	if !ok {
		return nil, errs.NotFound("instance %s not found", id)
	}
	gc, ok := c.client.(protocol.GroupClient)
	if !ok {
		return nil, errs.Validation("group management is not supported")
	}
	h, ok := sess.connectedHandle()
	if !ok {
		return nil, errs.NotFound("instance %s is not connected", id)
	}
	g, err := gc.Groups(h)
	if err != nil {
		return nil, errs.Protocol(err, "open group operations")
	}
	return &instanceGroups{id: id, groups: g}, nil
}

type instanceGroups struct {
	id     string
	groups protocol.Groups
}

func (g *instanceGroups) fail(op string, err error) error {
	if err == nil || errs.Is(err, errs.KindValidation) {
		return err
	}
	zap.L().Error("session: group operation failed",
		zap.String("instance_id", g.id), zap.String("op", op), zap.Error(err))
	return errs.Protocol(err, op)
}

func (g *instanceGroups) Create(ctx context.Context, name string, participants []string) (protocol.Group, error) {
	group, err := g.groups.Create(ctx, name, participants)
	return group, g.fail("create group", err)
}

func (g *instanceGroups) List(ctx context.Context) ([]protocol.Group, error) {
	list, err := g.groups.List(ctx)
	return list, g.fail("list groups", err)
}

func (g *instanceGroups) Info(ctx context.Context, jid string) (protocol.Group, error) {
	group, err := g.groups.Info(ctx, jid)
	return group, g.fail("group info", err)
}

func (g *instanceGroups) SetSubject(ctx context.Context, jid, subject string) error {
	return g.fail("set group subject", g.groups.SetSubject(ctx, jid, subject))
}

func (g *instanceGroups) SetDescription(ctx context.Context, jid, description string) error {
	return g.fail("set group description", g.groups.SetDescription(ctx, jid, description))
}

func (g *instanceGroups) UpdateParticipants(ctx context.Context, jid string, action protocol.ParticipantAction, participants []string) ([]protocol.GroupParticipant, error) {
	result, err := g.groups.UpdateParticipants(ctx, jid, action, participants)
	return result, g.fail("update group participants", err)
}

func (g *instanceGroups) Leave(ctx context.Context, jid string) error {
	return g.fail("leave group", g.groups.Leave(ctx, jid))
}

func (g *instanceGroups) InviteLink(ctx context.Context, jid string, reset bool) (string, error) {
	link, err := g.groups.InviteLink(ctx, jid, reset)
	return link, g.fail("group invite link", err)
}
