package whatsapp

import (
	"context"

	"github.com/pkg/errors"
	"github.com/talkincode/wagate/internal/protocol"
	"go.mau.fi/whatsmeow"
	waTypes "go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
)

var _ protocol.GroupClient = (*Client)(nil)

var participantChanges = map[protocol.ParticipantAction]whatsmeow.ParticipantChange{
	protocol.ParticipantAdd:     whatsmeow.ParticipantChangeAdd,
	protocol.ParticipantRemove:  whatsmeow.ParticipantChangeRemove,
	protocol.ParticipantPromote: whatsmeow.ParticipantChangePromote,
	protocol.ParticipantDemote:  whatsmeow.ParticipantChangeDemote,
}

// Groups returns the group operations of an open connection.
func (c *Client) Groups(h protocol.Handle) (protocol.Groups, error) {
	conn, err := asConnection(h)
	if err != nil {
		return nil, err
	}
	return &groups{conn: conn}, nil
}

// groups runs group IQs on one connection. whatsmeow applies its own request
// timeout to these calls, so ctx is only checked before sending.
type groups struct {
	conn *connection
}

func (g *groups) Create(ctx context.Context, name string, participants []string) (protocol.Group, error) {
	jids, err := parseJIDs(participants)
	if err != nil {
		return protocol.Group{}, err
	}
	if err := ctx.Err(); err != nil {
		return protocol.Group{}, err
	}
	info, err := g.conn.cli.CreateGroup(whatsmeow.ReqCreateGroup{Name: name, Participants: jids})
	if err != nil {
		return protocol.Group{}, errors.Wrap(err, "create group")
	}
	zap.L().Info("whatsapp: group created",
		zap.String("instance_id", g.conn.id),
		zap.String("group", info.JID.String()))
	return groupOf(info), nil
}

func (g *groups) List(ctx context.Context) ([]protocol.Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infos, err := g.conn.cli.GetJoinedGroups()
	if err != nil {
		return nil, errors.Wrap(err, "list groups")
	}
	out := make([]protocol.Group, 0, len(infos))
	for _, info := range infos {
		out = append(out, groupOf(info))
	}
	return out, nil
}

func (g *groups) Info(ctx context.Context, jid string) (protocol.Group, error) {
	group, err := g.group(ctx, jid)
	if err != nil {
		return protocol.Group{}, err
	}
	info, err := g.conn.cli.GetGroupInfo(group)
	if err != nil {
		return protocol.Group{}, errors.Wrapf(err, "group info %s", group)
	}
	return groupOf(info), nil
}

func (g *groups) SetSubject(ctx context.Context, jid, subject string) error {
	group, err := g.group(ctx, jid)
	if err != nil {
		return err
	}
	return errors.Wrapf(g.conn.cli.SetGroupName(group, subject), "set subject of %s", group)
}

func (g *groups) SetDescription(ctx context.Context, jid, description string) error {
	group, err := g.group(ctx, jid)
	if err != nil {
		return err
	}
	// empty ids let whatsmeow look up the current topic id
	return errors.Wrapf(g.conn.cli.SetGroupTopic(group, "", "", description), "set description of %s", group)
}

func (g *groups) UpdateParticipants(ctx context.Context, jid string, action protocol.ParticipantAction, participants []string) ([]protocol.GroupParticipant, error) {
	change, ok := participantChanges[action]
	if !ok {
		return nil, errors.Errorf("unknown participant action %q", action)
	}
	group, err := g.group(ctx, jid)
	if err != nil {
		return nil, err
	}
	jids, err := parseJIDs(participants)
	if err != nil {
		return nil, err
	}
	result, err := g.conn.cli.UpdateGroupParticipants(group, jids, change)
	if err != nil {
		return nil, errors.Wrapf(err, "%s participants of %s", action, group)
	}
	return participantsOf(result), nil
}

func (g *groups) Leave(ctx context.Context, jid string) error {
	group, err := g.group(ctx, jid)
	if err != nil {
		return err
	}
	return errors.Wrapf(g.conn.cli.LeaveGroup(group), "leave %s", group)
}

func (g *groups) InviteLink(ctx context.Context, jid string, reset bool) (string, error) {
	group, err := g.group(ctx, jid)
	if err != nil {
		return "", err
	}
	link, err := g.conn.cli.GetGroupInviteLink(group, reset)
	if err != nil {
		return "", errors.Wrapf(err, "invite link of %s", group)
	}
	return link, nil
}

func (g *groups) group(ctx context.Context, jid string) (waTypes.JID, error) {
	group, err := ParseGroupJID(jid)
	if err != nil {
		return group, err
	}
	return group, ctx.Err()
}

func groupOf(info *waTypes.GroupInfo) protocol.Group {
	if info == nil {
		return protocol.Group{}
	}
	return protocol.Group{
		JID:          info.JID.String(),
		Name:         info.Name,
		Topic:        info.Topic,
		Owner:        ownerOf(info.OwnerJID),
		CreatedAt:    info.GroupCreated,
		Participants: participantsOf(info.Participants),
	}
}

func ownerOf(jid waTypes.JID) string {
	if jid.IsEmpty() {
		return ""
	}
	return jid.String()
}

func participantsOf(in []waTypes.GroupParticipant) []protocol.GroupParticipant {
	out := make([]protocol.GroupParticipant, 0, len(in))
	for _, p := range in {
		out = append(out, protocol.GroupParticipant{
			JID:          p.JID.String(),
			IsAdmin:      p.IsAdmin,
			IsSuperAdmin: p.IsSuperAdmin,
			Error:        p.Error,
		})
	}
	return out
}
