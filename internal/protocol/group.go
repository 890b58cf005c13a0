package protocol

import (
	"context"
	"time"
)

type Group struct {
	JID          string             `json:"id"`
	Name         string             `json:"subject"`
	Topic        string             `json:"description,omitempty"`
	Owner        string             `json:"owner,omitempty"`
	CreatedAt    time.Time          `json:"creation"`
	Participants []GroupParticipant `json:"participants"`
}

type GroupParticipant struct {
	JID          string `json:"id"`
	IsAdmin      bool   `json:"admin"`
	IsSuperAdmin bool   `json:"superAdmin"`
	// non-zero when a participant change was refused for this member
	Error int `json:"error,omitempty"`
}

type ParticipantAction string

const (
	ParticipantAdd     ParticipantAction = "add"
	ParticipantRemove  ParticipantAction = "remove"
	ParticipantPromote ParticipantAction = "promote"
	ParticipantDemote  ParticipantAction = "demote"
)

// Groups manages the groups of one connected handle.
type Groups interface {
	Create(ctx context.Context, name string, participants []string) (Group, error)
	List(ctx context.Context) ([]Group, error)
	Info(ctx context.Context, jid string) (Group, error)
	SetSubject(ctx context.Context, jid, subject string) error
	SetDescription(ctx context.Context, jid, description string) error
	UpdateParticipants(ctx context.Context, jid string, action ParticipantAction, participants []string) ([]GroupParticipant, error)
	Leave(ctx context.Context, jid string) error
	InviteLink(ctx context.Context, jid string, reset bool) (string, error)
}

// GroupClient is implemented by clients that support group management.
type GroupClient interface {
	Groups(h Handle) (Groups, error)
}
