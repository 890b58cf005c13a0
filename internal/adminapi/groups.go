package adminapi

import (
	"github.com/labstack/echo/v4"
	"github.com/spf13/cast"
	"github.com/talkincode/wagate/internal/protocol"
	"github.com/talkincode/wagate/internal/webserver"
)

func (a *adminAPI) registerGroupRoutes() {
	webserver.ApiPOST("/instance/:instanceId/group/create", a.createGroup)
	webserver.ApiGET("/instance/:instanceId/groups", a.listGroups)
	webserver.ApiGET("/instance/:instanceId/group/:groupJid", a.getGroup)
	webserver.ApiPUT("/instance/:instanceId/group/:groupJid/subject", a.setGroupSubject)
	webserver.ApiPUT("/instance/:instanceId/group/:groupJid/description", a.setGroupDescription)
	webserver.ApiPUT("/instance/:instanceId/group/:groupJid/participants", a.updateGroupParticipants)
	webserver.ApiPOST("/instance/:instanceId/group/:groupJid/leave", a.leaveGroup)
	webserver.ApiGET("/instance/:instanceId/group/:groupJid/invite", a.groupInvite)
}

type createGroupPayload struct {
	Subject      string   `json:"subject" validate:"required,max=100"`
	Participants []string `json:"participants" validate:"required,min=1,dive,required"`
}

type groupSubjectPayload struct {
	Subject string `json:"subject" validate:"required,max=100"`
}

type groupDescriptionPayload struct {
	Description string `json:"description" validate:"max=2048"`
}

type groupParticipantsPayload struct {
	Action       string   `json:"action" validate:"required,oneof=add remove promote demote"`
	Participants []string `json:"participants" validate:"required,min=1,dive,required"`
}

func (a *adminAPI) createGroup(c echo.Context) error {
	var payload createGroupPayload
	if err := bindValid(c, &payload); err != nil {
		return failErr(c, err, "subject and participants are required")
	}
	g, err := a.gateway.Groups(c.Param("instanceId"))
	if err != nil {
		return failErr(c, err, "Instance not available")
	}
	group, err := g.Create(c.Request().Context(), payload.Subject, payload.Participants)
	if err != nil {
		return failErr(c, err, "Failed to create group")
	}
	return created(c, group)
}

func (a *adminAPI) listGroups(c echo.Context) error {
	g, err := a.gateway.Groups(c.Param("instanceId"))
	if err != nil {
		return failErr(c, err, "Instance not available")
	}
	list, err := g.List(c.Request().Context())
	if err != nil {
		return failErr(c, err, "Failed to list groups")
	}
	return ok(c, list)
}

func (a *adminAPI) getGroup(c echo.Context) error {
	g, err := a.gateway.Groups(c.Param("instanceId"))
	if err != nil {
		return failErr(c, err, "Instance not available")
	}
	group, err := g.Info(c.Request().Context(), c.Param("groupJid"))
	if err != nil {
		return failErr(c, err, "Failed to get group info")
	}
	return ok(c, group)
}

func (a *adminAPI) setGroupSubject(c echo.Context) error {
	var payload groupSubjectPayload
	if err := bindValid(c, &payload); err != nil {
		return failErr(c, err, "subject is required")
	}
	g, err := a.gateway.Groups(c.Param("instanceId"))
	if err != nil {
		return failErr(c, err, "Instance not available")
	}
	jid := c.Param("groupJid")
	if err := g.SetSubject(c.Request().Context(), jid, payload.Subject); err != nil {
		return failErr(c, err, "Failed to update group subject")
	}
	return ok(c, map[string]string{"id": jid, "subject": payload.Subject})
}

func (a *adminAPI) setGroupDescription(c echo.Context) error {
	var payload groupDescriptionPayload
	if err := bindValid(c, &payload); err != nil {
		return failErr(c, err, "Invalid description")
	}
	g, err := a.gateway.Groups(c.Param("instanceId"))
	if err != nil {
		return failErr(c, err, "Instance not available")
	}
	jid := c.Param("groupJid")
	if err := g.SetDescription(c.Request().Context(), jid, payload.Description); err != nil {
		return failErr(c, err, "Failed to update group description")
	}
	return ok(c, map[string]string{"id": jid, "description": payload.Description})
}

func (a *adminAPI) updateGroupParticipants(c echo.Context) error {
	var payload groupParticipantsPayload
	if err := bindValid(c, &payload); err != nil {
		return failErr(c, err, "action and participants are required")
	}
	g, err := a.gateway.Groups(c.Param("instanceId"))
	if err != nil {
		return failErr(c, err, "Instance not available")
	}
	result, err := g.UpdateParticipants(c.Request().Context(), c.Param("groupJid"),
		protocol.ParticipantAction(payload.Action), payload.Participants)
	if err != nil {
		return failErr(c, err, "Failed to update group participants")
	}
	return ok(c, result)
}

func (a *adminAPI) leaveGroup(c echo.Context) error {
	g, err := a.gateway.Groups(c.Param("instanceId"))
	if err != nil {
		return failErr(c, err, "Instance not available")
	}
	if err := g.Leave(c.Request().Context(), c.Param("groupJid")); err != nil {
		return failErr(c, err, "Failed to leave group")
	}
	return ok(c, map[string]string{"message": "Left group successfully"})
}

// groupInvite returns the invite link; ?reset=true revokes the previous one.
func (a *adminAPI) groupInvite(c echo.Context) error {
	g, err := a.gateway.Groups(c.Param("instanceId"))
	if err != nil {
		return failErr(c, err, "Instance not available")
	}
	link, err := g.InviteLink(c.Request().Context(), c.Param("groupJid"), cast.ToBool(c.QueryParam("reset")))
	if err != nil {
		return failErr(c, err, "Failed to get invite link")
	}
	return ok(c, map[string]string{"inviteCode": link})
}
