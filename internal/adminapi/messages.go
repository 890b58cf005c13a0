package adminapi

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cast"
	"github.com/talkincode/wagate/internal/errs"
	"github.com/talkincode/wagate/internal/protocol"
	"github.com/talkincode/wagate/internal/store"
	"github.com/talkincode/wagate/internal/webserver"
)

func (a *adminAPI) registerMessageRoutes() {
	webserver.ApiPOST("/instance/:instanceId/send/text", a.sendText)
	webserver.ApiPOST("/instance/:instanceId/send/location", a.sendLocation)
	webserver.ApiPOST("/instance/:instanceId/send/reaction", a.sendReaction)
	webserver.ApiDELETE("/instance/:instanceId/message", a.deleteMessage)
	webserver.ApiGET("/instance/:instanceId/messages", a.listMessages)
}

type sendTextPayload struct {
	Jid  string `json:"jid" validate:"required"`
	Text string `json:"text" validate:"required,max=65536"`
}

type sendLocationPayload struct {
	Jid       string   `json:"jid" validate:"required"`
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
	Name      string   `json:"name" validate:"max=256"`
}

type sendReactionPayload struct {
	Jid       string `json:"jid" validate:"required"`
	MessageID string `json:"messageId" validate:"required"`
	// an empty emoji removes a previous reaction
	Emoji  string `json:"emoji" validate:"max=16"`
	FromMe bool   `json:"fromMe"`
}

func (a *adminAPI) sendText(c echo.Context) error {
	var payload sendTextPayload
	if err := bindValid(c, &payload); err != nil {
		return failErr(c, err, "jid and text are required")
	}
	return a.send(c, protocol.OutboundMessage{
		Kind: protocol.OutboundText,
		To:   payload.Jid,
		Text: payload.Text,
	})
}

func (a *adminAPI) sendLocation(c echo.Context) error {
	var payload sendLocationPayload
	if err := bindValid(c, &payload); err != nil {
		return failErr(c, err, "jid, latitude and longitude are required")
	}
	return a.send(c, protocol.OutboundMessage{
		Kind:      protocol.OutboundLocation,
		To:        payload.Jid,
		Text:      payload.Name,
		Latitude:  *payload.Latitude,
		Longitude: *payload.Longitude,
	})
}

func (a *adminAPI) sendReaction(c echo.Context) error {
	var payload sendReactionPayload
	if err := bindValid(c, &payload); err != nil {
		return failErr(c, err, "jid and messageId are required")
	}
	return a.send(c, protocol.OutboundMessage{
		Kind:         protocol.OutboundReaction,
		To:           payload.Jid,
		Text:         payload.Emoji,
		TargetID:     payload.MessageID,
		TargetFromMe: payload.FromMe,
	})
}

type deleteMessagePayload struct {
	Jid       string `json:"jid" validate:"required"`
	MessageID string `json:"messageId" validate:"required"`
}

// deleteMessage revokes one of our own messages for everyone in the chat.
func (a *adminAPI) deleteMessage(c echo.Context) error {
	var payload deleteMessagePayload
	if err := bindValid(c, &payload); err != nil {
		return failErr(c, err, "jid and messageId are required")
	}
	ack, err := a.gateway.Send(c.Request().Context(), c.Param("instanceId"), protocol.OutboundMessage{
		Kind:         protocol.OutboundRevoke,
		To:           payload.Jid,
		TargetID:     payload.MessageID,
		TargetFromMe: true,
	})
	if err != nil {
		return failErr(c, err, "Failed to delete message")
	}
	return ok(c, map[string]interface{}{
		"messageId": payload.MessageID,
		"revokeId":  ack.MessageID,
		"message":   "Message deleted successfully",
	})
}

func (a *adminAPI) send(c echo.Context, msg protocol.OutboundMessage) error {
	ack, err := a.gateway.Send(c.Request().Context(), c.Param("instanceId"), msg)
	if err != nil {
		return failErr(c, err, "Failed to send message")
	}
	return ok(c, map[string]interface{}{
		"messageId": ack.MessageID,
		"timestamp": ack.Timestamp,
	})
}

// listMessages returns stored history, newest first. The chat filter is
// accepted as jid or remote_id.
func (a *adminAPI) listMessages(c echo.Context) error {
	id := c.Param("instanceId")
	if _, err := a.gateway.Get(id); err != nil {
		return failErr(c, err, "Instance not found")
	}
	filter := store.MessageFilter{
		RemoteID: strings.TrimSpace(c.QueryParam("jid")),
	}
	if filter.RemoteID == "" {
		filter.RemoteID = strings.TrimSpace(c.QueryParam("remote_id"))
	}
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := cast.ToIntE(raw)
		if err != nil || limit <= 0 {
			return failErr(c, errs.Validation("limit must be a positive integer"), "Invalid limit")
		}
		filter.Limit = limit
	}

	rows, err := a.messages.List(c.Request().Context(), id, filter)
	if err != nil {
		return failErr(c, err, "Failed to query messages")
	}
	return ok(c, rows)
}
