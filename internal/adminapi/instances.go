package adminapi

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/wagate/internal/errs"
	"github.com/talkincode/wagate/internal/pairing"
	"github.com/talkincode/wagate/internal/session"
	"github.com/talkincode/wagate/internal/webserver"
	"go.uber.org/zap"
)

func (a *adminAPI) registerInstanceRoutes() {
	webserver.ApiPOST("/instance/create", a.createInstance)
	webserver.ApiGET("/instance/list", a.listInstances)
	webserver.ApiGET("/instance/:instanceId", a.getInstance)
	webserver.ApiGET("/instance/:instanceId/qr", a.getQRCode)
	webserver.ApiGET("/instance/:instanceId/status", a.getStatus)
	webserver.ApiDELETE("/instance/:instanceId", a.deleteInstance)
	webserver.ApiPOST("/instance/:instanceId/logout", a.logoutInstance)
}

type instanceView struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Status             string    `json:"status"`
	PhoneNumber        string    `json:"phoneNumber,omitempty"`
	HasQRCode          bool      `json:"hasQrCode"`
	CreatedAt          time.Time `json:"createdAt"`
	LastStatusChangeAt time.Time `json:"lastStatusChangeAt"`
}

func newInstanceView(s session.Snapshot) instanceView {
	return instanceView{
		ID:                 s.ID,
		Name:               s.Name,
		Status:             s.Status.String(),
		PhoneNumber:        s.AccountIdentifier,
		HasQRCode:          s.PairingArtifact != "",
		CreatedAt:          s.CreatedAt,
		LastStatusChangeAt: s.LastStatusChangeAt,
	}
}

type createInstancePayload struct {
	Name string `json:"name" validate:"required,max=128"`
	ID   string `json:"id" validate:"omitempty,max=64,excludesall=/?#%"`
}

// createInstance registers an instance and starts pairing. The id is
// generated when the caller does not supply one.
func (a *adminAPI) createInstance(c echo.Context) error {
	var payload createInstancePayload
	if err := bindValid(c, &payload); err != nil {
		return failErr(c, err, "Invalid instance parameters")
	}
	id := strings.TrimSpace(payload.ID)
	if id == "" {
		id = "instance_" + a.ids.Generate().String()
	}

	snap, err := a.gateway.Create(c.Request().Context(), id, strings.TrimSpace(payload.Name))
	if err != nil && snap.ID == "" {
		return failErr(c, err, "Failed to create instance")
	}
	if err != nil {
		// registered; the first connect failed and a retry is scheduled
		zap.L().Warn("adminapi: instance created but first connect failed",
			zap.String("instance_id", id), zap.Error(err))
	}
	return created(c, newInstanceView(snap))
}

func (a *adminAPI) listInstances(c echo.Context) error {
	snaps := a.gateway.List()
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].CreatedAt.After(snaps[j].CreatedAt) })
	views := make([]instanceView, 0, len(snaps))
	for _, s := range snaps {
		views = append(views, newInstanceView(s))
	}
	return ok(c, views)
}

func (a *adminAPI) getInstance(c echo.Context) error {
	snap, err := a.gateway.Get(c.Param("instanceId"))
	if err != nil {
		return failErr(c, err, "Instance not found")
	}
	return ok(c, newInstanceView(snap))
}

// getQRCode returns the current pairing image as a data URL, or as raw PNG
// with ?format=png. Not yet issued and already consumed both answer 404.
func (a *adminAPI) getQRCode(c echo.Context) error {
	id := c.Param("instanceId")
	snap, err := a.gateway.Get(id)
	if err != nil {
		return failErr(c, err, "Instance not found")
	}
	artifact, err := a.gateway.PairingArtifact(id)
	if err != nil {
		if errs.Is(err, errs.KindNotFound) {
			return fail(c, http.StatusNotFound, "QR_NOT_AVAILABLE",
				"QR code not available. Instance may already be connected.", nil)
		}
		return failErr(c, err, "Failed to read QR code")
	}
	if c.QueryParam("format") == "png" {
		img, err := pairing.DecodeDataURL(artifact)
		if err != nil {
			return failErr(c, err, "Failed to decode QR code")
		}
		return c.Blob(http.StatusOK, "image/png", img)
	}
	return ok(c, map[string]interface{}{
		"qrCode": artifact,
		"status": snap.Status.String(),
	})
}

func (a *adminAPI) getStatus(c echo.Context) error {
	snap, err := a.gateway.Get(c.Param("instanceId"))
	if err != nil {
		return failErr(c, err, "Instance not found")
	}
	return ok(c, map[string]interface{}{
		"id":          snap.ID,
		"status":      snap.Status.String(),
		"phoneNumber": snap.AccountIdentifier,
		"connected":   snap.Status == session.Connected,
	})
}

func (a *adminAPI) deleteInstance(c echo.Context) error {
	return a.stop(c, "Instance deleted successfully")
}

// logoutInstance unlinks the device. The instance is removed as well since a
// logged out device cannot reconnect.
func (a *adminAPI) logoutInstance(c echo.Context) error {
	return a.stop(c, "Instance logged out successfully")
}

func (a *adminAPI) stop(c echo.Context, message string) error {
	id := c.Param("instanceId")
	if err := a.gateway.Stop(c.Request().Context(), id); err != nil {
		return failErr(c, err, "Failed to stop instance")
	}
	zap.L().Info("adminapi: instance stopped", zap.String("instance_id", id))
	return ok(c, map[string]interface{}{"id": id, "message": message})
}
