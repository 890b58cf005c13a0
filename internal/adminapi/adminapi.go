package adminapi

import (
	"context"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/talkincode/wagate/internal/errs"
	"github.com/talkincode/wagate/internal/protocol"
	"github.com/talkincode/wagate/internal/session"
	"github.com/talkincode/wagate/internal/store"
	"github.com/talkincode/wagate/internal/webserver"
	"go.uber.org/zap"
)

// Gateway is the session surface driven by the admin API.
type Gateway interface {
	Create(ctx context.Context, id, name string) (session.Snapshot, error)
	Get(id string) (session.Snapshot, error)
	List() []session.Snapshot
	PairingArtifact(id string) (string, error)
	Stop(ctx context.Context, id string) error
	Send(ctx context.Context, id string, msg protocol.OutboundMessage) (protocol.Ack, error)
	Groups(id string) (protocol.Groups, error)
}

var _ Gateway = (*session.Controller)(nil)

type adminAPI struct {
	gateway  Gateway
	messages store.MessageRepository
	ids      *snowflake.Node
}

// Init registers every admin route on the web server. webserver.Init must
// have been called first.
func Init(gateway Gateway, messages store.MessageRepository) error {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return errors.Wrap(err, "snowflake node")
	}
	a := &adminAPI{gateway: gateway, messages: messages, ids: node}
	registerHealthRoutes()
	a.registerInstanceRoutes()
	a.registerMessageRoutes()
	a.registerGroupRoutes()
	return nil
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, webserver.Response{Success: true, Data: data})
}

func created(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, webserver.Response{Success: true, Data: data})
}

func fail(c echo.Context, status int, code, msg string, detail interface{}) error {
	return c.JSON(status, webserver.Response{Code: code, Error: msg, Detail: detail})
}

// failErr answers with the status of a classified error.
func failErr(c echo.Context, err error, msg string) error {
	kind := errs.KindOf(err)
	status := kind.HTTPStatus()
	if status >= http.StatusInternalServerError {
		zap.L().Error("adminapi: "+msg, zap.String("path", c.Path()), zap.Error(err))
	} else {
		zap.L().Debug("adminapi: "+msg, zap.String("path", c.Path()), zap.Error(err))
	}
	return fail(c, status, kind.String(), msg, err.Error())
}

// bindValid binds the request body into payload and validates it.
func bindValid(c echo.Context, payload interface{}) error {
	if err := c.Bind(payload); err != nil {
		return errs.Validation("unable to parse request body")
	}
	return c.Validate(payload)
}
