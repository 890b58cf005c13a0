package whatsapp

import (
	"context"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/talkincode/wagate/internal/app"
	"github.com/talkincode/wagate/internal/domain"
	"github.com/talkincode/wagate/internal/protocol"
	"go.mau.fi/whatsmeow"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waTypes "go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

// Client opens whatsmeow connections for gateway instances. Device keys live
// in the whatsmeow sqlstore tables of the application database; the gateway
// only keeps the device JID as the instance credentials.
type Client struct {
	container *sqlstore.Container
	log       waLog.Logger
	buffer    int
}

var _ protocol.Client = (*Client)(nil)

// New wraps the application database in a whatsmeow sqlstore and runs its
// migrations.
func New(a app.AppContext) (*Client, error) {
	sqlDB, err := a.DB().DB()
	if err != nil {
		return nil, errors.Wrap(err, "obtain sql.DB")
	}

	driver := dialect(a.Config().Database.Type)
	if driver == "sqlite3" {
		// sqlstore migrations rely on foreign keys
		if _, err := sqlDB.ExecContext(context.Background(), "PRAGMA foreign_keys = ON;"); err != nil {
			zap.L().Warn("whatsapp: unable to enable sqlite foreign_keys pragma", zap.Error(err))
		}
	}

	log := newLogger("whatsmeow")
	container := sqlstore.NewWithDB(sqlDB, driver, log.Sub("store"))
	if err := container.Upgrade(context.Background()); err != nil {
		return nil, errors.Wrapf(err, "sqlstore upgrade (%s)", driver)
	}

	if name := a.Config().Whatsapp.DeviceName; name != "" {
		wastore.DeviceProps.Os = proto.String(name)
	}

	zap.L().Info("whatsapp: client initialized", zap.String("driver", driver))
	return &Client{
		container: container,
		log:       log,
		buffer:    a.Config().Whatsapp.EventBuffer,
	}, nil
}

func dialect(dbType string) string {
	switch strings.ToLower(strings.TrimSpace(dbType)) {
	case "postgres", "postgresql":
		return "postgres"
	default:
		return "sqlite3"
	}
}

// Open loads the device named by creds, or a fresh one that will pair, and
// connects it. The returned channel carries the connection's events until the
// handle is closed.
func (c *Client) Open(ctx context.Context, id string, creds *domain.Credentials) (protocol.Handle, <-chan protocol.Event, error) {
	device, err := c.device(ctx, id, creds)
	if err != nil {
		return nil, nil, err
	}

	cli := whatsmeow.NewClient(device, c.log.Sub(id))
	// reconnects, including the restart after pairing, are owned by the
	// session controller
	cli.EnableAutoReconnect = false
	cli.DisableLoginAutoReconnect = true

	conn := newConnection(id, cli, c.buffer)
	conn.handlerID = cli.AddEventHandler(conn.handle)

	if err := cli.Connect(); err != nil {
		conn.Close()
		return nil, nil, errors.Wrapf(err, "connect %s", id)
	}
	zap.L().Info("whatsapp: connection opened",
		zap.String("instance_id", id),
		zap.Bool("paired", device.ID != nil))
	return conn, conn.events, nil
}

func (c *Client) device(ctx context.Context, id string, creds *domain.Credentials) (*wastore.Device, error) {
	if creds == nil || len(creds.Creds) == 0 {
		return c.container.NewDevice(), nil
	}
	jid, err := waTypes.ParseJID(string(creds.Creds))
	if err != nil {
		zap.L().Warn("whatsapp: stored device jid unreadable, pairing again",
			zap.String("instance_id", id), zap.Error(err))
		return c.container.NewDevice(), nil
	}
	device, err := c.container.GetDevice(ctx, jid)
	if err != nil {
		return nil, errors.Wrapf(err, "load device %s", jid)
	}
	if device == nil {
		zap.L().Warn("whatsapp: stored device missing from sqlstore, pairing again",
			zap.String("instance_id", id), zap.String("jid", jid.String()))
		return c.container.NewDevice(), nil
	}
	return device, nil
}

// Logout unlinks the device from the account. The connection must be open.
func (c *Client) Logout(ctx context.Context, h protocol.Handle) error {
	conn, err := asConnection(h)
	if err != nil {
		return err
	}
	if conn.cli.Store.ID == nil {
		return nil
	}
	return conn.cli.Logout(ctx)
}

// Send delivers an outbound message over an open connection.
func (c *Client) Send(ctx context.Context, h protocol.Handle, msg protocol.OutboundMessage) (protocol.Ack, error) {
	conn, err := asConnection(h)
	if err != nil {
		return protocol.Ack{}, err
	}
	to, err := ParseJID(msg.To)
	if err != nil {
		return protocol.Ack{}, err
	}

	var m *waE2E.Message
	switch msg.Kind {
	case protocol.OutboundText:
		m = &waE2E.Message{Conversation: proto.String(msg.Text)}
	case protocol.OutboundLocation:
		m = &waE2E.Message{LocationMessage: &waE2E.LocationMessage{
			DegreesLatitude:  proto.Float64(msg.Latitude),
			DegreesLongitude: proto.Float64(msg.Longitude),
			Name:             proto.String(msg.Text),
		}}
	case protocol.OutboundReaction:
		sender := to
		if msg.TargetFromMe && conn.cli.Store.ID != nil {
			sender = conn.cli.Store.ID.ToNonAD()
		}
		m = conn.cli.BuildReaction(to, sender, msg.TargetID, msg.Text)
	case protocol.OutboundRevoke:
		// an empty sender revokes one of our own messages
		m = conn.cli.BuildRevoke(to, waTypes.EmptyJID, msg.TargetID)
	default:
		return protocol.Ack{}, errors.Errorf("unsupported outbound kind %d", msg.Kind)
	}

	resp, err := conn.cli.SendMessage(ctx, to, m)
	if err != nil {
		return protocol.Ack{}, errors.Wrapf(err, "send to %s", to)
	}
	zap.L().Debug("whatsapp: message sent",
		zap.String("instance_id", conn.id),
		zap.String("to", to.String()),
		zap.String("message_id", resp.ID))
	return protocol.Ack{MessageID: resp.ID, Timestamp: resp.Timestamp}, nil
}

func asConnection(h protocol.Handle) (*connection, error) {
	conn, ok := h.(*connection)
	if !ok || conn == nil {
		return nil, errors.Errorf("handle %T is not a whatsapp connection", h)
	}
	return conn, nil
}
