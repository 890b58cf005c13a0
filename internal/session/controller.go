package session

import (
	"context"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/talkincode/wagate/internal/domain"
	"github.com/talkincode/wagate/internal/errs"
	"github.com/talkincode/wagate/internal/ingest"
	"github.com/talkincode/wagate/internal/metrics"
	"github.com/talkincode/wagate/internal/pairing"
	"github.com/talkincode/wagate/internal/protocol"
	"github.com/talkincode/wagate/internal/store"
	"github.com/talkincode/wagate/internal/webhook"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	// RestartDelay applies to closes that ask for a protocol restart.
	RestartDelay time.Duration
	// ReconnectDelay applies to every other transient close.
	ReconnectDelay   time.Duration
	LogoutOnShutdown bool
	LogoutTimeout    time.Duration
}

func DefaultOptions() Options {
	return Options{
		RestartDelay:     time.Second,
		ReconnectDelay:   5 * time.Second,
		LogoutOnShutdown: true,
		LogoutTimeout:    10 * time.Second,
	}
}

type Deps struct {
	Registry  *Registry
	Client    protocol.Client
	Auth      store.AuthStateStore
	Instances store.InstanceRepository
	Pipeline  *ingest.Pipeline
	Sink      webhook.Sink
	Encoder   pairing.Encoder
	Bus       EventBus.Bus
}

// ConnectionPayload is the data of a connection.update webhook.
type ConnectionPayload struct {
	Status      string `json:"status"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// Controller drives every session through its connection lifecycle.
type Controller struct {
	opts      Options
	registry  *Registry
	client    protocol.Client
	auth      store.AuthStateStore
	instances store.InstanceRepository
	pipeline  *ingest.Pipeline
	sink      webhook.Sink
	encoder   pairing.Encoder
	bus       EventBus.Bus

	// ctx bounds every handle and pipeline; cancelled by Shutdown.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	reconnectMu sync.Mutex
	reconnects  map[string]*pendingReconnect
	closed      bool
}

type pendingReconnect struct {
	timer  *time.Timer
	delay  time.Duration
	reason protocol.CloseReason
}

func NewController(opts Options, deps Deps) *Controller {
	if deps.Sink == nil {
		deps.Sink = webhook.NopSink{}
	}
	if deps.Encoder == nil {
		deps.Encoder = pairing.NewQREncoder()
	}
	if deps.Bus == nil {
		deps.Bus = EventBus.New()
	}
	if deps.Pipeline == nil {
		panic("session: controller requires an ingestion pipeline")
	}
	if opts.LogoutTimeout <= 0 {
		opts.LogoutTimeout = DefaultOptions().LogoutTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		opts:       opts,
		registry:   deps.Registry,
		client:     deps.Client,
		auth:       deps.Auth,
		instances:  deps.Instances,
		pipeline:   deps.Pipeline,
		sink:       deps.Sink,
		encoder:    deps.Encoder,
		bus:        deps.Bus,
		ctx:        ctx,
		cancel:     cancel,
		reconnects: make(map[string]*pendingReconnect),
	}
}

func (c *Controller) Registry() *Registry { return c.registry }

// Create registers and persists a new instance, then starts connecting it.
// A start failure leaves the instance registered with a reconnect pending.
func (c *Controller) Create(ctx context.Context, id, name string) (Snapshot, error) {
	sess, err := c.registry.Create(id, name)
	if err != nil {
		return Snapshot{}, err
	}
	err = c.instances.Create(ctx, &domain.Instance{ID: id, Name: name, Status: domain.StatusDisconnected})
	if err != nil {
		c.registry.Remove(id)
		return Snapshot{}, err
	}
	c.publish(id, "", Disconnected.String())
	zap.L().Info("session: instance created", zap.String("instance_id", id), zap.String("name", name))
	if err := c.Start(ctx, id); err != nil {
		return sess.Snapshot(), err
	}
	return sess.Snapshot(), nil
}

// Restore registers a persisted instance and starts it.
func (c *Controller) Restore(ctx context.Context, inst *domain.Instance) error {
	sess, err := c.registry.Create(inst.ID, inst.Name)
	if err != nil {
		return err
	}
	sess.restoreAccount(inst.AccountIdentifier)
	c.publish(inst.ID, "", Disconnected.String())
	return c.Start(ctx, inst.ID)
}

// Start opens a protocol handle for a Disconnected session. It is a no-op for
// a session that is already connecting or connected.
func (c *Controller) Start(ctx context.Context, id string) error {
	sess, ok := c.registry.Get(id)
	if !ok {
		return errs.NotFound("instance %s not found", id)
	}
	gen, from, ok := sess.beginConnect()
	if !ok {
		return nil
	}
	c.cancelReconnect(id)
	c.statusChanged(ctx, id, from, Connecting, "")

	creds, err := c.auth.Load(ctx, id)
	if err != nil {
		c.abortConnect(ctx, sess, gen, protocol.CloseFailure)
		return err
	}
	h, events, err := c.client.Open(c.ctx, id, creds)
	if err != nil {
		c.abortConnect(ctx, sess, gen, protocol.CloseConnectionLost)
		return errs.Protocol(err, "open instance %s", id)
	}
	if !sess.attach(gen, h) {
		// stopped or superseded while opening
		h.Close()
		return nil
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.pipeline.Run(c.ctx, id, gen, h, events, c)
	}()
	zap.L().Info("session: connecting", zap.String("instance_id", id), zap.Bool("has_credentials", creds != nil))
	return nil
}

func (c *Controller) abortConnect(ctx context.Context, sess *Session, gen uint64, reason protocol.CloseReason) {
	from, ok := sess.abort(gen)
	if !ok {
		return
	}
	c.statusChanged(ctx, sess.ID(), from, Disconnected, "")
	c.scheduleReconnect(sess.ID(), reason)
}

// Stop logs the instance out and removes it with its credentials. Logout
// errors are ignored; the instance is removed regardless.
func (c *Controller) Stop(ctx context.Context, id string) error {
	sess, ok := c.registry.Get(id)
	if !ok {
		return errs.NotFound("instance %s not found", id)
	}
	return c.terminate(ctx, sess, true)
}

func (c *Controller) terminate(ctx context.Context, sess *Session, logout bool) error {
	id := sess.ID()
	from, h, ok := sess.terminate()
	if !ok {
		return nil
	}
	c.cancelReconnect(id)
	if h != nil {
		if logout {
			lctx, cancel := context.WithTimeout(ctx, c.opts.LogoutTimeout)
			if err := c.client.Logout(lctx, h); err != nil {
				zap.L().Debug("session: logout failed, removing anyway", zap.String("instance_id", id), zap.Error(err))
			}
			cancel()
		}
		h.Close()
	}
	c.registry.Remove(id)
	c.publish(id, from.String(), "")

	var firstErr error
	if err := c.auth.Delete(ctx, id); err != nil {
		firstErr = err
	}
	if err := c.instances.Delete(ctx, id); err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr != nil {
		zap.L().Error("session: instance cleanup failed", zap.String("instance_id", id), zap.Error(firstErr))
		return firstErr
	}
	zap.L().Info("session: instance removed", zap.String("instance_id", id))
	return nil
}

// HandleLifecycle applies a lifecycle event emitted by the handle of the given
// generation. Events of superseded handles are ignored.
func (c *Controller) HandleLifecycle(ctx context.Context, id string, gen uint64, ev protocol.Event) {
	sess, ok := c.registry.Get(id)
	if !ok {
		return
	}
	switch e := ev.(type) {
	case protocol.PairingChallenge:
		artifact, err := c.encoder.Encode(e.Code)
		if err != nil {
			zap.L().Error("session: pairing code not encoded", zap.String("instance_id", id), zap.Error(err))
			return
		}
		from, ok := sess.challenge(gen, artifact)
		if !ok {
			c.ignored(id, ev)
			return
		}
		if from != AwaitingPairing {
			c.statusChanged(ctx, id, from, AwaitingPairing, "")
		}
		c.persistArtifact(ctx, id, artifact)
		zap.L().Info("session: pairing code issued", zap.String("instance_id", id))

	case protocol.PairingConsumed:
		from, ok := sess.consumed(gen)
		if !ok {
			c.ignored(id, ev)
			return
		}
		c.statusChanged(ctx, id, from, Connecting, "")
		c.persistArtifact(ctx, id, "")

	case protocol.Connected:
		from, account, ok := sess.connected(gen, e.AccountIdentifier)
		if !ok {
			c.ignored(id, ev)
			return
		}
		c.cancelReconnect(id)
		c.statusChanged(ctx, id, from, Connected, account)
		if from == AwaitingPairing {
			c.persistArtifact(ctx, id, "")
		}
		c.sink.Dispatch(webhook.NewEvent(id, webhook.EventConnectionUpdate, ConnectionPayload{
			Status:      Connected.String(),
			PhoneNumber: account,
		}))
		zap.L().Info("session: connected", zap.String("instance_id", id), zap.String("account", account))

	case protocol.CredentialsUpdated:
		if !sess.current(gen) {
			c.ignored(id, ev)
			return
		}
		if err := c.auth.Save(ctx, id, e.Credentials); err != nil {
			zap.L().Error("session: credentials not saved", zap.String("instance_id", id), zap.Error(err))
		}

	case protocol.Closed:
		c.handleClosed(ctx, sess, gen, e)
	}
}

func (c *Controller) handleClosed(ctx context.Context, sess *Session, gen uint64, e protocol.Closed) {
	id := sess.ID()
	if e.Reason.Terminal() {
		if !sess.current(gen) {
			return
		}
		zap.L().Info("session: logged out remotely, not reconnecting", zap.String("instance_id", id))
		_ = c.terminate(ctx, sess, false)
		return
	}
	from, h, ok := sess.closed(gen)
	if !ok {
		return
	}
	if h != nil {
		h.Close()
	}
	c.statusChanged(ctx, id, from, Disconnected, "")
	if from == AwaitingPairing {
		c.persistArtifact(ctx, id, "")
	}
	zap.L().Info("session: connection closed",
		zap.String("instance_id", id),
		zap.String("reason", e.Reason.String()),
		zap.Error(e.Err))
	c.scheduleReconnect(id, e.Reason)
}

// Get returns a snapshot of the instance.
func (c *Controller) Get(id string) (Snapshot, error) {
	sess, ok := c.registry.Get(id)
	if !ok {
		return Snapshot{}, errs.NotFound("instance %s not found", id)
	}
	return sess.Snapshot(), nil
}

func (c *Controller) List() []Snapshot {
	return c.registry.List()
}

// PairingArtifact returns the current pairing artifact. Absence means the
// code was either not issued yet or already consumed.
func (c *Controller) PairingArtifact(id string) (string, error) {
	snap, err := c.Get(id)
	if err != nil {
		return "", err
	}
	if snap.PairingArtifact == "" {
		return "", errs.NotFound("no pairing code available for instance %s", id)
	}
	return snap.PairingArtifact, nil
}

// Send delivers an outbound message through a Connected instance.
func (c *Controller) Send(ctx context.Context, id string, msg protocol.OutboundMessage) (protocol.Ack, error) {
	sess, ok := c.registry.Get(id)
	if !ok {
		return protocol.Ack{}, errs.NotFound("instance %s not found", id)
	}
	h, ok := sess.connectedHandle()
	if !ok {
		return protocol.Ack{}, errs.NotFound("instance %s is not connected", id)
	}
	ack, err := c.client.Send(ctx, h, msg)
	if err != nil {
		if errs.Is(err, errs.KindValidation) {
			return protocol.Ack{}, err
		}
		zap.L().Error("session: send failed", zap.String("instance_id", id), zap.String("to", msg.To), zap.Error(err))
		return protocol.Ack{}, errs.Protocol(err, "send message")
	}
	return ack, nil
}

// Shutdown cancels pending reconnects, releases every handle (logging out
// first when configured) and waits for the pipelines to finish, bounded by ctx.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.reconnectMu.Lock()
	c.closed = true
	for id, p := range c.reconnects {
		p.timer.Stop()
		delete(c.reconnects, id)
	}
	c.reconnectMu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, sess := range c.registry.all() {
		sess := sess
		g.Go(func() error {
			from, h := sess.release()
			if h != nil {
				if c.opts.LogoutOnShutdown {
					lctx, cancel := context.WithTimeout(gctx, c.opts.LogoutTimeout)
					if err := c.client.Logout(lctx, h); err != nil {
						zap.L().Warn("session: logout on shutdown failed", zap.String("instance_id", sess.ID()), zap.Error(err))
					}
					cancel()
				}
				h.Close()
			}
			// a session caught mid-open has no handle yet but still changes status
			c.statusChanged(gctx, sess.ID(), from, Disconnected, "")
			return nil
		})
	}
	_ = g.Wait()
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		zap.L().Info("session: controller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) statusChanged(ctx context.Context, id string, from, to Status, account string) {
	if from == to {
		return
	}
	if err := c.instances.UpdateStatus(ctx, id, to.String(), account); err != nil {
		zap.L().Warn("session: status not persisted", zap.String("instance_id", id), zap.String("status", to.String()), zap.Error(err))
	}
	c.publish(id, from.String(), to.String())
	zap.L().Debug("session: status changed",
		zap.String("instance_id", id),
		zap.String("from", from.String()),
		zap.String("to", to.String()))
}

func (c *Controller) persistArtifact(ctx context.Context, id, artifact string) {
	if err := c.instances.UpdatePairingArtifact(ctx, id, artifact); err != nil {
		zap.L().Warn("session: pairing code not persisted", zap.String("instance_id", id), zap.Error(err))
	}
}

func (c *Controller) publish(id, from, to string) {
	c.bus.Publish(metrics.TopicStatusChanged, id, from, to)
}

func (c *Controller) ignored(id string, ev protocol.Event) {
	zap.L().Debug("session: stale lifecycle event ignored", zap.String("instance_id", id), zap.String("event", eventName(ev)))
}

func eventName(ev protocol.Event) string {
	switch ev.(type) {
	case protocol.PairingChallenge:
		return "pairing_challenge"
	case protocol.PairingConsumed:
		return "pairing_consumed"
	case protocol.Connected:
		return "connected"
	case protocol.CredentialsUpdated:
		return "credentials_updated"
	case protocol.Closed:
		return "closed"
	default:
		return "other"
	}
}
