package session

import (
	"time"

	"github.com/talkincode/wagate/internal/metrics"
	"github.com/talkincode/wagate/internal/protocol"
	"go.uber.org/zap"
)

func (c *Controller) reconnectDelay(reason protocol.CloseReason) time.Duration {
	if reason == protocol.CloseRestartRequired {
		return c.opts.RestartDelay
	}
	return c.opts.ReconnectDelay
}

// scheduleReconnect arms one deferred reconnect per instance. Scheduling
// while one is pending is a no-op.
func (c *Controller) scheduleReconnect(id string, reason protocol.CloseReason) {
	c.reconnectMu.Lock()
	defer c.reconnectMu.Unlock()
	if c.closed {
		return
	}
	if _, pending := c.reconnects[id]; pending {
		return
	}
	p := &pendingReconnect{delay: c.reconnectDelay(reason), reason: reason}
	p.timer = time.AfterFunc(p.delay, func() { c.fireReconnect(id, p) })
	c.reconnects[id] = p
	metrics.Reconnects.WithLabelValues(reason.String()).Inc()
	zap.L().Info("session: reconnect scheduled",
		zap.String("instance_id", id),
		zap.String("reason", reason.String()),
		zap.Duration("delay", p.delay))
}

func (c *Controller) fireReconnect(id string, p *pendingReconnect) {
	c.reconnectMu.Lock()
	if c.closed || c.reconnects[id] != p {
		c.reconnectMu.Unlock()
		return
	}
	delete(c.reconnects, id)
	c.reconnectMu.Unlock()

	sess, ok := c.registry.Get(id)
	if !ok || !sess.reconnectable() {
		return
	}
	if err := c.Start(c.ctx, id); err != nil {
		zap.L().Warn("session: reconnect failed", zap.String("instance_id", id), zap.Error(err))
	}
}

func (c *Controller) cancelReconnect(id string) {
	c.reconnectMu.Lock()
	defer c.reconnectMu.Unlock()
	if p, ok := c.reconnects[id]; ok {
		p.timer.Stop()
		delete(c.reconnects, id)
	}
}

// PendingReconnect returns the delay of the reconnect scheduled for id.
func (c *Controller) PendingReconnect(id string) (time.Duration, bool) {
	c.reconnectMu.Lock()
	defer c.reconnectMu.Unlock()
	p, ok := c.reconnects[id]
	if !ok {
		return 0, false
	}
	return p.delay, true
}
