package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/guonaihong/gout"
	jsoniter "github.com/json-iterator/go"
	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"github.com/talkincode/wagate/config"
	"github.com/talkincode/wagate/internal/metrics"
	"go.uber.org/zap"
)

const SignatureHeader = "X-Webhook-Signature"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Dispatcher posts events to a single destination from a bounded worker pool.
// Events wait in a bounded queue while every worker is busy.
type Dispatcher struct {
	cfg    config.WebhookConfig
	client *http.Client
	pool   *ants.Pool
	queue  chan Event

	closeOnce sync.Once
	closing   chan struct{}
	fed       chan struct{}
}

// New returns a Sink for cfg. A missing destination yields a NopSink.
func New(cfg config.WebhookConfig) (Sink, error) {
	if !cfg.Active() {
		zap.L().Info("webhook: no destination configured, events will be dropped")
		return NopSink{}, nil
	}
	return NewDispatcher(cfg)
}

func NewDispatcher(cfg config.WebhookConfig) (*Dispatcher, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, errors.Wrap(err, "create webhook pool")
	}
	d := &Dispatcher{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		pool:    pool,
		queue:   make(chan Event, cfg.QueueSize),
		closing: make(chan struct{}),
		fed:     make(chan struct{}),
	}
	go d.feed()
	return d, nil
}

// Dispatch queues ev for delivery without blocking. The event is dropped
// and logged only when the queue is full.
func (d *Dispatcher) Dispatch(ev Event) {
	select {
	case <-d.closing:
		return
	default:
	}
	select {
	case d.queue <- ev:
	default:
		d.drop(ev, errors.New("webhook queue full"))
	}
}

// feed hands queued events to the pool, waiting for a free worker. After
// Close it flushes what was already accepted.
func (d *Dispatcher) feed() {
	defer close(d.fed)
	for {
		select {
		case ev := <-d.queue:
			d.submit(ev)
		case <-d.closing:
			for {
				select {
				case ev := <-d.queue:
					d.submit(ev)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) submit(ev Event) {
	if err := d.pool.Submit(func() { d.deliver(ev) }); err != nil {
		d.drop(ev, err)
	}
}

func (d *Dispatcher) drop(ev Event, err error) {
	metrics.WebhookDeliveries.WithLabelValues(string(ev.Kind), "dropped").Inc()
	zap.L().Warn("webhook: event dropped",
		zap.String("instance_id", ev.InstanceID),
		zap.String("event", string(ev.Kind)),
		zap.Error(err))
}

func (d *Dispatcher) deliver(ev Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		zap.L().Error("webhook: marshal event failed", zap.String("event", string(ev.Kind)), zap.Error(err))
		return
	}
	for attempt := 1; ; attempt++ {
		err = d.post(body)
		if err == nil {
			metrics.WebhookDeliveries.WithLabelValues(string(ev.Kind), "ok").Inc()
			zap.L().Debug("webhook: event sent",
				zap.String("instance_id", ev.InstanceID),
				zap.String("event", string(ev.Kind)))
			return
		}
		if attempt >= d.cfg.RetryAttempts || !d.backoff() {
			break
		}
	}
	metrics.WebhookDeliveries.WithLabelValues(string(ev.Kind), "failed").Inc()
	zap.L().Error("webhook: delivery failed",
		zap.String("instance_id", ev.InstanceID),
		zap.String("event", string(ev.Kind)),
		zap.Int("attempts", d.cfg.RetryAttempts),
		zap.Error(err))
}

func (d *Dispatcher) post(body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
	defer cancel()

	header := gout.H{"Content-Type": "application/json"}
	if d.cfg.Secret != "" {
		header[SignatureHeader] = Sign(d.cfg.Secret, body)
	}
	code := 0
	err := gout.New(d.client).
		POST(d.cfg.URL).
		WithContext(ctx).
		SetHeader(header).
		SetBody(body).
		Code(&code).
		Do()
	if err != nil {
		return errors.Wrap(err, "post webhook")
	}
	if code < 200 || code > 299 {
		return errors.Errorf("webhook destination answered %d", code)
	}
	return nil
}

func (d *Dispatcher) backoff() bool {
	select {
	case <-d.closing:
		return false
	case <-time.After(d.cfg.RetryDelay):
		return true
	}
}

// Close stops accepting events and waits up to timeout for queued and
// in-flight deliveries. Retries are abandoned once closing.
func (d *Dispatcher) Close(timeout time.Duration) error {
	d.closeOnce.Do(func() { close(d.closing) })
	deadline := time.Now().Add(timeout)
	select {
	case <-d.fed:
	case <-time.After(timeout):
		return errors.New("webhook queue not drained")
	}
	remaining := time.Until(deadline)
	if remaining < 50*time.Millisecond {
		remaining = 50 * time.Millisecond
	}
	return d.pool.ReleaseTimeout(remaining)
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
