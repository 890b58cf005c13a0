package webhook

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/wagate/config"
)

func testConfig(url string) config.WebhookConfig {
	return config.WebhookConfig{
		Enabled:       true,
		URL:           url,
		Secret:        "s3cret",
		Timeout:       time.Second,
		RetryAttempts: 3,
		RetryDelay:    10 * time.Millisecond,
		Workers:       4,
	}
}

func TestNewWithoutDestinationIsNop(t *testing.T) {
	sink, err := New(config.WebhookConfig{Enabled: true})
	require.NoError(t, err)
	assert.IsType(t, NopSink{}, sink)

	sink, err = New(config.WebhookConfig{Enabled: false, URL: "http://example.invalid"})
	require.NoError(t, err)
	assert.IsType(t, NopSink{}, sink)
}

func TestDispatcherPostsSignedEvent(t *testing.T) {
	type received struct {
		body      []byte
		signature string
	}
	got := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- received{body: body, signature: r.Header.Get(SignatureHeader)}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d, err := NewDispatcher(testConfig(srv.URL))
	require.NoError(t, err)
	defer d.Close(time.Second)

	d.Dispatch(NewEvent("i1", EventMessageReceived, map[string]string{"content": "hi"}))

	select {
	case r := <-got:
		assert.Contains(t, string(r.body), `"instanceId":"i1"`)
		assert.Contains(t, string(r.body), `"event":"message.received"`)
		assert.Equal(t, Sign("s3cret", r.body), r.signature)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not delivered")
	}
}

func TestDispatcherRetriesUntilSuccess(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d, err := NewDispatcher(testConfig(srv.URL))
	require.NoError(t, err)
	defer d.Close(time.Second)

	d.Dispatch(NewEvent("i1", EventMessageStatus, nil))

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool { return atomic.LoadInt32(&calls) > 3 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestDispatcherUnreachableDestinationDoesNotBlock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	d, err := NewDispatcher(testConfig(url))
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 20; i++ {
		d.Dispatch(NewEvent("i1", EventMessageReceived, i))
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.NoError(t, d.Close(2*time.Second))
}

func TestDispatcherDropsEventsAfterClose(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	d, err := NewDispatcher(testConfig(srv.URL))
	require.NoError(t, err)
	require.NoError(t, d.Close(time.Second))

	d.Dispatch(NewEvent("i1", EventConnectionUpdate, nil))
	assert.Never(t, func() bool { return atomic.LoadInt32(&calls) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestDispatcherQueuesWhileWorkersBusy(t *testing.T) {
	release := make(chan struct{})
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			<-release
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Workers = 1
	cfg.QueueSize = 8
	cfg.Timeout = 5 * time.Second
	d, err := NewDispatcher(cfg)
	require.NoError(t, err)
	defer d.Close(time.Second)

	start := time.Now()
	for i := 0; i < 5; i++ {
		d.Dispatch(NewEvent("i1", EventMessageReceived, i))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond, "dispatch must not wait for a worker")

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, 10*time.Millisecond)
	close(release)
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 5 }, 2*time.Second, 10*time.Millisecond)
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	release := make(chan struct{})
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Workers = 1
	cfg.QueueSize = 1
	d, err := NewDispatcher(cfg)
	require.NoError(t, err)

	d.Dispatch(NewEvent("i1", EventMessageReceived, 0))
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, 10*time.Millisecond)
	for i := 1; i < 10; i++ {
		d.Dispatch(NewEvent("i1", EventMessageReceived, i))
	}
	close(release)
	_ = d.Close(2 * time.Second)

	got := atomic.LoadInt32(&calls)
	assert.GreaterOrEqual(t, got, int32(2))
	assert.Less(t, got, int32(10))
}
