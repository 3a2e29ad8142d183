package sink

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/qcflow/internal/infrastructure/resilience"
)

func testWebhookConfig(url string) WebhookConfig {
	cfg := DefaultWebhookConfig(url)
	cfg.Timeout = 2 * time.Second
	cfg.RetryWait = time.Millisecond
	cfg.TripAfter = 2
	return cfg
}

func TestWebhookPosts(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewWebhook(testWebhookConfig(srv.URL), nil)
	require.NoError(t, s.Write(ctx, result(bhz, "spike", t0, true)))

	var decoded map[string]any
	require.NoError(t, sonic.Unmarshal(body, &decoded))
	assert.Equal(t, "spike", decoded["check"])
	assert.NoError(t, s.Close())
}

func TestWebhookRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewWebhook(testWebhookConfig(srv.URL), nil)
	require.NoError(t, s.Write(ctx, result(bhz, "gap", t0, true)))
	assert.Equal(t, int32(3), calls.Load())
}

func TestWebhookClientErrorTripsBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewWebhook(testWebhookConfig(srv.URL), nil)
	assert.ErrorContains(t, s.Write(ctx, result(bhz, "gap", t0, true)), "400")
	assert.Error(t, s.Write(ctx, result(bhz, "gap", t0, true)))
	assert.Equal(t, int32(2), calls.Load(), "4xx responses are not retried")

	assert.Equal(t, resilience.StateOpen, s.Breaker().State())
	assert.ErrorIs(t, s.Write(ctx, result(bhz, "gap", t0, true)), resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
}
