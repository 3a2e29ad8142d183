package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/qcflow/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/qcflow/internal/qc"
)

// WebhookConfig configures a Webhook
type WebhookConfig struct {
	URL        string
	Timeout    time.Duration
	MaxRetries int
	RetryWait  time.Duration
	// TripAfter consecutive failures opens the circuit
	TripAfter uint32
	// CoolDown is how long the circuit stays open
	CoolDown time.Duration
}

// DefaultWebhookConfig returns settings suited to a slow, occasionally
// unavailable receiver.
func DefaultWebhookConfig(url string) WebhookConfig {
	return WebhookConfig{
		URL:        url,
		Timeout:    10 * time.Second,
		MaxRetries: 3,
		RetryWait:  500 * time.Millisecond,
		TripAfter:  5,
		CoolDown:   30 * time.Second,
	}
}

// Webhook POSTs each result as JSON.
type Webhook struct {
	client  *resty.Client
	url     string
	breaker *resilience.Breaker
}

// NewWebhook creates the sink. Retries of failed requests happen inside one
// Write; the breaker counts a Write whose retries are exhausted as one
// failure.
func NewWebhook(cfg WebhookConfig, logger *zap.Logger) *Webhook {
	if logger == nil {
		logger = zap.NewNop()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.RetryWait
	retryClient.RetryWaitMax = 10 * cfg.RetryWait
	retryClient.Logger = nil

	client := resty.NewWithClient(retryClient.StandardClient()).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "qcflow/1.0")

	breaker := resilience.New("webhook", resilience.Settings{
		MaxRequests: 1,
		Timeout:     cfg.CoolDown,
		ReadyToTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= cfg.TripAfter
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})

	return &Webhook{client: client, url: cfg.URL, breaker: breaker}
}

// Breaker exposes the circuit state
func (w *Webhook) Breaker() *resilience.Breaker {
	return w.breaker
}

func (w *Webhook) Write(ctx context.Context, res *qc.Result) error {
	body, err := sonic.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	return w.breaker.Do(ctx, func(ctx context.Context) error {
		resp, err := w.client.R().
			SetContext(ctx).
			SetBody(body).
			Post(w.url)
		if err != nil {
			return fmt.Errorf("post result: %w", err)
		}
		if resp.IsError() {
			return fmt.Errorf("post result: unexpected status %d", resp.StatusCode())
		}
		return nil
	})
}

func (w *Webhook) Close() error { return nil }
