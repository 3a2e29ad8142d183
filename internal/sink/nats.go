package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/qcflow/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/qcflow/internal/qc"
)

// Conn is the part of *nats.Conn the sink uses.
type Conn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	IsClosed() bool
	Close()
}

// NATS publishes each result to "<prefix>.<check>".
type NATS struct {
	conn    Conn
	prefix  string
	breaker *resilience.Breaker
	logger  *zap.Logger
}

// DialNATS connects to url and reconnects indefinitely.
func DialNATS(url, prefix string, logger *zap.Logger) (*NATS, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("qcflow"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return NewNATS(nc, prefix, logger), nil
}

// NewNATS publishes over an existing connection.
func NewNATS(conn Conn, prefix string, logger *zap.Logger) *NATS {
	if logger == nil {
		logger = zap.NewNop()
	}
	breaker := resilience.New("nats", resilience.Settings{
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})
	return &NATS{conn: conn, prefix: prefix, breaker: breaker, logger: logger}
}

// Subject returns the subject a result of check is published on
func (s *NATS) Subject(check string) string {
	return s.prefix + "." + check
}

func (s *NATS) Write(ctx context.Context, res *qc.Result) error {
	data, err := sonic.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return s.breaker.Do(ctx, func(context.Context) error {
		return s.conn.Publish(s.Subject(res.Check), data)
	})
}

// Close flushes pending publishes and closes the connection. Closing an
// already closed sink is a no-op.
func (s *NATS) Close() error {
	if s.conn.IsClosed() {
		return nil
	}
	defer s.conn.Close()
	if err := s.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("flush NATS: %w", err)
	}
	return nil
}
