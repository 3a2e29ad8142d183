package sink

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/qcflow/internal/qc"
)

// Broadcaster delivers a message to every live subscriber without blocking.
type Broadcaster interface {
	Broadcast(msg []byte)
}

// Broadcast forwards results to live subscribers, such as websocket clients.
type Broadcast struct {
	to Broadcaster
}

func NewBroadcast(to Broadcaster) *Broadcast {
	return &Broadcast{to: to}
}

func (b *Broadcast) Write(_ context.Context, res *qc.Result) error {
	data, err := sonic.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	b.to.Broadcast(data)
	return nil
}

func (b *Broadcast) Close() error { return nil }
