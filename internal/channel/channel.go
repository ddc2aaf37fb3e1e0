package channel

import (
	"context"

	"github.com/ventasur/stockbot/internal/bus"
)

// Channel is one chat transport: it feeds inbound messages to the bus and
// delivers outbound chunks. Send reports whether the transport accepted the
// message; the gateway's dispatcher depends on that to abort a partially
// failed multi-chunk delivery.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Send(msg bus.OutboundMessage) error
}

type BaseChannel struct {
	name      string
	bus       *bus.MessageBus
	allowFrom []string
}

func NewBaseChannel(name string, b *bus.MessageBus, allowFrom []string) BaseChannel {
	return BaseChannel{name: name, bus: b, allowFrom: allowFrom}
}

func (b *BaseChannel) Name() string {
	return b.name
}

// IsAllowed checks the sender against the allowFrom filter. An empty filter
// allows everyone; the session gate still decides whether anyone gets a reply.
func (b *BaseChannel) IsAllowed(sender string) bool {
	if len(b.allowFrom) == 0 {
		return true
	}
	for _, allowed := range b.allowFrom {
		if allowed == sender {
			return true
		}
	}
	return false
}
