package bus

import "time"

type InboundMessage struct {
	Channel   string
	SenderID  string
	ChatID    string
	Content   string
	Timestamp time.Time
	Metadata  map[string]any
}

func (m *InboundMessage) SessionKey() string {
	return m.Channel + ":" + m.SenderID
}

type OutboundMessage struct {
	Channel string
	ChatID  string
	Content string
}

// MessageBus carries inbound messages from channels to the gateway.
// Outbound delivery goes through ChannelManager.Send so the caller learns
// whether each chunk was accepted by the transport.
type MessageBus struct {
	Inbound chan InboundMessage
}

func NewMessageBus(bufSize int) *MessageBus {
	if bufSize <= 0 {
		bufSize = 1
	}
	return &MessageBus{
		Inbound: make(chan InboundMessage, bufSize),
	}
}
