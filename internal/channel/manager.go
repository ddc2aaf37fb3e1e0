package channel

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/ventasur/stockbot/internal/bus"
	"github.com/ventasur/stockbot/internal/config"
)

type ChannelManager struct {
	channels map[string]Channel
	bus      *bus.MessageBus
}

func NewChannelManager(cfg config.ChannelsConfig, b *bus.MessageBus) (*ChannelManager, error) {
	m := &ChannelManager{
		channels: make(map[string]Channel),
		bus:      b,
	}

	if cfg.WhatsApp.Enabled {
		ch, err := NewWhatsApp(cfg.WhatsApp, b)
		if err != nil {
			return nil, fmt.Errorf("init whatsapp channel: %w", err)
		}
		m.channels[ch.Name()] = ch
	}

	if cfg.Telegram.Enabled {
		ch, err := NewTelegramChannel(cfg.Telegram, b)
		if err != nil {
			return nil, fmt.Errorf("init telegram channel: %w", err)
		}
		m.channels[ch.Name()] = ch
	}

	return m, nil
}

// Register adds a channel directly (used by tests to inject fakes).
func (m *ChannelManager) Register(ch Channel) {
	m.channels[ch.Name()] = ch
}

// Send delivers one outbound message through the named channel and reports
// whether the transport accepted it.
func (m *ChannelManager) Send(name string, msg bus.OutboundMessage) error {
	ch, ok := m.channels[name]
	if !ok {
		return fmt.Errorf("unknown channel %q", name)
	}
	return ch.Send(msg)
}

func (m *ChannelManager) StartAll(ctx context.Context) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(m.channels))

	for name, ch := range m.channels {
		wg.Add(1)
		go func(name string, ch Channel) {
			defer wg.Done()
			log.Printf("[channel-mgr] starting %s", name)
			if err := ch.Start(ctx); err != nil {
				errCh <- fmt.Errorf("%s: %w", name, err)
			}
		}(name, ch)
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		return err
	}
	return nil
}

func (m *ChannelManager) StopAll() error {
	for name, ch := range m.channels {
		log.Printf("[channel-mgr] stopping %s", name)
		if err := ch.Stop(); err != nil {
			log.Printf("[channel-mgr] error stopping %s: %v", name, err)
		}
	}
	return nil
}

func (m *ChannelManager) EnabledChannels() []string {
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	return names
}

// WhatsApp returns the whatsapp channel when enabled, so the gateway can
// mount its webhook handler on the HTTP router.
func (m *ChannelManager) WhatsApp() (*WhatsAppChannel, bool) {
	ch, ok := m.channels[whatsappChannelName]
	if !ok {
		return nil, false
	}
	wa, ok := ch.(*WhatsAppChannel)
	return wa, ok
}
