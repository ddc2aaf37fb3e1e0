package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/ventasur/stockbot/internal/bus"
	"github.com/ventasur/stockbot/internal/config"
)

const whatsappChannelName = "whatsapp"

const whatsappSendTimeout = 15 * time.Second

// WhatsAppChannel talks to an Evolution API instance: inbound messages
// arrive on the webhook handler the gateway mounts, outbound text goes
// through the sendText endpoint.
type WhatsAppChannel struct {
	BaseChannel
	cfg        config.WhatsAppConfig
	httpClient *http.Client
}

func NewWhatsApp(cfg config.WhatsAppConfig, b *bus.MessageBus) (*WhatsAppChannel, error) {
	if cfg.APIURL == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("evolution api url and key are required")
	}
	if cfg.Instance == "" {
		cfg.Instance = config.DefaultInstanceName
	}

	return &WhatsAppChannel{
		BaseChannel: NewBaseChannel(whatsappChannelName, b, cfg.AllowFrom),
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: whatsappSendTimeout},
	}, nil
}

// Start is a no-op: inbound traffic arrives via the webhook, which the
// gateway's HTTP server owns.
func (w *WhatsAppChannel) Start(ctx context.Context) error {
	log.Printf("[whatsapp] ready, instance %s", w.cfg.Instance)
	return nil
}

func (w *WhatsAppChannel) Stop() error {
	return nil
}

// webhookMessage is the slice of the Evolution API payload the bot cares
// about. Anything that is not a plain conversation message is ignored.
type webhookMessage struct {
	MessageType string `json:"messageType"`
	Key         struct {
		RemoteJid string `json:"remoteJid"`
	} `json:"key"`
	Message struct {
		Conversation string `json:"conversation"`
	} `json:"message"`
}

// WebhookHandler decodes an Evolution webhook POST. The data field may be a
// single message object or an array of them.
func (w *WhatsAppChannel) WebhookHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
			http.Error(rw, `{"status":"error"}`, http.StatusBadRequest)
			return
		}

		rw.Header().Set("Content-Type", "application/json")

		trimmed := bytes.TrimSpace(envelope.Data)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			rw.Write([]byte(`{"status":"no_data"}`))
			return
		}

		var batch []webhookMessage
		if trimmed[0] == '[' {
			if err := json.Unmarshal(trimmed, &batch); err != nil {
				http.Error(rw, `{"status":"error"}`, http.StatusBadRequest)
				return
			}
		} else {
			var single webhookMessage
			if err := json.Unmarshal(trimmed, &single); err != nil {
				http.Error(rw, `{"status":"error"}`, http.StatusBadRequest)
				return
			}
			batch = append(batch, single)
		}

		for _, m := range batch {
			w.handleMessage(m)
		}
		rw.Write([]byte(`{"status":"success"}`))
	}
}

func (w *WhatsAppChannel) handleMessage(m webhookMessage) {
	if m.MessageType != "conversation" {
		log.Printf("[whatsapp] ignored %q message", m.MessageType)
		return
	}

	number := strings.TrimSuffix(m.Key.RemoteJid, "@s.whatsapp.net")
	text := m.Message.Conversation
	if number == "" || text == "" {
		return
	}
	if !w.IsAllowed(number) {
		log.Printf("[whatsapp] rejected message from %s", number)
		return
	}

	w.bus.Inbound <- bus.InboundMessage{
		Channel:   whatsappChannelName,
		SenderID:  number,
		ChatID:    number,
		Content:   text,
		Timestamp: time.Now(),
		Metadata: map[string]any{
			"remote_jid": m.Key.RemoteJid,
		},
	}
}

// Send posts one text message through the Evolution sendText endpoint.
// Only 200/201 count as delivery accepted.
func (w *WhatsAppChannel) Send(msg bus.OutboundMessage) error {
	url := fmt.Sprintf("%s/message/sendText/%s",
		strings.TrimRight(w.cfg.APIURL, "/"), w.cfg.Instance)

	body, err := json.Marshal(map[string]string{
		"number": msg.ChatID,
		"text":   msg.Content,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", w.cfg.APIKey)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send whatsapp message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("evolution api error: %s body=%s", resp.Status, respBody)
	}
	return nil
}
