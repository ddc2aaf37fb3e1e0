// Package gateway wires the channels, the session gate, the inventory
// snapshot and the model into the message handling pipeline: gate the
// sender, recall memory, classify intent, precompute the aggregate, build
// the prompt, complete, split and send.
package gateway

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ventasur/stockbot/internal/bus"
	"github.com/ventasur/stockbot/internal/channel"
	"github.com/ventasur/stockbot/internal/config"
	"github.com/ventasur/stockbot/internal/intent"
	"github.com/ventasur/stockbot/internal/inventory"
	"github.com/ventasur/stockbot/internal/llm"
	"github.com/ventasur/stockbot/internal/prompt"
	"github.com/ventasur/stockbot/internal/session"
	"github.com/ventasur/stockbot/internal/splitter"
)

const welcomeMessage = `🎯 **SESIÓN DE INVENTARIO INICIADA**

¡Hola! Ahora puedes preguntarme sobre el inventario:

📋 **Comandos disponibles:**
• "categorías" - Ver todas las categorías
• "stock total" - Calcular stock completo
• "valor total" - Calcular el valor del inventario
• "buscar [producto]" - Buscar productos específicos
• "/fin" - Terminar sesión

¿En qué puedo ayudarte?`

const farewellMessage = `👋 **SESIÓN DE INVENTARIO FINALIZADA**

¡Gracias por usar el sistema de inventario!

Para volver a consultar el inventario, escribe: /inventario`

const noSessionHint = "No tienes una sesión activa. Para iniciar, escribe: /inventario"

const apologyMessage = "❌ Disculpa, tuve un problema procesando tu mensaje. ¿Podrías intentar de nuevo?"

const inventoryUnavailable = "(inventario no disponible en este momento)"

// DeliveryError reports a multi-chunk send that failed mid-sequence.
// Already-delivered chunks stay delivered; the rest are not retried.
type DeliveryError struct {
	Sent  int
	Total int
	Err   error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivered %d/%d chunks: %v", e.Sent, e.Total, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Options for creating a Gateway. LLM injects a fake model client in tests;
// SignalChan injects the shutdown trigger.
type Options struct {
	LLM        llm.Client
	SignalChan chan os.Signal
}

type Gateway struct {
	cfg      *config.Config
	bus      *bus.MessageBus
	channels *channel.ChannelManager
	llm      llm.Client
	inv      *inventory.Store
	memory   *session.Memory
	sessions *session.Controller
	cron     *cron.Cron
	server   *http.Server

	pacing     time.Duration
	signalChan chan os.Signal

	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	loadErr  string
	llmError string
}

// New creates a Gateway with default options.
func New(cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions creates a Gateway with custom options for testing.
func NewWithOptions(cfg *config.Config, opts Options) (*Gateway, error) {
	g := &Gateway{
		cfg:        cfg,
		bus:        bus.NewMessageBus(config.DefaultBufSize),
		inv:        &inventory.Store{},
		pacing:     cfg.Bot.Pacing(),
		signalChan: opts.SignalChan,
		locks:      make(map[string]*sync.Mutex),
	}

	g.memory = session.NewMemory(cfg.Bot.HistoryLimit)
	g.sessions = session.NewController(g.memory)

	// Model client. A failed init is not fatal: the status surface reports
	// it and affected replies degrade to the apology.
	if opts.LLM != nil {
		g.llm = opts.LLM
	} else {
		client, err := llm.New(cfg.Provider)
		if err != nil {
			log.Printf("[gateway] llm init warning: %v", err)
			g.llmError = err.Error()
		} else {
			g.llm = client
		}
	}

	// Initial inventory load. Reported once here and via /status, not
	// re-attempted per message.
	if snap, err := inventory.Load(cfg.Inventory); err != nil {
		log.Printf("[gateway] inventory load warning: %v", err)
		g.loadErr = err.Error()
	} else {
		g.inv.Swap(snap)
	}

	chMgr, err := channel.NewChannelManager(cfg.Channels, g.bus)
	if err != nil {
		return nil, fmt.Errorf("create channel manager: %w", err)
	}
	g.channels = chMgr

	if expr := strings.TrimSpace(cfg.Inventory.ReloadCron); expr != "" {
		g.cron = cron.New()
		if _, err := g.cron.AddFunc(expr, g.reloadInventory); err != nil {
			return nil, fmt.Errorf("schedule inventory reload %q: %w", expr, err)
		}
	}

	return g, nil
}

// Channels exposes the manager (used by tests to register fakes).
func (g *Gateway) Channels() *channel.ChannelManager {
	return g.channels
}

func (g *Gateway) reloadInventory() {
	snap, err := inventory.Load(g.cfg.Inventory)

	g.mu.Lock()
	defer g.mu.Unlock()
	if err != nil {
		log.Printf("[gateway] inventory reload failed: %v", err)
		g.loadErr = err.Error()
		return
	}
	g.inv.Swap(snap)
	g.loadErr = ""
	log.Printf("[gateway] inventory reloaded: %d products", snap.Len())
}

// userLock serializes handling per sender so near-simultaneous messages
// from one user cannot interleave their memory appends.
func (g *Gateway) userLock(user string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.locks[user]
	if !ok {
		l = &sync.Mutex{}
		g.locks[user] = l
	}
	return l
}

func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := g.channels.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	log.Printf("[gateway] channels started: %v", g.channels.EnabledChannels())

	if g.cron != nil {
		g.cron.Start()
	}

	addr := fmt.Sprintf("%s:%d", g.cfg.Gateway.Host, g.cfg.Gateway.Port)
	g.server = &http.Server{Addr: addr, Handler: g.Router()}
	go func() {
		if err := g.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[gateway] http server error: %v", err)
		}
	}()

	go g.processLoop(ctx)

	log.Printf("[gateway] running on %s", addr)

	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}
	<-sigCh

	log.Printf("[gateway] shutting down...")
	return g.Shutdown()
}

func (g *Gateway) Shutdown() error {
	if g.cron != nil {
		g.cron.Stop()
	}
	if g.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = g.server.Shutdown(ctx)
	}
	_ = g.channels.StopAll()
	log.Printf("[gateway] shutdown complete")
	return nil
}

func (g *Gateway) processLoop(ctx context.Context) {
	for {
		select {
		case msg := <-g.bus.Inbound:
			log.Printf("[gateway] inbound from %s/%s: %s", msg.Channel, msg.SenderID, truncate(msg.Content, 80))
			g.HandleMessage(ctx, msg)
		case <-ctx.Done():
			return
		}
	}
}

// HandleMessage runs one inbound message through the whole pipeline. Each
// message is handled to completion before the next one for the same user
// starts; failures end in either a silent discard or a deterministic reply.
func (g *Gateway) HandleMessage(ctx context.Context, msg bus.InboundMessage) {
	lock := g.userLock(msg.SenderID)
	lock.Lock()
	defer lock.Unlock()

	user := msg.SenderID
	text := strings.TrimSpace(msg.Content)
	lower := strings.ToLower(text)

	switch lower {
	case strings.ToLower(g.cfg.Bot.StartCommand):
		g.sessions.Start(user)
		log.Printf("[gateway] session started for %s", user)
		g.reply(ctx, msg, welcomeMessage)
		return

	case strings.ToLower(g.cfg.Bot.EndCommand):
		if !g.sessions.IsActive(user) {
			g.reply(ctx, msg, noSessionHint)
			return
		}
		g.sessions.End(user)
		log.Printf("[gateway] session ended for %s", user)
		g.reply(ctx, msg, farewellMessage)
		return
	}

	// No session: drop silently. No reply and no memory write keeps the
	// bot invisible (and free) for anyone who never opted in.
	if !g.sessions.IsActive(user) {
		log.Printf("[gateway] discarded message from %s: no active session", user)
		return
	}

	// History is formatted before the current turn is appended so the
	// prompt separates prior context from the new message.
	history := g.memory.Format(user)
	g.memory.Append(user, session.SpeakerUser, text)

	it, terms := intent.Classify(text)

	snap := g.inv.Get()
	aggregate := ""
	invText := inventoryUnavailable
	if snap != nil {
		invText = snap.Text
		switch it {
		case intent.Categories:
			aggregate = inventory.Categories(snap)
		case intent.StockTotal:
			aggregate = inventory.StockTotal(snap)
		case intent.ValueTotal:
			aggregate = inventory.ValueTotal(snap)
		case intent.Search:
			aggregate = inventory.Search(snap, terms)
		}
	}

	reply, err := g.complete(ctx, prompt.Build(history, aggregate, invText, text))
	if err != nil {
		// The user's turn stays recorded, the bot's does not: the next
		// prompt correctly shows that no answer was given.
		log.Printf("[gateway] generation error for %s: %v", user, err)
		g.reply(ctx, msg, apologyMessage)
		return
	}

	g.memory.Append(user, session.SpeakerBot, reply)
	g.reply(ctx, msg, reply)
}

func (g *Gateway) complete(ctx context.Context, p string) (string, error) {
	if g.llm == nil {
		return "", fmt.Errorf("llm client not initialized")
	}
	return g.llm.Complete(ctx, p)
}

// reply splits and dispatches one outbound text; delivery failures are
// logged, not propagated (there is no one upstream to retry them).
func (g *Gateway) reply(ctx context.Context, msg bus.InboundMessage, text string) {
	if err := g.Dispatch(ctx, msg.Channel, msg.ChatID, text); err != nil {
		log.Printf("[gateway] delivery to %s/%s failed: %v", msg.Channel, msg.ChatID, err)
	}
}

// Dispatch sends the text as ordered chunks with a pacing delay between
// them; transports throttle or flag bursts of back-to-back messages. A
// failed chunk aborts the rest and reports how far delivery got.
func (g *Gateway) Dispatch(ctx context.Context, channelName, chatID, text string) error {
	chunks := splitter.Split(text, g.cfg.Bot.ChunkLimit)

	for i, chunk := range chunks {
		if err := g.channels.Send(channelName, bus.OutboundMessage{
			Channel: channelName,
			ChatID:  chatID,
			Content: chunk,
		}); err != nil {
			return &DeliveryError{Sent: i, Total: len(chunks), Err: err}
		}

		if i < len(chunks)-1 && g.pacing > 0 {
			select {
			case <-time.After(g.pacing):
			case <-ctx.Done():
				return &DeliveryError{Sent: i + 1, Total: len(chunks), Err: ctx.Err()}
			}
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
