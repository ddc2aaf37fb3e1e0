package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ventasur/stockbot/internal/bus"
	"github.com/ventasur/stockbot/internal/config"
	"github.com/ventasur/stockbot/internal/inventory"
	"github.com/ventasur/stockbot/internal/splitter"
)

type fakeChannel struct {
	name    string
	sent    []bus.OutboundMessage
	failAt  int // 1-based send index that fails; 0 never fails
	numSent int
}

func (f *fakeChannel) Name() string                    { return f.name }
func (f *fakeChannel) Start(ctx context.Context) error { return nil }
func (f *fakeChannel) Stop() error                     { return nil }

func (f *fakeChannel) Send(msg bus.OutboundMessage) error {
	f.numSent++
	if f.failAt > 0 && f.numSent >= f.failAt {
		return errors.New("transport rejected message")
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeLLM struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeLLM) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeLLM) Model() string { return "fake-model" }

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Inventory.File = "no-such-inventory.xlsx"
	cfg.Bot.SendPacing = "1ms"
	return cfg
}

func newTestGateway(t *testing.T, model *fakeLLM) (*Gateway, *fakeChannel) {
	t.Helper()
	g, err := NewWithOptions(testConfig(), Options{LLM: model})
	if err != nil {
		t.Fatalf("NewWithOptions error: %v", err)
	}
	ch := &fakeChannel{name: "whatsapp"}
	g.Channels().Register(ch)
	return g, ch
}

func testSnapshot() *inventory.Snapshot {
	return inventory.New(
		[]string{"Producto", "Categoria", "Stock", "Precio"},
		[]inventory.Row{
			{"Cámara HIK-200", "Cámaras", "5", "120.50"},
			{"Impresora Epson", "Impresoras", "10", "300"},
			{"Notebook HP", "Notebooks", "0", "850"},
		},
	)
}

func inbound(text string) bus.InboundMessage {
	return bus.InboundMessage{
		Channel:  "whatsapp",
		SenderID: "5491100000001",
		ChatID:   "5491100000001",
		Content:  text,
	}
}

func TestHandleMessage_StartCommand(t *testing.T) {
	g, ch := newTestGateway(t, &fakeLLM{reply: "hola"})

	g.HandleMessage(context.Background(), inbound("/inventario"))

	if !g.sessions.IsActive("5491100000001") {
		t.Error("session should be active after start command")
	}
	if len(ch.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(ch.sent))
	}
	if !strings.Contains(ch.sent[0].Content, "SESIÓN DE INVENTARIO INICIADA") {
		t.Errorf("expected welcome, got %q", ch.sent[0].Content)
	}
}

func TestHandleMessage_EndCommand(t *testing.T) {
	g, ch := newTestGateway(t, &fakeLLM{reply: "ok"})
	ctx := context.Background()

	g.HandleMessage(ctx, inbound("/inventario"))
	g.HandleMessage(ctx, inbound("hola"))
	g.HandleMessage(ctx, inbound("/fin"))

	if g.sessions.IsActive("5491100000001") {
		t.Error("session should be inactive after end command")
	}
	if got := g.memory.Format("5491100000001"); got != "" {
		t.Errorf("memory should be cleared, got %q", got)
	}
	last := ch.sent[len(ch.sent)-1]
	if !strings.Contains(last.Content, "SESIÓN DE INVENTARIO FINALIZADA") {
		t.Errorf("expected farewell, got %q", last.Content)
	}
}

func TestHandleMessage_EndWithoutSession(t *testing.T) {
	g, ch := newTestGateway(t, &fakeLLM{reply: "ok"})

	g.HandleMessage(context.Background(), inbound("/fin"))

	if len(ch.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(ch.sent))
	}
	if !strings.Contains(ch.sent[0].Content, "/inventario") {
		t.Errorf("expected hint pointing at the start command, got %q", ch.sent[0].Content)
	}
}

func TestHandleMessage_SilentWithoutSession(t *testing.T) {
	model := &fakeLLM{reply: "ok"}
	g, ch := newTestGateway(t, model)

	g.HandleMessage(context.Background(), inbound("cuánto stock hay?"))

	if len(ch.sent) != 0 {
		t.Errorf("sent %d messages, want 0 (no session, no reply)", len(ch.sent))
	}
	if len(model.prompts) != 0 {
		t.Errorf("model called %d times, want 0", len(model.prompts))
	}
	if got := g.memory.Format("5491100000001"); got != "" {
		t.Errorf("memory should stay empty, got %q", got)
	}
}

func TestHandleMessage_CommandCaseInsensitive(t *testing.T) {
	g, _ := newTestGateway(t, &fakeLLM{reply: "ok"})

	g.HandleMessage(context.Background(), inbound("  /INVENTARIO  "))

	if !g.sessions.IsActive("5491100000001") {
		t.Error("uppercase command with padding should still start the session")
	}
}

func TestHandleMessage_StockQueryGroundsPrompt(t *testing.T) {
	model := &fakeLLM{reply: "El stock total es 15 unidades."}
	g, ch := newTestGateway(t, model)
	g.inv.Swap(testSnapshot())
	ctx := context.Background()

	g.HandleMessage(ctx, inbound("/inventario"))
	g.HandleMessage(ctx, inbound("cuánto stock total tenemos?"))

	if len(model.prompts) != 1 {
		t.Fatalf("model called %d times, want 1", len(model.prompts))
	}
	p := model.prompts[0]
	if !strings.Contains(p, "RESUMEN DE STOCK") {
		t.Error("prompt should embed the stock aggregate")
	}
	if !strings.Contains(p, "15") {
		t.Error("prompt should contain the summed stock")
	}
	if !strings.Contains(p, "INVENTARIO COMPLETO DE PRODUCTOS") {
		t.Error("prompt should embed the full inventory text")
	}
	last := ch.sent[len(ch.sent)-1]
	if last.Content != model.reply {
		t.Errorf("reply = %q, want the model output verbatim", last.Content)
	}
}

func TestHandleMessage_HistoryExcludesCurrentTurn(t *testing.T) {
	model := &fakeLLM{reply: "respuesta"}
	g, _ := newTestGateway(t, model)
	g.inv.Swap(testSnapshot())
	ctx := context.Background()

	g.HandleMessage(ctx, inbound("/inventario"))
	g.HandleMessage(ctx, inbound("primera pregunta"))
	g.HandleMessage(ctx, inbound("segunda pregunta"))

	second := model.prompts[1]
	if !strings.Contains(second, "Usuario: primera pregunta") {
		t.Error("second prompt should carry the first exchange as history")
	}
	if !strings.Contains(second, "Bot: respuesta") {
		t.Error("second prompt should carry the first reply as history")
	}
	if strings.Contains(second, "Usuario: segunda pregunta\n") {
		t.Error("history must not include the turn being answered")
	}
}

func TestHandleMessage_GenerationFailure(t *testing.T) {
	model := &fakeLLM{err: errors.New("model unavailable")}
	g, ch := newTestGateway(t, model)
	g.inv.Swap(testSnapshot())
	ctx := context.Background()

	g.HandleMessage(ctx, inbound("/inventario"))
	g.HandleMessage(ctx, inbound("buscar cámaras"))

	last := ch.sent[len(ch.sent)-1]
	if !strings.Contains(last.Content, "Disculpa") {
		t.Errorf("expected apology, got %q", last.Content)
	}

	mem := g.memory.Format("5491100000001")
	if !strings.Contains(mem, "Usuario: buscar cámaras") {
		t.Error("failed turn should keep the user message in memory")
	}
	if strings.Contains(mem, "Bot:") {
		t.Error("failed turn must not record a bot reply")
	}
}

func TestHandleMessage_NoInventoryLoaded(t *testing.T) {
	model := &fakeLLM{reply: "sin datos"}
	g, _ := newTestGateway(t, model)
	ctx := context.Background()

	g.HandleMessage(ctx, inbound("/inventario"))
	g.HandleMessage(ctx, inbound("stock total"))

	if len(model.prompts) != 1 {
		t.Fatalf("model called %d times, want 1", len(model.prompts))
	}
	if !strings.Contains(model.prompts[0], "no disponible") {
		t.Error("prompt should flag the missing inventory instead of failing")
	}
}

func TestDispatch_MultiChunkInOrder(t *testing.T) {
	g, ch := newTestGateway(t, &fakeLLM{})

	var sb strings.Builder
	for i := 1; i <= 12; i++ {
		fmt.Fprintf(&sb, "PRODUCTO %d:\n  Nombre: articulo con descripcion larga %d\n  Stock: %d\n\n", i, i, i)
	}
	text := strings.TrimRight(sb.String(), "\n")
	g.cfg.Bot.ChunkLimit = 200

	if err := g.Dispatch(context.Background(), "whatsapp", "111", text); err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if len(ch.sent) < 2 {
		t.Fatalf("sent %d chunks, want several", len(ch.sent))
	}

	var joined strings.Builder
	for i, m := range ch.sent {
		marker := fmt.Sprintf("(parte %d/%d)", i+1, len(ch.sent))
		if !strings.HasPrefix(m.Content, marker) {
			t.Errorf("chunk %d marker = %q, want prefix %q", i, m.Content[:20], marker)
		}
		joined.WriteString(splitter.StripMarker(m.Content))
	}
	if joined.String() != text {
		t.Error("concatenated chunks should reproduce the original text")
	}
}

func TestDispatch_AbortsOnFailedChunk(t *testing.T) {
	g, _ := newTestGateway(t, &fakeLLM{})
	ch := &fakeChannel{name: "whatsapp", failAt: 2}
	g.Channels().Register(ch)

	text := strings.Repeat("linea de texto repetida para forzar varios fragmentos\n\n", 20)
	g.cfg.Bot.ChunkLimit = 300

	err := g.Dispatch(context.Background(), "whatsapp", "111", text)
	if err == nil {
		t.Fatal("expected delivery error")
	}

	var derr *DeliveryError
	if !errors.As(err, &derr) {
		t.Fatalf("error type = %T, want *DeliveryError", err)
	}
	if derr.Sent != 1 {
		t.Errorf("Sent = %d, want 1", derr.Sent)
	}
	if derr.Total < 2 {
		t.Errorf("Total = %d, want at least 2", derr.Total)
	}
	if len(ch.sent) != 1 {
		t.Errorf("channel received %d chunks after abort, want 1", len(ch.sent))
	}
}

func TestDispatch_SingleChunkUnmarked(t *testing.T) {
	g, ch := newTestGateway(t, &fakeLLM{})

	if err := g.Dispatch(context.Background(), "whatsapp", "111", "respuesta corta"); err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if len(ch.sent) != 1 {
		t.Fatalf("sent %d chunks, want 1", len(ch.sent))
	}
	if strings.Contains(ch.sent[0].Content, "(parte") {
		t.Error("single chunk must not carry a part marker")
	}
}

func TestStatus(t *testing.T) {
	g, _ := newTestGateway(t, &fakeLLM{reply: "ok"})
	g.inv.Swap(testSnapshot())
	ctx := context.Background()

	g.HandleMessage(ctx, inbound("/inventario"))
	g.HandleMessage(ctx, inbound("hola"))

	report := g.Status()
	if !report.ModelReady {
		t.Error("ModelReady should be true with an injected model")
	}
	if report.Model != "fake-model" {
		t.Errorf("Model = %q", report.Model)
	}
	if report.Products != 3 {
		t.Errorf("Products = %d, want 3", report.Products)
	}
	if !report.InventoryLoaded {
		t.Error("InventoryLoaded should be true")
	}
	if report.ActiveSessions != 1 {
		t.Errorf("ActiveSessions = %d, want 1", report.ActiveSessions)
	}
	if report.Conversations != 1 {
		t.Errorf("Conversations = %d, want 1", report.Conversations)
	}
	if report.InventoryError == "" {
		t.Error("InventoryError should report the startup load failure")
	}
}

func TestStatus_NoModel(t *testing.T) {
	cfg := testConfig()
	cfg.Provider.APIKey = ""
	g, err := NewWithOptions(cfg, Options{})
	if err != nil {
		t.Fatalf("NewWithOptions error: %v", err)
	}

	report := g.Status()
	if report.ModelReady {
		t.Error("ModelReady should be false without credentials")
	}
	if report.ModelError == "" {
		t.Error("ModelError should explain the missing credentials")
	}
}
