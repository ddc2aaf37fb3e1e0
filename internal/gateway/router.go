package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// StatusReport is the /status payload. It mirrors what an operator needs
// at a glance: is the model reachable, is the inventory loaded, and how
// many conversations are live.
type StatusReport struct {
	Status          string    `json:"status"`
	Model           string    `json:"model,omitempty"`
	ModelReady      bool      `json:"model_ready"`
	ModelError      string    `json:"model_error,omitempty"`
	Products        int       `json:"products"`
	InventoryLoaded bool      `json:"inventory_loaded"`
	InventoryError  string    `json:"inventory_error,omitempty"`
	LoadedAt        time.Time `json:"inventory_loaded_at,omitempty"`
	ActiveSessions  int       `json:"active_sessions"`
	Conversations   int       `json:"conversations"`
	Channels        []string  `json:"channels"`
}

func (g *Gateway) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/", g.handleHome)
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("pong"))
	})
	r.Get("/status", g.handleStatus)

	if wa, ok := g.channels.WhatsApp(); ok {
		r.Post(g.cfg.Channels.WhatsApp.WebhookPath, wa.WebhookHandler())
	}

	return r
}

func (g *Gateway) handleHome(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "stockbot - asistente de inventario\n\n")
	fmt.Fprintf(w, "Canales: %v\n", g.channels.EnabledChannels())
	fmt.Fprintf(w, "Estado: GET /status\n")
}

func (g *Gateway) handleStatus(w http.ResponseWriter, _ *http.Request) {
	report := g.Status()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

// Status snapshots the gateway's health for the /status surface and tests.
func (g *Gateway) Status() StatusReport {
	g.mu.Lock()
	loadErr := g.loadErr
	llmErr := g.llmError
	g.mu.Unlock()

	report := StatusReport{
		Status:         "ok",
		ModelReady:     g.llm != nil,
		ModelError:     llmErr,
		InventoryError: loadErr,
		ActiveSessions: g.sessions.ActiveCount(),
		Conversations:  g.memory.Conversations(),
		Channels:       g.channels.EnabledChannels(),
	}
	if g.llm != nil {
		report.Model = g.llm.Model()
	}
	if snap := g.inv.Get(); snap != nil {
		report.Products = snap.Len()
		report.InventoryLoaded = true
		report.LoadedAt = snap.LoadedAt
	}
	return report
}
