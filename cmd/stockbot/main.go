package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ventasur/stockbot/internal/config"
	"github.com/ventasur/stockbot/internal/gateway"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "stockbot",
	Short: "stockbot - asistente conversacional de inventario",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway (channels + webhook + scheduled reloads)",
	RunE:  runServe,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize the config file",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stockbot status",
	RunE:  runStatus,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("stockbot", version)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, onboardCmd, statusCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	// Local overrides live in .env during development; missing file is fine.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	return gw.Run(context.Background())
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgPath := config.ConfigPath()

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.SaveConfig(config.DefaultConfig()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	writeIfNotExists(filepath.Join(config.ConfigDir(), "env.example"), envTemplate)

	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to set the model API key\n", cfgPath)
	fmt.Println("  2. Or set GEMINI_API_KEY / OPENAI_API_KEY environment variables")
	fmt.Println("  3. Set EVOLUTION_API_URL and EVOLUTION_API_KEY to enable WhatsApp")
	fmt.Println("  4. Run 'stockbot serve'")

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	fmt.Printf("Provider: %s\n", providerDisplay(cfg.Provider.Type))
	fmt.Printf("Model: %s\n", modelDisplay(cfg.Provider))
	fmt.Printf("API Key: %s\n", maskKey(cfg.Provider.APIKey))
	fmt.Printf("WhatsApp: enabled=%v\n", cfg.Channels.WhatsApp.Enabled)
	fmt.Printf("Telegram: enabled=%v\n", cfg.Channels.Telegram.Enabled)
	fmt.Printf("Inventory: %s (sheet %s)\n", cfg.Inventory.File, cfg.Inventory.Sheet)

	if _, err := os.Stat(cfg.Inventory.File); err != nil {
		fmt.Println("Inventory file: not found next to the binary (probed paths may still resolve it)")
	}

	probeGateway(cfg)
	return nil
}

// probeGateway asks a running instance for its live status; silence just
// means nothing is listening.
func probeGateway(cfg *config.Config) {
	host := cfg.Gateway.Host
	if host == "0.0.0.0" || host == "" {
		host = "127.0.0.1"
	}
	url := fmt.Sprintf("http://%s:%d/status", host, cfg.Gateway.Port)

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Println("Gateway: not running")
		return
	}
	defer resp.Body.Close()

	var report gateway.StatusReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		fmt.Printf("Gateway: unreadable response (%v)\n", err)
		return
	}

	fmt.Printf("Gateway: running on %s\n", url)
	fmt.Printf("  Products loaded: %d\n", report.Products)
	fmt.Printf("  Active sessions: %d\n", report.ActiveSessions)
	fmt.Printf("  Conversations: %d\n", report.Conversations)
	if report.InventoryError != "" {
		fmt.Printf("  Inventory error: %s\n", report.InventoryError)
	}
}

func providerDisplay(t string) string {
	if t == "" {
		return "gemini (default)"
	}
	return t
}

func writeIfNotExists(path, content string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		_ = os.WriteFile(path, []byte(content), 0644)
		fmt.Printf("  Created: %s\n", path)
	}
}

const envTemplate = `# Copy to .env next to the binary (or export directly).
GEMINI_API_KEY=
EVOLUTION_API_URL=
EVOLUTION_API_KEY=
INSTANCE_NAME=whatsapp-bot
ARCHIVO_INVENTARIO=Inventario_Completo.xlsx
HOJA_PRODUCTOS=Productos
PORT=8000
`

func modelDisplay(p config.ProviderConfig) string {
	if p.Model != "" {
		return p.Model
	}
	if p.Type == "openai" {
		return config.DefaultOpenAIModel + " (default)"
	}
	return config.DefaultGeminiModel + " (default)"
}

func maskKey(key string) string {
	switch {
	case key == "":
		return "not set"
	case len(key) <= 8:
		return "set"
	default:
		return key[:4] + "..." + key[len(key)-4:]
	}
}
