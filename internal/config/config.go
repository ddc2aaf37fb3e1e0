package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	DefaultHost           = "0.0.0.0"
	DefaultPort           = 8000
	DefaultBufSize        = 100
	DefaultHistoryLimit   = 10
	DefaultChunkLimit     = 4000
	DefaultSendPacing     = "1s"
	DefaultStartCommand   = "/inventario"
	DefaultEndCommand     = "/fin"
	DefaultInventoryFile  = "Inventario_Completo.xlsx"
	DefaultInventorySheet = "Productos"
	DefaultGeminiModel    = "gemini-2.5-flash"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultInstanceName   = "whatsapp-bot"
	DefaultWebhookPath    = "/webhook"
)

type Config struct {
	Gateway   GatewayConfig   `json:"gateway"`
	Provider  ProviderConfig  `json:"provider"`
	Inventory InventoryConfig `json:"inventory"`
	Channels  ChannelsConfig  `json:"channels"`
	Bot       BotConfig       `json:"bot"`
}

type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type ProviderConfig struct {
	Type    string `json:"type,omitempty"` // "gemini" (default) or "openai"
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl,omitempty"`
	Model   string `json:"model,omitempty"`
}

type InventoryConfig struct {
	File       string   `json:"file"`
	Sheet      string   `json:"sheet"`
	ExtraDirs  []string `json:"extraDirs,omitempty"`
	ReloadCron string   `json:"reloadCron,omitempty"` // empty disables scheduled reloads
}

type ChannelsConfig struct {
	WhatsApp WhatsAppConfig `json:"whatsapp"`
	Telegram TelegramConfig `json:"telegram"`
}

type WhatsAppConfig struct {
	Enabled     bool     `json:"enabled"`
	APIURL      string   `json:"apiUrl"`
	APIKey      string   `json:"apiKey"`
	Instance    string   `json:"instance,omitempty"`
	WebhookPath string   `json:"webhookPath,omitempty"`
	AllowFrom   []string `json:"allowFrom,omitempty"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom,omitempty"`
	Proxy     string   `json:"proxy,omitempty"`
}

type BotConfig struct {
	StartCommand string `json:"startCommand"`
	EndCommand   string `json:"endCommand"`
	HistoryLimit int    `json:"historyLimit"`
	ChunkLimit   int    `json:"chunkLimit"`
	SendPacing   string `json:"sendPacing"`
}

// Pacing parses the inter-chunk send delay, falling back to the default
// when the configured value is missing or malformed.
func (b BotConfig) Pacing() time.Duration {
	d, err := time.ParseDuration(b.SendPacing)
	if err != nil || d < 0 {
		d, _ = time.ParseDuration(DefaultSendPacing)
	}
	return d
}

func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Provider: ProviderConfig{},
		Inventory: InventoryConfig{
			File:  DefaultInventoryFile,
			Sheet: DefaultInventorySheet,
		},
		Channels: ChannelsConfig{
			WhatsApp: WhatsAppConfig{
				Instance:    DefaultInstanceName,
				WebhookPath: DefaultWebhookPath,
			},
		},
		Bot: BotConfig{
			StartCommand: DefaultStartCommand,
			EndCommand:   DefaultEndCommand,
			HistoryLimit: DefaultHistoryLimit,
			ChunkLimit:   DefaultChunkLimit,
			SendPacing:   DefaultSendPacing,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".stockbot")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides. The Evolution/Gemini names match the
	// .env the deployment already uses.
	if key := os.Getenv("STOCKBOT_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
		if cfg.Provider.Type == "" {
			cfg.Provider.Type = "openai"
		}
	}
	if model := os.Getenv("STOCKBOT_MODEL"); model != "" {
		cfg.Provider.Model = model
	}
	if url := os.Getenv("EVOLUTION_API_URL"); url != "" {
		cfg.Channels.WhatsApp.APIURL = url
		cfg.Channels.WhatsApp.Enabled = true
	}
	if key := os.Getenv("EVOLUTION_API_KEY"); key != "" {
		cfg.Channels.WhatsApp.APIKey = key
	}
	if name := os.Getenv("INSTANCE_NAME"); name != "" {
		cfg.Channels.WhatsApp.Instance = name
	}
	if token := os.Getenv("STOCKBOT_TELEGRAM_TOKEN"); token != "" {
		cfg.Channels.Telegram.Token = token
		cfg.Channels.Telegram.Enabled = true
	}
	if file := os.Getenv("ARCHIVO_INVENTARIO"); file != "" {
		cfg.Inventory.File = file
	}
	if sheet := os.Getenv("HOJA_PRODUCTOS"); sheet != "" {
		cfg.Inventory.Sheet = sheet
	}
	if port := os.Getenv("PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil {
			cfg.Gateway.Port = parsed
		}
	}

	if cfg.Bot.StartCommand == "" {
		cfg.Bot.StartCommand = DefaultStartCommand
	}
	if cfg.Bot.EndCommand == "" {
		cfg.Bot.EndCommand = DefaultEndCommand
	}
	if cfg.Bot.HistoryLimit <= 0 {
		cfg.Bot.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.Bot.ChunkLimit <= 0 {
		cfg.Bot.ChunkLimit = DefaultChunkLimit
	}
	if cfg.Bot.SendPacing == "" {
		cfg.Bot.SendPacing = DefaultSendPacing
	}
	if cfg.Inventory.File == "" {
		cfg.Inventory.File = DefaultInventoryFile
	}
	if cfg.Inventory.Sheet == "" {
		cfg.Inventory.Sheet = DefaultInventorySheet
	}
	if cfg.Channels.WhatsApp.Instance == "" {
		cfg.Channels.WhatsApp.Instance = DefaultInstanceName
	}
	if cfg.Channels.WhatsApp.WebhookPath == "" {
		cfg.Channels.WhatsApp.WebhookPath = DefaultWebhookPath
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
