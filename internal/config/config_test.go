package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"STOCKBOT_API_KEY", "GEMINI_API_KEY", "OPENAI_API_KEY",
		"STOCKBOT_MODEL", "EVOLUTION_API_URL", "EVOLUTION_API_KEY",
		"INSTANCE_NAME", "STOCKBOT_TELEGRAM_TOKEN",
		"ARCHIVO_INVENTARIO", "HOJA_PRODUCTOS", "PORT",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Gateway.Host != DefaultHost {
		t.Errorf("Host = %q", cfg.Gateway.Host)
	}
	if cfg.Gateway.Port != DefaultPort {
		t.Errorf("Port = %d", cfg.Gateway.Port)
	}
	if cfg.Bot.StartCommand != "/inventario" {
		t.Errorf("StartCommand = %q", cfg.Bot.StartCommand)
	}
	if cfg.Bot.EndCommand != "/fin" {
		t.Errorf("EndCommand = %q", cfg.Bot.EndCommand)
	}
	if cfg.Bot.HistoryLimit != 10 {
		t.Errorf("HistoryLimit = %d", cfg.Bot.HistoryLimit)
	}
	if cfg.Bot.ChunkLimit != 4000 {
		t.Errorf("ChunkLimit = %d", cfg.Bot.ChunkLimit)
	}
	if cfg.Inventory.File != DefaultInventoryFile {
		t.Errorf("Inventory.File = %q", cfg.Inventory.File)
	}
	if cfg.Channels.WhatsApp.Enabled || cfg.Channels.Telegram.Enabled {
		t.Error("no channel should be enabled by default")
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Bot.StartCommand != DefaultStartCommand {
		t.Errorf("StartCommand = %q, want default", cfg.Bot.StartCommand)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	clearEnv(t)

	cfgDir := filepath.Join(tmpDir, ".stockbot")
	os.MkdirAll(cfgDir, 0755)
	data := `{
		"gateway": {"host": "127.0.0.1", "port": 9000},
		"provider": {"type": "openai", "apiKey": "file-key"},
		"bot": {"startCommand": "/start", "sendPacing": "500ms"}
	}`
	os.WriteFile(filepath.Join(cfgDir, "config.json"), []byte(data), 0644)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Gateway.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Gateway.Port)
	}
	if cfg.Provider.APIKey != "file-key" {
		t.Errorf("APIKey = %q", cfg.Provider.APIKey)
	}
	if cfg.Bot.StartCommand != "/start" {
		t.Errorf("StartCommand = %q", cfg.Bot.StartCommand)
	}
	// Fields the file omits fall back to defaults.
	if cfg.Bot.EndCommand != DefaultEndCommand {
		t.Errorf("EndCommand = %q, want default", cfg.Bot.EndCommand)
	}
	if cfg.Bot.ChunkLimit != DefaultChunkLimit {
		t.Errorf("ChunkLimit = %d, want default", cfg.Bot.ChunkLimit)
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	clearEnv(t)

	cfgDir := filepath.Join(tmpDir, ".stockbot")
	os.MkdirAll(cfgDir, 0755)
	os.WriteFile(filepath.Join(cfgDir, "config.json"), []byte("{not json"), 0644)

	if _, err := LoadConfig(); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)

	t.Setenv("GEMINI_API_KEY", "env-gemini-key")
	t.Setenv("EVOLUTION_API_URL", "http://evolution.local")
	t.Setenv("EVOLUTION_API_KEY", "evo-key")
	t.Setenv("INSTANCE_NAME", "mi-instancia")
	t.Setenv("ARCHIVO_INVENTARIO", "Otro_Inventario.xlsx")
	t.Setenv("HOJA_PRODUCTOS", "Hoja1")
	t.Setenv("PORT", "8080")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Provider.APIKey != "env-gemini-key" {
		t.Errorf("APIKey = %q", cfg.Provider.APIKey)
	}
	if cfg.Provider.Type != "" {
		t.Errorf("Type = %q, want gemini default", cfg.Provider.Type)
	}
	if !cfg.Channels.WhatsApp.Enabled {
		t.Error("EVOLUTION_API_URL should enable the whatsapp channel")
	}
	if cfg.Channels.WhatsApp.APIURL != "http://evolution.local" {
		t.Errorf("APIURL = %q", cfg.Channels.WhatsApp.APIURL)
	}
	if cfg.Channels.WhatsApp.Instance != "mi-instancia" {
		t.Errorf("Instance = %q", cfg.Channels.WhatsApp.Instance)
	}
	if cfg.Inventory.File != "Otro_Inventario.xlsx" {
		t.Errorf("Inventory.File = %q", cfg.Inventory.File)
	}
	if cfg.Inventory.Sheet != "Hoja1" {
		t.Errorf("Inventory.Sheet = %q", cfg.Inventory.Sheet)
	}
	if cfg.Gateway.Port != 8080 {
		t.Errorf("Port = %d", cfg.Gateway.Port)
	}
}

func TestLoadConfig_OpenAIKeyImpliesProvider(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Provider.Type != "openai" {
		t.Errorf("Type = %q, want openai", cfg.Provider.Type)
	}
	if cfg.Provider.APIKey != "sk-test" {
		t.Errorf("APIKey = %q", cfg.Provider.APIKey)
	}
}

func TestLoadConfig_ExplicitKeyWins(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)
	t.Setenv("STOCKBOT_API_KEY", "explicit")
	t.Setenv("GEMINI_API_KEY", "fallback")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Provider.APIKey != "explicit" {
		t.Errorf("APIKey = %q, want explicit", cfg.Provider.APIKey)
	}
}

func TestLoadConfig_TelegramToken(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)
	t.Setenv("STOCKBOT_TELEGRAM_TOKEN", "123:abc")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if !cfg.Channels.Telegram.Enabled {
		t.Error("token should enable the telegram channel")
	}
	if cfg.Channels.Telegram.Token != "123:abc" {
		t.Errorf("Token = %q", cfg.Channels.Telegram.Token)
	}
}

func TestPacing(t *testing.T) {
	tests := []struct {
		pacing string
		want   time.Duration
	}{
		{"1s", time.Second},
		{"500ms", 500 * time.Millisecond},
		{"", time.Second},
		{"garbage", time.Second},
		{"-2s", time.Second},
	}
	for _, tt := range tests {
		b := BotConfig{SendPacing: tt.pacing}
		if got := b.Pacing(); got != tt.want {
			t.Errorf("Pacing(%q) = %v, want %v", tt.pacing, got, tt.want)
		}
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)

	cfg := DefaultConfig()
	cfg.Provider.APIKey = "saved-key"
	cfg.Gateway.Port = 9999

	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig error: %v", err)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if loaded.Provider.APIKey != "saved-key" {
		t.Errorf("APIKey = %q", loaded.Provider.APIKey)
	}
	if loaded.Gateway.Port != 9999 {
		t.Errorf("Port = %d", loaded.Gateway.Port)
	}
}

func TestConfigPath(t *testing.T) {
	t.Setenv("HOME", "/home/testuser")
	if got := ConfigPath(); !strings.HasSuffix(got, filepath.Join(".stockbot", "config.json")) {
		t.Errorf("ConfigPath = %q", got)
	}
}
