
package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileWithDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"bot_token":"tok","channel_id":-100123,"data_dir":"/tmp/ltb","twelvedata_api_key":"td","goldapi_key":"ga"}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BotToken != "tok" || cfg.ChannelID != -100123 {
		t.Fatalf("got %+v", cfg)
	}
	if len(cfg.UpdateSlots) != 3 || cfg.UpdateSlots[0] != "09:00" {
		t.Fatalf("default slots got %v", cfg.UpdateSlots)
	}
	if cfg.UpdateCooldownMin != 60 || cfg.AlertCooldownMin != 45 {
		t.Fatalf("default cooldowns got %+v", cfg)
	}
	if cfg.SpotAlertPct != 0.5 || cfg.BuybackAlertRp != 10000 {
		t.Fatalf("default thresholds got %+v", cfg)
	}
	if cfg.FetchIntervalMinutes != 10 || cfg.FreeTxLimit != 30 {
		t.Fatalf("default cadence/quota got %+v", cfg)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"bot_token":"file-token","channel_id":1}`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LTB_BOT_TOKEN", "env-token")
	t.Setenv("LTB_CHANNEL_ID", "-100456")
	t.Setenv("LTB_UPDATE_SLOTS", "08:00, 20:30")
	t.Setenv("LTB_DRY_RUN", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BotToken != "env-token" || cfg.ChannelID != -100456 {
		t.Fatalf("env override got %+v", cfg)
	}
	if len(cfg.UpdateSlots) != 2 || cfg.UpdateSlots[1] != "20:30" {
		t.Fatalf("slot csv got %v", cfg.UpdateSlots)
	}
	if !cfg.DryRun {
		t.Fatal("dry run should be on")
	}
}

func TestLoadMissingToken(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("want error for missing bot token")
	}
}

func TestLoadRequiresChannelUnlessDryRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"bot_token":"tok"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("want error when channel id missing")
	}
	t.Setenv("LTB_DRY_RUN", "1")
	if _, err := Load(path); err != nil {
		t.Fatalf("dry run should not need a channel: %v", err)
	}
}
