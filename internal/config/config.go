
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	BotToken  string `json:"bot_token"`
	ChannelID int64  `json:"channel_id"`
	DataDir   string `json:"data_dir"`

	TwelveDataAPIKey string `json:"twelvedata_api_key"`
	GoldAPIKey       string `json:"goldapi_key"`

	// Broadcast tuning. Slots are "HH:MM" in WIB.
	UpdateSlots          []string `json:"update_slots,omitempty"`
	UpdateCooldownMin    int      `json:"update_cooldown_min,omitempty"`
	AlertCooldownMin     int      `json:"alert_cooldown_min,omitempty"`
	SpotAlertPct         float64  `json:"spot_alert_pct,omitempty"`
	BuybackAlertRp       int64    `json:"buyback_alert_rp,omitempty"`
	FetchIntervalMinutes int      `json:"fetch_interval_minutes,omitempty"`

	// Free plan: transactions allowed per calendar month.
	FreeTxLimit int `json:"free_tx_limit,omitempty"`

	// Checkout page shown by /upgrade.
	CheckoutURL string `json:"checkout_url,omitempty"`

	// DryRun logs channel broadcasts instead of sending them.
	DryRun bool `json:"dry_run,omitempty"`
	Debug  bool `json:"debug,omitempty"`
}

func DefaultDataDir() string {
	if v := os.Getenv("LTB_DATA_DIR"); v != "" {
		return v
	}
	return "/var/lib/logam-tracker-bot"
}

func DefaultConfigPath() string {
	if v := os.Getenv("LTB_CONFIG"); v != "" {
		return v
	}
	return "/etc/logam-tracker-bot/config.json"
}

func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	var cfg Config
	// 1) Try file
	if b, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("invalid config json: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	// 2) Env fallback / override
	if v := os.Getenv("BOT_TOKEN"); v != "" {
		cfg.BotToken = v
	}
	if v := os.Getenv("LTB_BOT_TOKEN"); v != "" {
		cfg.BotToken = v
	}
	if v := os.Getenv("LTB_CHANNEL_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.ChannelID = id
		}
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("LTB_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("TWELVEDATA_API_KEY"); v != "" {
		cfg.TwelveDataAPIKey = v
	}
	if v := os.Getenv("GOLDAPI_KEY"); v != "" {
		cfg.GoldAPIKey = v
	}
	if v := os.Getenv("LTB_UPDATE_SLOTS"); v != "" {
		cfg.UpdateSlots = parseSlotList(v)
	}
	if v := os.Getenv("LTB_CHECKOUT_URL"); v != "" {
		cfg.CheckoutURL = v
	}
	if v := os.Getenv("LTB_DRY_RUN"); v != "" {
		cfg.DryRun = boolish(v)
	}
	if v := os.Getenv("LTB_DEBUG"); v != "" {
		cfg.Debug = boolish(v)
	}

	// Defaults
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir()
	}
	cfg.DataDir = filepath.Clean(cfg.DataDir)
	if len(cfg.UpdateSlots) == 0 {
		cfg.UpdateSlots = []string{"09:00", "13:00", "19:00"}
	}
	if cfg.UpdateCooldownMin <= 0 {
		cfg.UpdateCooldownMin = 60
	}
	if cfg.AlertCooldownMin <= 0 {
		cfg.AlertCooldownMin = 45
	}
	if cfg.SpotAlertPct <= 0 {
		cfg.SpotAlertPct = 0.5
	}
	if cfg.BuybackAlertRp <= 0 {
		cfg.BuybackAlertRp = 10000
	}
	if cfg.FetchIntervalMinutes <= 0 {
		cfg.FetchIntervalMinutes = 10
	}
	if cfg.FreeTxLimit <= 0 {
		cfg.FreeTxLimit = 30
	}

	if cfg.BotToken == "" {
		return Config{}, fmt.Errorf("missing bot_token (set in %s or BOT_TOKEN env)", path)
	}
	if cfg.ChannelID == 0 && !cfg.DryRun {
		return Config{}, fmt.Errorf("missing channel_id (set in %s or LTB_CHANNEL_ID env)", path)
	}
	return cfg, nil
}

func parseSlotList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func boolish(v string) bool {
	return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
}
