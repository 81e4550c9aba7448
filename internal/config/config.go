// Package config loads, validates, and watches daemon configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/norm/trashminder/internal/window"
)

// Config holds trashminder daemon configuration. Populated from defaults,
// then the TOML file, then environment overrides.
type Config struct {
	CameraEntity   string `toml:"camera_entity" validate:"required"`
	PresenceEntity string `toml:"presence_entity" validate:"required"`

	StartDay  string `toml:"start_day" validate:"required"`
	StartTime string `toml:"start_time" validate:"required"`
	EndDay    string `toml:"end_day" validate:"required"`
	EndTime   string `toml:"end_time" validate:"required"`

	TestMode            bool   `toml:"test_mode"`
	JitterSpreadSeconds int    `toml:"jitter_spread_seconds" validate:"min=0"`
	CheckLogDir         string `toml:"check_log_dir"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	Anthropic     AnthropicConfig `toml:"anthropic"`
	Pushover      PushoverConfig  `toml:"pushover"`
	HomeAssistant HassConfig      `toml:"home_assistant"`
	Admin         AdminConfig     `toml:"admin"`
}

// AnthropicConfig configures the vision classifier.
type AnthropicConfig struct {
	APIKey    string `toml:"api_key" validate:"required"`
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens" validate:"min=0"`
}

// PushoverConfig configures the notification transport.
type PushoverConfig struct {
	Token         string `toml:"token" validate:"required"`
	UserKey       string `toml:"user_key" validate:"required"`
	RetrySeconds  int    `toml:"retry_seconds" validate:"min=0"`
	ExpireSeconds int    `toml:"expire_seconds" validate:"min=0"`
}

// HassConfig configures the Home Assistant API client.
type HassConfig struct {
	BaseURL        string `toml:"base_url"`
	Token          string `toml:"token" validate:"required"`
	TimeoutSeconds int    `toml:"timeout_seconds" validate:"min=0"`
}

// AdminConfig configures the operational HTTP surface.
type AdminConfig struct {
	Enabled    bool   `toml:"enabled"`
	ListenAddr string `toml:"listen_addr"`
}

var validate = validator.New()

// Default returns the default configuration. Credentials have no default
// and must come from the file or the environment.
func Default() *Config {
	return &Config{
		CameraEntity:        "camera.front_yard",
		PresenceEntity:      "binary_sensor.trashminder_trash_bin_present",
		StartDay:            "wed",
		StartTime:           "15:00:00",
		EndDay:              "thu",
		EndTime:             "09:00:00",
		JitterSpreadSeconds: 300,
		LogLevel:            "info",
		LogFormat:           "console",
		Anthropic: AnthropicConfig{
			MaxTokens: 200,
		},
		Pushover: PushoverConfig{
			RetrySeconds:  60,
			ExpireSeconds: 3600,
		},
		HomeAssistant: HassConfig{
			TimeoutSeconds: 10,
		},
		Admin: AdminConfig{
			Enabled:    true,
			ListenAddr: ":9477",
		},
	}
}

// Load builds the effective configuration. An empty path skips the file
// and uses defaults plus environment only. Validation failures here are
// startup-fatal: the daemon refuses to schedule anything without working
// credentials.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	overrideString(&cfg.CameraEntity, "TRASHMINDER_CAMERA_ENTITY")
	overrideString(&cfg.PresenceEntity, "TRASHMINDER_PRESENCE_ENTITY")
	overrideString(&cfg.StartDay, "TRASHMINDER_START_DAY")
	overrideString(&cfg.StartTime, "TRASHMINDER_START_TIME")
	overrideString(&cfg.EndDay, "TRASHMINDER_END_DAY")
	overrideString(&cfg.EndTime, "TRASHMINDER_END_TIME")
	overrideBool(&cfg.TestMode, "TRASHMINDER_TEST_MODE")
	overrideInt(&cfg.JitterSpreadSeconds, "TRASHMINDER_JITTER_SPREAD_SECONDS")
	overrideString(&cfg.CheckLogDir, "TRASHMINDER_CHECK_LOG_DIR")
	overrideString(&cfg.LogLevel, "TRASHMINDER_LOG_LEVEL")
	overrideString(&cfg.LogFormat, "TRASHMINDER_LOG_FORMAT")

	overrideString(&cfg.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	overrideString(&cfg.Anthropic.Model, "TRASHMINDER_MODEL")
	overrideString(&cfg.Pushover.Token, "PUSHOVER_API_TOKEN")
	overrideString(&cfg.Pushover.UserKey, "PUSHOVER_USER_KEY")
	overrideString(&cfg.HomeAssistant.BaseURL, "TRASHMINDER_HASS_URL")
	// Supervisor token is injected when running as a Home Assistant add-on.
	overrideString(&cfg.HomeAssistant.Token, "SUPERVISOR_TOKEN")
	overrideString(&cfg.Admin.ListenAddr, "TRASHMINDER_ADMIN_ADDR")
}

// Validate checks structural tags, the schedule fields, and the window
// duration bounds.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	win, err := c.Window()
	if err != nil {
		return err
	}

	hours := win.TotalHours()
	if hours <= 0 {
		return fmt.Errorf("config: monitoring window has non-positive duration (%dh)", hours)
	}
	if hours > 7*24 {
		return fmt.Errorf("config: monitoring window exceeds one week (%dh)", hours)
	}
	return nil
}

// Window parses the schedule fields into a window.Window.
func (c *Config) Window() (window.Window, error) {
	startDay, err := window.ParseWeekday(c.StartDay)
	if err != nil {
		return window.Window{}, fmt.Errorf("config: start_day: %w", err)
	}
	endDay, err := window.ParseWeekday(c.EndDay)
	if err != nil {
		return window.Window{}, fmt.Errorf("config: end_day: %w", err)
	}
	startTime, err := window.ParseTimeOfDay(c.StartTime)
	if err != nil {
		return window.Window{}, fmt.Errorf("config: start_time: %w", err)
	}
	endTime, err := window.ParseTimeOfDay(c.EndTime)
	if err != nil {
		return window.Window{}, fmt.Errorf("config: end_time: %w", err)
	}

	return window.Window{
		StartDay:  startDay,
		StartTime: startTime,
		EndDay:    endDay,
		EndTime:   endTime,
	}, nil
}

// JitterSpread returns the jitter bound as a duration.
func (c *Config) JitterSpread() time.Duration {
	return time.Duration(c.JitterSpreadSeconds) * time.Second
}

// Redacted returns the configuration as loggable key/value pairs with
// secrets masked.
func (c *Config) Redacted() map[string]string {
	return map[string]string{
		"camera_entity":         c.CameraEntity,
		"presence_entity":       c.PresenceEntity,
		"start_day":             c.StartDay,
		"start_time":            c.StartTime,
		"end_day":               c.EndDay,
		"end_time":              c.EndTime,
		"test_mode":             strconv.FormatBool(c.TestMode),
		"jitter_spread_seconds": strconv.Itoa(c.JitterSpreadSeconds),
		"anthropic_api_key":     redact(c.Anthropic.APIKey),
		"anthropic_model":       c.Anthropic.Model,
		"pushover_token":        redact(c.Pushover.Token),
		"pushover_user_key":     redact(c.Pushover.UserKey),
		"hass_base_url":         c.HomeAssistant.BaseURL,
		"hass_token":            redact(c.HomeAssistant.Token),
		"admin_listen_addr":     c.Admin.ListenAddr,
	}
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "***REDACTED***"
}

func overrideString(dest *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dest = val
	}
}

func overrideBool(dest *bool, key string) {
	if val := os.Getenv(key); val != "" {
		switch strings.ToLower(val) {
		case "1", "true", "yes", "y", "on":
			*dest = true
		case "0", "false", "no", "n", "off":
			*dest = false
		}
	}
}

func overrideInt(dest *int, key string) {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			*dest = parsed
		}
	}
}
