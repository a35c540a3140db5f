// Package core contains the business logic of the focus client: the focus
// timer controller, the task store and its synchronizer, the sort
// coordinator, the diagnosis flow and configuration loading.
package core

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/valter-silva-au/focus/pkg/models"
)

// ConfigFileName is the global configuration file looked up in the base
// path. A ".yaml" extension is optional.
const ConfigFileName = ".focusconfig"

// EnvPrefix prefixes environment overrides, e.g. FOCUS_SERVER_BASE_URL.
const EnvPrefix = "FOCUS"

// ConfigurationManager defines the interface for loading and validating the
// global configuration.
type ConfigurationManager interface {
	LoadGlobalConfig() (*models.GlobalConfig, error)
	ValidateConfig(cfg *models.GlobalConfig) error
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading the YAML configuration file and environment overrides.
type viperConfigManager struct {
	// basePath is the root directory where .focusconfig resides.
	basePath string
}

// NewConfigurationManager creates a new ConfigurationManager that reads
// configuration files relative to basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultGlobalConfig returns a GlobalConfig populated with sensible defaults.
func DefaultGlobalConfig() *models.GlobalConfig {
	return &models.GlobalConfig{
		Server: models.ServerConfig{
			BaseURL:   "http://127.0.0.1:8000",
			LoginPath: "/accounts/login/",
		},
		Sort: models.SortConfig{
			Type:     models.SortPlanner,
			Interval: DefaultSortInterval,
		},
		UI: models.UIConfig{
			FrameInterval:     time.Second / 10,
			RemainingInterval: 30 * time.Second,
			NoticeDuration:    4 * time.Second,
		},
		Log: models.LogConfig{
			Level:      "info",
			File:       "logs/focus.log",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Alerts: models.AlertConfig{DueSoonHours: 24},
	}
}

// LoadGlobalConfig reads .focusconfig from the base path using Viper. A
// .env file in the base path is loaded into the environment first, and
// FOCUS_* variables override file values. If the file does not exist,
// defaults plus environment overrides are returned.
func (cm *viperConfigManager) LoadGlobalConfig() (*models.GlobalConfig, error) {
	if err := godotenv.Load(filepath.Join(cm.basePath, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}

	cfg := DefaultGlobalConfig()

	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set Viper defaults so missing keys fall back gracefully and every key
	// is visible to AutomaticEnv.
	v.SetDefault("server.base_url", cfg.Server.BaseURL)
	v.SetDefault("server.csrf_token", "")
	v.SetDefault("server.session_cookie", "")
	v.SetDefault("server.timeout", cfg.Server.Timeout)
	v.SetDefault("server.login_path", cfg.Server.LoginPath)
	v.SetDefault("sort.type", string(cfg.Sort.Type))
	v.SetDefault("sort.auto", cfg.Sort.Auto)
	v.SetDefault("sort.interval", cfg.Sort.Interval)
	v.SetDefault("ui.frame_interval", cfg.UI.FrameInterval)
	v.SetDefault("ui.remaining_interval", cfg.UI.RemainingInterval)
	v.SetDefault("ui.notice_duration", cfg.UI.NoticeDuration)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.file", cfg.Log.File)
	v.SetDefault("log.max_size_mb", cfg.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", cfg.Log.MaxBackups)
	v.SetDefault("log.max_age_days", cfg.Log.MaxAgeDays)
	v.SetDefault("alerts.due_soon_hours", cfg.Alerts.DueSoonHours)
	v.SetDefault("notifications.slack.webhook_url", "")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading %s: %w", ConfigFileName, err)
		}
		// No config file found, defaults and environment still apply.
	}

	cfg.Server = models.ServerConfig{
		BaseURL:       v.GetString("server.base_url"),
		CSRFToken:     v.GetString("server.csrf_token"),
		SessionCookie: v.GetString("server.session_cookie"),
		Timeout:       v.GetDuration("server.timeout"),
		LoginPath:     v.GetString("server.login_path"),
	}
	cfg.Sort = models.SortConfig{
		Type:     models.SortType(v.GetString("sort.type")),
		Auto:     v.GetBool("sort.auto"),
		Interval: v.GetDuration("sort.interval"),
	}
	cfg.UI = models.UIConfig{
		FrameInterval:     v.GetDuration("ui.frame_interval"),
		RemainingInterval: v.GetDuration("ui.remaining_interval"),
		NoticeDuration:    v.GetDuration("ui.notice_duration"),
	}
	cfg.Log = models.LogConfig{
		Level:      v.GetString("log.level"),
		File:       v.GetString("log.file"),
		MaxSizeMB:  v.GetInt("log.max_size_mb"),
		MaxBackups: v.GetInt("log.max_backups"),
		MaxAgeDays: v.GetInt("log.max_age_days"),
	}
	cfg.Alerts.DueSoonHours = v.GetInt("alerts.due_soon_hours")
	cfg.Notifications.SlackWebhookURL = v.GetString("notifications.slack.webhook_url")

	return cfg, nil
}

// ValidateConfig checks the configuration for invalid values and returns a
// clear error message identifying every problem.
func (cm *viperConfigManager) ValidateConfig(cfg *models.GlobalConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if u, err := url.Parse(cfg.Server.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Sprintf("server.base_url %q must be an http or https URL", cfg.Server.BaseURL))
	}
	if cfg.Server.Timeout < 0 {
		errs = append(errs, fmt.Sprintf("server.timeout must be non-negative, got %s", cfg.Server.Timeout))
	}
	if !cfg.Sort.Type.Valid() {
		errs = append(errs, fmt.Sprintf("sort.type %q is invalid, must be one of: planner, sprinter, flow", cfg.Sort.Type))
	}
	if cfg.Sort.Interval < 0 {
		errs = append(errs, fmt.Sprintf("sort.interval must be non-negative, got %s", cfg.Sort.Interval))
	}
	if cfg.UI.FrameInterval < 0 || cfg.UI.RemainingInterval < 0 || cfg.UI.NoticeDuration < 0 {
		errs = append(errs, "ui intervals must be non-negative")
	}
	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, fmt.Sprintf("log.level %q is invalid", cfg.Log.Level))
	}
	if cfg.Log.MaxSizeMB < 0 || cfg.Log.MaxBackups < 0 || cfg.Log.MaxAgeDays < 0 {
		errs = append(errs, "log rotation limits must be non-negative")
	}
	if cfg.Alerts.DueSoonHours < 0 {
		errs = append(errs, fmt.Sprintf("alerts.due_soon_hours must be non-negative, got %d", cfg.Alerts.DueSoonHours))
	}
	if w := cfg.Notifications.SlackWebhookURL; w != "" && !strings.HasPrefix(w, "https://") {
		errs = append(errs, "notifications.slack.webhook_url must be an https URL")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
