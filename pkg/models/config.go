package models

import "time"

// ServerConfig describes how to reach the backend.
type ServerConfig struct {
	BaseURL       string        `yaml:"base_url" mapstructure:"base_url"`
	CSRFToken     string        `yaml:"csrf_token" mapstructure:"csrf_token"`
	SessionCookie string        `yaml:"session_cookie" mapstructure:"session_cookie"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// LoginPath is where a 401 sends the user.
	LoginPath string `yaml:"login_path" mapstructure:"login_path"`
}

// SortConfig holds the default sort behaviour.
type SortConfig struct {
	Type     SortType      `yaml:"type" mapstructure:"type"`
	Auto     bool          `yaml:"auto" mapstructure:"auto"`
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// UIConfig holds the terminal board cadences.
type UIConfig struct {
	FrameInterval     time.Duration `yaml:"frame_interval" mapstructure:"frame_interval"`
	RemainingInterval time.Duration `yaml:"remaining_interval" mapstructure:"remaining_interval"`
	NoticeDuration    time.Duration `yaml:"notice_duration" mapstructure:"notice_duration"`
}

// LogConfig controls the rotating log file.
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
}

// AlertConfig configures deadline alerts.
type AlertConfig struct {
	DueSoonHours int `yaml:"due_soon_hours" mapstructure:"due_soon_hours"`
}

// NotificationConfig configures where alerts are pushed.
type NotificationConfig struct {
	SlackWebhookURL string `yaml:"slack_webhook_url" mapstructure:"slack_webhook_url"`
}

// GlobalConfig holds all settings read from .focusconfig via Viper.
type GlobalConfig struct {
	Server        ServerConfig       `yaml:"server" mapstructure:"server"`
	Sort          SortConfig         `yaml:"sort" mapstructure:"sort"`
	UI            UIConfig           `yaml:"ui" mapstructure:"ui"`
	Log           LogConfig          `yaml:"log" mapstructure:"log"`
	Alerts        AlertConfig        `yaml:"alerts" mapstructure:"alerts"`
	Notifications NotificationConfig `yaml:"notifications" mapstructure:"notifications"`
}

// Preferences is the small amount of client state kept between runs.
// Timer state is deliberately absent: it is always re-derived from the
// backend on load.
type Preferences struct {
	Version      string     `yaml:"version"`
	SortType     SortType   `yaml:"sort_type,omitempty"`
	AutoSort     bool       `yaml:"auto_sort"`
	LastSortedAt *time.Time `yaml:"last_sorted_at,omitempty"`
	Selected     *UnitRef   `yaml:"selected,omitempty"`
}
