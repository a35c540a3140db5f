package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/valter-silva-au/focus/pkg/models"
	"pgregory.net/rapid"
)

// =============================================================================
// Generators
// =============================================================================

type configValues struct {
	BaseURL      string
	Timeout      time.Duration
	SortType     models.SortType
	Auto         bool
	Interval     time.Duration
	LogLevel     string
	DueSoonHours int
}

func genConfigValues(t *rapid.T) configValues {
	return configValues{
		BaseURL: rapid.SampledFrom([]string{"http", "https"}).Draw(t, "scheme") + "://" +
			rapid.StringMatching(`[a-z]{1,12}\.example\.com`).Draw(t, "host"),
		Timeout:      time.Duration(rapid.IntRange(0, 120).Draw(t, "timeout")) * time.Second,
		SortType:     rapid.SampledFrom(models.SortTypes).Draw(t, "sortType"),
		Auto:         rapid.Bool().Draw(t, "auto"),
		Interval:     time.Duration(rapid.IntRange(1, 60).Draw(t, "interval")) * time.Minute,
		LogLevel:     rapid.SampledFrom([]string{"debug", "info", "warn", "error"}).Draw(t, "level"),
		DueSoonHours: rapid.IntRange(0, 168).Draw(t, "dueSoon"),
	}
}

func mustWriteFocusconfig(t *testing.T, dir string, v configValues) {
	t.Helper()
	content := fmt.Sprintf(`server:
  base_url: %s
  timeout: %s
sort:
  type: %s
  auto: %v
  interval: %s
log:
  level: %s
alerts:
  due_soon_hours: %d
`, v.BaseURL, v.Timeout, v.SortType, v.Auto, v.Interval, v.LogLevel, v.DueSoonHours)
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", ConfigFileName, err)
	}
}

// =============================================================================
// Property 9: Configuration Round Trip
// =============================================================================

// Feature: focus configuration, Property 9: Configuration Round Trip
// *For any* valid set of values written to .focusconfig, LoadGlobalConfig
// SHALL return those values, keep defaults for keys the file omits, and
// ValidateConfig SHALL accept the result.
func TestProperty9_ConfigurationRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		v := genConfigValues(rt)
		dir := t.TempDir()
		mustWriteFocusconfig(t, dir, v)

		cm := NewConfigurationManager(dir)
		cfg, err := cm.LoadGlobalConfig()
		if err != nil {
			rt.Fatalf("LoadGlobalConfig failed: %v", err)
		}

		if cfg.Server.BaseURL != v.BaseURL {
			rt.Errorf("BaseURL: got %q, want %q", cfg.Server.BaseURL, v.BaseURL)
		}
		if cfg.Server.Timeout != v.Timeout {
			rt.Errorf("Timeout: got %s, want %s", cfg.Server.Timeout, v.Timeout)
		}
		if cfg.Sort.Type != v.SortType || cfg.Sort.Auto != v.Auto || cfg.Sort.Interval != v.Interval {
			rt.Errorf("Sort: got %+v, want type=%s auto=%v interval=%s", cfg.Sort, v.SortType, v.Auto, v.Interval)
		}
		if cfg.Log.Level != v.LogLevel {
			rt.Errorf("Log.Level: got %q, want %q", cfg.Log.Level, v.LogLevel)
		}
		if cfg.Alerts.DueSoonHours != v.DueSoonHours {
			rt.Errorf("DueSoonHours: got %d, want %d", cfg.Alerts.DueSoonHours, v.DueSoonHours)
		}

		defaults := DefaultGlobalConfig()
		if cfg.Server.LoginPath != defaults.Server.LoginPath {
			rt.Errorf("LoginPath: got %q, want default %q", cfg.Server.LoginPath, defaults.Server.LoginPath)
		}
		if cfg.UI != defaults.UI {
			rt.Errorf("UI: got %+v, want defaults %+v", cfg.UI, defaults.UI)
		}

		if err := cm.ValidateConfig(cfg); err != nil {
			rt.Fatalf("ValidateConfig rejected a valid config: %v", err)
		}
	})
}

// =============================================================================
// Property 10: Configuration Validation
// =============================================================================

// Feature: focus configuration, Property 10: Configuration Validation
// *For any* configuration with one invalid field, ValidateConfig SHALL return
// an error that names the offending key.
func TestProperty10_ConfigurationValidation(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cm := NewConfigurationManager(t.TempDir())
		cfg := DefaultGlobalConfig()

		var key string
		switch rapid.IntRange(0, 5).Draw(rt, "invalidField") {
		case 0:
			cfg.Server.BaseURL = rapid.SampledFrom([]string{"", "ftp://x", "not a url", "localhost:8000"}).Draw(rt, "baseURL")
			key = "server.base_url"
		case 1:
			cfg.Server.Timeout = -time.Duration(rapid.IntRange(1, 1000).Draw(rt, "timeout")) * time.Second
			key = "server.timeout"
		case 2:
			cfg.Sort.Type = models.SortType(rapid.SampledFrom([]string{"", "random", "PLANNER", "sprint"}).Draw(rt, "sortType"))
			key = "sort.type"
		case 3:
			cfg.Sort.Interval = -time.Duration(rapid.IntRange(1, 1000).Draw(rt, "interval")) * time.Second
			key = "sort.interval"
		case 4:
			cfg.Log.Level = rapid.SampledFrom([]string{"loud", "verbose", "x"}).Draw(rt, "level")
			key = "log.level"
		case 5:
			cfg.Alerts.DueSoonHours = -rapid.IntRange(1, 100).Draw(rt, "dueSoon")
			key = "alerts.due_soon_hours"
		}

		err := cm.ValidateConfig(cfg)
		if err == nil {
			rt.Fatalf("expected validation error for %s, got nil", key)
		}
		if !strings.Contains(err.Error(), key) {
			rt.Errorf("error %q does not name %s", err, key)
		}
	})
}
