package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/valter-silva-au/focus/internal/cli"
	"github.com/valter-silva-au/focus/internal/observability"
	"github.com/valter-silva-au/focus/internal/storage"
	"github.com/valter-silva-au/focus/pkg/models"
)

// newTestApp creates a fully wired App in a temporary directory.
// The event log and log file are closed when the test finishes.
func newTestApp(t *testing.T) *App {
	t.Helper()
	return newTestAppWithConfig(t, "")
}

// newTestAppWithConfig creates a fully wired App with a custom .focusconfig.
func newTestAppWithConfig(t *testing.T, configYAML string) *App {
	t.Helper()
	dir := t.TempDir()
	if configYAML != "" {
		if err := os.WriteFile(filepath.Join(dir, ".focusconfig"), []byte(configYAML), 0o644); err != nil {
			t.Fatalf("writing .focusconfig: %v", err)
		}
	}
	app, err := NewApp(dir)
	if err != nil {
		t.Fatalf("creating test app: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestResolveBasePath_FocusHomeSet(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("FOCUS_HOME", tmpDir)

	got := ResolveBasePath()
	if got != tmpDir {
		t.Errorf("ResolveBasePath() = %q, want %q", got, tmpDir)
	}
}

func TestResolveBasePath_FindsFocusConfig(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "sub", "nested")
	if err := os.MkdirAll(subDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, ".focusconfig"), []byte("sort:\n  type: flow\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	origDir, _ := os.Getwd()
	defer func() { _ = os.Chdir(origDir) }()
	if err := os.Chdir(subDir); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FOCUS_HOME", "")

	got := ResolveBasePath()
	if got != tmpDir {
		t.Errorf("ResolveBasePath() = %q, want %q (should find .focusconfig in parent)", got, tmpDir)
	}
}

func TestResolveBasePath_FallbackToCwd(t *testing.T) {
	tmpDir := t.TempDir()
	origDir, _ := os.Getwd()
	defer func() { _ = os.Chdir(origDir) }()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FOCUS_HOME", "")

	got := ResolveBasePath()
	if got != tmpDir {
		t.Errorf("ResolveBasePath() = %q, want %q (should fall back to cwd)", got, tmpDir)
	}
}

func TestNewApp_Success(t *testing.T) {
	app := newTestApp(t)

	if app.Client == nil || app.Focus == nil || app.Sync == nil || app.Sorter == nil {
		t.Fatal("core services should be wired")
	}
	if app.EventLog == nil || app.MetricsCalc == nil || app.AlertEngine == nil {
		t.Fatal("observability should be wired")
	}
	if app.Notifier != nil {
		t.Error("no notifier without a webhook")
	}
	if _, err := os.Stat(filepath.Join(app.BasePath, "logs")); err != nil {
		t.Errorf("log directory should exist: %v", err)
	}
	if _, err := os.Stat(filepath.Join(app.BasePath, EventLogFile)); err != nil {
		t.Errorf("event log should exist: %v", err)
	}
}

func TestNewApp_WiresCLI(t *testing.T) {
	app := newTestApp(t)

	if cli.Focus != app.Focus || cli.Sync != app.Sync || cli.Sorter != app.Sorter {
		t.Error("CLI core services not wired")
	}
	if cli.ProfileSvc == nil || cli.ServerMet == nil || cli.Prefs == nil || cli.Events == nil {
		t.Error("CLI backends not wired")
	}
	if cli.EventLog != app.EventLog || cli.MetricsCalc != app.MetricsCalc || cli.AlertEngine != app.AlertEngine {
		t.Error("CLI observability not wired")
	}
	if cli.LoginURL != "http://127.0.0.1:8000/accounts/login/" {
		t.Errorf("LoginURL = %q", cli.LoginURL)
	}
	if cli.UIConfig != app.Config.UI {
		t.Errorf("UIConfig = %+v, want %+v", cli.UIConfig, app.Config.UI)
	}
}

func TestNewApp_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := "server:\n  base_url: ftp://example.com\nsort:\n  type: chaotic\n"
	if err := os.WriteFile(filepath.Join(dir, ".focusconfig"), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewApp(dir)
	if err == nil {
		t.Fatal("expected a validation error")
	}
	for _, want := range []string{"server.base_url", "sort.type"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s: %v", want, err)
		}
	}
}

func TestNewApp_ConfigApplied(t *testing.T) {
	app := newTestAppWithConfig(t, `server:
  base_url: https://focus.example.com
  login_path: /login/
sort:
  type: sprinter
  auto: true
alerts:
  due_soon_hours: 6
notifications:
  slack:
    webhook_url: https://hooks.slack.com/services/T/B/X
`)

	if app.Sorter.Type() != models.SortSprinter || !app.Sorter.AutoSort() {
		t.Errorf("sort config not applied: type=%s auto=%v", app.Sorter.Type(), app.Sorter.AutoSort())
	}
	if app.Notifier == nil {
		t.Error("notifier should be created when a webhook is set")
	}
	if cli.LoginURL != "https://focus.example.com/login/" {
		t.Errorf("LoginURL = %q", cli.LoginURL)
	}
}

func TestNewApp_SavedPreferencesWin(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".focusconfig"), []byte("sort:\n  type: planner\n  auto: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	prefs := storage.NewPreferencesStore(dir)
	if err := prefs.Update(func(p *models.Preferences) {
		p.SortType = models.SortFlow
		p.AutoSort = false
	}); err != nil {
		t.Fatalf("saving preferences: %v", err)
	}

	app, err := NewApp(dir)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	defer app.Close()

	if app.Sorter.Type() != models.SortFlow {
		t.Errorf("type = %s, want the saved flow", app.Sorter.Type())
	}
	if app.Sorter.AutoSort() {
		t.Error("saved auto-sort off should win over the config")
	}
}

func TestApp_Close(t *testing.T) {
	app, err := NewApp(t.TempDir())
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	if err := app.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	empty := &App{}
	if err := empty.Close(); err != nil {
		t.Errorf("Close() on an empty App error = %v", err)
	}
}

func TestEventLogAdapter(t *testing.T) {
	app := newTestApp(t)
	adapter := &eventLogAdapter{log: app.EventLog}

	if err := adapter.LogEvent("focus.started", map[string]any{"unit": "task", "id": int64(5), "elapsed_seconds": int64(0)}); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}

	events, err := app.EventLog.Read(observability.EventFilter{Type: "focus.started"})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	e := events[0]
	if e.Level != "INFO" || e.Message != "focus.started" || e.UnitKind() != "task" || e.UnitID() != 5 {
		t.Errorf("unexpected event: %+v", e)
	}
}
