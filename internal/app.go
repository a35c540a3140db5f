// Package internal provides the App struct that wires all components of the
// focus client together and initializes the CLI layer.
package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/valter-silva-au/focus/internal/api"
	"github.com/valter-silva-au/focus/internal/cli"
	"github.com/valter-silva-au/focus/internal/core"
	"github.com/valter-silva-au/focus/internal/logging"
	"github.com/valter-silva-au/focus/internal/observability"
	"github.com/valter-silva-au/focus/internal/storage"
	"github.com/valter-silva-au/focus/pkg/models"
	"gopkg.in/natefinch/lumberjack.v2"
)

// EventLogFile is the event log location relative to the base path.
var EventLogFile = filepath.Join(".focus", "events.jsonl")

// App holds all service dependencies of the focus client.
type App struct {
	BasePath string
	Config   *models.GlobalConfig

	// Configuration
	ConfigMgr core.ConfigurationManager

	// Logging
	Log     *logrus.Logger
	logFile *lumberjack.Logger

	// Transport
	Client *api.Client

	// Core services
	Store  *core.Store
	Focus  core.FocusController
	Sync   *core.Synchronizer
	Sorter *core.SortCoordinator

	// Storage layer
	Prefs storage.PreferencesStore

	// Observability
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
}

// NewApp creates and wires all components of the focus client. basePath is
// the directory holding .focusconfig, the log directory and the .focus
// state directory.
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadGlobalConfig()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg

	// --- Logging ---
	app.Log, app.logFile, err = logging.New(basePath, cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("setting up logging: %w", err)
	}

	// --- Transport ---
	app.Client, err = api.NewClient(api.Config{
		BaseURL:       cfg.Server.BaseURL,
		CSRFToken:     cfg.Server.CSRFToken,
		SessionCookie: cfg.Server.SessionCookie,
		Timeout:       cfg.Server.Timeout,
		Logger:        app.Log,
	})
	if err != nil {
		_ = app.logFile.Close()
		return nil, fmt.Errorf("creating API client: %w", err)
	}

	// --- Observability ---
	app.EventLog, err = observability.NewJSONLEventLog(filepath.Join(basePath, EventLogFile))
	if err != nil {
		// Non-fatal: run without the event log and local metrics.
		app.Log.WithError(err).Warn("event log disabled")
		app.EventLog = nil
	}
	var events core.EventLogger
	if app.EventLog != nil {
		events = &eventLogAdapter{log: app.EventLog}
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}

	// --- Storage layer ---
	app.Prefs = storage.NewPreferencesStore(basePath)
	sortCfg := cfg.Sort
	if prefs, err := app.Prefs.Load(); err != nil {
		app.Log.WithError(err).Warn("ignoring unreadable preferences")
	} else if prefs.Version != "" {
		if prefs.SortType.Valid() {
			sortCfg.Type = prefs.SortType
		}
		sortCfg.Auto = prefs.AutoSort
	}

	// --- Core services ---
	app.Store = core.NewStore()
	app.Focus = core.NewFocusController(app.Client, app.Store, core.SystemClock{}, events, app.Log)
	app.Sync = core.NewSynchronizer(app.Client, app.Store, app.Focus, events, app.Log)
	app.Sorter = core.NewSortCoordinator(app.Sync, app.Client, app.Prefs, core.SystemClock{}, events, app.Log, sortCfg)

	thresholds := observability.DefaultAlertThresholds()
	if cfg.Alerts.DueSoonHours > 0 {
		thresholds.DueSoonHours = cfg.Alerts.DueSoonHours
	}
	app.AlertEngine = observability.NewAlertEngine(app.Store, app.Focus, thresholds, nil)
	if cfg.Notifications.SlackWebhookURL != "" {
		app.Notifier = observability.NewSlackNotifier(cfg.Notifications.SlackWebhookURL, app.Client.BaseURL())
	}

	// --- Wire CLI package-level variables ---
	cli.BasePath = basePath
	cli.LoginURL = app.Client.LoginURL(cfg.Server.LoginPath)
	cli.UIConfig = cfg.UI
	cli.Log = app.Log

	cli.Focus = app.Focus
	cli.Sync = app.Sync
	cli.Sorter = app.Sorter
	cli.ProfileSvc = app.Client
	cli.ServerMet = app.Client
	cli.Events = events
	cli.Prefs = app.Prefs

	cli.EventLog = app.EventLog
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc
	cli.Notifier = app.Notifier

	app.Log.WithFields(logrus.Fields{"base_path": basePath, "server": app.Client.BaseURL()}).Debug("focus initialized")
	return app, nil
}

// Close releases resources held by the App: the event log file handle and
// the log rotator. It is safe to call Close on an App whose EventLog is nil.
func (a *App) Close() error {
	var firstErr error
	if a.EventLog != nil {
		firstErr = a.EventLog.Close()
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ResolveBasePath determines the base path for the focus data directory.
// It checks the FOCUS_HOME env var, then walks up from the working
// directory looking for .focusconfig, then falls back to the working
// directory.
func ResolveBasePath() string {
	if home := os.Getenv("FOCUS_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		for _, name := range []string{core.ConfigFileName, core.ConfigFileName + ".yaml"} {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	cwd, _ := os.Getwd()
	return cwd
}

// --- Adapters ---

// eventLogAdapter adapts observability.EventLog to core.EventLogger.
type eventLogAdapter struct {
	log observability.EventLog
}

func (a *eventLogAdapter) LogEvent(eventType string, data map[string]any) error {
	return a.log.Write(observability.Event{
		Time:    time.Now().UTC(),
		Level:   "INFO",
		Type:    eventType,
		Message: eventType,
		Data:    data,
	})
}
