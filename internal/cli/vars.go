package cli

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/valter-silva-au/focus/internal/core"
	"github.com/valter-silva-au/focus/internal/observability"
	"github.com/valter-silva-au/focus/internal/storage"
	"github.com/valter-silva-au/focus/pkg/models"
)

// MetricsSource reads the backend's focus summary.
type MetricsSource interface {
	MetricsSummary(ctx context.Context, r models.MetricsRange) (*models.MetricsSummary, error)
}

// Service instances, set during app initialization in app.go.
var (
	BasePath string
	LoginURL string
	UIConfig models.UIConfig
	Log      *logrus.Logger

	Focus      core.FocusController
	Sync       *core.Synchronizer
	Sorter     *core.SortCoordinator
	ProfileSvc core.ProfileBackend
	ServerMet  MetricsSource
	Events     core.EventLogger
	Prefs      storage.PreferencesStore
)

// Observability service instances.
var (
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
)
