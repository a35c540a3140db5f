package core

import (
	"context"
	"time"

	"github.com/valter-silva-au/focus/pkg/models"
)

// FocusBackend is the subset of api.Client the focus controller needs.
// Defining it here keeps core independent of the transport.
type FocusBackend interface {
	StartUnit(ctx context.Context, ref models.UnitRef) (time.Time, error)
	PauseUnit(ctx context.Context, ref models.UnitRef) (int64, error)
	ResumeUnit(ctx context.Context, ref models.UnitRef) error
	CompleteUnit(ctx context.Context, ref models.UnitRef) (*time.Time, error)
	DeleteTask(ctx context.Context, id int64) error
	FocusTime(ctx context.Context, taskID int64) (int64, error)
}

// TaskBackend is the subset of api.Client the synchronizer and sort
// coordinator need.
type TaskBackend interface {
	ListTasks(ctx context.Context) ([]models.Task, error)
	ListSortedTasks(ctx context.Context, t models.SortType) (*models.SortedPage, error)
	RecomputeOrder(ctx context.Context, t models.SortType) (*time.Time, error)
	CreateTask(ctx context.Context, in models.CreateTaskInput) (int64, error)
	UpsertSubtasks(ctx context.Context, taskID int64, edits []models.SubtaskEdit) ([]models.SubtaskAck, error)
	FocusTime(ctx context.Context, taskID int64) (int64, error)
	SaveSortSettings(ctx context.Context, s models.SortSettings) error
}

// ProfileBackend is the subset of api.Client the diagnosis flow needs.
type ProfileBackend interface {
	SubmitDiagnosis(ctx context.Context, answers []models.DiagnosisAnswer) (*models.DiagnosisResult, error)
	GetProfile(ctx context.Context) (*models.Profile, error)
}
