package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/valter-silva-au/focus/internal/core"
	"github.com/valter-silva-au/focus/internal/observability"
	"github.com/valter-silva-au/focus/internal/storage"
	"github.com/valter-silva-au/focus/pkg/models"
)

// cliNow is when the fake backend starts units. Commands and the focus
// controller read cliNow plus 90 seconds.
var cliNow = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

const testLoginURL = "http://focus.test/accounts/login/"

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// cliBackend is an in-memory server. It keeps task state so reloads agree
// with what the commands did, and records every call.
type cliBackend struct {
	mu        sync.Mutex
	tasks     []models.Task
	nextID    int64
	calls     []string
	fail      map[string]error
	profile   *models.Profile
	answers   []models.DiagnosisAnswer
	settings  *models.SortSettings
	summary   *models.MetricsSummary
	focusSecs map[int64]int64
}

func newCLIBackend(tasks ...models.Task) *cliBackend {
	return &cliBackend{tasks: tasks, nextID: 100, fail: map[string]error{}, focusSecs: map[int64]int64{}}
}

func (b *cliBackend) record(call string) error {
	b.calls = append(b.calls, call)
	return b.fail[strings.Fields(call)[0]]
}

// FailWith makes every call of op return err.
func (b *cliBackend) FailWith(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail[op] = err
}

func (b *cliBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *cliBackend) setStatus(ref models.UnitRef, status models.TaskStatus, startedAt *time.Time) {
	for i := range b.tasks {
		if ref.Kind == models.UnitTask && b.tasks[i].ID == ref.ID {
			b.tasks[i].Status = status
			if startedAt != nil {
				b.tasks[i].StartedAt = startedAt
			}
		}
		for j := range b.tasks[i].Subtasks {
			if ref.Kind == models.UnitSubtask && b.tasks[i].Subtasks[j].ID == ref.ID {
				b.tasks[i].Subtasks[j].Status = status
				if startedAt != nil {
					b.tasks[i].Subtasks[j].StartedAt = startedAt
				}
			}
		}
	}
}

func (b *cliBackend) StartUnit(_ context.Context, ref models.UnitRef) (time.Time, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("start " + ref.String()); err != nil {
		return time.Time{}, err
	}
	at := cliNow
	b.setStatus(ref, models.StatusDoing, &at)
	return at, nil
}

func (b *cliBackend) PauseUnit(_ context.Context, ref models.UnitRef) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("pause " + ref.String()); err != nil {
		return 0, err
	}
	b.setStatus(ref, models.StatusPaused, nil)
	return 0, nil
}

func (b *cliBackend) ResumeUnit(_ context.Context, ref models.UnitRef) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("resume " + ref.String()); err != nil {
		return err
	}
	b.setStatus(ref, models.StatusDoing, nil)
	return nil
}

func (b *cliBackend) CompleteUnit(_ context.Context, ref models.UnitRef) (*time.Time, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("complete " + ref.String()); err != nil {
		return nil, err
	}
	b.setStatus(ref, models.StatusDone, nil)
	at := cliNow
	return &at, nil
}

func (b *cliBackend) DeleteTask(_ context.Context, id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(fmt.Sprintf("delete %d", id)); err != nil {
		return err
	}
	for i, t := range b.tasks {
		if t.ID == id {
			b.tasks = append(b.tasks[:i], b.tasks[i+1:]...)
			break
		}
	}
	return nil
}

func (b *cliBackend) FocusTime(_ context.Context, id int64) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(fmt.Sprintf("focustime %d", id)); err != nil {
		return 0, err
	}
	return b.focusSecs[id], nil
}

func (b *cliBackend) ListTasks(context.Context) ([]models.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("list"); err != nil {
		return nil, err
	}
	out := make([]models.Task, len(b.tasks))
	for i, t := range b.tasks {
		out[i] = t.Clone()
	}
	return out, nil
}

// ListSortedTasks returns the tasks in reverse order, flattened.
func (b *cliBackend) ListSortedTasks(_ context.Context, t models.SortType) (*models.SortedPage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("sorted " + string(t)); err != nil {
		return nil, err
	}
	page := &models.SortedPage{}
	for i := len(b.tasks) - 1; i >= 0; i-- {
		task := b.tasks[i]
		page.Items = append(page.Items, models.SortedItem{
			ID: task.ID, Title: task.Title, Status: task.Status, StartedAt: task.StartedAt,
			Deadline: task.Deadline, EstimateMinutes: task.EstimateMinutes, Score: float64(i) / 2,
		})
		for _, s := range task.Subtasks {
			page.Items = append(page.Items, models.SortedItem{
				ID: s.ID, ParentID: task.ID, Title: s.Title, Status: s.Status, Done: s.Done, StartedAt: s.StartedAt,
			})
		}
	}
	at := cliNow
	page.SortedAt = &at
	return page, nil
}

func (b *cliBackend) RecomputeOrder(_ context.Context, t models.SortType) (*time.Time, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("recompute " + string(t)); err != nil {
		return nil, err
	}
	at := cliNow
	return &at, nil
}

func (b *cliBackend) CreateTask(_ context.Context, in models.CreateTaskInput) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("create " + in.Title); err != nil {
		return 0, err
	}
	b.nextID++
	b.tasks = append(b.tasks, models.Task{
		ID: b.nextID, Title: in.Title, Status: models.StatusTodo, Deadline: in.Deadline,
		EstimateMinutes: in.EstimateMinutes, Importance: in.Importance, Tags: in.Tags,
		Subtasks: []models.Subtask{},
	})
	return b.nextID, nil
}

func (b *cliBackend) UpsertSubtasks(_ context.Context, taskID int64, edits []models.SubtaskEdit) ([]models.SubtaskAck, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(fmt.Sprintf("subtasks %d", taskID)); err != nil {
		return nil, err
	}
	var acks []models.SubtaskAck
	for i := range b.tasks {
		if b.tasks[i].ID != taskID {
			continue
		}
		for _, e := range edits {
			if e.ID == 0 {
				b.nextID++
				b.tasks[i].Subtasks = append(b.tasks[i].Subtasks, models.Subtask{
					ID: b.nextID, ParentTaskID: taskID, Title: *e.Title, Status: models.StatusTodo,
				})
				acks = append(acks, models.SubtaskAck{ID: b.nextID})
				continue
			}
			for j := range b.tasks[i].Subtasks {
				if b.tasks[i].Subtasks[j].ID == e.ID {
					b.tasks[i].Subtasks[j].Done = e.Done
					acks = append(acks, models.SubtaskAck{ID: e.ID, Done: e.Done})
				}
			}
		}
	}
	return acks, nil
}

func (b *cliBackend) SaveSortSettings(_ context.Context, s models.SortSettings) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("settings"); err != nil {
		return err
	}
	b.settings = &s
	return nil
}

func (b *cliBackend) SubmitDiagnosis(_ context.Context, answers []models.DiagnosisAnswer) (*models.DiagnosisResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("diagnosis"); err != nil {
		return nil, err
	}
	b.answers = answers
	res := core.LocalScore(answers)
	b.profile = &models.Profile{MainType: res.MainType, SubType: res.SubType}
	return &res, nil
}

func (b *cliBackend) GetProfile(context.Context) (*models.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("profile"); err != nil {
		return nil, err
	}
	if b.profile == nil {
		return &models.Profile{}, nil
	}
	p := *b.profile
	return &p, nil
}

func (b *cliBackend) MetricsSummary(_ context.Context, r models.MetricsRange) (*models.MetricsSummary, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("metrics " + string(r)); err != nil {
		return nil, err
	}
	if b.summary == nil {
		return &models.MetricsSummary{}, nil
	}
	s := *b.summary
	return &s, nil
}

// eventWriter feeds core events into an observability event log.
type eventWriter struct {
	log observability.EventLog
	now time.Time
}

func (w eventWriter) LogEvent(eventType string, data map[string]any) error {
	return w.log.Write(observability.Event{Time: w.now, Level: "INFO", Type: eventType, Message: eventType, Data: data})
}

type cliFixture struct {
	backend *cliBackend
	store   *core.Store
	events  observability.EventLog
	dir     string
}

// setupCLI wires real core services over a fake backend into the package
// variables and restores everything when the test ends.
func setupCLI(t *testing.T, tasks ...models.Task) *cliFixture {
	t.Helper()

	orig := struct {
		basePath, loginURL string
		ui                 models.UIConfig
		focus              core.FocusController
		sync               *core.Synchronizer
		sorter             *core.SortCoordinator
		profile            core.ProfileBackend
		met                MetricsSource
		events             core.EventLogger
		prefs              storage.PreferencesStore
		eventLog           observability.EventLog
		alerts             observability.AlertEngine
		calc               observability.MetricsCalculator
		notifier           observability.Notifier
		now                func() time.Time
	}{BasePath, LoginURL, UIConfig, Focus, Sync, Sorter, ProfileSvc, ServerMet, Events, Prefs, EventLog, AlertEngine, MetricsCalc, Notifier, nowFunc}

	dir := t.TempDir()
	evlog, err := observability.NewJSONLEventLog(filepath.Join(dir, ".focus", "events.jsonl"))
	if err != nil {
		t.Fatalf("NewJSONLEventLog: %v", err)
	}
	f := &cliFixture{backend: newCLIBackend(tasks...), store: core.NewStore(), events: evlog, dir: dir}
	now := cliNow.Add(90 * time.Second)
	events := eventWriter{log: evlog, now: now}

	BasePath = dir
	LoginURL = testLoginURL
	UIConfig = core.DefaultGlobalConfig().UI
	Focus = core.NewFocusController(f.backend, f.store, fixedClock{now}, events, nil)
	Sync = core.NewSynchronizer(f.backend, f.store, Focus, events, nil)
	Prefs = storage.NewPreferencesStore(dir)
	Sorter = core.NewSortCoordinator(Sync, f.backend, Prefs, fixedClock{now}, events, nil, models.SortConfig{Type: models.SortPlanner})
	ProfileSvc = f.backend
	ServerMet = f.backend
	Events = events
	EventLog = evlog
	MetricsCalc = observability.NewMetricsCalculator(evlog)
	AlertEngine = observability.NewAlertEngine(f.store, Focus, observability.DefaultAlertThresholds(), func() time.Time { return now })
	Notifier = nil
	nowFunc = func() time.Time { return now }

	t.Cleanup(func() {
		_ = evlog.Close()
		BasePath, LoginURL, UIConfig = orig.basePath, orig.loginURL, orig.ui
		Focus, Sync, Sorter = orig.focus, orig.sync, orig.sorter
		ProfileSvc, ServerMet, Events, Prefs = orig.profile, orig.met, orig.events, orig.prefs
		EventLog, AlertEngine, MetricsCalc, Notifier = orig.eventLog, orig.alerts, orig.calc, orig.notifier
		nowFunc = orig.now
	})
	return f
}

// resetFlags puts every flag of cmd and its children back to its default so
// one test's flags do not leak into the next.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// runCLI executes the root command with args and returns its output.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})
	err := Execute()
	return out.String(), err
}

func sampleTasks() []models.Task {
	deadline := cliNow.Add(2 * time.Hour)
	return []models.Task{
		{ID: 5, Title: "write report", Status: models.StatusTodo, Deadline: &deadline, EstimateMinutes: 60, Importance: 2,
			Subtasks: []models.Subtask{{ID: 51, ParentTaskID: 5, Title: "outline", Status: models.StatusTodo}}},
		{ID: 7, Title: "review slides", Status: models.StatusTodo, Subtasks: []models.Subtask{}},
	}
}

func readEvents(t *testing.T, f *cliFixture, eventType string) []observability.Event {
	t.Helper()
	events, err := f.events.Read(observability.EventFilter{Type: eventType})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	return events
}
