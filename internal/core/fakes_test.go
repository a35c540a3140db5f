package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/valter-silva-au/focus/internal/api"
	"github.com/valter-silva-au/focus/pkg/models"
)

// fakeClock is a simulated clock advanced by tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeBackend records calls in order and answers from its fields. Start
// timestamps come from the shared clock, as the real backend's would.
type fakeBackend struct {
	mu    sync.Mutex
	clock *fakeClock
	calls []string
	// fail maps a call string such as "pause task 5" to the error to return.
	fail map[string]error

	tasks       []models.Task
	sorted      *models.SortedPage
	sortedType  models.SortType
	focusTime   map[int64]int64
	nextID      int64
	created     []models.CreateTaskInput
	acks        []models.SubtaskAck
	settings    []models.SortSettings
	recomputeAt time.Time
	diagnosis   *models.DiagnosisResult
	answers     []models.DiagnosisAnswer
}

func newFakeBackend(clock *fakeClock) *fakeBackend {
	return &fakeBackend{clock: clock, fail: map[string]error{}, focusTime: map[int64]int64{}, nextID: 100}
}

func (b *fakeBackend) record(call string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call)
	return b.fail[call]
}

func (b *fakeBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *fakeBackend) FailWith(call string, err error) {
	b.mu.Lock()
	b.fail[call] = err
	b.mu.Unlock()
}

func serverError(op string) error {
	return &api.HTTPError{Op: op, StatusCode: 500, Body: "internal error"}
}

func unitCall(action string, ref models.UnitRef) string {
	return fmt.Sprintf("%s %s %d", action, ref.Kind, ref.ID)
}

func (b *fakeBackend) StartUnit(_ context.Context, ref models.UnitRef) (time.Time, error) {
	if err := b.record(unitCall("start", ref)); err != nil {
		return time.Time{}, err
	}
	return b.clock.Now(), nil
}

func (b *fakeBackend) PauseUnit(_ context.Context, ref models.UnitRef) (int64, error) {
	return 0, b.record(unitCall("pause", ref))
}

func (b *fakeBackend) ResumeUnit(_ context.Context, ref models.UnitRef) error {
	return b.record(unitCall("resume", ref))
}

func (b *fakeBackend) CompleteUnit(_ context.Context, ref models.UnitRef) (*time.Time, error) {
	if err := b.record(unitCall("complete", ref)); err != nil {
		return nil, err
	}
	now := b.clock.Now()
	return &now, nil
}

func (b *fakeBackend) DeleteTask(_ context.Context, id int64) error {
	return b.record(fmt.Sprintf("delete task %d", id))
}

func (b *fakeBackend) FocusTime(_ context.Context, taskID int64) (int64, error) {
	if err := b.record(fmt.Sprintf("focus-time task %d", taskID)); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	secs, ok := b.focusTime[taskID]
	if !ok {
		return 0, &api.SoftError{Op: "GET focus-time", Message: "unknown task"}
	}
	return secs, nil
}

func (b *fakeBackend) ListTasks(_ context.Context) ([]models.Task, error) {
	if err := b.record("list"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Task, len(b.tasks))
	for i, t := range b.tasks {
		out[i] = t.Clone()
	}
	return out, nil
}

func (b *fakeBackend) ListSortedTasks(_ context.Context, t models.SortType) (*models.SortedPage, error) {
	if err := b.record("sorted " + string(t)); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sortedType = t
	if b.sorted == nil {
		return &models.SortedPage{}, nil
	}
	page := *b.sorted
	page.Items = append([]models.SortedItem(nil), b.sorted.Items...)
	return &page, nil
}

func (b *fakeBackend) RecomputeOrder(_ context.Context, t models.SortType) (*time.Time, error) {
	if err := b.record("recompute " + string(t)); err != nil {
		return nil, err
	}
	at := b.clock.Now()
	return &at, nil
}

func (b *fakeBackend) CreateTask(_ context.Context, in models.CreateTaskInput) (int64, error) {
	if err := b.record("create"); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.created = append(b.created, in)
	b.nextID++
	b.tasks = append(b.tasks, models.Task{ID: b.nextID, Title: in.Title, Status: models.StatusTodo, Importance: in.Importance})
	return b.nextID, nil
}

func (b *fakeBackend) UpsertSubtasks(_ context.Context, taskID int64, edits []models.SubtaskEdit) ([]models.SubtaskAck, error) {
	if err := b.record(fmt.Sprintf("upsert task %d", taskID)); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.acks != nil {
		return b.acks, nil
	}
	acks := make([]models.SubtaskAck, len(edits))
	for i, e := range edits {
		id := e.ID
		if id == 0 {
			b.nextID++
			id = b.nextID
		}
		acks[i] = models.SubtaskAck{ID: id, Done: e.Done}
	}
	return acks, nil
}

func (b *fakeBackend) SaveSortSettings(_ context.Context, s models.SortSettings) error {
	if err := b.record("settings " + string(s.Type)); err != nil {
		return err
	}
	b.mu.Lock()
	b.settings = append(b.settings, s)
	b.mu.Unlock()
	return nil
}

func (b *fakeBackend) SubmitDiagnosis(_ context.Context, answers []models.DiagnosisAnswer) (*models.DiagnosisResult, error) {
	if err := b.record("diagnosis"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.answers = answers
	if b.diagnosis != nil {
		return b.diagnosis, nil
	}
	res := LocalScore(answers)
	return &res, nil
}

func (b *fakeBackend) GetProfile(_ context.Context) (*models.Profile, error) {
	if err := b.record("profile"); err != nil {
		return nil, err
	}
	return &models.Profile{MainType: models.SortFlow}, nil
}

// recordingEvents captures logged events.
type recordingEvents struct {
	mu     sync.Mutex
	events []string
	data   []map[string]any
}

func (r *recordingEvents) LogEvent(eventType string, data map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
	r.data = append(r.data, data)
	return nil
}

func (r *recordingEvents) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}
