package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/valter-silva-au/focus/pkg/models"
)

func newSyncFixture(t *testing.T) (*Synchronizer, *fakeBackend, FocusController, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	backend := newFakeBackend(clock)
	store := NewStore()
	fc := NewFocusController(backend, store, clock, nil, nil)
	return NewSynchronizer(backend, store, fc, nil, nil), backend, fc, clock
}

func TestNestSorted(t *testing.T) {
	items := []models.SortedItem{
		{ID: 2, Title: "second", Score: 9},
		{ID: 21, ParentID: 2, Title: "2.a"},
		{ID: 1, Title: "first", Score: 3},
		{ID: 22, ParentID: 2, Title: "2.b", Done: true},
		{ID: 11, ParentID: 1, Title: "1.a"},
		{ID: 99, ParentID: 404, Title: "orphan"},
	}
	tasks, orphans := NestSorted(items)

	if len(tasks) != 2 || tasks[0].ID != 2 || tasks[1].ID != 1 {
		t.Fatalf("tasks = %+v, want order 2, 1", tasks)
	}
	if len(tasks[0].Subtasks) != 2 || tasks[0].Subtasks[0].ID != 21 || tasks[0].Subtasks[1].ID != 22 {
		t.Errorf("subtasks of 2 = %+v", tasks[0].Subtasks)
	}
	if !tasks[0].Subtasks[1].Done || tasks[0].Subtasks[1].ParentTaskID != 2 {
		t.Errorf("subtask 22 = %+v", tasks[0].Subtasks[1])
	}
	if tasks[0].Score != 9 {
		t.Errorf("score = %v", tasks[0].Score)
	}
	if len(orphans) != 1 || orphans[0].ID != 99 {
		t.Errorf("orphans = %+v", orphans)
	}
}

func TestSynchronizer_LoadAllAdoptsRunning(t *testing.T) {
	s, backend, fc, clock := newSyncFixture(t)
	started := clock.Now().Add(-time.Minute)
	backend.tasks = []models.Task{{ID: 5, Status: models.StatusDoing, StartedAt: &started}}

	if _, err := s.LoadAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := fc.Status(clock.Now()); got.Ref != models.TaskRef(5) || got.Seconds != 60 {
		t.Errorf("status = %+v, want task 5 at 60s", got)
	}
	if s.Store().Source() != SourceFlat {
		t.Errorf("source = %q", s.Store().Source())
	}
}

func TestSynchronizer_LoadSorted(t *testing.T) {
	s, backend, _, clock := newSyncFixture(t)
	at := clock.Now()
	backend.sorted = &models.SortedPage{
		Items:    []models.SortedItem{{ID: 1, Title: "a"}, {ID: 11, ParentID: 1, Title: "a.1"}},
		SortedAt: &at,
	}
	page, err := s.LoadSorted(context.Background(), models.SortFlow)
	if err != nil {
		t.Fatal(err)
	}
	if backend.sortedType != models.SortFlow || page.SortedAt == nil {
		t.Errorf("sorted type = %q, page = %+v", backend.sortedType, page)
	}
	task, ok := s.Store().Task(1)
	if !ok || len(task.Subtasks) != 1 {
		t.Errorf("task = %+v", task)
	}
	if _, err := s.LoadSorted(context.Background(), "bogus"); !errors.Is(err, ErrInvalidSortType) {
		t.Errorf("LoadSorted(bogus) = %v", err)
	}
}

func TestSynchronizer_LoadFailureKeepsStore(t *testing.T) {
	s, backend, _, _ := newSyncFixture(t)
	backend.tasks = []models.Task{todoTask(1)}
	if _, err := s.LoadAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	backend.FailWith("list", serverError("GET /api/tasks/"))
	if _, err := s.LoadAll(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if s.Store().Len() != 1 {
		t.Error("a failed load must not clear the store")
	}
}

func TestSynchronizer_CreateTask(t *testing.T) {
	s, backend, _, _ := newSyncFixture(t)
	dirty := false
	s.OnCreate(func() { dirty = true })

	id, err := s.CreateTask(context.Background(), models.CreateTaskInput{Title: "  Write  ", Importance: 2}, models.SortPlanner)
	if err != nil {
		t.Fatal(err)
	}
	if !dirty {
		t.Error("create should mark the sort dirty")
	}
	if backend.created[0].Title != "Write" {
		t.Errorf("title sent = %q, want trimmed", backend.created[0].Title)
	}
	if _, ok := s.Store().Task(id); !ok {
		t.Error("created task should be present after reload")
	}
}

func TestValidateCreateInput(t *testing.T) {
	tests := []struct {
		name string
		in   models.CreateTaskInput
		ok   bool
	}{
		{"valid", models.CreateTaskInput{Title: "x", Importance: 3, EstimateMinutes: 25}, true},
		{"empty title", models.CreateTaskInput{Title: "   "}, false},
		{"importance too high", models.CreateTaskInput{Title: "x", Importance: 4}, false},
		{"importance negative", models.CreateTaskInput{Title: "x", Importance: -1}, false},
		{"negative estimate", models.CreateTaskInput{Title: "x", EstimateMinutes: -5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCreateInput(tt.in)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestSynchronizer_UpsertSubtasks(t *testing.T) {
	s, backend, _, _ := newSyncFixture(t)
	backend.tasks = []models.Task{todoTask(5, 51)}
	if _, err := s.LoadAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	title := "new step"
	acks, err := s.UpsertSubtasks(context.Background(), 5, []models.SubtaskEdit{
		{ID: 51, Done: true},
		{Title: &title},
	})
	if err != nil {
		t.Fatal(err)
	}
	task, _ := s.Store().Task(5)
	if len(task.Subtasks) != 2 {
		t.Fatalf("subtasks = %+v", task.Subtasks)
	}
	if !task.Subtasks[0].Done {
		t.Error("subtask 51 should be done")
	}
	if task.Subtasks[1].ID != acks[1].ID || task.Subtasks[1].Title != "new step" {
		t.Errorf("new subtask = %+v, ack %+v", task.Subtasks[1], acks[1])
	}
}

func TestSynchronizer_UpsertFailureLeavesStore(t *testing.T) {
	s, backend, _, _ := newSyncFixture(t)
	backend.tasks = []models.Task{todoTask(5, 51)}
	if _, err := s.LoadAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	backend.FailWith("upsert task 5", serverError("POST upsert"))

	if _, err := s.UpsertSubtasks(context.Background(), 5, []models.SubtaskEdit{{ID: 51, Done: true}}); err == nil {
		t.Fatal("expected error")
	}
	st, _ := s.Store().Subtask(51)
	if st.Done {
		t.Error("store must not change before confirmation")
	}

	if _, err := s.UpsertSubtasks(context.Background(), 5, []models.SubtaskEdit{{}}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("untitled new subtask = %v, want ErrInvalidInput", err)
	}
}
