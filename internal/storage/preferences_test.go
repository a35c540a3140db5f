package storage

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/valter-silva-au/focus/pkg/models"
)

func TestPreferencesStore_MissingFile(t *testing.T) {
	p, err := NewPreferencesStore(t.TempDir()).Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.SortType != "" || p.AutoSort || p.LastSortedAt != nil || p.Selected != nil {
		t.Errorf("expected empty preferences, got %+v", p)
	}
}

func TestPreferencesStore_UpdateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewPreferencesStore(dir)
	sortedAt := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	sel := models.SubtaskRef(51)

	err := store.Update(func(p *models.Preferences) {
		p.SortType = models.SortSprinter
		p.AutoSort = true
		p.LastSortedAt = &sortedAt
		p.Selected = &sel
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	// A fresh instance reads what the first wrote.
	p, err := NewPreferencesStore(dir).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Version != PreferencesVersion {
		t.Errorf("Version = %q, want %q", p.Version, PreferencesVersion)
	}
	if p.SortType != models.SortSprinter || !p.AutoSort {
		t.Errorf("sort prefs = %s/%v", p.SortType, p.AutoSort)
	}
	if p.LastSortedAt == nil || !p.LastSortedAt.Equal(sortedAt) {
		t.Errorf("LastSortedAt = %v", p.LastSortedAt)
	}
	if p.Selected == nil || *p.Selected != sel {
		t.Errorf("Selected = %v", p.Selected)
	}
}

func TestPreferencesStore_UpdateKeepsOtherFields(t *testing.T) {
	store := NewPreferencesStore(t.TempDir())
	if err := store.Update(func(p *models.Preferences) { p.SortType = models.SortFlow }); err != nil {
		t.Fatal(err)
	}
	if err := store.Update(func(p *models.Preferences) { p.AutoSort = true }); err != nil {
		t.Fatal(err)
	}
	p, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if p.SortType != models.SortFlow || !p.AutoSort {
		t.Errorf("got %+v", p)
	}
}

func TestPreferencesStore_NoTimerStateOnDisk(t *testing.T) {
	dir := t.TempDir()
	if err := NewPreferencesStore(dir).Update(func(p *models.Preferences) { p.SortType = models.SortPlanner }); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, ".focus", "preferences.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"started_at", "paused"} {
		if strings.Contains(string(data), key) {
			t.Errorf("preferences file contains %q:\n%s", key, data)
		}
	}
}

func TestPreferencesStore_InvalidSortTypeIgnored(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".focus"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".focus", "preferences.yaml"), []byte("version: \"1.0\"\nsort_type: chaos\nauto_sort: true\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	p, err := NewPreferencesStore(dir).Load()
	if err != nil {
		t.Fatal(err)
	}
	if p.SortType != "" || !p.AutoSort {
		t.Errorf("got %+v", p)
	}
}

func TestPreferencesStore_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".focus"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".focus", "preferences.yaml"), []byte("sort_type: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewPreferencesStore(dir).Load(); err == nil {
		t.Fatal("expected error for malformed file")
	}
}

func TestPreferencesStore_ConcurrentUpdates(t *testing.T) {
	dir := t.TempDir()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Separate instances contend on the file lock only.
			store := NewPreferencesStore(dir)
			_ = store.Update(func(p *models.Preferences) { p.AutoSort = i%2 == 0 })
		}(i)
	}
	wg.Wait()
	if _, err := NewPreferencesStore(dir).Load(); err != nil {
		t.Fatalf("file corrupted after concurrent updates: %v", err)
	}
}
