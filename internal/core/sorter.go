package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/valter-silva-au/focus/pkg/models"
)

// ErrInvalidSortType is returned for an unknown sort type.
var ErrInvalidSortType = errors.New("invalid sort type")

// DefaultSortInterval is used when auto-sort is on and no interval is
// configured.
const DefaultSortInterval = 5 * time.Minute

// PreferencesUpdater is the subset of storage.PreferencesStore the sort
// coordinator needs.
type PreferencesUpdater interface {
	Update(fn func(*models.Preferences)) error
}

// SortCoordinator tracks which sort order is shown and whether it is still
// current. Creating or manually moving a task makes it stale until the
// next sort.
type SortCoordinator struct {
	sync    *Synchronizer
	backend TaskBackend
	prefs   PreferencesUpdater
	clock   Clock
	events  EventLogger
	log     *logrus.Logger

	mu       sync.RWMutex
	sortType models.SortType
	isSorted bool
	sortedAt *time.Time
	auto     bool
	interval time.Duration
}

// NewSortCoordinator creates a SortCoordinator starting from cfg. prefs,
// events and log may be nil.
func NewSortCoordinator(s *Synchronizer, backend TaskBackend, prefs PreferencesUpdater, clock Clock, events EventLogger, log *logrus.Logger, cfg models.SortConfig) *SortCoordinator {
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	t := cfg.Type
	if !t.Valid() {
		t = models.SortPlanner
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultSortInterval
	}
	sc := &SortCoordinator{
		sync:     s,
		backend:  backend,
		prefs:    prefs,
		clock:    clock,
		events:   events,
		log:      log,
		sortType: t,
		auto:     cfg.Auto,
		interval: interval,
	}
	if s != nil {
		s.OnCreate(sc.MarkDirty)
	}
	return sc
}

// Type returns the current sort type.
func (sc *SortCoordinator) Type() models.SortType {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.sortType
}

// Sorted reports whether the displayed order is the current sort.
func (sc *SortCoordinator) Sorted() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.isSorted
}

// SortedAt returns when the backend last scored the list.
func (sc *SortCoordinator) SortedAt() *time.Time {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	if sc.sortedAt == nil {
		return nil
	}
	t := *sc.sortedAt
	return &t
}

// AutoSort reports whether the periodic recompute is on.
func (sc *SortCoordinator) AutoSort() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.auto
}

// Interval returns the auto-sort period.
func (sc *SortCoordinator) Interval() time.Duration {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.interval
}

// SetType switches the sort type. The current order becomes stale.
func (sc *SortCoordinator) SetType(t models.SortType) error {
	if !t.Valid() {
		return fmt.Errorf("%q: %w", t, ErrInvalidSortType)
	}
	sc.mu.Lock()
	sc.sortType = t
	sc.isSorted = false
	sc.mu.Unlock()
	return sc.persist()
}

// SetAutoSort turns the periodic recompute on or off.
func (sc *SortCoordinator) SetAutoSort(on bool) error {
	sc.mu.Lock()
	sc.auto = on
	sc.mu.Unlock()
	return sc.persist()
}

// MarkDirty records that the displayed order no longer matches the sort.
func (sc *SortCoordinator) MarkDirty() {
	sc.mu.Lock()
	sc.isSorted = false
	sc.mu.Unlock()
}

// Sort loads the list in the current sort order.
func (sc *SortCoordinator) Sort(ctx context.Context) error {
	t := sc.Type()
	page, err := sc.sync.LoadSorted(ctx, t)
	if err != nil {
		return err
	}
	sortedAt := page.SortedAt
	if sortedAt == nil {
		now := sc.clock.Now()
		sortedAt = &now
	}
	sc.mu.Lock()
	sc.isSorted = true
	sc.sortedAt = sortedAt
	sc.mu.Unlock()

	logEvent(sc.events, EventTasksSorted, map[string]any{"type": string(t), "items": len(page.Items)})
	return sc.persist()
}

// Recompute asks the backend to rescore and then loads the new order.
func (sc *SortCoordinator) Recompute(ctx context.Context) error {
	t := sc.Type()
	if _, err := sc.backend.RecomputeOrder(ctx, t); err != nil {
		return fmt.Errorf("recomputing %s order: %w", t, err)
	}
	return sc.Sort(ctx)
}

// SaveSettings stores the sort preference on the backend.
func (sc *SortCoordinator) SaveSettings(ctx context.Context) error {
	sc.mu.RLock()
	s := models.SortSettings{Type: sc.sortType, AutoSort: sc.auto}
	sc.mu.RUnlock()
	if err := sc.backend.SaveSortSettings(ctx, s); err != nil {
		return fmt.Errorf("saving sort settings: %w", err)
	}
	return nil
}

// Run recomputes every interval while auto-sort is on, until ctx ends.
// Failures are logged and the loop carries on.
func (sc *SortCoordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(sc.Interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !sc.AutoSort() {
				continue
			}
			if err := sc.Recompute(ctx); err != nil && ctx.Err() == nil {
				sc.log.WithError(err).Warn("auto-sort failed")
			}
		}
	}
}

// MoveTask reorders a task locally. Nothing is sent to the backend; the
// order is only marked stale.
func (sc *SortCoordinator) MoveTask(id int64, delta int) bool {
	if !sc.sync.Store().Move(id, delta) {
		return false
	}
	sc.MarkDirty()
	return true
}

func (sc *SortCoordinator) persist() error {
	if sc.prefs == nil {
		return nil
	}
	sc.mu.RLock()
	t, auto, at := sc.sortType, sc.auto, sc.sortedAt
	sc.mu.RUnlock()
	if err := sc.prefs.Update(func(p *models.Preferences) {
		p.SortType = t
		p.AutoSort = auto
		if at != nil {
			v := *at
			p.LastSortedAt = &v
		}
	}); err != nil {
		return fmt.Errorf("saving preferences: %w", err)
	}
	return nil
}
