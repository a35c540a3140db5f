package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/valter-silva-au/focus/pkg/models"
	"gopkg.in/yaml.v3"
)

// PreferencesVersion is written to every saved preferences file.
const PreferencesVersion = "1.0"

// PreferencesStore persists client preferences between runs.
type PreferencesStore interface {
	Load() (models.Preferences, error)
	Update(fn func(*models.Preferences)) error
}

type filePreferencesStore struct {
	basePath string
	mu       sync.Mutex
}

// NewPreferencesStore creates a PreferencesStore backed by
// .focus/preferences.yaml under basePath.
func NewPreferencesStore(basePath string) PreferencesStore {
	return &filePreferencesStore{basePath: basePath}
}

func (s *filePreferencesStore) dir() string {
	return filepath.Join(s.basePath, ".focus")
}

func (s *filePreferencesStore) path() string {
	return filepath.Join(s.dir(), "preferences.yaml")
}

func (s *filePreferencesStore) lockPath() string {
	return filepath.Join(s.dir(), ".preferences.lock")
}

// Load reads the preferences file. A missing file yields empty preferences.
func (s *filePreferencesStore) Load() (models.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.read()
	if err != nil {
		return models.Preferences{}, fmt.Errorf("loading preferences: %w", err)
	}
	return p, nil
}

// Update applies fn to the stored preferences and writes them back. The
// read-modify-write runs under an exclusive file lock so concurrent
// processes do not lose each other's changes.
func (s *filePreferencesStore) Update(fn func(*models.Preferences)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir(), 0o755); err != nil {
		return fmt.Errorf("updating preferences: creating directory: %w", err)
	}
	unlock, err := lockFile(s.lockPath())
	if err != nil {
		return fmt.Errorf("updating preferences: %w", err)
	}
	defer func() { _ = unlock() }()

	p, err := s.read()
	if err != nil {
		return fmt.Errorf("updating preferences: %w", err)
	}
	fn(&p)
	p.Version = PreferencesVersion

	data, err := yaml.Marshal(&p)
	if err != nil {
		return fmt.Errorf("updating preferences: encoding: %w", err)
	}
	tmp := s.path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("updating preferences: writing: %w", err)
	}
	if err := os.Rename(tmp, s.path()); err != nil {
		return fmt.Errorf("updating preferences: replacing: %w", err)
	}
	return nil
}

func (s *filePreferencesStore) read() (models.Preferences, error) {
	var p models.Preferences
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return p, err
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return models.Preferences{}, fmt.Errorf("parsing %s: %w", s.path(), err)
	}
	if p.SortType != "" && !p.SortType.Valid() {
		p.SortType = ""
	}
	return p, nil
}

// lockFile acquires an exclusive flock on path and returns the release
// function. Unix only.
func lockFile(path string) (unlock func() error, err error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("acquiring file lock: %w", err)
	}
	return func() error {
		defer f.Close()
		return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	}, nil
}
