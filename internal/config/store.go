package config

import (
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const debounceWindow = 250 * time.Millisecond

// ChangeCallback is invoked, coalesced, after the configuration file
// changes on disk and is successfully reloaded.
type ChangeCallback func(*Document)

// Store owns the loaded Document, watches its backing file, and dispatches
// reload callbacks. It is the "ConfigStore" of spec.md §2.
type Store struct {
	mu       sync.RWMutex
	doc      *Document
	path     string
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
	onChange []ChangeCallback
	stopCh   chan struct{}
}

// Load reads and parses the configuration file at path (or CONFIG_FILE),
// applying environment overrides.
func Load(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		path = os.Getenv(defaultConfigPathEnv)
	}
	doc := &Document{}
	if err := loadYAMLWithEnv(path, doc); err != nil {
		return nil, err
	}
	if used := doc.applyDeprecatedAliases(); len(used) > 0 && logger != nil {
		for _, key := range used {
			logger.Warn("config: deprecated key in use", zap.String("key", key))
		}
	}
	return &Store{doc: doc, path: path, logger: logger}, nil
}

// Document returns a snapshot of the current configuration. Callers must
// not mutate the returned pointer's fields.
func (s *Store) Document() *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// OnChange registers a reload callback. Safe to call before or after Watch.
func (s *Store) OnChange(cb ChangeCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, cb)
}

// Watch starts an fsnotify watch on the backing file. It is a no-op if the
// store was constructed without a path (env-only configuration). Rapid
// successive write events (editors that truncate-then-write) are coalesced
// into a single reload within debounceWindow.
func (s *Store) Watch() error {
	if s.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(s.path); err != nil {
		watcher.Close()
		return err
	}
	s.watcher = watcher
	s.stopCh = make(chan struct{})

	go s.watchLoop()
	return nil
}

func (s *Store) watchLoop() {
	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-s.stopCh:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(debounceWindow)
			timerCh = timer.C
		case <-timerCh:
			timerCh = nil
			s.reload()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			if s.logger != nil {
				s.logger.Warn("config: watch error", zap.Error(err))
			}
		}
	}
}

func (s *Store) reload() {
	doc := &Document{}
	if err := loadYAMLWithEnv(s.path, doc); err != nil {
		if s.logger != nil {
			s.logger.Warn("config: reload failed, keeping previous document", zap.Error(err))
		}
		return
	}
	doc.applyDeprecatedAliases()

	s.mu.Lock()
	s.doc = doc
	callbacks := append([]ChangeCallback(nil), s.onChange...)
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb(doc)
	}
}

// Close stops the file watcher, if any.
func (s *Store) Close() error {
	if s.watcher == nil {
		return nil
	}
	close(s.stopCh)
	return s.watcher.Close()
}
