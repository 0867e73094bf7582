package stationtemplate

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"sync"

	"go.uber.org/zap"

	"stationfleet/internal/cache"
)

// ChangeCallback fires when a watched template file's content hash
// changes.
type ChangeCallback func(path string, tpl *Template)

// Store loads, content-hashes and caches station templates, per spec.md
// §2's TemplateStore and §5's "template parse cache ... shared across all
// stations on the same host, keyed by content hash; entries are evicted
// via LRU".
type Store struct {
	mu       sync.RWMutex
	byPath   map[string]string // path -> last known hash
	byHash   *cache.LRU[string, *Template]
	logger   *zap.Logger
	watchers map[string][]ChangeCallback
}

// New builds a Store with the given LRU capacity (0 = unbounded).
func New(lruCapacity int, logger *zap.Logger) *Store {
	return &Store{
		byPath:   make(map[string]string),
		byHash:   cache.NewLRU[string, *Template](lruCapacity),
		logger:   logger,
		watchers: make(map[string][]ChangeCallback),
	}
}

// Get loads path, computing its content hash and returning the cached
// parse if the hash is already known.
func (s *Store) Get(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	hash := ContentHash(data)

	if cached, ok := s.byHash.Get(hash); ok {
		return cached, nil
	}

	var tpl Template
	if err := json.Unmarshal(data, &tpl); err != nil {
		return nil, err
	}
	tpl.TemplateHash = hash
	tpl.FilePath = path

	s.byHash.Put(hash, &tpl)

	s.mu.Lock()
	previous, existed := s.byPath[path]
	s.byPath[path] = hash
	callbacks := append([]ChangeCallback(nil), s.watchers[path]...)
	s.mu.Unlock()

	if existed && previous != hash {
		for _, cb := range callbacks {
			cb(path, &tpl)
		}
	}

	return &tpl, nil
}

// OnChange registers a callback invoked the next time Get observes a
// content-hash change for path (the file-watcher-driven reload in
// spec.md §9: "on change, invalidate the content-hash cache entry and
// trigger initialize() once").
func (s *Store) OnChange(path string, cb ChangeCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers[path] = append(s.watchers[path], cb)
}

// Invalidate drops the cached hash association for path, forcing the next
// Get to treat it as unseen and reparse it. Template files are not watched
// anywhere in this module; Invalidate runs only when a caller invokes it.
func (s *Store) Invalidate(path string) {
	s.mu.Lock()
	hash, ok := s.byPath[path]
	delete(s.byPath, path)
	s.mu.Unlock()
	if ok {
		s.byHash.Evict(hash)
	}
}

// ContentHash returns the hex-encoded SHA-256 of data, the templateHash
// scheme used throughout spec.md §3 and §6.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
