package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/MKhiriev/go-firesync/models"
)

// MemoryPath makes NewFileEntryStore keep entries in memory only.
const MemoryPath = ":memory:"

type fileEntryStore struct {
	path     string
	inMemory bool

	mu     sync.RWMutex
	items  map[string]models.Entry
	closed bool
}

type filePersistedState struct {
	Version int                     `json:"version"`
	Entries map[string]models.Entry `json:"entries"`
}

const fileStateVersion = 1

// NewFileEntryStore opens a store persisted as one JSON document at path.
// An empty path or MemoryPath gives a volatile in-memory store.
func NewFileEntryStore(path string) (EntryStore, error) {
	if path == "" {
		path = MemoryPath
	}

	s := &fileEntryStore{
		path:     path,
		inMemory: path == MemoryPath,
		items:    make(map[string]models.Entry),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewMemoryEntryStore returns a volatile store.
func NewMemoryEntryStore() EntryStore {
	return &fileEntryStore{
		path:     MemoryPath,
		inMemory: true,
		items:    make(map[string]models.Entry),
	}
}

func (s *fileEntryStore) Get(_ context.Context, key string) (models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return models.Entry{}, ErrStoreClosed
	}
	e, ok := s.items[key]
	if !ok {
		return models.Entry{}, fmt.Errorf("%w: %q", ErrEntryNotFound, key)
	}
	return e, nil
}

func (s *fileEntryStore) All(_ context.Context) ([]models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	entries := make([]models.Entry, 0, len(s.items))
	for _, key := range slices.Sorted(maps.Keys(s.items)) {
		entries = append(entries, s.items[key])
	}
	return entries, nil
}

func (s *fileEntryStore) Set(_ context.Context, entries ...models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	prev := make(map[string]*models.Entry, len(entries))
	for _, e := range entries {
		if _, seen := prev[e.Key]; !seen {
			prev[e.Key] = s.lookup(e.Key)
		}
		s.items[e.Key] = e
	}
	if err := s.persist(); err != nil {
		for key, e := range prev {
			s.restore(key, e)
		}
		return err
	}
	return nil
}

func (s *fileEntryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	prev := s.lookup(key)
	if prev == nil {
		return nil
	}
	delete(s.items, key)
	if err := s.persist(); err != nil {
		s.restore(key, prev)
		return err
	}
	return nil
}

func (s *fileEntryStore) Modify(_ context.Context, key string, fn ModifyFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	current := s.lookup(key)
	next, err := fn(current)
	if errors.Is(err, ErrSkipModify) {
		return nil
	}
	if err != nil {
		return err
	}

	if next == nil {
		if current == nil {
			return nil
		}
		delete(s.items, key)
	} else {
		next.Key = key
		s.items[key] = *next
	}
	if err = s.persist(); err != nil {
		s.restore(key, current)
		return err
	}
	return nil
}

// lookup returns a copy of the entry at key, nil when absent.
func (s *fileEntryStore) lookup(key string) *models.Entry {
	e, ok := s.items[key]
	if !ok {
		return nil
	}
	return &e
}

// restore puts back what lookup returned after a failed persist, so the
// memory never runs ahead of the file.
func (s *fileEntryStore) restore(key string, e *models.Entry) {
	if e == nil {
		delete(s.items, key)
		return
	}
	s.items[key] = *e
}

func (s *fileEntryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.persist()
}

func (s *fileEntryStore) load() error {
	if s.inMemory {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read local storage file: %w", err)
	}

	var st filePersistedState
	if err = json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("decode local storage file: %w", err)
	}

	if st.Entries != nil {
		s.items = st.Entries
	}
	return nil
}

func (s *fileEntryStore) persist() error {
	if s.inMemory {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create local storage dir: %w", err)
		}
	}

	state := filePersistedState{Version: fileStateVersion, Entries: s.items}
	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode local storage: %w", err)
	}

	// replace atomically
	tmp := s.path + ".tmp"
	if err = os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("write local storage file: %w", err)
	}
	if err = os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace local storage file: %w", err)
	}

	return nil
}
