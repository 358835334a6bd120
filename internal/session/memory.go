package session

import (
	"context"
	"sync"
	"time"

	"github.com/jo-hoe/imagebot/internal/raster"
)

type memoryEntry struct {
	img       *raster.Image
	expiresAt time.Time
}

// MemoryStore keeps session images in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates an empty store. A positive ttl expires images that
// have not been replaced within that duration.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*raster.Image, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		s.mu.Lock()
		// the entry may have been replaced since the read lock was released
		if current, ok := s.entries[key]; ok && current.expiresAt.Equal(entry.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false, nil
	}
	return entry.img, true, nil
}

// Put stores a copy of img, so later changes by the caller are not visible.
func (s *MemoryStore) Put(_ context.Context, key string, img *raster.Image) error {
	if err := img.Validate(); err != nil {
		return err
	}
	entry := memoryEntry{img: img.Clone()}
	if s.ttl > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
	return nil
}

// Len returns the number of sessions currently holding an image.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) Close() error {
	return nil
}
