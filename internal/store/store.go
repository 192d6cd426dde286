// Package store caches the ordered message feed per conversation. It is
// the only shared mutable state between the reconciler, pollers and
// stream receivers; the latter two only ever request invalidation.
package store

import (
	"context"
	"sync"
	"time"

	"course-copilot/internal/chat"
	"course-copilot/internal/logging"
)

// Loader fetches the authoritative feed for a conversation.
type Loader interface {
	ListMessages(ctx context.Context, courseID, chatID string) ([]chat.Message, error)
}

type entry struct {
	feed     []chat.Message
	stale    bool
	lastUsed time.Time
}

type Store struct {
	loader Loader

	mu    sync.RWMutex
	feeds map[chat.Key]*entry
	now   func() time.Time
}

func New(loader Loader) *Store {
	return &Store{
		loader: loader,
		feeds:  make(map[chat.Key]*entry),
		now:    time.Now,
	}
}

// Load returns the cached feed, re-fetching when absent or stale. The
// returned slice is a copy; callers may not reach the cached one.
func (s *Store) Load(ctx context.Context, key chat.Key) ([]chat.Message, error) {
	s.mu.RLock()
	e, ok := s.feeds[key]
	if ok && !e.stale {
		feed := copyFeed(e.feed)
		s.mu.RUnlock()
		s.touch(key)
		return feed, nil
	}
	s.mu.RUnlock()

	feed, err := s.loader.ListMessages(ctx, key.CourseID, key.ChatID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.feeds[key] = &entry{feed: copyFeed(feed), lastUsed: s.now()}
	s.mu.Unlock()
	return feed, nil
}

// Get returns the cached feed without fetching. The hit flag is false
// for absent or stale entries.
func (s *Store) Get(key chat.Key) ([]chat.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.feeds[key]
	if !ok || e.stale {
		return nil, false
	}
	return copyFeed(e.feed), true
}

// Invalidate marks the cached feed stale so the next Load re-fetches.
// Idempotent: invalidating an absent or already-stale entry is a no-op.
func (s *Store) Invalidate(key chat.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.feeds[key]; ok {
		e.stale = true
	}
}

// evictIdle drops entries not used within ttl and reports how many went.
func (s *Store) evictIdle(ttl time.Duration) int {
	cutoff := s.now().Add(-ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, e := range s.feeds {
		if e.lastUsed.Before(cutoff) {
			delete(s.feeds, key)
			n++
		}
	}
	if n > 0 {
		logging.Debugf("store: evicted %d idle feed(s)", n)
	}
	return n
}

func (s *Store) touch(key chat.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.feeds[key]; ok {
		e.lastUsed = s.now()
	}
}

func copyFeed(feed []chat.Message) []chat.Message {
	return append([]chat.Message{}, feed...)
}
