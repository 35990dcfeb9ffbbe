// Package lockset provides in-process mutual exclusion scoped to record keys.
//
// Each key owns its own mutex, so a busy slot never blocks enrollments in an
// unrelated slot. Entries are reference counted and dropped once released.
package lockset

import (
	"sort"
	"sync"
)

type Set struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func New() *Set {
	return &Set{entries: make(map[string]*entry)}
}

// Lock acquires every key and returns a func releasing them.
// Keys are sorted and de-duplicated so callers locking overlapping sets never deadlock.
func (s *Set) Lock(keys ...string) (unlock func()) {
	keys = normalize(keys)

	held := make([]*entry, 0, len(keys))
	for _, k := range keys {
		e := s.acquire(k)
		e.mu.Lock()
		held = append(held, e)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(held) - 1; i >= 0; i-- {
				held[i].mu.Unlock()
				s.release(keys[i])
			}
		})
	}
}

// Len reports how many keys currently have holders or waiters.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Set) acquire(key string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	e.refs++
	return e
}

func (s *Set) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(s.entries, key)
	}
}

func normalize(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func SlotKey(id string) string  { return "slot:" + id }
func EventKey(id string) string { return "event:" + id }

// VenueKey scopes the overlap scan for one venue on one day.
func VenueKey(venue, date string) string { return "venue:" + venue + "|" + date }
