// Package entity provides an observable, id-unique list of shelf items.
package entity

import (
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/jwplayer/ott-web-app-sub004/internal/domain"
)

// State is an immutable snapshot of a Store.
type State[T domain.ShelfItem] struct {
	Items   []T
	Warning string // user-facing policy message, empty when none
	Loaded  bool   // set once the initial restoration finished

	// Version increases with every change. Observers running concurrently
	// can use it to discard a snapshot older than one already seen.
	Version uint64
}

type observer[T domain.ShelfItem] struct {
	id uint64
	fn func(State[T])
}

// Store holds an ordered list of items with unique ids. The order is the
// display order, newest first.
type Store[T domain.ShelfItem] struct {
	mu        sync.RWMutex
	items     []T
	warning   string
	loaded    bool
	version   uint64
	observers []observer[T]
	nextObsID uint64
}

func NewStore[T domain.ShelfItem]() *Store[T] {
	return &Store[T]{}
}

// Snapshot returns a copy of the current state
func (s *Store[T]) Snapshot() State[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

func (s *Store[T]) stateLocked() State[T] {
	return State[T]{
		Items:   slices.Clone(s.items),
		Warning: s.warning,
		Loaded:  s.loaded,
		Version: s.version,
	}
}

// Items returns a copy of the current items
func (s *Store[T]) Items() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Find returns the item with the given id
func (s *Store[T]) Find(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.items, id); i >= 0 {
		return s.items[i], true
	}
	var zero T
	return zero, false
}

func (s *Store[T]) Has(id string) bool {
	_, ok := s.Find(id)
	return ok
}

// Prepend puts item at the front, dropping any existing item with its id
func (s *Store[T]) Prepend(item T) {
	s.update(func() bool {
		rest := slices.DeleteFunc(slices.Clone(s.items), func(it T) bool { return it.GetID() == item.GetID() })
		s.items = append([]T{item}, rest...)
		return true
	})
}

// Remove deletes the item with id and reports whether it was present
func (s *Store[T]) Remove(id string) bool {
	removed := false
	s.update(func() bool {
		i := indexOf(s.items, id)
		if i < 0 {
			return false
		}
		s.items = slices.Delete(slices.Clone(s.items), i, i+1)
		removed = true
		return true
	})
	return removed
}

// Replace swaps in a new list. Later duplicates of an id are dropped.
func (s *Store[T]) Replace(items []T) {
	s.update(func() bool {
		s.items = Dedup(items)
		return true
	})
}

// Mutate applies fn to a copy of the items and stores the result, keeping
// the first occurrence of every id.
func (s *Store[T]) Mutate(fn func(items []T) []T) {
	s.MutateIf(func(items []T) ([]T, bool) { return fn(items), true })
}

// MutateIf is Mutate for changes that may turn out to be no-ops. The result
// is stored, and observers notified, only when fn reports a change.
func (s *Store[T]) MutateIf(fn func(items []T) ([]T, bool)) bool {
	changed := false
	s.update(func() bool {
		items, ok := fn(slices.Clone(s.items))
		if !ok {
			return false
		}
		s.items = Dedup(items)
		changed = true
		return true
	})
	return changed
}

// Clear removes every item
func (s *Store[T]) Clear() {
	s.update(func() bool {
		if len(s.items) == 0 {
			return false
		}
		s.items = nil
		return true
	})
}

func (s *Store[T]) SetWarning(msg string) {
	s.update(func() bool {
		if s.warning == msg {
			return false
		}
		s.warning = msg
		return true
	})
}

func (s *Store[T]) ClearWarning() {
	s.SetWarning("")
}

// MarkLoaded flips Loaded to true. It reports false when already loaded.
func (s *Store[T]) MarkLoaded() bool {
	flipped := false
	s.update(func() bool {
		if s.loaded {
			return false
		}
		s.loaded = true
		flipped = true
		return true
	})
	return flipped
}

// Subscribe registers fn to receive a snapshot after every change.
// The returned function unsubscribes.
func (s *Store[T]) Subscribe(fn func(State[T])) func() {
	s.mu.Lock()
	s.nextObsID++
	id := s.nextObsID
	s.observers = append(s.observers, observer[T]{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.observers = slices.DeleteFunc(slices.Clone(s.observers), func(o observer[T]) bool { return o.id == id })
	}
}

// Search returns the items whose titles fuzzy-match query, best match first
func (s *Store[T]) Search(query string) []T {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	items := s.Items()
	titles := make([]string, len(items))
	for i, it := range items {
		titles[i] = it.GetTitle()
	}

	matches := fuzzy.RankFindFold(query, titles)

	// Sort by distance (lower is better), display order breaks ties
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].OriginalIndex < matches[j].OriginalIndex
	})

	results := make([]T, 0, len(matches))
	for _, m := range matches {
		results = append(results, items[m.OriginalIndex])
	}
	return results
}

// update runs fn under the write lock and, when fn reports a change,
// notifies observers outside the lock.
func (s *Store[T]) update(fn func() bool) {
	s.mu.Lock()
	if !fn() {
		s.mu.Unlock()
		return
	}
	s.version++
	state := s.stateLocked()
	observers := s.observers
	s.mu.Unlock()

	for _, o := range observers {
		o.fn(state)
	}
}

// Dedup returns items with every id kept at its first position
func Dedup[T domain.ShelfItem](items []T) []T {
	seen := make(map[string]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.GetID()]; ok {
			continue
		}
		seen[it.GetID()] = struct{}{}
		out = append(out, it)
	}
	return out
}

func indexOf[T domain.ShelfItem](items []T, id string) int {
	return slices.IndexFunc(items, func(it T) bool { return it.GetID() == id })
}
