// Package screens picks the component that renders a piece of content.
package screens

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jwplayer/ott-web-app-sub004/internal/domain"
)

// ErrNoDefaultScreen is returned when nothing matches and no default is registered.
var ErrNoDefaultScreen = errors.New("no default screen registered")

// Predicate decides whether an entry handles data
type Predicate[D any] func(data D) bool

type entry[D any, C any] struct {
	predicate Predicate[D]
	component C
}

// Map is an ordered list of (predicate, component) pairs with a fallback.
// Predicates are tried in registration order and the first match wins.
type Map[D domain.ContentTyped, C any] struct {
	mu         sync.RWMutex
	entries    []entry[D, C]
	fallback   C
	hasDefault bool
}

func New[D domain.ContentTyped, C any]() *Map[D, C] {
	return &Map[D, C]{}
}

// Register appends an entry
func (m *Map[D, C]) Register(component C, predicate Predicate[D]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry[D, C]{predicate: predicate, component: component})
}

// RegisterByContentType registers component for data whose content type
// equals one of types, ignoring case.
func (m *Map[D, C]) RegisterByContentType(component C, types ...string) {
	normalized := make([]string, len(types))
	for i, t := range types {
		normalized[i] = strings.ToLower(t)
	}
	m.Register(component, func(data D) bool {
		ct := strings.ToLower(data.GetContentType())
		for _, t := range normalized {
			if ct == t {
				return true
			}
		}
		return false
	})
}

// RegisterDefault sets the fallback component, replacing any earlier one
func (m *Map[D, C]) RegisterDefault(component C) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = component
	m.hasDefault = true
}

// GetScreen returns the component of the first matching entry, else the default
func (m *Map[D, C]) GetScreen(data D) (C, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.entries {
		if e.predicate(data) {
			return e.component, nil
		}
	}
	if !m.hasDefault {
		var zero C
		return zero, fmt.Errorf("%w for content type %q", ErrNoDefaultScreen, data.GetContentType())
	}
	return m.fallback, nil
}

// MustGetScreen is GetScreen for wiring that must be complete. A missing
// default is a configuration error and panics.
func (m *Map[D, C]) MustGetScreen(data D) C {
	c, err := m.GetScreen(data)
	if err != nil {
		panic(err)
	}
	return c
}
