package broadcast

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
)

// ErrUnsupported is returned by a Transport that cannot open channels in
// the current environment.
var ErrUnsupported = errors.New("broadcast transport unsupported")

// Transport moves raw messages between every subscriber of a named channel,
// including subscribers in the publishing process.
type Transport interface {
	// Subscribe starts delivering messages published on name to deliver.
	// Messages from one publisher arrive in publish order.
	Subscribe(name string, deliver func(data []byte)) (Subscription, error)

	// Publish sends data to every current subscriber of name.
	Publish(ctx context.Context, name string, data []byte) error
}

// Subscription is an open channel subscription.
type Subscription interface {
	Close() error
}

// Hub is an in-process Transport. Publish delivers synchronously to every
// subscription that is open when it starts, so listeners may publish again.
type Hub struct {
	mu       sync.RWMutex
	channels map[string][]*hubSubscription
}

func NewHub() *Hub {
	return &Hub{channels: make(map[string][]*hubSubscription)}
}

type hubSubscription struct {
	hub     *Hub
	name    string
	deliver func([]byte)
	closed  atomic.Bool
}

func (h *Hub) Subscribe(name string, deliver func([]byte)) (Subscription, error) {
	sub := &hubSubscription{hub: h, name: name, deliver: deliver}
	h.mu.Lock()
	h.channels[name] = append(h.channels[name], sub)
	h.mu.Unlock()
	return sub, nil
}

func (h *Hub) Publish(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	subs := slices.Clone(h.channels[name])
	h.mu.RUnlock()

	for _, sub := range subs {
		if sub.closed.Load() {
			continue
		}
		sub.deliver(slices.Clone(data))
	}
	return nil
}

// Subscribers returns the number of open subscriptions on name
func (h *Hub) Subscribers(name string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[name])
}

func (s *hubSubscription) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.channels[s.name]
	if i := slices.Index(subs, s); i >= 0 {
		subs = slices.Delete(slices.Clone(subs), i, i+1)
	}
	if len(subs) == 0 {
		delete(h.channels, s.name)
	} else {
		h.channels[s.name] = subs
	}
	return nil
}
