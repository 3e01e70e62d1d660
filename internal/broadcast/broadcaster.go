package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/jwplayer/ott-web-app-sub004/internal/metrics"
)

// ErrAlreadyOpen is returned by Open on a broadcaster that is already open.
var ErrAlreadyOpen = errors.New("broadcaster already open")

// ListenerID identifies a registered message listener
type ListenerID uint64

type listener[T any] struct {
	id ListenerID
	fn func(T)
}

type options struct {
	autoOpen bool
	logger   *slog.Logger
}

// Option configures a Broadcaster
type Option func(*options)

// WithAutoOpen controls whether New opens the channel immediately (default true)
func WithAutoOpen(open bool) Option {
	return func(o *options) { o.autoOpen = open }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Broadcaster exchanges typed JSON messages with every other participant on
// a named channel. Listeners survive Close/Open cycles.
//
// A message sent by this broadcaster is also delivered to its own listeners.
type Broadcaster[T any] struct {
	transport Transport
	name      string
	logger    *slog.Logger

	mu        sync.Mutex
	sub       Subscription
	gen       uint64 // bumped on every open and close; stale deliveries are dropped
	listeners []listener[T]
	nextID    ListenerID
}

// New creates a broadcaster for channel name. A nil transport is accepted
// and behaves like an environment without cross-instance messaging.
func New[T any](transport Transport, name string, opts ...Option) *Broadcaster[T] {
	o := options{autoOpen: true}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	b := &Broadcaster[T]{
		transport: transport,
		name:      name,
		logger:    o.logger.With("channel", name),
	}
	if o.autoOpen {
		_ = b.Open()
	}
	return b
}

// Name returns the channel name
func (b *Broadcaster[T]) Name() string { return b.name }

// Opened reports whether the channel is currently open
func (b *Broadcaster[T]) Opened() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sub != nil
}

// Open subscribes to the channel. When the transport is missing or refuses
// the subscription the broadcaster stays closed and Open returns nil.
func (b *Broadcaster[T]) Open() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sub != nil {
		return ErrAlreadyOpen
	}
	if b.transport == nil {
		b.logger.Warn("broadcast transport unavailable, channel stays closed")
		return nil
	}

	b.gen++
	gen := b.gen
	sub, err := b.transport.Subscribe(b.name, func(data []byte) { b.handle(gen, data) })
	if err != nil {
		b.logger.Warn("failed to open broadcast channel", "error", err)
		return nil
	}
	b.sub = sub
	return nil
}

// Close unsubscribes from the channel. Registered listeners are kept.
func (b *Broadcaster[T]) Close() error {
	b.mu.Lock()
	sub := b.sub
	b.sub = nil
	b.gen++
	b.mu.Unlock()

	if sub == nil {
		return nil
	}
	return sub.Close()
}

// AddMessageListener registers fn for every message received while open
func (b *Broadcaster[T]) AddMessageListener(fn func(T)) ListenerID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.listeners = append(b.listeners, listener[T]{id: b.nextID, fn: fn})
	return b.nextID
}

// RemoveMessageListener unregisters a listener. Unknown ids are ignored.
func (b *Broadcaster[T]) RemoveMessageListener(id ListenerID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = slices.DeleteFunc(slices.Clone(b.listeners), func(l listener[T]) bool {
		return l.id == id
	})
}

// BroadcastMessage sends msg to every participant, this one included.
// Messages sent while closed are dropped.
func (b *Broadcaster[T]) BroadcastMessage(ctx context.Context, msg T) error {
	if !b.Opened() {
		metrics.IncBroadcastDrop(b.name, "closed")
		b.logger.Debug("broadcast channel closed, message dropped")
		return nil
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode broadcast message: %w", err)
	}

	if err := b.transport.Publish(ctx, b.name, data); err != nil {
		b.logger.Warn("failed to publish broadcast message", "error", err)
		return err
	}
	return nil
}

func (b *Broadcaster[T]) handle(gen uint64, data []byte) {
	b.mu.Lock()
	if b.sub == nil || b.gen != gen {
		b.mu.Unlock()
		metrics.IncBroadcastDrop(b.name, "closed")
		return
	}
	listeners := b.listeners
	b.mu.Unlock()

	var msg T
	if err := json.Unmarshal(data, &msg); err != nil {
		metrics.IncBroadcastDrop(b.name, "malformed")
		b.logger.Warn("failed to decode broadcast message", "error", err)
		return
	}

	for _, l := range listeners {
		b.invoke(l, msg)
	}
	metrics.IncBroadcastDelivered(b.name)
}

func (b *Broadcaster[T]) invoke(l listener[T], msg T) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncBroadcastDrop(b.name, "panic")
			b.logger.Error("broadcast listener panicked", "listener", l.id, "panic", r)
		}
	}()
	l.fn(msg)
}
