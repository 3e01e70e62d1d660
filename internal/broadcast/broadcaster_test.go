package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwplayer/ott-web-app-sub004/internal/metrics"
)

type note struct {
	Type   string `json:"type"`
	Source string `json:"source"`
}

// recorder collects delivered messages
type recorder struct {
	mu  sync.Mutex
	got []note
}

func (r *recorder) add(n note) {
	r.mu.Lock()
	r.got = append(r.got, n)
	r.mu.Unlock()
}

func (r *recorder) messages() []note {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]note(nil), r.got...)
}

type refusingTransport struct{}

func (refusingTransport) Subscribe(string, func([]byte)) (Subscription, error) {
	return nil, ErrUnsupported
}

func (refusingTransport) Publish(context.Context, string, []byte) error {
	return ErrUnsupported
}

func TestBroadcaster_DeliversToPeersAndSelf(t *testing.T) {
	hub := NewHub()
	a := New[note](hub, "account-notifications")
	b := New[note](hub, "account-notifications")
	other := New[note](hub, "other")

	var ra, rb, ro recorder
	a.AddMessageListener(ra.add)
	b.AddMessageListener(rb.add)
	other.AddMessageListener(ro.add)

	require.NoError(t, a.BroadcastMessage(context.Background(), note{Type: "account.login", Source: "a"}))

	want := []note{{Type: "account.login", Source: "a"}}
	assert.Equal(t, want, ra.messages(), "sender receives its own message")
	assert.Equal(t, want, rb.messages())
	assert.Empty(t, ro.messages())
}

func TestBroadcaster_PreservesSenderOrder(t *testing.T) {
	hub := NewHub()
	a := New[note](hub, "ch")
	b := New[note](hub, "ch")

	var rb recorder
	b.AddMessageListener(rb.add)

	ctx := context.Background()
	require.NoError(t, a.BroadcastMessage(ctx, note{Type: "1"}))
	require.NoError(t, a.BroadcastMessage(ctx, note{Type: "2"}))
	require.NoError(t, a.BroadcastMessage(ctx, note{Type: "3"}))

	assert.Equal(t, []note{{Type: "1"}, {Type: "2"}, {Type: "3"}}, rb.messages())
}

func TestBroadcaster_OpenCloseLifecycle(t *testing.T) {
	hub := NewHub()
	a := New[note](hub, "ch", WithAutoOpen(false))
	assert.Equal(t, "ch", a.Name())
	assert.False(t, a.Opened())

	require.NoError(t, a.Open())
	assert.True(t, a.Opened())
	assert.ErrorIs(t, a.Open(), ErrAlreadyOpen)

	require.NoError(t, a.Close())
	assert.False(t, a.Opened())
	require.NoError(t, a.Close(), "closing twice is a no-op")

	require.NoError(t, a.Open())
	assert.True(t, a.Opened())
	assert.Equal(t, 1, hub.Subscribers("ch"))
}

func TestBroadcaster_ClosedInstanceNeitherSendsNorReceives(t *testing.T) {
	hub := NewHub()
	a := New[note](hub, "ch")
	b := New[note](hub, "ch")

	var ra, rb recorder
	a.AddMessageListener(ra.add)
	b.AddMessageListener(rb.add)

	require.NoError(t, b.Close())

	before := testutil.ToFloat64(metrics.BroadcastDroppedTotal.WithLabelValues("ch", "closed"))
	require.NoError(t, b.BroadcastMessage(context.Background(), note{Type: "from-b"}))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.BroadcastDroppedTotal.WithLabelValues("ch", "closed")))

	require.NoError(t, a.BroadcastMessage(context.Background(), note{Type: "from-a"}))
	assert.Equal(t, []note{{Type: "from-a"}}, ra.messages())
	assert.Empty(t, rb.messages())

	// Listeners survive a close/open cycle
	require.NoError(t, b.Open())
	require.NoError(t, a.BroadcastMessage(context.Background(), note{Type: "again"}))
	assert.Equal(t, []note{{Type: "again"}}, rb.messages())
}

func TestBroadcaster_RemoveListenerDuringDelivery(t *testing.T) {
	hub := NewHub()
	a := New[note](hub, "ch")

	var calls []string
	var first ListenerID
	first = a.AddMessageListener(func(note) {
		calls = append(calls, "first")
		a.RemoveMessageListener(first)
	})
	a.AddMessageListener(func(note) { calls = append(calls, "second") })

	ctx := context.Background()
	require.NoError(t, a.BroadcastMessage(ctx, note{}))
	require.NoError(t, a.BroadcastMessage(ctx, note{}))

	assert.Equal(t, []string{"first", "second", "second"}, calls)
}

func TestBroadcaster_AddListenerDuringDeliveryWaitsForNextMessage(t *testing.T) {
	hub := NewHub()
	a := New[note](hub, "ch")

	var late recorder
	added := false
	a.AddMessageListener(func(note) {
		if !added {
			added = true
			a.AddMessageListener(late.add)
		}
	})

	ctx := context.Background()
	require.NoError(t, a.BroadcastMessage(ctx, note{Type: "1"}))
	assert.Empty(t, late.messages())

	require.NoError(t, a.BroadcastMessage(ctx, note{Type: "2"}))
	assert.Equal(t, []note{{Type: "2"}}, late.messages())
}

func TestBroadcaster_ListenerPanicIsContained(t *testing.T) {
	hub := NewHub()
	a := New[note](hub, "panicky")

	var r recorder
	a.AddMessageListener(func(note) { panic("boom") })
	a.AddMessageListener(r.add)

	before := testutil.ToFloat64(metrics.BroadcastDroppedTotal.WithLabelValues("panicky", "panic"))
	require.NotPanics(t, func() {
		require.NoError(t, a.BroadcastMessage(context.Background(), note{Type: "x"}))
	})
	assert.Equal(t, []note{{Type: "x"}}, r.messages())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.BroadcastDroppedTotal.WithLabelValues("panicky", "panic")))
}

func TestBroadcaster_MalformedMessageIsDropped(t *testing.T) {
	hub := NewHub()
	a := New[note](hub, "malformed-ch")

	var r recorder
	a.AddMessageListener(r.add)

	before := testutil.ToFloat64(metrics.BroadcastDroppedTotal.WithLabelValues("malformed-ch", "malformed"))
	require.NoError(t, hub.Publish(context.Background(), "malformed-ch", []byte("{not json")))
	assert.Empty(t, r.messages())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.BroadcastDroppedTotal.WithLabelValues("malformed-ch", "malformed")))
}

func TestBroadcaster_WithoutTransportStaysClosed(t *testing.T) {
	for name, transport := range map[string]Transport{
		"nil":      nil,
		"refusing": refusingTransport{},
	} {
		t.Run(name, func(t *testing.T) {
			a := New[note](transport, "ch")
			assert.False(t, a.Opened())
			assert.NoError(t, a.Open())
			assert.False(t, a.Opened())
			assert.NoError(t, a.BroadcastMessage(context.Background(), note{}))
			assert.NoError(t, a.Close())
		})
	}
}

func TestHub_PublishHonorsCanceledContext(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, errors.Is(hub.Publish(ctx, "ch", nil), context.Canceled))
}

func TestRedisTransport_CrossProcess(t *testing.T) {
	mr := miniredis.RunT(t)
	clientA := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer clientA.Close()
	clientB := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer clientB.Close()

	a := New[note](NewRedisTransport(clientA, "ottsync:", nil), "account-notifications")
	b := New[note](NewRedisTransport(clientB, "ottsync:", nil), "account-notifications")
	require.True(t, a.Opened())
	require.True(t, b.Opened())

	var ra, rb recorder
	a.AddMessageListener(ra.add)
	b.AddMessageListener(rb.add)

	ctx := context.Background()
	for _, typ := range []string{"1", "2", "3"} {
		require.NoError(t, a.BroadcastMessage(ctx, note{Type: typ, Source: "a"}))
	}

	want := []note{{Type: "1", Source: "a"}, {Type: "2", Source: "a"}, {Type: "3", Source: "a"}}
	require.Eventually(t, func() bool { return len(rb.messages()) == 3 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(ra.messages()) == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, want, rb.messages())
	assert.Equal(t, want, ra.messages())

	require.NoError(t, a.Close())
	require.NoError(t, b.Close())
}
