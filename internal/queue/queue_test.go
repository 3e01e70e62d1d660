package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPromiseQueue_ResolveSettlesEveryPending(t *testing.T) {
	q := New[int]()
	p1 := q.Enqueue()
	p2 := q.Enqueue()
	require.Equal(t, 2, q.Len())

	q.Resolve(42)
	assert.Equal(t, 0, q.Len())

	for _, p := range []*Promise[int]{p1, p2} {
		v, err := p.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	}
}

func TestPromiseQueue_RejectSettlesEveryPending(t *testing.T) {
	q := New[string]()
	p1 := q.Enqueue()
	p2 := q.Enqueue()

	boom := errors.New("boom")
	q.Reject(boom)

	for _, p := range []*Promise[string]{p1, p2} {
		_, err := p.Wait(context.Background())
		assert.ErrorIs(t, err, boom)
	}
}

func TestPromiseQueue_RejectNil(t *testing.T) {
	q := New[int]()
	p := q.Enqueue()
	q.Reject(nil)

	_, err := p.Wait(context.Background())
	assert.ErrorIs(t, err, ErrRejected)
}

func TestPromiseQueue_SettleEmptyIsNoop(t *testing.T) {
	q := New[int]()
	require.NotPanics(t, func() {
		q.Resolve(1)
		q.Reject(nil)
	})
	assert.Equal(t, 0, q.Len())
}

func TestPromiseQueue_IsReusable(t *testing.T) {
	q := New[int]()
	first := q.Enqueue()
	q.Resolve(1)

	second := q.Enqueue()
	select {
	case <-second.Done():
		t.Fatal("second round promise settled early")
	default:
	}

	q.Resolve(2)
	v, err := first.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v, "an earlier promise is never re-settled")

	v, err = second.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestPromise_WaitHonorsContext(t *testing.T) {
	q := New[int]()
	p := q.Enqueue()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The abandoned promise still settles normally
	q.Resolve(7)
	v, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestPromiseQueue_ConcurrentWaiters(t *testing.T) {
	q := New[int]()

	const n = 50
	results := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		p := q.Enqueue()
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := p.Wait(context.Background())
			if err == nil {
				results[i] = v
			}
		}(i)
	}

	q.Resolve(9)
	wg.Wait()
	for _, v := range results {
		assert.Equal(t, 9, v)
	}
}
