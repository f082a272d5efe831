package clicks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clicksKeeperFake struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newClicksKeeperFake() *clicksKeeperFake {
	return &clicksKeeperFake{counts: map[string]int64{}}
}

func (f *clicksKeeperFake) AddClicks(_ context.Context, short string, delta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.counts[short] += delta
	return nil
}

func (f *clicksKeeperFake) count(short string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[short]
}

func (f *clicksKeeperFake) setError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func TestEnqueueAndFlush(t *testing.T) {
	db := newClicksKeeperFake()
	tracker := New(db, 128, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tracker.Run(ctx)

	for i := 0; i < 5; i++ {
		tracker.Enqueue("abc12345")
	}
	tracker.Enqueue("def67890")

	assert.Eventually(t, func() bool {
		return db.count("abc12345") == 5 && db.count("def67890") == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFinalFlushOnShutdown(t *testing.T) {
	db := newClicksKeeperFake()
	// A long flush delay: only the shutdown flush can deliver the clicks.
	tracker := New(db, 128, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	tracker.Run(ctx)

	tracker.Enqueue("abc12345")
	tracker.Enqueue("abc12345")
	cancel()

	assert.Eventually(t, func() bool {
		return db.count("abc12345") == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEnqueueDropsWhenQueueIsFull(t *testing.T) {
	db := newClicksKeeperFake()
	tracker := New(db, 2, time.Hour)

	// The worker is not running, so the queue never drains.
	for i := 0; i < 10; i++ {
		tracker.Enqueue("abc12345")
	}

	assert.Len(t, tracker.queue, 2)
}

func TestFlushErrorsReachListener(t *testing.T) {
	db := newClicksKeeperFake()
	flushErr := errors.New("storage is down")
	db.setError(flushErr)

	tracker := New(db, 128, 10*time.Millisecond)

	var mu sync.Mutex
	var got []error
	tracker.ListenErrors(func(err error) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, err)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tracker.Run(ctx)

	tracker.Enqueue("abc12345")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.ErrorIs(t, got[0], flushErr)

	// The failed increment stays pending and is delivered once the
	// storage recovers.
	db.setError(nil)
	assert.Eventually(t, func() bool {
		return db.count("abc12345") == 1
	}, 2*time.Second, 10*time.Millisecond)
}
