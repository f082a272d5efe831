// Package clicks counts redirects in the background. The redirect
// handler enqueues a click and returns immediately; a worker drains the
// queue on a ticker and flushes batched increments to storage. A failed
// flush is reported on the error channel and never reaches the caller,
// so click counting can never block or fail a redirect.
package clicks

import (
	"context"
	"time"

	"github.com/patric-chuzhbe/shortly/internal/logger"
)

type clicksKeeper interface {
	AddClicks(ctx context.Context, short string, delta int64) error
}

// Tracker accumulates click events and flushes them periodically.
type Tracker struct {
	queue               chan string
	db                  clicksKeeper
	delayBetweenFlushes time.Duration
	errorChannel        chan error
}

// New creates a Tracker with the given queue capacity and flush period.
func New(
	db clicksKeeper,
	channelCapacity int,
	delayBetweenFlushes time.Duration,
) *Tracker {
	return &Tracker{
		db:                  db,
		queue:               make(chan string, channelCapacity),
		delayBetweenFlushes: delayBetweenFlushes,
		errorChannel:        make(chan error, channelCapacity),
	}
}

// Enqueue records one click for the short key. When the queue is full
// the click is dropped: counting is best-effort telemetry and must not
// slow the redirect down.
func (t *Tracker) Enqueue(short string) {
	select {
	case t.queue <- short:
	default:
	}
}

// ListenErrors forwards flush errors to the callback on a separate goroutine.
func (t *Tracker) ListenErrors(callback func(error)) {
	go func() {
		for err := range t.errorChannel {
			callback(err)
		}
	}()
}

// Run starts the background flusher. It drains the queue until the
// context is cancelled, then performs a final flush.
func (t *Tracker) Run(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(t.delayBetweenFlushes)
		defer ticker.Stop()

		pending := map[string]int64{}

		for {
			select {
			case short := <-t.queue:
				pending[short]++
			case <-ticker.C:
				t.flush(ctx, pending)
			case <-ctx.Done():
				for {
					select {
					case short := <-t.queue:
						pending[short]++
						continue
					default:
					}
					break
				}
				t.flush(context.Background(), pending)
				return
			}
		}
	}()
}

func (t *Tracker) flush(ctx context.Context, pending map[string]int64) {
	if len(pending) == 0 {
		return
	}
	flushed := 0
	for short, delta := range pending {
		if err := t.db.AddClicks(ctx, short, delta); err != nil {
			t.errorChannel <- err
			continue
		}
		flushed += int(delta)
		delete(pending, short)
	}
	if flushed > 0 {
		logger.Log.Infof("flushed %d click increments", flushed)
	}
}
