package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Timer periodically cuts a batch when the pending queue is non-empty,
// independent of the size threshold. The cut itself shares the batcher's
// mutex, so cancellation at any point leaves no partial-batch state.
type Timer struct {
	batcher  *Batcher
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
	running  atomic.Bool
}

// NewTimer creates a periodic batch-cut timer.
func NewTimer(batcher *Batcher, interval time.Duration, logger *slog.Logger) *Timer {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Timer{
		batcher:  batcher,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Running reports whether the timer loop is actively running.
func (t *Timer) Running() bool {
	return t.running.Load()
}

// Start begins the cut loop. Call in a goroutine.
func (t *Timer) Start(ctx context.Context) {
	t.running.Store(true)
	defer t.running.Store(false)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-ticker.C:
			t.safeCut()
		}
	}
}

// Stop signals the timer to stop.
func (t *Timer) Stop() {
	select {
	case t.stop <- struct{}{}:
	default:
	}
}

func (t *Timer) safeCut() {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("panic in audit batch timer", "panic", fmt.Sprint(r))
		}
	}()

	if t.batcher.PendingCount() == 0 {
		return
	}
	if batch := t.batcher.CutBatch(); batch != nil {
		t.logger.Info("scheduled merkle batch cut",
			"root", batch.Root,
			"events", batch.EventCount,
		)
	}
}
