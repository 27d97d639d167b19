package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/persist"
)

// #region tracer

// Tracer is the bounded fire-and-forget trace queue. The hot path only
// enqueues; a single background consumer writes to the store. When the queue
// is full the trace is dropped and counted, never blocking a decision.
type Tracer struct {
	store persist.TraceStore
	log   *zap.Logger

	ch      chan persist.DecisionTrace
	dropped atomic.Int64

	closeOnce sync.Once
	done      chan struct{}
}

// NewTracer starts the consumer. store may be nil; every trace is then
// dropped silently.
func NewTracer(store persist.TraceStore, queueSize int, logger *zap.Logger) *Tracer {
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracer{
		store: store,
		log:   logger,
		ch:    make(chan persist.DecisionTrace, queueSize),
		done:  make(chan struct{}),
	}
	go t.consume()
	return t
}

// Enqueue offers a trace to the queue. Returns false when the trace was
// dropped (nil store or full queue).
func (t *Tracer) Enqueue(trace persist.DecisionTrace) bool {
	if t.store == nil {
		return false
	}
	select {
	case t.ch <- trace:
		return true
	default:
		t.dropped.Add(1)
		return false
	}
}

// Dropped returns how many traces were discarded due to backpressure.
func (t *Tracer) Dropped() int64 {
	return t.dropped.Load()
}

// Close stops accepting traces, drains the queue and waits for the consumer.
func (t *Tracer) Close() {
	t.closeOnce.Do(func() {
		close(t.ch)
		<-t.done
	})
}

func (t *Tracer) consume() {
	defer close(t.done)
	for trace := range t.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := t.store.RecordDecisionTrace(ctx, trace); err != nil {
			// Tracing failures never affect the primary result.
			t.log.Debug("trace write failed", zap.Error(err))
		}
		cancel()
	}
}

// #endregion
