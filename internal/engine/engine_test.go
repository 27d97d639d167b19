package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/persist"
	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/strategy"
)

func newTestEngine(t *testing.T) (*Engine, *persist.Store) {
	t.Helper()
	store, err := persist.NewStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	eng := New(DefaultConfig(), store, store, store, nil)
	t.Cleanup(eng.Close)
	return eng, store
}

func testEvent(id string, pos int, correct bool) strategy.RawEvent {
	return strategy.RawEvent{
		EventID:        id,
		IsCorrect:      correct,
		ResponseTimeMs: 2500,
		DwellTimeMs:    4000,
		SessionPos:     pos,
		Timestamp:      1700000000000 + int64(pos)*60000,
	}
}

func TestProcessEvent_FreshUserStartsInClassify(t *testing.T) {
	eng, _ := newTestEngine(t)

	d := eng.ProcessEvent(context.Background(), "u1", testEvent("ev-1", 0, true))
	if d.Degraded {
		t.Fatalf("healthy pipeline degraded: %s", d.Reason)
	}
	if d.Phase != strategy.PhaseClassify {
		t.Errorf("phase = %s, want classify", d.Phase)
	}
	if !d.Action.Equal(strategy.SnapParams(d.Action)) {
		t.Errorf("action off-grid: %+v", d.Action)
	}
}

func TestProcessEvent_PhaseAdvancesWithHistory(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	var d Decision
	for i := 0; i < 14; i++ {
		d = eng.ProcessEvent(ctx, "u1", testEvent(fmt.Sprintf("ev-%d", i), i, true))
		if d.Phase != strategy.PhaseClassify {
			t.Fatalf("event %d: phase = %s, want classify", i, d.Phase)
		}
	}
	for i := 14; i < 49; i++ {
		d = eng.ProcessEvent(ctx, "u1", testEvent(fmt.Sprintf("ev-%d", i), i, true))
		if d.Phase != strategy.PhaseExplore {
			t.Fatalf("event %d: phase = %s, want explore", i, d.Phase)
		}
	}
	d = eng.ProcessEvent(ctx, "u1", testEvent("ev-49", 49, true))
	if d.Phase != strategy.PhaseNormal {
		t.Errorf("event 49: phase = %s, want normal", d.Phase)
	}
	if d.Degraded {
		t.Errorf("unexpected degradation: %s", d.Reason)
	}
}

func TestProcessEvent_AnomalousEventShortCircuits(t *testing.T) {
	eng, store := newTestEngine(t)

	ev := testEvent("ev-bad", 0, true)
	ev.ResponseTimeMs = 10 // implausibly fast

	d := eng.ProcessEvent(context.Background(), "u1", ev)
	if !d.Degraded {
		t.Fatal("anomalous event must degrade")
	}
	if d.Reason != "degraded_state" {
		t.Errorf("reason = %s, want degraded_state", d.Reason)
	}
	// No learning stage ran: nothing was persisted for the user.
	if _, found, err := store.LoadModel(context.Background(), "u1"); err != nil || found {
		t.Errorf("model persisted despite short-circuit (found=%v err=%v)", found, err)
	}
}

func TestProcessEvent_SurvivesRestart(t *testing.T) {
	store, err := persist.NewStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	eng1 := New(DefaultConfig(), store, store, store, nil)
	for i := 0; i < 20; i++ {
		d := eng1.ProcessEvent(ctx, "u1", testEvent(fmt.Sprintf("ev-%d", i), i, true))
		if d.Degraded {
			t.Fatalf("event %d degraded: %s", i, d.Reason)
		}
	}
	eng1.Close()

	eng2 := New(DefaultConfig(), store, store, store, nil)
	defer eng2.Close()
	d := eng2.ProcessEvent(ctx, "u1", testEvent("ev-20", 20, true))
	if d.Phase != strategy.PhaseExplore {
		t.Errorf("phase after restart = %s, want explore preserved from persistence", d.Phase)
	}
}

// failingRepo errors on every operation.
type failingRepo struct{}

func (failingRepo) LoadState(context.Context, string) (strategy.UserState, bool, error) {
	return strategy.UserState{}, false, errors.New("storage down")
}

func (failingRepo) SaveState(context.Context, string, strategy.UserState) error {
	return errors.New("storage down")
}

func (failingRepo) LoadModel(context.Context, string) (persist.ModelRecord, bool, error) {
	return persist.ModelRecord{}, false, errors.New("storage down")
}

func (failingRepo) SaveModel(context.Context, string, persist.ModelRecord) error {
	return errors.New("storage down")
}

func TestProcessEvent_StorageFailureFallsBack(t *testing.T) {
	eng := New(DefaultConfig(), failingRepo{}, failingRepo{}, nil, nil)
	defer eng.Close()

	d := eng.ProcessEvent(context.Background(), "u1", testEvent("ev-1", 0, true))
	if !d.Degraded {
		t.Fatal("storage failure must degrade, not error")
	}
	if d.Reason != "exception" {
		t.Errorf("reason = %s, want exception", d.Reason)
	}
	if !d.Action.Equal(strategy.SnapParams(d.Action)) {
		t.Errorf("fallback action off-grid: %+v", d.Action)
	}
}

func TestProcessEvent_RepeatedFailuresOpenCircuit(t *testing.T) {
	eng := New(DefaultConfig(), failingRepo{}, failingRepo{}, nil, nil)
	defer eng.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d := eng.ProcessEvent(ctx, "u1", testEvent(fmt.Sprintf("ev-%d", i), i, true))
		if d.Reason != "exception" {
			t.Fatalf("event %d reason = %s, want exception", i, d.Reason)
		}
	}
	d := eng.ProcessEvent(ctx, "u1", testEvent("ev-5", 5, true))
	if d.Reason != "circuit_open" {
		t.Errorf("reason = %s, want circuit_open after 5 failures", d.Reason)
	}
}

// slowRepo stalls reads long enough to blow the event budget.
type slowRepo struct {
	persist.StateRepository
	delay time.Duration
}

func (s slowRepo) LoadState(ctx context.Context, userID string) (strategy.UserState, bool, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return strategy.UserState{}, false, ctx.Err()
	}
	return s.StateRepository.LoadState(ctx, userID)
}

func TestProcessEvent_BudgetTimeoutFallsBack(t *testing.T) {
	store, err := persist.NewStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	cfg := DefaultConfig()
	cfg.Budget = 30 * time.Millisecond
	eng := New(cfg, slowRepo{StateRepository: store, delay: time.Second}, store, nil, nil)
	defer eng.Close()

	start := time.Now()
	d := eng.ProcessEvent(context.Background(), "u1", testEvent("ev-1", 0, true))
	if !d.Degraded || d.Reason != "timeout" {
		t.Errorf("degraded=%v reason=%s, want timeout fallback", d.Degraded, d.Reason)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("latency not bounded by budget: %v", elapsed)
	}
}

func TestProcessEvent_TracesRecorded(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	eng.ProcessEvent(ctx, "u1", testEvent("ev-1", 0, true))
	eng.ProcessEvent(ctx, "u1", testEvent("ev-2", 1, false))
	eng.Close() // drains the trace queue

	traces, err := store.ListTraces(ctx, "u1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(traces) != 2 {
		t.Fatalf("got %d traces, want 2", len(traces))
	}
	for _, trace := range traces {
		if trace.UserID != "u1" {
			t.Errorf("trace user = %s", trace.UserID)
		}
		if len(trace.Stages) == 0 {
			t.Error("trace missing stage timings")
		}
	}
}

func TestProcessEvent_DistinctUsersIndependent(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, userID := range []string{"u1", "u2", "u3", "u4"} {
		userID := userID
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				d := eng.ProcessEvent(ctx, userID, testEvent(fmt.Sprintf("%s-%d", userID, i), i, true))
				if d.Degraded {
					t.Errorf("%s event %d degraded: %s", userID, i, d.Reason)
					return
				}
			}
		}()
	}
	wg.Wait()

	// Each user advanced independently through its own cold start.
	for _, userID := range []string{"u1", "u2", "u3", "u4"} {
		d := eng.ProcessEvent(ctx, userID, testEvent(userID+"-final", 10, true))
		if d.Phase != strategy.PhaseClassify {
			t.Errorf("%s phase = %s, want classify after 11 events", userID, d.Phase)
		}
	}
}

// memTelemetry collects counters for assertions.
type memTelemetry struct {
	mu       sync.Mutex
	counters map[string]int64
}

func newMemTelemetry() *memTelemetry {
	return &memTelemetry{counters: make(map[string]int64)}
}

func (m *memTelemetry) IncCounter(name string, delta int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += delta
}

func (m *memTelemetry) ObserveDuration(string, time.Duration) {}

func (m *memTelemetry) get(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

func TestProcessEvent_EmitsTelemetryCounters(t *testing.T) {
	store, err := persist.NewStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	tel := newMemTelemetry()
	cfg := DefaultConfig()
	cfg.Telemetry = tel
	eng := New(cfg, store, store, store, nil)
	defer eng.Close()
	ctx := context.Background()

	eng.ProcessEvent(ctx, "u1", testEvent("ev-1", 0, true))
	bad := testEvent("ev-2", 1, true)
	bad.ResponseTimeMs = 10
	eng.ProcessEvent(ctx, "u1", bad)

	if got := tel.get(MetricDecisions); got != 2 {
		t.Errorf("decisions counter = %d, want 2", got)
	}
	if got := tel.get(MetricDegraded); got != 1 {
		t.Errorf("degraded counter = %d, want 1", got)
	}
}

// stallOnceModels delays the first LoadModel past the budget while ignoring
// context cancellation, the way a wedged driver call would.
type stallOnceModels struct {
	persist.ModelRepository
	delay   time.Duration
	stalled atomic.Bool
}

func (s *stallOnceModels) LoadModel(ctx context.Context, userID string) (persist.ModelRecord, bool, error) {
	if s.stalled.CompareAndSwap(false, true) {
		time.Sleep(s.delay)
	}
	return s.ModelRepository.LoadModel(ctx, userID)
}

func TestProcessEvent_AbandonedAttemptKeepsUserLock(t *testing.T) {
	store, err := persist.NewStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	cfg := DefaultConfig()
	cfg.Budget = 30 * time.Millisecond
	models := &stallOnceModels{ModelRepository: store, delay: 300 * time.Millisecond}
	eng := New(cfg, store, models, store, nil)
	defer eng.Close()
	ctx := context.Background()

	d1 := eng.ProcessEvent(ctx, "u1", testEvent("ev-1", 0, true))
	if !d1.Degraded || d1.Reason != "timeout" {
		t.Fatalf("degraded=%v reason=%s, want timeout fallback", d1.Degraded, d1.Reason)
	}

	// The abandoned attempt still owns u1's lock and runtime; the next event
	// must queue behind it rather than run concurrently.
	start := time.Now()
	d2 := eng.ProcessEvent(ctx, "u1", testEvent("ev-2", 1, true))
	waited := time.Since(start)

	if d2.Degraded {
		t.Fatalf("second event degraded: %s", d2.Reason)
	}
	if waited < 150*time.Millisecond {
		t.Errorf("second event ran after %v, want it serialized behind the stalled attempt", waited)
	}
}
