// Package engine orchestrates the per-event decision pipeline: perception,
// modeling, learning, decision, evaluation, optimization. ProcessEvent never
// errors past its boundary; every failure mode resolves to a usable, possibly
// degraded, strategy.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/bandit"
	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/coldstart"
	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/decision"
	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/ensemble"
	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/isolation"
	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/modeling"
	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/perception"
	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/persist"
	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/resilience"
	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/reward"
	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/strategy"
)

// #region config

// Config is the immutable engine configuration. Feature flags are resolved
// once here; the pipeline never consults them per event.
type Config struct {
	Budget        time.Duration // per-event wall-clock budget (default 2s)
	LockTimeout   time.Duration // per-user lock acquisition timeout (default 3s)
	RewardProfile string        // reward profile name (default "default")

	BanditAlpha  float64 // default 0.3
	BanditLambda float64 // default 1.0

	EnableHeuristic bool // register the rule-based learner alongside LinUCB
	HeuristicWeight float64

	TraceQueueSize int // bounded trace queue (default 256)

	Cache      isolation.CacheConfig
	Breaker    resilience.BreakerConfig
	ColdStart  coldstart.Config
	Perception perception.Config
	Modeling   modeling.Config
	WindowSize int // accuracy window capacity (default 20)

	Telemetry Telemetry // nil disables metric emission
}

// DefaultConfig returns the production engine configuration.
func DefaultConfig() Config {
	return Config{
		Budget:          2 * time.Second,
		LockTimeout:     3 * time.Second,
		RewardProfile:   "default",
		BanditAlpha:     0.3,
		BanditLambda:    1.0,
		EnableHeuristic: true,
		HeuristicWeight: 0.3,
		TraceQueueSize:  256,
		WindowSize:      20,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Budget <= 0 {
		c.Budget = d.Budget
	}
	if c.LockTimeout <= 0 {
		c.LockTimeout = d.LockTimeout
	}
	if c.RewardProfile == "" {
		c.RewardProfile = d.RewardProfile
	}
	if c.BanditAlpha <= 0 {
		c.BanditAlpha = d.BanditAlpha
	}
	if c.BanditLambda <= 0 {
		c.BanditLambda = d.BanditLambda
	}
	if c.HeuristicWeight <= 0 {
		c.HeuristicWeight = d.HeuristicWeight
	}
	if c.TraceQueueSize <= 0 {
		c.TraceQueueSize = d.TraceQueueSize
	}
	if c.WindowSize <= 0 {
		c.WindowSize = d.WindowSize
	}
	return c
}

// #endregion

// #region decision-result

// Decision is what callers receive for every processed event.
type Decision struct {
	EventID    string                  `json:"event_id"`
	Action     strategy.Params         `json:"action"`
	Confidence float64                 `json:"confidence"`
	Phase      strategy.ColdStartPhase `json:"phase"`
	Degraded   bool                    `json:"degraded"`
	Reason     string                  `json:"reason,omitempty"`
}

// #endregion

// #region engine

// Engine wires the pipeline collaborators. Construct explicitly and inject
// dependencies; there are no process-wide singletons here.
type Engine struct {
	cfg Config
	log *zap.Logger

	perceptor perception.Perceptor
	modeler   *modeling.Modeler
	mapper    decision.Mapper
	evaluator *reward.Evaluator

	breaker  *resilience.CircuitBreaker
	locks    *isolation.KeyedMutex
	runtimes *isolation.Cache[*userRuntime]

	states persist.StateRepository
	models persist.ModelRepository
	tracer *Tracer
	tel    Telemetry

	actions []strategy.Params
}

// New creates a fully wired engine. traces may be nil to disable tracing;
// logger nil falls back to a no-op logger.
func New(cfg Config, states persist.StateRepository, models persist.ModelRepository, traces persist.TraceStore, logger *zap.Logger) *Engine {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	var tel Telemetry = nopTelemetry{}
	if cfg.Telemetry != nil {
		tel = cfg.Telemetry
	}

	e := &Engine{
		cfg:       cfg,
		log:       logger,
		perceptor: perception.New(cfg.Perception),
		modeler:   modeling.New(cfg.Modeling),
		mapper:    decision.New(),
		evaluator: reward.NewEvaluator(nil),
		breaker:   resilience.NewCircuitBreaker(cfg.Breaker),
		locks:     isolation.NewKeyedMutex(cfg.LockTimeout),
		states:    states,
		models:    models,
		tel:       tel,
		actions:   strategy.ActionSpace(),
	}
	e.runtimes = isolation.NewCache(cfg.Cache, func(string) *userRuntime {
		return e.newRuntime()
	})
	e.tracer = NewTracer(traces, cfg.TraceQueueSize, logger)
	return e
}

// StartSweeper runs the runtime-cache TTL sweep until ctx is cancelled.
func (e *Engine) StartSweeper(ctx context.Context, interval time.Duration) {
	e.runtimes.StartSweeper(ctx, interval)
}

// Close drains and stops the trace consumer.
func (e *Engine) Close() {
	e.tracer.Close()
}

// Breaker exposes the circuit breaker for health endpoints.
func (e *Engine) Breaker() *resilience.CircuitBreaker { return e.breaker }

// #endregion

// #region user-runtime

// userRuntime is one user's in-memory model set. It is only touched under
// that user's keyed lock.
type userRuntime struct {
	loaded bool

	state        strategy.UserState
	arbiter      *ensemble.Arbiter
	banditModel  *bandit.Model
	cold         *coldstart.Manager
	window       *modeling.AccuracyWindow
	lastAction   strategy.Params
	interactions int64
}

// newRuntime builds a fresh model set from the configuration template.
func (e *Engine) newRuntime() *userRuntime {
	model := bandit.New(bandit.FeatureDim, e.cfg.BanditAlpha, e.cfg.BanditLambda)
	banditLearner := ensemble.NewBanditLearner(model)

	learners := []ensemble.Learner{banditLearner}
	if e.cfg.EnableHeuristic {
		learners = append(learners, ensemble.NewHeuristicLearner())
	}
	arb := ensemble.NewArbiter(learners...)
	if e.cfg.EnableHeuristic {
		arb.SetWeight("heuristic", e.cfg.HeuristicWeight)
	}

	return &userRuntime{
		state:       strategy.NewUserState(),
		arbiter:     arb,
		banditModel: banditLearner.Model(),
		cold:        coldstart.New(e.cfg.ColdStart),
		window:      modeling.NewAccuracyWindow(e.cfg.WindowSize),
		lastAction:  strategy.DefaultParams(),
	}
}

// ensureLoaded hydrates the runtime from persistence on first access after
// construction or eviction.
func (e *Engine) ensureLoaded(ctx context.Context, userID string, rt *userRuntime) error {
	if rt.loaded {
		return nil
	}

	state, found, err := e.states.LoadState(ctx, userID)
	if err != nil {
		return err
	}
	if found {
		rt.state = state
	}

	rec, found, err := e.models.LoadModel(ctx, userID)
	if err != nil {
		return err
	}
	if found {
		if err := rt.arbiter.Restore(rec.Ensemble); err != nil {
			e.log.Warn("model restore failed, reinitializing learners",
				zap.String("user_id", userID), zap.Error(err))
		}
		rt.cold = coldstart.Restore(e.cfg.ColdStart, rec.ColdStart)
		if rec.Window != nil {
			rt.window = rec.Window
		}
		if rec.LastAction != nil {
			rt.lastAction = strategy.SnapParams(*rec.LastAction)
		}
		rt.interactions = rec.InteractionCount
	}

	rt.loaded = true
	return nil
}

// #endregion

// #region process-event

// ProcessEvent runs the six-stage pipeline for one event under the user's
// lock. It never returns an error: lock timeouts, breaker rejections,
// pipeline errors and budget overruns all resolve to a fallback decision.
func (e *Engine) ProcessEvent(ctx context.Context, userID string, ev strategy.RawEvent) Decision {
	release, err := e.locks.Acquire(ctx, userID)
	if err != nil {
		e.log.Warn("per-user lock acquisition failed",
			zap.String("user_id", userID), zap.Error(err))
		return e.observe(e.fallbackDecision(ctx, userID, ev, resilience.ReasonTimeout, nil))
	}

	rt := e.runtimes.Get(userID)

	return e.observe(resilience.Do(ctx, e.breaker, e.cfg.Budget,
		func(attemptCtx context.Context) (Decision, error) {
			// The attempt owns the lock. A timed-out attempt keeps the
			// runtime to itself until it unwinds; the next event for this
			// user queues on the keyed mutex instead of racing it.
			defer release()
			return e.runPipeline(attemptCtx, userID, ev, rt)
		},
		func(reason resilience.FailureReason) Decision {
			if reason == resilience.ReasonCircuitOpen {
				// No attempt was started, so the lock is still ours.
				release()
			}
			// The runtime may still belong to an in-flight attempt here;
			// fall back on persisted state only.
			return e.fallbackDecision(ctx, userID, ev, reason, nil)
		},
	))
}

// observe emits the per-decision counters.
func (e *Engine) observe(d Decision) Decision {
	e.tel.IncCounter(MetricDecisions, 1)
	if d.Degraded {
		e.tel.IncCounter(MetricDegraded, 1)
	}
	return d
}

// runPipeline executes the six stages. Returned errors are transient
// failures for the resilience layer to absorb.
func (e *Engine) runPipeline(ctx context.Context, userID string, ev strategy.RawEvent, rt *userRuntime) (Decision, error) {
	timings := newStageClock()

	if err := e.ensureLoaded(ctx, userID, rt); err != nil {
		return Decision{}, err
	}

	// Stage 1: perception.
	timings.start("perception")
	_, anomalous := e.perceptor.BuildFeatureVector(ev)
	timings.end()
	if anomalous {
		e.log.Debug("anomalous event short-circuited",
			zap.String("user_id", userID), zap.String("event_id", ev.EventID))
		d := e.fallbackDecision(ctx, userID, ev, resilience.ReasonDegradedState, rt)
		return d, nil
	}

	// Stage 2: modeling.
	timings.start("modeling")
	state := e.modeler.Apply(rt.state, ev)
	rt.window.Push(ev.IsCorrect)
	state.Trend = rt.window.Trend()
	timings.end()

	bctx := bandit.Context{
		RecentAccuracy: rt.window.Accuracy(),
		TimeOfDay:      timeOfDay(ev.Timestamp),
	}

	// Stage 3: learning. Exploration is tuned by interaction history before
	// any selection runs.
	timings.start("learning")
	rt.banditModel.SetAlpha(bandit.ColdStartAlpha(rt.interactions, bctx.RecentAccuracy, state.Fatigue))

	var (
		selected   strategy.Params
		confidence float64
		votes      []ensemble.Vote
	)
	if action, ok := rt.cold.SelectAction(state); ok {
		selected = action
		confidence = 0.5 // bootstrap decisions carry neutral confidence
	} else {
		action, conf, err := rt.arbiter.SelectAction(state, e.actions, bctx)
		if err != nil {
			timings.end()
			return Decision{}, err
		}
		selected = action
		confidence = conf
		votes = rt.arbiter.LastVotes()
	}
	timings.end()

	// Stage 4: decision.
	timings.start("decision")
	mapped := e.mapper.MapActionToStrategy(selected, rt.lastAction)
	final := e.mapper.ApplyGuardrails(state, mapped)
	timings.end()

	// Stage 5: evaluation.
	timings.start("evaluation")
	rwd := e.evaluator.Evaluate(e.cfg.RewardProfile, ev, state)
	timings.end()

	// Stage 6: optimization.
	timings.start("optimization")
	rt.cold.Observe(final, rwd.Value, ev.ResponseTimeMs)
	rt.arbiter.Update(state, final, rwd.Value, bctx)
	rt.interactions++
	state.Conf = confidence

	rt.state = state
	rt.lastAction = final

	if err := e.persistRuntime(ctx, userID, rt); err != nil {
		timings.end()
		return Decision{}, err
	}
	timings.end()

	for _, st := range timings.stages {
		e.tel.ObserveDuration("stage_"+st.Stage, time.Duration(st.EndMs-st.StartMs)*time.Millisecond)
	}

	d := Decision{
		EventID:    ev.EventID,
		Action:     final,
		Confidence: confidence,
		Phase:      rt.cold.Phase(),
	}
	e.trace(userID, ev, d, rwd.Value, votes, rt, timings.stages)
	return d, nil
}

// persistRuntime saves state and the full model record.
func (e *Engine) persistRuntime(ctx context.Context, userID string, rt *userRuntime) error {
	if err := e.states.SaveState(ctx, userID, rt.state); err != nil {
		return err
	}
	ensSnap, err := rt.arbiter.Snapshot()
	if err != nil {
		return err
	}
	last := rt.lastAction
	rec := persist.ModelRecord{
		Ensemble:         ensSnap,
		ColdStart:        rt.cold.Snapshot(),
		Window:           rt.window,
		LastAction:       &last,
		InteractionCount: rt.interactions,
	}
	return e.models.SaveModel(ctx, userID, rec)
}

// #endregion

// #region fallback

// fallbackDecision produces the degraded result from the last known state.
// It never invokes the learning stack.
func (e *Engine) fallbackDecision(ctx context.Context, userID string, ev strategy.RawEvent, reason resilience.FailureReason, rt *userRuntime) Decision {
	state := strategy.NewUserState()
	if rt != nil && rt.loaded {
		state = rt.state
	} else if e.states != nil {
		if persisted, found, err := e.states.LoadState(ctx, userID); err == nil && found {
			state = persisted
		}
	}

	d := Decision{
		EventID:    ev.EventID,
		Action:     resilience.FallbackAction(reason, state),
		Confidence: 0,
		Degraded:   true,
		Reason:     string(reason),
	}
	if rt != nil {
		d.Phase = rt.cold.Phase()
	}
	e.trace(userID, ev, d, 0, nil, rt, nil)
	return d
}

// #endregion

// #region tracing

// trace enqueues the decision trace; it never blocks the pipeline.
func (e *Engine) trace(userID string, ev strategy.RawEvent, d Decision, rewardValue float64, votes []ensemble.Vote, rt *userRuntime, stages []persist.StageTiming) {
	trace := persist.DecisionTrace{
		TraceID:    uuid.NewString(),
		UserID:     userID,
		EventID:    ev.EventID,
		Action:     d.Action,
		Confidence: d.Confidence,
		Reward:     rewardValue,
		Degraded:   d.Degraded,
		Reason:     d.Reason,
		Phase:      string(d.Phase),
		Votes:      votes,
		Stages:     stages,
		CreatedAt:  time.Now().UTC(),
	}
	if rt != nil && len(votes) > 0 {
		weights := make(map[string]float64, len(votes))
		for _, v := range votes {
			weights[v.Learner] = rt.arbiter.Weight(v.Learner)
		}
		trace.Weights = weights
	}
	if !e.tracer.Enqueue(trace) {
		e.tel.IncCounter(MetricDroppedTraces, 1)
	}
}

// #endregion

// #region stage-clock

type stageClock struct {
	stages  []persist.StageTiming
	current int
}

func newStageClock() *stageClock {
	return &stageClock{current: -1}
}

func (c *stageClock) start(name string) {
	c.stages = append(c.stages, persist.StageTiming{Stage: name, StartMs: time.Now().UnixMilli()})
	c.current = len(c.stages) - 1
}

func (c *stageClock) end() {
	if c.current >= 0 {
		c.stages[c.current].EndMs = time.Now().UnixMilli()
		c.current = -1
	}
}

// #endregion

// #region helpers

// timeOfDay maps a unix-millis timestamp onto [0,1) within its UTC day.
func timeOfDay(tsMillis int64) float64 {
	const dayMs = 24 * 60 * 60 * 1000
	if tsMillis <= 0 {
		return 0
	}
	return float64(tsMillis%dayMs) / float64(dayMs)
}

// #endregion
