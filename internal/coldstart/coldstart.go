// Package coldstart bootstraps brand-new users through a cheap three-phase
// state machine (classify -> explore -> normal) before the bandit/ensemble
// stack has enough data to take over.
package coldstart

import (
	"math"

	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/strategy"
)

// #region config

// Hook lets configuration inject an alternative exploration scorer (e.g. a
// sampling-based learner) for the explore phase.
type Hook func(state strategy.UserState, base strategy.Params, updateCount int64) strategy.Params

// Config parameterizes the state machine. Zero values fall back to defaults.
type Config struct {
	ClassifyCount int // K1: events spent classifying (default 15)
	NormalCount   int // K2: events until the machine goes terminal (default 50)

	// Fixed classification thresholds.
	FastLatencyMs     int64   // below this mean latency leans fast (default 2000)
	CautiousLatencyMs int64   // above this mean latency leans cautious (default 4000)
	FastAccuracy      float64 // above this mean reward leans fast (default 0.8)
	CautiousAccuracy  float64 // below this mean reward leans cautious (default 0.6)

	ExplorationHook Hook // optional; nil disables delegation
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		ClassifyCount:     15,
		NormalCount:       50,
		FastLatencyMs:     2000,
		CautiousLatencyMs: 4000,
		FastAccuracy:      0.8,
		CautiousAccuracy:  0.6,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ClassifyCount <= 0 {
		c.ClassifyCount = d.ClassifyCount
	}
	if c.NormalCount <= c.ClassifyCount {
		c.NormalCount = max(d.NormalCount, c.ClassifyCount+1)
	}
	if c.FastLatencyMs <= 0 {
		c.FastLatencyMs = d.FastLatencyMs
	}
	if c.CautiousLatencyMs <= c.FastLatencyMs {
		c.CautiousLatencyMs = d.CautiousLatencyMs
	}
	if c.FastAccuracy <= 0 {
		c.FastAccuracy = d.FastAccuracy
	}
	if c.CautiousAccuracy <= 0 {
		c.CautiousAccuracy = d.CautiousAccuracy
	}
	return c
}

// #endregion

// #region state

// Observation is one recorded probe outcome.
type Observation struct {
	ActionKey string  `json:"action_key"`
	Reward    float64 `json:"reward"`
	LatencyMs int64   `json:"latency_ms"`
}

// State is the persisted cold-start state. Phase only moves forward.
type State struct {
	Phase        strategy.ColdStartPhase `json:"phase"`
	UserType     strategy.UserType       `json:"user_type,omitempty"`
	ProbeIndex   int                     `json:"probe_index"`
	Settled      *strategy.Params        `json:"settled_strategy,omitempty"`
	UpdateCount  int64                   `json:"update_count"`
	Observations []Observation           `json:"observations,omitempty"`
}

// #endregion

// #region probe-sequence

// DefaultProbeSequence returns the fixed ordered probe actions used during
// classification: the three user-type baselines cycled so each archetype is
// probed several times before the type call is made.
func DefaultProbeSequence(n int) []strategy.Params {
	base := []strategy.Params{
		strategy.ForUserType(strategy.UserStable),
		strategy.ForUserType(strategy.UserFast),
		strategy.ForUserType(strategy.UserCautious),
	}
	out := make([]strategy.Params, n)
	for i := range out {
		out[i] = base[i%len(base)]
	}
	return out
}

// #endregion

// #region manager

// Manager runs the per-user cold-start state machine.
type Manager struct {
	cfg    Config
	probes []strategy.Params
	state  State
}

// New creates a manager at phase=classify.
func New(cfg Config) *Manager {
	cfg = cfg.withDefaults()
	return &Manager{
		cfg:    cfg,
		probes: DefaultProbeSequence(cfg.ClassifyCount),
		state:  State{Phase: strategy.PhaseClassify},
	}
}

// Phase returns the current phase.
func (m *Manager) Phase() strategy.ColdStartPhase { return m.state.Phase }

// UserType returns the classified type, empty until classification completes.
func (m *Manager) UserType() strategy.UserType { return m.state.UserType }

// Settled returns the frozen strategy candidate, nil before classification.
func (m *Manager) Settled() *strategy.Params { return m.state.Settled }

// Done reports whether the machine reached its terminal phase.
func (m *Manager) Done() bool { return m.state.Phase == strategy.PhaseNormal }

// #endregion

// #region select

// SelectAction picks the next bootstrap action. ok is false in the normal
// phase: the manager is then a pass-through and the ensemble owns the
// decision.
func (m *Manager) SelectAction(state strategy.UserState) (strategy.Params, bool) {
	switch m.state.Phase {
	case strategy.PhaseClassify:
		idx := m.state.ProbeIndex
		if idx >= len(m.probes) {
			idx = len(m.probes) - 1
		} else {
			m.state.ProbeIndex++
		}
		return m.probes[idx], true

	case strategy.PhaseExplore:
		base := strategy.DefaultParams()
		if m.state.Settled != nil {
			base = *m.state.Settled
		}
		if m.cfg.ExplorationHook != nil {
			return strategy.SnapParams(m.cfg.ExplorationHook(state, base, m.state.UpdateCount)), true
		}
		return m.perturb(base), true

	default:
		return strategy.Params{}, false
	}
}

// perturb blends the settled candidate with a bounded deterministic
// perturbation so the explore phase still samples neighboring actions.
func (m *Manager) perturb(base strategy.Params) strategy.Params {
	out := base
	switch m.state.UpdateCount % 4 {
	case 1:
		out.Difficulty = base.Difficulty.Harder()
	case 2:
		out.NewRatio = base.NewRatio + 0.1
	case 3:
		out.Difficulty = base.Difficulty.Easier()
	}
	if mean, _ := m.rewardStats(); mean >= m.cfg.FastAccuracy {
		out.Difficulty = out.Difficulty.Harder()
	}
	return strategy.SnapParams(out)
}

// #endregion

// #region observe

// Observe feeds one realized (action, reward, latency) outcome into the
// machine and drives the forward-only phase transitions: explore once the
// classify budget is spent, normal once the total budget is spent.
func (m *Manager) Observe(action strategy.Params, reward float64, latencyMs int64) {
	m.state.UpdateCount++

	if m.state.Phase == strategy.PhaseClassify {
		m.state.Observations = append(m.state.Observations, Observation{
			ActionKey: action.Key(),
			Reward:    clamp01(reward),
			LatencyMs: latencyMs,
		})
		if int(m.state.UpdateCount) >= m.cfg.ClassifyCount || m.state.ProbeIndex >= len(m.probes) {
			m.finishClassify()
		}
		return
	}

	if m.state.Phase == strategy.PhaseExplore {
		m.state.Observations = append(m.state.Observations, Observation{
			ActionKey: action.Key(),
			Reward:    clamp01(reward),
			LatencyMs: latencyMs,
		})
		if int(m.state.UpdateCount) >= m.cfg.NormalCount {
			m.finishExplore()
		}
	}
}

// finishClassify scores the three archetypes from aggregate probe statistics
// and moves to explore with a settled-strategy candidate.
func (m *Manager) finishClassify() {
	meanReward, variance := m.rewardStats()
	meanLatency := m.meanLatency()
	trend := m.latencyTrend()

	fastScore, stableScore, cautiousScore := 0.0, 0.0, 0.0
	if meanLatency < m.cfg.FastLatencyMs && meanReward > m.cfg.FastAccuracy {
		fastScore += 1
	}
	if meanLatency > m.cfg.CautiousLatencyMs || meanReward < m.cfg.CautiousAccuracy {
		cautiousScore += 1
	}
	if meanReward >= m.cfg.CautiousAccuracy && meanReward <= m.cfg.FastAccuracy {
		stableScore += 1
	}
	if variance > 0.15 {
		cautiousScore += 0.3
	} else {
		stableScore += 0.2
	}
	if trend < 0 { // latencies shrinking across the probes
		fastScore += 0.3
	}

	userType := strategy.UserStable
	if fastScore > stableScore && fastScore > cautiousScore {
		userType = strategy.UserFast
	} else if cautiousScore > stableScore && cautiousScore > fastScore {
		userType = strategy.UserCautious
	}

	settled := m.settledCandidate(userType, meanReward)
	m.state.UserType = userType
	m.state.Settled = &settled
	m.state.Phase = strategy.PhaseExplore
}

// finishExplore freezes the settled strategy and goes terminal.
func (m *Manager) finishExplore() {
	meanReward, _ := m.rewardStats()
	userType := m.state.UserType
	if userType == "" {
		userType = strategy.UserStable
	}
	settled := m.settledCandidate(userType, meanReward)
	m.state.Settled = &settled
	m.state.Phase = strategy.PhaseNormal
}

// settledCandidate adjusts the type baseline by observed accuracy extremes.
func (m *Manager) settledCandidate(userType strategy.UserType, meanReward float64) strategy.Params {
	base := strategy.ForUserType(userType)
	if meanReward > m.cfg.FastAccuracy {
		base.Difficulty = base.Difficulty.Harder()
		base.NewRatio = math.Min(base.NewRatio+0.1, 0.4)
	} else if meanReward < m.cfg.CautiousAccuracy {
		base.Difficulty = base.Difficulty.Easier()
		base.NewRatio = math.Max(base.NewRatio-0.1, 0.1)
		base.HintLevel = 2
	}
	return strategy.SnapParams(base)
}

// #endregion

// #region aggregates

func (m *Manager) rewardStats() (mean, variance float64) {
	n := len(m.state.Observations)
	if n == 0 {
		return 0.5, 0
	}
	sum := 0.0
	for _, o := range m.state.Observations {
		sum += o.Reward
	}
	mean = sum / float64(n)
	for _, o := range m.state.Observations {
		d := o.Reward - mean
		variance += d * d
	}
	variance /= float64(n)
	return mean, variance
}

func (m *Manager) meanLatency() int64 {
	n := len(m.state.Observations)
	if n == 0 {
		return 0
	}
	var sum int64
	for _, o := range m.state.Observations {
		sum += o.LatencyMs
	}
	return sum / int64(n)
}

// latencyTrend compares the second half of the probe latencies against the
// first half; negative means the user sped up.
func (m *Manager) latencyTrend() float64 {
	n := len(m.state.Observations)
	if n < 4 {
		return 0
	}
	half := n / 2
	var first, second float64
	for i, o := range m.state.Observations {
		if i < half {
			first += float64(o.LatencyMs)
		} else {
			second += float64(o.LatencyMs)
		}
	}
	return second/float64(n-half) - first/float64(half)
}

// #endregion

// #region persistence

// Snapshot captures the state for persistence, preserving the exact probe
// position.
func (m *Manager) Snapshot() State {
	out := m.state
	out.Observations = append([]Observation(nil), m.state.Observations...)
	if m.state.Settled != nil {
		settled := *m.state.Settled
		out.Settled = &settled
	}
	return out
}

// Restore rebuilds a manager from persisted state. A snapshot claiming
// phase=classify with a non-zero probe index but neither a settled strategy
// nor a user type is treated as corrupted and restarts the probe sequence
// from the top. Defensive repair of suspect persistence, not a feature.
func Restore(cfg Config, st State) *Manager {
	m := New(cfg)
	if st.Phase == "" {
		st.Phase = strategy.PhaseClassify
	}
	if st.Phase == strategy.PhaseClassify && st.ProbeIndex > 0 && st.Settled == nil && st.UserType == "" {
		st.ProbeIndex = 0
	}
	if st.ProbeIndex > len(m.probes) {
		st.ProbeIndex = len(m.probes)
	}
	m.state = st
	return m
}

// #endregion

func clamp01(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
