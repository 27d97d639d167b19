// Package modeling maintains the per-user affective and cognitive scalars.
// Each modeler is a pure exponential-moving update from the previous value and
// the current event; the engine applies them once per processed event.
package modeling

import (
	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/strategy"
)

// #region config

// Config holds the smoothing factors. Larger values react faster.
type Config struct {
	AttentionAlpha  float64 // default 0.3
	FatigueAlpha    float64 // default 0.2
	MotivationAlpha float64 // default 0.25
	CognitiveAlpha  float64 // default 0.1
}

// DefaultConfig returns the production smoothing factors.
func DefaultConfig() Config {
	return Config{
		AttentionAlpha:  0.3,
		FatigueAlpha:    0.2,
		MotivationAlpha: 0.25,
		CognitiveAlpha:  0.1,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.AttentionAlpha <= 0 || c.AttentionAlpha > 1 {
		c.AttentionAlpha = d.AttentionAlpha
	}
	if c.FatigueAlpha <= 0 || c.FatigueAlpha > 1 {
		c.FatigueAlpha = d.FatigueAlpha
	}
	if c.MotivationAlpha <= 0 || c.MotivationAlpha > 1 {
		c.MotivationAlpha = d.MotivationAlpha
	}
	if c.CognitiveAlpha <= 0 || c.CognitiveAlpha > 1 {
		c.CognitiveAlpha = d.CognitiveAlpha
	}
	return c
}

// #endregion

// #region modeler

// Modeler applies the scalar updates. Stateless; per-user history lives in
// the UserState and the caller's accuracy window.
type Modeler struct {
	cfg Config
}

// New creates a modeler.
func New(cfg Config) *Modeler {
	return &Modeler{cfg: cfg.withDefaults()}
}

// Apply computes the next state from the current state and event. The input
// state is not mutated; the result is clamped and stamped with the event time.
func (m *Modeler) Apply(state strategy.UserState, ev strategy.RawEvent) strategy.UserState {
	next := state
	next.Attention = m.attention(state.Attention, ev)
	next.Fatigue = m.fatigue(state.Fatigue, ev)
	next.Motivation = m.motivation(state.Motivation, ev)
	next.Cognitive = m.cognitive(state.Cognitive, ev)
	if ev.Timestamp > next.TS {
		next.TS = ev.Timestamp
	}
	next.Clamp()
	return next
}

// attention drops with focus loss, switches and pauses, and recovers on
// focused correct answers.
func (m *Modeler) attention(prev float64, ev strategy.RawEvent) float64 {
	observed := 1.0
	observed -= 0.3 * saturate(float64(ev.FocusLossMs), 60000)
	observed -= 0.2 * saturate(float64(ev.SwitchCount), 5)
	observed -= 0.1 * saturate(float64(ev.PauseCount), 5)
	if !ev.IsCorrect && ev.ResponseTimeMs < 1000 {
		observed -= 0.3 // fast wrong answer reads as guessing, not attending
	}
	return ewma(prev, observed, m.cfg.AttentionAlpha)
}

// fatigue accumulates with session length and slow responses.
func (m *Modeler) fatigue(prev float64, ev strategy.RawEvent) float64 {
	observed := 0.0
	observed += 0.6 * saturate(float64(ev.SessionPos), 40)
	observed += 0.4 * saturate(float64(ev.ResponseTimeMs), 20000)
	return ewma(prev, observed, m.cfg.FatigueAlpha)
}

// motivation moves with outcomes: correct answers push up, misses and hint
// reliance push down.
func (m *Modeler) motivation(prev float64, ev strategy.RawEvent) float64 {
	observed := -0.3
	if ev.IsCorrect {
		observed = 0.5
		if !ev.HintUsed {
			observed = 0.7
		}
	} else if ev.HintUsed {
		observed = -0.1 // at least still trying
	}
	return ewma(prev, observed, m.cfg.MotivationAlpha)
}

// cognitive tracks memory from correctness, speed from response time and
// stability from how consistent the two signals are with the current profile.
func (m *Modeler) cognitive(prev strategy.CognitiveProfile, ev strategy.RawEvent) strategy.CognitiveProfile {
	memObs := 0.0
	if ev.IsCorrect {
		memObs = 1.0
		if ev.HintUsed {
			memObs = 0.6
		}
	}
	speedObs := 1.0 - saturate(float64(ev.ResponseTimeMs), 15000)

	memDrift := abs(memObs - prev.Mem)
	speedDrift := abs(speedObs - prev.Speed)
	stabilityObs := 1.0 - (memDrift+speedDrift)/2

	return strategy.CognitiveProfile{
		Mem:       ewma(prev.Mem, memObs, m.cfg.CognitiveAlpha),
		Speed:     ewma(prev.Speed, speedObs, m.cfg.CognitiveAlpha),
		Stability: ewma(prev.Stability, stabilityObs, m.cfg.CognitiveAlpha),
	}
}

// #endregion

// #region accuracy-window

// AccuracyWindow is a fixed-size ring of recent outcomes used for the rolling
// accuracy context feature and the trend classification.
type AccuracyWindow struct {
	Outcomes []bool `json:"outcomes"`
	Size     int    `json:"size"`
}

// NewAccuracyWindow creates a window of the given capacity (default 20).
func NewAccuracyWindow(size int) *AccuracyWindow {
	if size <= 0 {
		size = 20
	}
	return &AccuracyWindow{Size: size}
}

// Push appends one outcome, dropping the oldest past capacity.
func (w *AccuracyWindow) Push(correct bool) {
	w.Outcomes = append(w.Outcomes, correct)
	if len(w.Outcomes) > w.Size {
		w.Outcomes = w.Outcomes[len(w.Outcomes)-w.Size:]
	}
}

// Accuracy returns the fraction of correct outcomes, 0.5 when empty.
func (w *AccuracyWindow) Accuracy() float64 {
	if len(w.Outcomes) == 0 {
		return 0.5
	}
	correct := 0
	for _, c := range w.Outcomes {
		if c {
			correct++
		}
	}
	return float64(correct) / float64(len(w.Outcomes))
}

// Trend compares the window's halves: a half-accuracy gap beyond 0.15 in
// either direction classifies as improving or declining.
func (w *AccuracyWindow) Trend() strategy.Trend {
	n := len(w.Outcomes)
	if n < 6 {
		return strategy.TrendStable
	}
	half := n / 2
	first := accuracyOf(w.Outcomes[:half])
	second := accuracyOf(w.Outcomes[half:])
	switch {
	case second-first > 0.15:
		return strategy.TrendImproving
	case first-second > 0.15:
		return strategy.TrendDeclining
	default:
		return strategy.TrendStable
	}
}

func accuracyOf(outcomes []bool) float64 {
	if len(outcomes) == 0 {
		return 0
	}
	correct := 0
	for _, c := range outcomes {
		if c {
			correct++
		}
	}
	return float64(correct) / float64(len(outcomes))
}

// #endregion

// #region helpers

func ewma(prev, observed, alpha float64) float64 {
	return (1-alpha)*prev + alpha*observed
}

func saturate(v, scale float64) float64 {
	if v <= 0 || scale <= 0 {
		return 0
	}
	out := v / scale
	if out > 1 {
		return 1
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// #endregion
