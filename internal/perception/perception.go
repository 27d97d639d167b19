// Package perception turns raw interaction events into normalized feature
// vectors and flags events too implausible to learn from.
package perception

import (
	"math"

	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/strategy"
)

// #region config

// Config holds the plausibility thresholds for anomaly detection.
type Config struct {
	MinResponseMs   int64 // faster answers are treated as accidental input (default 150)
	MaxResponseMs   int64 // slower answers are treated as abandonment (default 300000)
	MaxPauseCount   int   // more pauses than this is a recording glitch (default 50)
	MaxFocusLossMs  int64 // focus loss beyond this dwarfs the interaction (default 600000)
	NormResponseMs  int64 // response time normalization scale (default 10000)
	NormDwellMs     int64 // dwell time normalization scale (default 30000)
	NormSessionPos  int   // session position normalization scale (default 50)
	NormFocusLossMs int64 // focus loss normalization scale (default 60000)
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		MinResponseMs:   150,
		MaxResponseMs:   300000,
		MaxPauseCount:   50,
		MaxFocusLossMs:  600000,
		NormResponseMs:  10000,
		NormDwellMs:     30000,
		NormSessionPos:  50,
		NormFocusLossMs: 60000,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinResponseMs <= 0 {
		c.MinResponseMs = d.MinResponseMs
	}
	if c.MaxResponseMs <= c.MinResponseMs {
		c.MaxResponseMs = d.MaxResponseMs
	}
	if c.MaxPauseCount <= 0 {
		c.MaxPauseCount = d.MaxPauseCount
	}
	if c.MaxFocusLossMs <= 0 {
		c.MaxFocusLossMs = d.MaxFocusLossMs
	}
	if c.NormResponseMs <= 0 {
		c.NormResponseMs = d.NormResponseMs
	}
	if c.NormDwellMs <= 0 {
		c.NormDwellMs = d.NormDwellMs
	}
	if c.NormSessionPos <= 0 {
		c.NormSessionPos = d.NormSessionPos
	}
	if c.NormFocusLossMs <= 0 {
		c.NormFocusLossMs = d.NormFocusLossMs
	}
	return c
}

// #endregion

// #region perceptor

// Perceptor builds feature vectors from raw events.
type Perceptor interface {
	// BuildFeatureVector returns the normalized context vector and whether
	// the event is anomalous. Anomalous events must not reach the learners.
	BuildFeatureVector(ev strategy.RawEvent) (strategy.FeatureVector, bool)
}

// Default is the rule-based Perceptor.
type Default struct {
	cfg Config
}

// New creates the default perceptor.
func New(cfg Config) *Default {
	return &Default{cfg: cfg.withDefaults()}
}

// #endregion

// #region build

var featureLabels = []string{
	"correct",
	"response_time",
	"pause_rate",
	"switch_rate",
	"focus_loss",
	"dwell_time",
	"hint_used",
	"session_pos",
}

// BuildFeatureVector normalizes the raw event into [0,1] features. The
// anomaly flag short-circuits the learning pipeline; the vector is still
// returned so traces can carry it.
func (p *Default) BuildFeatureVector(ev strategy.RawEvent) (strategy.FeatureVector, bool) {
	values := []float64{
		boolFeature(ev.IsCorrect),
		normalize(float64(ev.ResponseTimeMs), float64(p.cfg.NormResponseMs)),
		normalize(float64(ev.PauseCount), 10),
		normalize(float64(ev.SwitchCount), 10),
		normalize(float64(ev.FocusLossMs), float64(p.cfg.NormFocusLossMs)),
		normalize(float64(ev.DwellTimeMs), float64(p.cfg.NormDwellMs)),
		boolFeature(ev.HintUsed),
		normalize(float64(ev.SessionPos), float64(p.cfg.NormSessionPos)),
	}
	return strategy.FeatureVector{Values: values, Labels: featureLabels}, p.isAnomalous(ev)
}

// isAnomalous flags events outside plausible human interaction bounds.
func (p *Default) isAnomalous(ev strategy.RawEvent) bool {
	switch {
	case ev.ResponseTimeMs < p.cfg.MinResponseMs:
		return true
	case ev.ResponseTimeMs > p.cfg.MaxResponseMs:
		return true
	case ev.PauseCount > p.cfg.MaxPauseCount || ev.PauseCount < 0:
		return true
	case ev.FocusLossMs > p.cfg.MaxFocusLossMs || ev.FocusLossMs < 0:
		return true
	case ev.DwellTimeMs < 0 || ev.SwitchCount < 0 || ev.SessionPos < 0:
		return true
	case ev.DwellTimeMs > 0 && ev.ResponseTimeMs > ev.DwellTimeMs+p.cfg.NormResponseMs:
		// Answered long after leaving the item; clock skew or stale replay.
		return true
	default:
		return false
	}
}

// #endregion

// #region helpers

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// normalize maps v onto [0,1] against scale, saturating at 1.
func normalize(v, scale float64) float64 {
	if v <= 0 || scale <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	out := v / scale
	if out > 1 {
		return 1
	}
	return out
}

// #endregion
