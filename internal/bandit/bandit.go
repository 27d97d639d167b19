// Package bandit implements the LinUCB contextual bandit: a per-user online
// ridge-regression reward model scored with an upper-confidence-bound bonus.
// All solves go through the maintained Cholesky factor; the model never forms
// an explicit matrix inverse.
package bandit

import (
	"errors"
	"math"

	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/numeric"
	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/strategy"
)

// #region errors

// ErrEmptyActionSpace indicates caller misconfiguration: the bandit was asked
// to select from zero candidates. This fails fast rather than degrading.
var ErrEmptyActionSpace = errors.New("bandit: empty action space")

// #endregion

// #region constants

const (
	// FeatureDim is the fixed feature-vector dimension: 7 state scalars,
	// 5 action scalars, 2 context scalars, 3 cross terms, 1 bias.
	FeatureDim = 18

	defaultAlpha  = 0.3
	defaultLambda = 1.0
)

// #endregion

// #region context

// Context carries the per-event scalars that are not part of UserState.
type Context struct {
	RecentAccuracy float64 // rolling accuracy in [0,1]
	TimeOfDay      float64 // fraction of day in [0,1]
}

// #endregion

// #region model

// Model is the per-user LinUCB state. A is the d x d ridge covariance,
// b the reward accumulator, L the Cholesky factor of A. Invariants: A stays
// symmetric with diagonal >= lambda, and L*L^T tracks A after every update.
type Model struct {
	a           []float64
	b           []float64
	l           []float64
	d           int
	lambda      float64
	alpha       float64
	updateCount int64
}

// New creates a model with A = lambda*I, b = 0 and L = sqrt(lambda)*I.
func New(d int, alpha, lambda float64) *Model {
	if d <= 0 {
		d = FeatureDim
	}
	if alpha <= 0 {
		alpha = defaultAlpha
	}
	lambda = math.Max(lambda, numeric.MinLambda)

	m := &Model{
		a:      numeric.RegularizedIdentity(d, lambda),
		b:      make([]float64, d),
		l:      make([]float64, d*d),
		d:      d,
		lambda: lambda,
		alpha:  alpha,
	}
	sqrtLambda := math.Sqrt(lambda)
	for i := 0; i < d; i++ {
		m.l[i*d+i] = sqrtLambda
	}
	return m
}

// Dim returns the feature dimension.
func (m *Model) Dim() int { return m.d }

// UpdateCount returns how many rank-1 updates the model has absorbed.
func (m *Model) UpdateCount() int64 { return m.updateCount }

// Alpha returns the current exploration coefficient.
func (m *Model) Alpha() float64 { return m.alpha }

// SetAlpha overrides the exploration coefficient; negative values are floored
// to zero.
func (m *Model) SetAlpha(alpha float64) {
	m.alpha = math.Max(alpha, 0)
}

// #endregion

// #region features

// Features builds the sanitized feature vector for one (state, action,
// context) triple. Layout: state scalars, action scalars, context scalars,
// cross terms (attention*fatigue, motivation*fatigue, accuracy*difficulty),
// bias.
func (m *Model) Features(state strategy.UserState, action strategy.Params, ctx Context) []float64 {
	x := make([]float64, m.d)
	if m.d != FeatureDim {
		// Foreign dimension: zero-padded/truncated fill keeps solves legal.
		raw := rawFeatures(state, action, ctx)
		copy(x, raw)
		numeric.SanitizeVector(x)
		return x
	}
	copy(x, rawFeatures(state, action, ctx))
	numeric.SanitizeVector(x)
	return x
}

func rawFeatures(state strategy.UserState, action strategy.Params, ctx Context) []float64 {
	af := action.ActionFeatures()
	diff := action.Difficulty.Value()
	return []float64{
		state.Attention,
		state.Fatigue,
		state.Motivation,
		state.Cognitive.Mem,
		state.Cognitive.Speed,
		state.Cognitive.Stability,
		state.Conf,
		af[0], af[1], af[2], af[3], af[4],
		ctx.RecentAccuracy,
		ctx.TimeOfDay,
		state.Attention * state.Fatigue,
		state.Motivation * state.Fatigue,
		ctx.RecentAccuracy * diff,
		1.0,
	}
}

// #endregion

// #region scoring

// UCBStats is the score breakdown for one candidate feature vector.
type UCBStats struct {
	Exploitation float64
	Exploration  float64
	Score        float64
}

// Score computes UCB = theta^T x + alpha * sqrt(x^T A^{-1} x) for one
// feature vector through the Cholesky factor.
func (m *Model) Score(x []float64) UCBStats {
	theta := numeric.SolveCholesky(m.l, m.b, m.d)
	exploit := numeric.Dot(theta, x)
	explore := math.Sqrt(math.Max(numeric.QuadraticForm(m.l, x, m.d), 0))
	return UCBStats{
		Exploitation: exploit,
		Exploration:  explore,
		Score:        exploit + m.alpha*explore,
	}
}

// SelectIndex scores every candidate vector and returns the argmax index plus
// all scores. Strict comparison means ties resolve to the earliest candidate.
func (m *Model) SelectIndex(xs [][]float64) (int, []float64) {
	bestIdx := 0
	bestScore := math.Inf(-1)
	scores := make([]float64, len(xs))
	for i, x := range xs {
		stats := m.Score(x)
		scores[i] = stats.Score
		if stats.Score > bestScore {
			bestScore = stats.Score
			bestIdx = i
		}
	}
	return bestIdx, scores
}

// Selection is the outcome of one SelectAction call.
type Selection struct {
	Index        int
	Action       strategy.Params
	Exploitation float64
	Exploration  float64
	Score        float64
	AllScores    []float64
}

// SelectAction scores every candidate action and returns the UCB argmax.
// Deterministic for fixed model state and inputs; ties resolve to the first
// action in the candidate enumeration order. An empty candidate list is a
// caller bug and returns ErrEmptyActionSpace.
func (m *Model) SelectAction(state strategy.UserState, actions []strategy.Params, ctx Context) (Selection, error) {
	if len(actions) == 0 {
		return Selection{}, ErrEmptyActionSpace
	}
	xs := make([][]float64, len(actions))
	for i, a := range actions {
		xs[i] = m.Features(state, a, ctx)
	}
	idx, scores := m.SelectIndex(xs)
	stats := m.Score(xs[idx])
	return Selection{
		Index:        idx,
		Action:       actions[idx],
		Exploitation: stats.Exploitation,
		Exploration:  stats.Exploration,
		Score:        stats.Score,
		AllScores:    scores,
	}, nil
}

// #endregion

// #region update

// Update performs the rank-1 accumulation A += x*x^T, b += reward*x and then
// recomputes the Cholesky factor from the updated A. The factor is never
// incrementally patched, so L stays consistent with A even across
// serialization round-trips; decomposition failure falls back to a
// regularized identity.
func (m *Model) Update(state strategy.UserState, action strategy.Params, reward float64, ctx Context) {
	x := m.Features(state, action, ctx)
	m.UpdateWithFeatures(x, reward)
}

// UpdateWithFeatures applies the update for an already-built feature vector.
func (m *Model) UpdateWithFeatures(x []float64, reward float64) {
	if len(x) != m.d {
		return
	}
	numeric.SanitizeVector(x)
	reward = numeric.SanitizeScalar(reward)

	numeric.Rank1UpdateMatrix(m.a, x, m.d)
	numeric.VecAddScaled(m.b, x, reward)
	m.recomputeFactor()
	m.updateCount++
}

// recomputeFactor rebuilds L from A, sanitizing first and falling back to a
// regularized identity when decomposition fails outright.
func (m *Model) recomputeFactor() {
	numeric.SanitizeCovariance(m.a, m.d, m.lambda)
	l, ok := numeric.CholeskyDecompose(m.a, m.d, m.lambda)
	if !ok {
		sqrtLambda := math.Sqrt(m.lambda)
		l = make([]float64, m.d*m.d)
		for i := 0; i < m.d; i++ {
			l[i*m.d+i] = sqrtLambda
		}
	}
	m.l = l
}

// #endregion

// #region cold-start-alpha

// ColdStartAlpha shrinks the exploration coefficient as a user accumulates
// interactions and inflates it when recent accuracy is unstable or fatigue is
// low. Pure; clamped to [0.05, 1.0]. Used outside the formal cold-start
// phases to keep exploring longer for users with rocky histories.
func ColdStartAlpha(interactionCount int64, recentAccuracy, fatigue float64) float64 {
	const base = 0.3

	var interactionFactor float64
	switch {
	case interactionCount < 10:
		interactionFactor = 2.0
	case interactionCount < 50:
		interactionFactor = 1.5
	case interactionCount < 200:
		interactionFactor = 1.2
	default:
		interactionFactor = 1.0
	}

	accuracyFactor := 1.0
	if recentAccuracy < 0.3 || recentAccuracy > 0.9 {
		accuracyFactor = 1.3
	}

	fatigueFactor := 1.0 - fatigue*0.3

	alpha := base * interactionFactor * accuracyFactor * fatigueFactor
	return math.Min(math.Max(alpha, 0.05), 1.0)
}

// #endregion
