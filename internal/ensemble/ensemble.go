// Package ensemble arbitrates between pluggable learners by weighted voting.
// Every learner proposes one action per event; the proposal whose backers
// carry the greatest total weight wins, and every enabled learner then trains
// on the realized outcome regardless of which proposal won, so off-policy
// learners keep learning from observed rewards.
package ensemble

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/bandit"
	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/strategy"
)

// #region errors

// ErrNoLearners indicates the arbiter has no enabled learner able to propose.
var ErrNoLearners = errors.New("ensemble: no enabled learner produced a proposal")

// #endregion

// #region learner

// Learner is the uniform capability every ensemble member implements.
type Learner interface {
	// Name identifies the learner for weighting, votes and persistence.
	Name() string
	// SelectAction proposes one action with a score for the given context.
	SelectAction(state strategy.UserState, actions []strategy.Params, ctx bandit.Context) (strategy.Params, float64, error)
	// Update trains on the realized outcome of the executed action.
	Update(state strategy.UserState, action strategy.Params, reward float64, ctx bandit.Context)
	// Snapshot serializes the learner state.
	Snapshot() (json.RawMessage, error)
	// Restore replaces the learner state from a serialized snapshot.
	Restore(raw json.RawMessage) error
}

// #endregion

// #region vote

// Vote is one learner's raw proposal, exposed for audit and tracing.
type Vote struct {
	Learner   string          `json:"learner"`
	ActionKey string          `json:"action_key"`
	Action    strategy.Params `json:"action"`
	Score     float64         `json:"score"`
	Weight    float64         `json:"weight"`
}

// #endregion

// #region arbiter

// Arbiter holds the learners in registration order plus their weights.
// A zero weight disables a learner without discarding its state; weights need
// not sum to 1. Weights change only through SetWeight, never by learning.
type Arbiter struct {
	learners []Learner
	weights  map[string]float64

	lastVotes      []Vote
	lastConfidence float64
}

// NewArbiter creates an arbiter over the given learners. Each learner starts
// at weight 1 unless overridden.
func NewArbiter(learners ...Learner) *Arbiter {
	w := make(map[string]float64, len(learners))
	for _, l := range learners {
		w[l.Name()] = 1
	}
	return &Arbiter{learners: learners, weights: w}
}

// SetWeight overrides a learner's vote weight; negative values clamp to 0.
func (a *Arbiter) SetWeight(name string, weight float64) {
	if weight < 0 || weight != weight {
		weight = 0
	}
	a.weights[name] = weight
}

// Weight returns a learner's current vote weight.
func (a *Arbiter) Weight(name string) float64 { return a.weights[name] }

// LastVotes returns the raw per-learner proposals of the most recent vote.
func (a *Arbiter) LastVotes() []Vote { return a.lastVotes }

// LastConfidence returns the winning weight share of the most recent vote.
func (a *Arbiter) LastConfidence() float64 { return a.lastConfidence }

// #endregion

// #region select

// SelectAction runs one weighted vote. Each enabled learner proposes an
// action; total weight per distinct proposed action is summed and the
// greatest total wins, ties resolving to the earliest-registered learner's
// proposal. A learner that errors sits the vote out.
func (a *Arbiter) SelectAction(state strategy.UserState, actions []strategy.Params, ctx bandit.Context) (strategy.Params, float64, error) {
	votes := make([]Vote, 0, len(a.learners))
	totals := make(map[string]float64)
	totalWeight := 0.0

	for _, l := range a.learners {
		w := a.weights[l.Name()]
		if w <= 0 {
			continue
		}
		action, score, err := l.SelectAction(state, actions, ctx)
		if err != nil {
			continue
		}
		key := action.Key()
		votes = append(votes, Vote{
			Learner:   l.Name(),
			ActionKey: key,
			Action:    action,
			Score:     score,
			Weight:    w,
		})
		totals[key] += w
		totalWeight += w
	}

	a.lastVotes = votes
	if len(votes) == 0 {
		a.lastConfidence = 0
		return strategy.Params{}, 0, ErrNoLearners
	}

	// Registration order doubles as vote order, so scanning the votes for the
	// first proposal carrying the maximum total implements the tie-break.
	winner := votes[0]
	bestTotal := totals[winner.ActionKey]
	for _, v := range votes[1:] {
		if totals[v.ActionKey] > bestTotal {
			bestTotal = totals[v.ActionKey]
			winner = v
		}
	}

	a.lastConfidence = bestTotal / totalWeight
	return winner.Action, a.lastConfidence, nil
}

// #endregion

// #region update

// Update fans the realized outcome out to every enabled learner, independent
// of whose proposal won the vote.
func (a *Arbiter) Update(state strategy.UserState, action strategy.Params, reward float64, ctx bandit.Context) {
	for _, l := range a.learners {
		if a.weights[l.Name()] <= 0 {
			continue
		}
		l.Update(state, action, reward, ctx)
	}
}

// #endregion

// #region persistence

// State is the persisted arbiter state: the weight map plus the union of each
// learner's serialized state keyed by learner name.
type State struct {
	Weights  map[string]float64         `json:"weights"`
	Learners map[string]json.RawMessage `json:"learners"`
}

// Snapshot captures the weights and every learner's state.
func (a *Arbiter) Snapshot() (State, error) {
	st := State{
		Weights:  make(map[string]float64, len(a.weights)),
		Learners: make(map[string]json.RawMessage, len(a.learners)),
	}
	for name, w := range a.weights {
		st.Weights[name] = w
	}
	for _, l := range a.learners {
		raw, err := l.Snapshot()
		if err != nil {
			return State{}, fmt.Errorf("snapshot learner %s: %w", l.Name(), err)
		}
		st.Learners[l.Name()] = raw
	}
	return st, nil
}

// Restore replaces weights and learner states from a persisted snapshot.
// Learners absent from the snapshot keep their current state; snapshot
// entries with no registered learner are ignored.
func (a *Arbiter) Restore(st State) error {
	for name, w := range st.Weights {
		a.SetWeight(name, w)
	}
	for _, l := range a.learners {
		raw, ok := st.Learners[l.Name()]
		if !ok {
			continue
		}
		if err := l.Restore(raw); err != nil {
			return fmt.Errorf("restore learner %s: %w", l.Name(), err)
		}
	}
	return nil
}

// #endregion
