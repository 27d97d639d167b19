// Package decision maps a selected action onto the user's session strategy
// and applies the safety guardrails that learning output must never violate.
package decision

import (
	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/strategy"
)

// #region mapper

// Mapper turns a learner's selected action into the applied strategy.
type Mapper interface {
	// MapActionToStrategy merges the selected action with the current
	// strategy, bounding how far a single event may move it.
	MapActionToStrategy(action, current strategy.Params) strategy.Params
	// ApplyGuardrails enforces state-driven safety limits on a strategy.
	ApplyGuardrails(state strategy.UserState, params strategy.Params) strategy.Params
}

// Default is the rule-based mapper.
type Default struct{}

// New creates the default mapper.
func New() *Default { return &Default{} }

// #endregion

// #region map

// MapActionToStrategy adopts the action's values but moves difficulty at most
// one step per event relative to the current strategy, so a single aggressive
// selection cannot whipsaw the session.
func (d *Default) MapActionToStrategy(action, current strategy.Params) strategy.Params {
	out := action
	out.Difficulty = stepToward(current.Difficulty, action.Difficulty)
	return strategy.SnapParams(out)
}

func stepToward(from, to strategy.Difficulty) strategy.Difficulty {
	if from == to {
		return to
	}
	if to.Value() > from.Value() {
		return from.Harder()
	}
	return from.Easier()
}

// #endregion

// #region guardrails

// ApplyGuardrails caps the strategy against the user's current state:
// exhausted or demotivated users never get maximum difficulty or load, and
// inattentive users always get hint support. Output stays on the option grid.
func (d *Default) ApplyGuardrails(state strategy.UserState, params strategy.Params) strategy.Params {
	out := params

	if state.Fatigue > 0.7 {
		if out.Difficulty == strategy.DifficultyHard {
			out.Difficulty = strategy.DifficultyMid
		}
		if out.BatchSize > 8 {
			out.BatchSize = 8
		}
		if out.NewRatio > 0.2 {
			out.NewRatio = 0.2
		}
	}

	if state.Motivation < -0.5 {
		if out.Difficulty == strategy.DifficultyHard {
			out.Difficulty = strategy.DifficultyMid
		}
		if out.HintLevel < 1 {
			out.HintLevel = 1
		}
	}

	if state.Attention < 0.3 {
		if out.HintLevel < 1 {
			out.HintLevel = 1
		}
		if out.BatchSize > 8 {
			out.BatchSize = 8
		}
	}

	return strategy.SnapParams(out)
}

// #endregion
