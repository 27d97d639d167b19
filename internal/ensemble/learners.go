package ensemble

import (
	"encoding/json"

	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/bandit"
	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/strategy"
)

// #region bandit-learner

// BanditLearner adapts a LinUCB model to the Learner capability.
type BanditLearner struct {
	model *bandit.Model
}

// NewBanditLearner wraps an existing model; a nil model gets defaults.
func NewBanditLearner(model *bandit.Model) *BanditLearner {
	if model == nil {
		model = bandit.New(bandit.FeatureDim, 0, 0)
	}
	return &BanditLearner{model: model}
}

// Model exposes the wrapped model for alpha tuning by the engine.
func (b *BanditLearner) Model() *bandit.Model { return b.model }

func (b *BanditLearner) Name() string { return "linucb" }

func (b *BanditLearner) SelectAction(state strategy.UserState, actions []strategy.Params, ctx bandit.Context) (strategy.Params, float64, error) {
	sel, err := b.model.SelectAction(state, actions, ctx)
	if err != nil {
		return strategy.Params{}, 0, err
	}
	return sel.Action, sel.Score, nil
}

func (b *BanditLearner) Update(state strategy.UserState, action strategy.Params, reward float64, ctx bandit.Context) {
	b.model.Update(state, action, reward, ctx)
}

func (b *BanditLearner) Snapshot() (json.RawMessage, error) {
	return json.Marshal(b.model.Snapshot())
}

func (b *BanditLearner) Restore(raw json.RawMessage) error {
	var snap bandit.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return err
	}
	b.model = bandit.Restore(snap)
	return nil
}

// #endregion

// #region heuristic-learner

// HeuristicLearner proposes actions from fixed state-driven rules. It holds
// no trainable parameters; Update only tracks a rolling accuracy so the rules
// can react to recent performance.
type HeuristicLearner struct {
	recentAccuracy float64
	seen           int64
}

// NewHeuristicLearner creates the rule-based learner.
func NewHeuristicLearner() *HeuristicLearner {
	return &HeuristicLearner{recentAccuracy: 0.5}
}

func (h *HeuristicLearner) Name() string { return "heuristic" }

// SelectAction scores every candidate against the current state: fatigue
// pushes toward easier, smaller batches; strong recent accuracy pushes toward
// harder, fresher material; low motivation favors hints.
func (h *HeuristicLearner) SelectAction(state strategy.UserState, actions []strategy.Params, ctx bandit.Context) (strategy.Params, float64, error) {
	if len(actions) == 0 {
		return strategy.Params{}, 0, bandit.ErrEmptyActionSpace
	}
	accuracy := ctx.RecentAccuracy
	if accuracy != accuracy {
		accuracy = h.recentAccuracy
	}

	target := strategy.DifficultyMid
	if state.Fatigue > 0.6 || accuracy < 0.4 {
		target = strategy.DifficultyEasy
	} else if accuracy > 0.8 && state.Attention > 0.6 {
		target = strategy.DifficultyHard
	}

	best := 0
	bestScore := -1.0
	for i, a := range actions {
		score := 0.0
		if a.Difficulty == target {
			score += 1
		}
		if state.Fatigue > 0.6 && a.BatchSize <= 8 {
			score += 0.3
		}
		if accuracy > 0.8 && a.NewRatio >= 0.3 {
			score += 0.3
		}
		if state.Motivation < -0.3 && a.HintLevel >= 1 {
			score += 0.2
		}
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	return actions[best], bestScore, nil
}

func (h *HeuristicLearner) Update(_ strategy.UserState, _ strategy.Params, reward float64, _ bandit.Context) {
	// Exponential moving accuracy, enough memory to steer the rules.
	h.recentAccuracy = 0.9*h.recentAccuracy + 0.1*clamp01(reward)
	h.seen++
}

type heuristicState struct {
	RecentAccuracy float64 `json:"recent_accuracy"`
	Seen           int64   `json:"seen"`
}

func (h *HeuristicLearner) Snapshot() (json.RawMessage, error) {
	return json.Marshal(heuristicState{RecentAccuracy: h.recentAccuracy, Seen: h.seen})
}

func (h *HeuristicLearner) Restore(raw json.RawMessage) error {
	var st heuristicState
	if err := json.Unmarshal(raw, &st); err != nil {
		return err
	}
	h.recentAccuracy = clamp01(st.RecentAccuracy)
	h.seen = st.Seen
	return nil
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
