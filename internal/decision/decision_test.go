package decision

import (
	"testing"

	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/strategy"
)

func TestMapActionToStrategy_BoundsDifficultyStep(t *testing.T) {
	d := New()
	current := strategy.ForUserType(strategy.UserCautious) // easy
	action := strategy.ForUserType(strategy.UserFast)      // hard

	got := d.MapActionToStrategy(action, current)
	if got.Difficulty != strategy.DifficultyMid {
		t.Errorf("difficulty = %s, want single step easy->mid", got.Difficulty)
	}
	// Non-difficulty fields adopt the action directly.
	if got.BatchSize != action.BatchSize || got.NewRatio != action.NewRatio {
		t.Errorf("non-difficulty fields not adopted: %+v", got)
	}
}

func TestMapActionToStrategy_SameDifficultyPassesThrough(t *testing.T) {
	d := New()
	action := strategy.DefaultParams()
	got := d.MapActionToStrategy(action, strategy.DefaultParams())
	if !got.Equal(action) {
		t.Errorf("got %+v, want unchanged %+v", got, action)
	}
}

func TestMapActionToStrategy_StepsDown(t *testing.T) {
	d := New()
	current := strategy.ForUserType(strategy.UserFast) // hard
	action := strategy.ForUserType(strategy.UserCautious)

	got := d.MapActionToStrategy(action, current)
	if got.Difficulty != strategy.DifficultyMid {
		t.Errorf("difficulty = %s, want single step hard->mid", got.Difficulty)
	}
}

func TestApplyGuardrails_FatigueCapsLoad(t *testing.T) {
	d := New()
	state := strategy.NewUserState()
	state.Fatigue = 0.9

	params := strategy.Params{
		IntervalScale: 1.2,
		NewRatio:      0.4,
		Difficulty:    strategy.DifficultyHard,
		BatchSize:     16,
		HintLevel:     0,
	}
	got := d.ApplyGuardrails(state, params)
	if got.Difficulty == strategy.DifficultyHard {
		t.Error("exhausted user must not get hard difficulty")
	}
	if got.BatchSize > 8 {
		t.Errorf("batch = %d, want <= 8", got.BatchSize)
	}
	if got.NewRatio > 0.2 {
		t.Errorf("new ratio = %v, want <= 0.2", got.NewRatio)
	}
}

func TestApplyGuardrails_LowMotivationForcesSupport(t *testing.T) {
	d := New()
	state := strategy.NewUserState()
	state.Motivation = -0.8

	got := d.ApplyGuardrails(state, strategy.ForUserType(strategy.UserFast))
	if got.Difficulty == strategy.DifficultyHard {
		t.Error("demotivated user must not get hard difficulty")
	}
	if got.HintLevel < 1 {
		t.Errorf("hint level = %d, want >= 1", got.HintLevel)
	}
}

func TestApplyGuardrails_LowAttentionForcesHints(t *testing.T) {
	d := New()
	state := strategy.NewUserState()
	state.Attention = 0.1

	params := strategy.Params{
		IntervalScale: 1.0,
		NewRatio:      0.2,
		Difficulty:    strategy.DifficultyMid,
		BatchSize:     16,
		HintLevel:     0,
	}
	got := d.ApplyGuardrails(state, params)
	if got.HintLevel < 1 {
		t.Errorf("hint level = %d, want >= 1", got.HintLevel)
	}
	if got.BatchSize > 8 {
		t.Errorf("batch = %d, want <= 8", got.BatchSize)
	}
}

func TestApplyGuardrails_HealthyStateUntouched(t *testing.T) {
	d := New()
	state := strategy.NewUserState() // alert, rested, neutral
	params := strategy.ForUserType(strategy.UserFast)
	got := d.ApplyGuardrails(state, params)
	if !got.Equal(params) {
		t.Errorf("healthy state changed the strategy: %+v -> %+v", params, got)
	}
}

func TestApplyGuardrails_OutputStaysOnGrid(t *testing.T) {
	d := New()
	state := strategy.NewUserState()
	state.Fatigue = 0.9

	off := strategy.Params{
		IntervalScale: 1.33,
		NewRatio:      0.27,
		Difficulty:    "extreme",
		BatchSize:     17,
		HintLevel:     9,
	}
	got := d.ApplyGuardrails(state, off)
	if !got.Equal(strategy.SnapParams(got)) {
		t.Errorf("guardrail output off-grid: %+v", got)
	}
}
