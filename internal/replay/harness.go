// Package replay re-runs recorded event streams through a sandboxed engine.
// Replays are deterministic for a given fixture: the sandbox starts from an
// empty in-memory store and the pipeline itself contains no randomness.
package replay

import (
	"context"
	"fmt"

	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/engine"
	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/persist"
	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/strategy"
)

// #region sandbox

// Sandbox is an engine over a throwaway in-memory store.
type Sandbox struct {
	Engine *engine.Engine
	Store  *persist.Store
}

// NewSandbox builds a replay sandbox. rewardProfile may be empty to use the
// engine default.
func NewSandbox(rewardProfile string) (*Sandbox, error) {
	store, err := persist.NewStore(":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sandbox store: %w", err)
	}
	cfg := engine.DefaultConfig()
	if rewardProfile != "" {
		cfg.RewardProfile = rewardProfile
	}
	return &Sandbox{
		Engine: engine.New(cfg, store, store, store, nil),
		Store:  store,
	}, nil
}

// Close releases the engine and the backing store.
func (s *Sandbox) Close() {
	s.Engine.Close()
	s.Store.Close()
}

// #endregion sandbox

// #region replay

// Result pairs one replayed event with the decision it produced.
type Result struct {
	UserID   string
	Decision engine.Decision
}

// Replay feeds the events through the engine in recorded order.
func Replay(ctx context.Context, eng *engine.Engine, events []FixtureEvent) []Result {
	results := make([]Result, 0, len(events))
	for _, fe := range events {
		d := eng.ProcessEvent(ctx, fe.UserID, fe.Event)
		results = append(results, Result{UserID: fe.UserID, Decision: d})
	}
	return results
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	TotalEvents int
	Users       int
	Degraded    int
	Phases      map[string]int
	Reasons     map[string]int
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []Result) Summary {
	s := Summary{
		TotalEvents: len(results),
		Phases:      make(map[string]int),
		Reasons:     make(map[string]int),
	}
	seen := make(map[string]struct{})
	for _, r := range results {
		seen[r.UserID] = struct{}{}
		if r.Decision.Phase != "" {
			s.Phases[string(r.Decision.Phase)]++
		}
		if r.Decision.Degraded {
			s.Degraded++
			s.Reasons[r.Decision.Reason]++
		}
	}
	s.Users = len(seen)
	return s
}

// #endregion replay

// #region compare

// Mismatch is one divergence between a replayed decision and an expectation.
type Mismatch struct {
	EventID string
	Field   string
	Want    string
	Got     string
}

// Compare checks replay results against fixture expectations, matching by
// event ID. Every expectation must find its event.
func Compare(results []Result, expected []ExpectedDecision) []Mismatch {
	byEvent := make(map[string]engine.Decision, len(results))
	for _, r := range results {
		byEvent[r.Decision.EventID] = r.Decision
	}

	var mismatches []Mismatch
	for _, exp := range expected {
		d, ok := byEvent[exp.EventID]
		if !ok {
			mismatches = append(mismatches, Mismatch{
				EventID: exp.EventID, Field: "event", Want: "present", Got: "missing",
			})
			continue
		}
		if exp.Phase != "" && exp.Phase != string(d.Phase) {
			mismatches = append(mismatches, Mismatch{
				EventID: exp.EventID, Field: "phase", Want: exp.Phase, Got: string(d.Phase),
			})
		}
		if exp.Difficulty != "" && strategy.ParseDifficulty(exp.Difficulty) != d.Action.Difficulty {
			mismatches = append(mismatches, Mismatch{
				EventID: exp.EventID, Field: "difficulty", Want: exp.Difficulty, Got: string(d.Action.Difficulty),
			})
		}
		if exp.Degraded != nil && *exp.Degraded != d.Degraded {
			mismatches = append(mismatches, Mismatch{
				EventID: exp.EventID, Field: "degraded",
				Want: fmt.Sprintf("%v", *exp.Degraded), Got: fmt.Sprintf("%v", d.Degraded),
			})
		}
	}
	return mismatches
}

// #endregion compare
