package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/strategy"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture: a recorded
// event stream plus optional expectations about the decisions it produces.
type Fixture struct {
	Description   string             `json:"description"`
	RewardProfile string             `json:"reward_profile,omitempty"`
	Events        []FixtureEvent     `json:"events"`
	Expected      []ExpectedDecision `json:"expected,omitempty"`
}

// FixtureEvent is one recorded interaction attributed to a user.
type FixtureEvent struct {
	UserID string            `json:"user_id"`
	Event  strategy.RawEvent `json:"event"`
}

// ExpectedDecision captures the asserted outcome for one event. Empty fields
// are not checked; Degraded is only checked when present.
type ExpectedDecision struct {
	EventID    string `json:"event_id"`
	Phase      string `json:"phase,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	Degraded   *bool  `json:"degraded,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if len(f.Events) == 0 {
		return nil, fmt.Errorf("fixture %s contains no events", path)
	}
	return &f, nil
}

// #endregion fixture-loader
