// Package persist owns durable storage for user states, learner models and
// decision traces. The engine depends only on the narrow repository
// interfaces here, never on a storage technology.
package persist

import (
	"context"
	"time"

	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/coldstart"
	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/ensemble"
	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/modeling"
	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/strategy"
)

// #region contracts

// StateRepository loads and saves per-user affective state.
type StateRepository interface {
	// LoadState returns the stored state; found is false for unknown users.
	LoadState(ctx context.Context, userID string) (state strategy.UserState, found bool, err error)
	// SaveState upserts the state.
	SaveState(ctx context.Context, userID string, state strategy.UserState) error
}

// ModelRepository loads and saves the per-user learner model record.
type ModelRepository interface {
	// LoadModel returns the stored record; found is false for unknown users.
	LoadModel(ctx context.Context, userID string) (rec ModelRecord, found bool, err error)
	// SaveModel upserts the record.
	SaveModel(ctx context.Context, userID string, rec ModelRecord) error
}

// TraceStore receives decision traces. Implementations must be cheap; the
// engine calls this off the hot path and ignores failures.
type TraceStore interface {
	RecordDecisionTrace(ctx context.Context, trace DecisionTrace) error
}

// #endregion

// #region records

// ModelRecord is the full persisted learner stack for one user: the ensemble
// union state, the cold-start machine and the rolling accuracy window. All
// fields are plain numeric primitives and arrays.
type ModelRecord struct {
	Ensemble         ensemble.State           `json:"ensemble"`
	ColdStart        coldstart.State          `json:"cold_start"`
	Window           *modeling.AccuracyWindow `json:"window,omitempty"`
	LastAction       *strategy.Params         `json:"last_action,omitempty"`
	InteractionCount int64                    `json:"interaction_count"`
}

// StageTiming is the recorded start/end of one pipeline stage.
type StageTiming struct {
	Stage   string `json:"stage"`
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
}

// DecisionTrace is the audit record of one processed event.
type DecisionTrace struct {
	TraceID    string             `json:"trace_id"`
	UserID     string             `json:"user_id"`
	EventID    string             `json:"event_id"`
	Action     strategy.Params    `json:"action"`
	Confidence float64            `json:"confidence"`
	Reward     float64            `json:"reward"`
	Degraded   bool               `json:"degraded"`
	Reason     string             `json:"reason,omitempty"`
	Phase      string             `json:"phase,omitempty"`
	Votes      []ensemble.Vote    `json:"votes,omitempty"`
	Weights    map[string]float64 `json:"weights,omitempty"`
	Stages     []StageTiming      `json:"stages,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

// #endregion
