package strategy

// #region difficulty

// Difficulty is the coarse difficulty level of a study action.
type Difficulty string

const (
	DifficultyEasy Difficulty = "easy"
	DifficultyMid  Difficulty = "mid"
	DifficultyHard Difficulty = "hard"
)

// Value maps a difficulty level onto the [0,1] scale used in feature vectors.
func (d Difficulty) Value() float64 {
	switch d {
	case DifficultyEasy:
		return 0.3
	case DifficultyHard:
		return 0.9
	default:
		return 0.6
	}
}

// Harder returns the next difficulty step up, saturating at hard.
func (d Difficulty) Harder() Difficulty {
	switch d {
	case DifficultyEasy:
		return DifficultyMid
	default:
		return DifficultyHard
	}
}

// Easier returns the next difficulty step down, saturating at easy.
func (d Difficulty) Easier() Difficulty {
	switch d {
	case DifficultyHard:
		return DifficultyMid
	default:
		return DifficultyEasy
	}
}

// ParseDifficulty maps a stored string to a Difficulty, defaulting to mid.
func ParseDifficulty(s string) Difficulty {
	switch s {
	case string(DifficultyEasy):
		return DifficultyEasy
	case string(DifficultyHard):
		return DifficultyHard
	default:
		return DifficultyMid
	}
}

// #endregion

// #region user-type

// UserType is the coarse learner classification produced by cold start.
type UserType string

const (
	UserFast     UserType = "fast"
	UserStable   UserType = "stable"
	UserCautious UserType = "cautious"
)

// #endregion

// #region trend

// Trend summarizes the direction of a learner's recent performance.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

// #endregion

// #region cold-start-phase

// ColdStartPhase is the bootstrap phase of a new user.
// Transitions only move forward: classify -> explore -> normal.
type ColdStartPhase string

const (
	PhaseClassify ColdStartPhase = "classify"
	PhaseExplore  ColdStartPhase = "explore"
	PhaseNormal   ColdStartPhase = "normal"
)

// #endregion

// #region cognitive-profile

// CognitiveProfile holds the three cognitive capacity scalars, each in [0,1].
type CognitiveProfile struct {
	Mem       float64 `json:"mem"`
	Speed     float64 `json:"speed"`
	Stability float64 `json:"stability"`
}

// DefaultCognitiveProfile returns the neutral starting profile.
func DefaultCognitiveProfile() CognitiveProfile {
	return CognitiveProfile{Mem: 0.5, Speed: 0.5, Stability: 0.5}
}

// #endregion

// #region user-state

// UserState is the per-user affective/cognitive state consumed by the learners.
// Every field is clamped on write; see Clamp.
type UserState struct {
	Attention  float64          `json:"attention"`  // [0,1]
	Fatigue    float64          `json:"fatigue"`    // [0,1]
	Motivation float64          `json:"motivation"` // [-1,1]
	Cognitive  CognitiveProfile `json:"cognitive"`  // each [0,1]
	Conf       float64          `json:"conf"`       // [0,1]
	Trend      Trend            `json:"trend"`
	TS         int64            `json:"ts"` // event time, unix millis
}

// NewUserState returns the default state created on a user's first event.
func NewUserState() UserState {
	return UserState{
		Attention:  0.7,
		Fatigue:    0.1,
		Motivation: 0.0,
		Cognitive:  DefaultCognitiveProfile(),
		Conf:       0.5,
		Trend:      TrendStable,
	}
}

// Clamp forces every field into its documented range and zeroes non-finite values.
func (s *UserState) Clamp() {
	s.Attention = clamp01(s.Attention)
	s.Fatigue = clamp01(s.Fatigue)
	s.Motivation = clampRange(s.Motivation, -1, 1)
	s.Cognitive.Mem = clamp01(s.Cognitive.Mem)
	s.Cognitive.Speed = clamp01(s.Cognitive.Speed)
	s.Cognitive.Stability = clamp01(s.Cognitive.Stability)
	s.Conf = clamp01(s.Conf)
	if s.Trend == "" {
		s.Trend = TrendStable
	}
}

// #endregion

// #region raw-event

// RawEvent is one learner interaction as delivered by the event ingestion layer.
type RawEvent struct {
	EventID        string `json:"event_id"`
	IsCorrect      bool   `json:"is_correct"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	PauseCount     int    `json:"pause_count"`
	SwitchCount    int    `json:"switch_count"`
	FocusLossMs    int64  `json:"focus_loss_ms"`
	DwellTimeMs    int64  `json:"dwell_time_ms"`
	HintUsed       bool   `json:"hint_used"`
	SessionPos     int    `json:"session_pos"` // 0-based position within the session
	Timestamp      int64  `json:"timestamp"`   // unix millis
}

// #endregion

// #region feature-vector

// FeatureVector is a normalized context vector built by the perception layer.
type FeatureVector struct {
	Values []float64 `json:"values"`
	Labels []string  `json:"labels,omitempty"`
}

// Dim returns the vector dimension.
func (f FeatureVector) Dim() int { return len(f.Values) }

// #endregion

// #region reward

// Reward is the scalar learning signal plus the profile that produced it.
type Reward struct {
	Value   float64 `json:"value"`
	Profile string  `json:"profile"`
}

// #endregion

// #region clamp-helpers

func clamp01(v float64) float64 { return clampRange(v, 0, 1) }

func clampRange(v, lo, hi float64) float64 {
	if v != v { // NaN collapses to zero before clamping
		v = 0
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// #endregion
