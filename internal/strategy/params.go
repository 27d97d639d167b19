package strategy

// #region option-grids

// The action space is a fixed grid: every Params value handed to a learner is
// drawn from these enumerations, and SnapParams projects arbitrary values back
// onto them.
var (
	IntervalScaleOptions = []float64{0.5, 0.8, 1.0, 1.2, 1.5}
	NewRatioOptions      = []float64{0.1, 0.2, 0.3, 0.4}
	BatchSizeOptions     = []int{5, 8, 12, 16}
	HintLevelOptions     = []int{0, 1, 2}
	DifficultyOptions    = []Difficulty{DifficultyEasy, DifficultyMid, DifficultyHard}
)

// #endregion

// #region params

// Params is one study-session strategy: the action selected per event.
// Values are immutable once selected; adjustments produce a new Params.
type Params struct {
	IntervalScale float64    `json:"interval_scale"`
	NewRatio      float64    `json:"new_ratio"`
	Difficulty    Difficulty `json:"difficulty"`
	BatchSize     int        `json:"batch_size"`
	HintLevel     int        `json:"hint_level"`
}

// DefaultParams is the neutral strategy used before any learning has happened.
func DefaultParams() Params {
	return Params{
		IntervalScale: 1.0,
		NewRatio:      0.2,
		Difficulty:    DifficultyMid,
		BatchSize:     8,
		HintLevel:     1,
	}
}

// ForUserType returns the baseline strategy for a classified user type.
func ForUserType(t UserType) Params {
	switch t {
	case UserFast:
		return Params{IntervalScale: 1.2, NewRatio: 0.3, Difficulty: DifficultyHard, BatchSize: 12, HintLevel: 0}
	case UserCautious:
		return Params{IntervalScale: 0.8, NewRatio: 0.1, Difficulty: DifficultyEasy, BatchSize: 5, HintLevel: 2}
	default:
		return DefaultParams()
	}
}

// ActionFeatures maps the strategy onto the 5 scalar action features fed to
// the bandit: difficulty value, new ratio, batch/20, interval scale, hint/2.
func (p Params) ActionFeatures() [5]float64 {
	return [5]float64{
		p.Difficulty.Value(),
		p.NewRatio,
		float64(p.BatchSize) / 20.0,
		p.IntervalScale,
		float64(p.HintLevel) / 2.0,
	}
}

// Equal reports whether two strategies denote the same action.
func (p Params) Equal(o Params) bool {
	return p.Difficulty == o.Difficulty &&
		p.BatchSize == o.BatchSize &&
		p.HintLevel == o.HintLevel &&
		nearlyEqual(p.IntervalScale, o.IntervalScale) &&
		nearlyEqual(p.NewRatio, o.NewRatio)
}

// Key returns a stable identity string for vote aggregation and logging.
func (p Params) Key() string {
	// Snap first so float jitter cannot split votes for the same action.
	s := SnapParams(p)
	buf := make([]byte, 0, 24)
	buf = append(buf, byte('0'+indexOfFloat(IntervalScaleOptions, s.IntervalScale)))
	buf = append(buf, byte('0'+indexOfFloat(NewRatioOptions, s.NewRatio)))
	buf = append(buf, s.Difficulty[0])
	buf = append(buf, byte('0'+indexOfInt(BatchSizeOptions, s.BatchSize)))
	buf = append(buf, byte('0'+s.HintLevel))
	return string(buf)
}

// #endregion

// #region snapping

// SnapParams projects arbitrary parameter values onto the fixed option grids.
func SnapParams(p Params) Params {
	return Params{
		IntervalScale: snapFloat(IntervalScaleOptions, p.IntervalScale, 1.0),
		NewRatio:      snapFloat(NewRatioOptions, p.NewRatio, 0.2),
		Difficulty:    ParseDifficulty(string(p.Difficulty)),
		BatchSize:     snapInt(BatchSizeOptions, p.BatchSize, 8),
		HintLevel:     snapInt(HintLevelOptions, p.HintLevel, 1),
	}
}

func snapFloat(options []float64, v, fallback float64) float64 {
	if v != v {
		return fallback
	}
	best := options[0]
	for _, o := range options[1:] {
		if abs(o-v) < abs(best-v) {
			best = o
		}
	}
	return best
}

func snapInt(options []int, v, fallback int) int {
	best := options[0]
	for _, o := range options[1:] {
		if absInt(o-v) < absInt(best-v) {
			best = o
		}
	}
	return best
}

// #endregion

// #region action-space

// ActionSpace enumerates the candidate actions offered to the learners each
// event. The order is fixed; tie-breaks resolve to the earliest entry.
func ActionSpace() []Params {
	out := make([]Params, 0, len(DifficultyOptions)*len(NewRatioOptions))
	for _, d := range DifficultyOptions {
		for _, nr := range NewRatioOptions {
			out = append(out, Params{
				IntervalScale: 1.0,
				NewRatio:      nr,
				Difficulty:    d,
				BatchSize:     8,
				HintLevel:     defaultHintFor(d),
			})
		}
	}
	return out
}

func defaultHintFor(d Difficulty) int {
	if d == DifficultyEasy {
		return 2
	}
	if d == DifficultyHard {
		return 0
	}
	return 1
}

// #endregion

// #region helpers

func nearlyEqual(a, b float64) bool { return abs(a-b) < 1e-9 }

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func indexOfFloat(options []float64, v float64) int {
	for i, o := range options {
		if nearlyEqual(o, v) {
			return i
		}
	}
	return 0
}

func indexOfInt(options []int, v int) int {
	for i, o := range options {
		if o == v {
			return i
		}
	}
	return 0
}

// #endregion
