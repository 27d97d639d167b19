package strategy

import (
	"math"
	"testing"
)

func TestClamp_BoundsEveryField(t *testing.T) {
	tests := []struct {
		name string
		in   UserState
	}{
		{"above-range", UserState{Attention: 1.5, Fatigue: 2, Motivation: 3, Conf: 1.1,
			Cognitive: CognitiveProfile{Mem: 1.2, Speed: 9, Stability: 1.01}}},
		{"below-range", UserState{Attention: -0.5, Fatigue: -1, Motivation: -4, Conf: -0.1,
			Cognitive: CognitiveProfile{Mem: -1, Speed: -0.2, Stability: -3}}},
		{"non-finite", UserState{Attention: math.NaN(), Fatigue: math.Inf(1),
			Motivation: math.Inf(-1), Conf: math.NaN(),
			Cognitive: CognitiveProfile{Mem: math.NaN(), Speed: math.Inf(1), Stability: math.NaN()}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.in
			s.Clamp()
			if s.Attention < 0 || s.Attention > 1 {
				t.Errorf("attention out of range: %v", s.Attention)
			}
			if s.Fatigue < 0 || s.Fatigue > 1 {
				t.Errorf("fatigue out of range: %v", s.Fatigue)
			}
			if s.Motivation < -1 || s.Motivation > 1 {
				t.Errorf("motivation out of range: %v", s.Motivation)
			}
			if s.Conf < 0 || s.Conf > 1 {
				t.Errorf("conf out of range: %v", s.Conf)
			}
			for _, c := range []float64{s.Cognitive.Mem, s.Cognitive.Speed, s.Cognitive.Stability} {
				if c < 0 || c > 1 || math.IsNaN(c) {
					t.Errorf("cognitive out of range: %v", c)
				}
			}
		})
	}
}

func TestNewUserState_Defaults(t *testing.T) {
	s := NewUserState()
	if s.Attention != 0.7 || s.Fatigue != 0.1 || s.Motivation != 0 || s.Conf != 0.5 {
		t.Errorf("unexpected defaults: %+v", s)
	}
	if s.Trend != TrendStable {
		t.Errorf("expected stable trend, got %s", s.Trend)
	}
}

func TestSnapParams(t *testing.T) {
	tests := []struct {
		name string
		in   Params
		want Params
	}{
		{"exact", DefaultParams(), DefaultParams()},
		{"nearest",
			Params{IntervalScale: 1.1, NewRatio: 0.27, Difficulty: "weird", BatchSize: 10, HintLevel: 5},
			Params{IntervalScale: 1.2, NewRatio: 0.3, Difficulty: DifficultyMid, BatchSize: 8, HintLevel: 2}},
		{"nan-falls-back",
			Params{IntervalScale: math.NaN(), NewRatio: math.NaN(), Difficulty: DifficultyHard, BatchSize: 0, HintLevel: -1},
			Params{IntervalScale: 1.0, NewRatio: 0.2, Difficulty: DifficultyHard, BatchSize: 5, HintLevel: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SnapParams(tt.in)
			if !got.Equal(tt.want) {
				t.Errorf("SnapParams(%+v) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestForUserType(t *testing.T) {
	if ForUserType(UserFast).Difficulty != DifficultyHard {
		t.Error("fast users should start hard")
	}
	if ForUserType(UserCautious).HintLevel != 2 {
		t.Error("cautious users should get full hints")
	}
	if !ForUserType(UserStable).Equal(DefaultParams()) {
		t.Error("stable users should start at defaults")
	}
}

func TestActionSpace_FixedAndDeterministic(t *testing.T) {
	a := ActionSpace()
	b := ActionSpace()
	if len(a) != len(DifficultyOptions)*len(NewRatioOptions) {
		t.Fatalf("unexpected action space size %d", len(a))
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			t.Fatalf("enumeration order changed at %d", i)
		}
	}
	// First entry is the easy/low-ratio corner: tie-breaks land here.
	if a[0].Difficulty != DifficultyEasy || a[0].NewRatio != 0.1 {
		t.Errorf("unexpected first action %+v", a[0])
	}
}

func TestParamsKey_StableUnderJitter(t *testing.T) {
	p := DefaultParams()
	q := p
	q.NewRatio += 1e-12
	if p.Key() != q.Key() {
		t.Error("float jitter must not change the action key")
	}
	r := p
	r.Difficulty = DifficultyHard
	if p.Key() == r.Key() {
		t.Error("distinct actions must have distinct keys")
	}
}
