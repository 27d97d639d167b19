package modeling

import (
	"testing"

	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/strategy"
)

func focusedCorrect() strategy.RawEvent {
	return strategy.RawEvent{
		IsCorrect:      true,
		ResponseTimeMs: 2000,
		DwellTimeMs:    3000,
		SessionPos:     2,
		Timestamp:      1700000000000,
	}
}

func TestApply_ClampsEveryField(t *testing.T) {
	m := New(DefaultConfig())
	state := strategy.NewUserState()
	ev := strategy.RawEvent{
		IsCorrect:      false,
		ResponseTimeMs: 500000,
		PauseCount:     100,
		SwitchCount:    100,
		FocusLossMs:    10000000,
		SessionPos:     1000,
	}
	for i := 0; i < 50; i++ {
		state = m.Apply(state, ev)
	}
	if state.Attention < 0 || state.Attention > 1 {
		t.Errorf("attention = %v outside [0,1]", state.Attention)
	}
	if state.Fatigue < 0 || state.Fatigue > 1 {
		t.Errorf("fatigue = %v outside [0,1]", state.Fatigue)
	}
	if state.Motivation < -1 || state.Motivation > 1 {
		t.Errorf("motivation = %v outside [-1,1]", state.Motivation)
	}
	if state.Conf < 0 || state.Conf > 1 {
		t.Errorf("conf = %v outside [0,1]", state.Conf)
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	m := New(DefaultConfig())
	state := strategy.NewUserState()
	before := state
	m.Apply(state, focusedCorrect())
	if state != before {
		t.Error("Apply must not mutate its input")
	}
}

func TestApply_TimestampNeverRegresses(t *testing.T) {
	m := New(DefaultConfig())
	state := strategy.NewUserState()
	state.TS = 1700000005000

	stale := focusedCorrect()
	stale.Timestamp = 1600000000000
	next := m.Apply(state, stale)
	if next.TS != 1700000005000 {
		t.Errorf("ts regressed to %d", next.TS)
	}
}

func TestAttention_DropsWithDistraction(t *testing.T) {
	m := New(DefaultConfig())
	state := strategy.NewUserState()

	distracted := focusedCorrect()
	distracted.FocusLossMs = 60000
	distracted.SwitchCount = 5
	distracted.PauseCount = 5

	next := m.Apply(state, distracted)
	if next.Attention >= state.Attention {
		t.Errorf("attention %v -> %v, want a drop", state.Attention, next.Attention)
	}
}

func TestAttention_RecoversWhenFocused(t *testing.T) {
	m := New(DefaultConfig())
	state := strategy.NewUserState()
	state.Attention = 0.3

	next := m.Apply(state, focusedCorrect())
	if next.Attention <= 0.3 {
		t.Errorf("attention = %v, want recovery above 0.3", next.Attention)
	}
}

func TestFatigue_GrowsThroughSession(t *testing.T) {
	m := New(DefaultConfig())
	state := strategy.NewUserState()

	ev := focusedCorrect()
	prev := state.Fatigue
	for pos := 10; pos <= 40; pos += 10 {
		ev.SessionPos = pos
		ev.ResponseTimeMs = int64(2000 + pos*200)
		state = m.Apply(state, ev)
	}
	if state.Fatigue <= prev {
		t.Errorf("fatigue = %v, want growth over a long session", state.Fatigue)
	}
}

func TestMotivation_TracksOutcomes(t *testing.T) {
	m := New(DefaultConfig())
	up := strategy.NewUserState()
	for i := 0; i < 20; i++ {
		up = m.Apply(up, focusedCorrect())
	}
	if up.Motivation <= 0.3 {
		t.Errorf("motivation = %v after a win streak, want > 0.3", up.Motivation)
	}

	down := strategy.NewUserState()
	miss := focusedCorrect()
	miss.IsCorrect = false
	for i := 0; i < 20; i++ {
		down = m.Apply(down, miss)
	}
	if down.Motivation >= 0 {
		t.Errorf("motivation = %v after a losing streak, want < 0", down.Motivation)
	}
}

func TestCognitive_MemoryFollowsCorrectness(t *testing.T) {
	m := New(DefaultConfig())
	state := strategy.NewUserState()
	for i := 0; i < 30; i++ {
		state = m.Apply(state, focusedCorrect())
	}
	if state.Cognitive.Mem <= 0.5 {
		t.Errorf("mem = %v, want growth from consistent correctness", state.Cognitive.Mem)
	}
	if state.Cognitive.Speed <= 0.5 {
		t.Errorf("speed = %v, want growth from fast answers", state.Cognitive.Speed)
	}
}

func TestAccuracyWindow_RollingAccuracy(t *testing.T) {
	w := NewAccuracyWindow(4)
	if w.Accuracy() != 0.5 {
		t.Errorf("empty window accuracy = %v, want 0.5", w.Accuracy())
	}
	w.Push(true)
	w.Push(true)
	w.Push(false)
	w.Push(false)
	if w.Accuracy() != 0.5 {
		t.Errorf("accuracy = %v, want 0.5", w.Accuracy())
	}
	w.Push(true) // evicts the oldest true
	if w.Accuracy() != 0.5 {
		t.Errorf("accuracy after roll = %v, want 0.5", w.Accuracy())
	}
	w.Push(true)
	w.Push(true)
	if w.Accuracy() != 0.75 {
		t.Errorf("accuracy = %v, want 0.75", w.Accuracy())
	}
}

func TestAccuracyWindow_Trend(t *testing.T) {
	improving := NewAccuracyWindow(10)
	for _, c := range []bool{false, false, false, false, false, true, true, true, true, true} {
		improving.Push(c)
	}
	if improving.Trend() != strategy.TrendImproving {
		t.Errorf("trend = %s, want improving", improving.Trend())
	}

	declining := NewAccuracyWindow(10)
	for _, c := range []bool{true, true, true, true, true, false, false, false, false, false} {
		declining.Push(c)
	}
	if declining.Trend() != strategy.TrendDeclining {
		t.Errorf("trend = %s, want declining", declining.Trend())
	}

	flat := NewAccuracyWindow(10)
	for _, c := range []bool{true, true, true, false, false, true, true, true, false, false} {
		flat.Push(c)
	}
	if flat.Trend() != strategy.TrendStable {
		t.Errorf("trend = %s, want stable", flat.Trend())
	}

	short := NewAccuracyWindow(10)
	short.Push(true)
	if short.Trend() != strategy.TrendStable {
		t.Errorf("short window trend = %s, want stable", short.Trend())
	}
}
