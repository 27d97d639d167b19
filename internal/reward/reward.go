// Package reward turns one interaction outcome into the scalar learning
// signal. Weights come from named reward profiles served through a small
// TTL cache so profile tweaks roll out without redeploys.
package reward

import (
	"sync"
	"time"

	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/strategy"
)

// #region profile

// Profile weights the reward components. Values are dimensionless; the final
// reward is clamped to [0,1].
type Profile struct {
	Name               string  `json:"name"`
	CorrectWeight      float64 `json:"correct_weight"`
	SpeedWeight        float64 `json:"speed_weight"`
	HintPenalty        float64 `json:"hint_penalty"`
	FrustrationPenalty float64 `json:"frustration_penalty"`
	FastResponseMs     int64   `json:"fast_response_ms"`
}

// DefaultProfile is the balanced production profile.
func DefaultProfile() Profile {
	return Profile{
		Name:               "default",
		CorrectWeight:      0.7,
		SpeedWeight:        0.2,
		HintPenalty:        0.1,
		FrustrationPenalty: 0.1,
		FastResponseMs:     3000,
	}
}

// builtinProfiles are always resolvable without a loader.
func builtinProfiles() map[string]Profile {
	return map[string]Profile{
		"default": DefaultProfile(),
		"speed": {
			Name:               "speed",
			CorrectWeight:      0.5,
			SpeedWeight:        0.4,
			HintPenalty:        0.1,
			FrustrationPenalty: 0.1,
			FastResponseMs:     2000,
		},
		"retention": {
			Name:               "retention",
			CorrectWeight:      0.85,
			SpeedWeight:        0.05,
			HintPenalty:        0.15,
			FrustrationPenalty: 0.05,
			FastResponseMs:     5000,
		},
	}
}

// #endregion

// #region profile-store

// Loader fetches a profile by name from an external source.
type Loader func(name string) (Profile, bool)

// ProfileStore is a TTL cache over reward profiles. It is concurrently read
// and tolerant of redundant population: two goroutines loading the same name
// simply overwrite each other, last writer wins.
type ProfileStore struct {
	ttl    time.Duration
	loader Loader
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]profileEntry
}

type profileEntry struct {
	profile  Profile
	loadedAt time.Time
}

// NewProfileStore creates a store; loader may be nil, leaving only the
// builtin profiles. A non-positive ttl defaults to 5 minutes.
func NewProfileStore(ttl time.Duration, loader Loader) *ProfileStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ProfileStore{
		ttl:     ttl,
		loader:  loader,
		now:     time.Now,
		entries: make(map[string]profileEntry),
	}
}

// Get resolves a profile by name: fresh cache entry, then loader, then
// builtin, then the default profile.
func (s *ProfileStore) Get(name string) Profile {
	s.mu.RLock()
	e, ok := s.entries[name]
	s.mu.RUnlock()
	if ok && s.now().Sub(e.loadedAt) < s.ttl {
		return e.profile
	}

	if s.loader != nil {
		if p, ok := s.loader(name); ok {
			s.mu.Lock()
			s.entries[name] = profileEntry{profile: p, loadedAt: s.now()}
			s.mu.Unlock()
			return p
		}
	}
	if p, ok := builtinProfiles()[name]; ok {
		return p
	}
	return DefaultProfile()
}

// #endregion

// #region evaluator

// Evaluator computes the scalar reward for one event under a named profile.
type Evaluator struct {
	store *ProfileStore
}

// NewEvaluator creates an evaluator over the given store; nil gets a store
// with builtin profiles only.
func NewEvaluator(store *ProfileStore) *Evaluator {
	if store == nil {
		store = NewProfileStore(0, nil)
	}
	return &Evaluator{store: store}
}

// Evaluate scores the event: correctness carries the profile's main weight, a
// fast correct answer earns the speed bonus, hint reliance and visible
// frustration (pauses, switches) subtract. The result is clamped to [0,1].
func (e *Evaluator) Evaluate(profileName string, ev strategy.RawEvent, state strategy.UserState) strategy.Reward {
	p := e.store.Get(profileName)

	value := 0.0
	if ev.IsCorrect {
		value += p.CorrectWeight
		if ev.ResponseTimeMs > 0 && ev.ResponseTimeMs <= p.FastResponseMs {
			value += p.SpeedWeight
		}
		if ev.HintUsed {
			value -= p.HintPenalty
		}
	}

	frustration := float64(ev.PauseCount+ev.SwitchCount) / 10.0
	if frustration > 1 {
		frustration = 1
	}
	value -= p.FrustrationPenalty * frustration

	// A fatigued user who still answers correctly earned it the hard way.
	if ev.IsCorrect && state.Fatigue > 0.7 {
		value += 0.05
	}

	return strategy.Reward{Value: clamp01(value), Profile: p.Name}
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
