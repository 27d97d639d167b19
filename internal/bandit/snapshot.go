package bandit

import (
	"math"

	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/numeric"
)

// #region snapshot-type

// Snapshot is the persisted form of a Model: plain numeric arrays only, so
// any storage technology can hold it as a JSON-like document.
type Snapshot struct {
	A           []float64 `json:"a"`
	B           []float64 `json:"b"`
	L           []float64 `json:"l"`
	D           int       `json:"d"`
	Lambda      float64   `json:"lambda"`
	Alpha       float64   `json:"alpha"`
	UpdateCount int64     `json:"update_count"`
}

// #endregion

// #region snapshot

// Snapshot captures the full model state for persistence.
func (m *Model) Snapshot() Snapshot {
	return Snapshot{
		A:           append([]float64(nil), m.a...),
		B:           append([]float64(nil), m.b...),
		L:           append([]float64(nil), m.l...),
		D:           m.d,
		Lambda:      m.lambda,
		Alpha:       m.alpha,
		UpdateCount: m.updateCount,
	}
}

// #endregion

// #region restore

// Restore rebuilds a model from a snapshot, repairing whatever it can:
// dimension mismatches reinitialize A, b and the update count; non-finite
// entries are sanitized; a missing or mis-sized L is recomputed from A with
// a regularized-identity fallback. The repair path is idempotent: restoring
// a repaired snapshot reproduces the same model.
func Restore(snap Snapshot) *Model {
	d := snap.D
	if d <= 0 {
		d = FeatureDim
	}
	lambda := math.Max(snap.Lambda, numeric.MinLambda)
	alpha := snap.Alpha
	if alpha <= 0 {
		alpha = defaultAlpha
	}

	m := &Model{d: d, lambda: lambda, alpha: alpha}

	if len(snap.A) == d*d && len(snap.B) == d {
		m.a = append([]float64(nil), snap.A...)
		m.b = append([]float64(nil), snap.B...)
		m.updateCount = snap.UpdateCount
		numeric.SanitizeCovariance(m.a, d, lambda)
		for i, v := range m.b {
			m.b[i] = numeric.SanitizeScalar(v)
		}
	} else {
		// Data-integrity failure: discard and reinitialize rather than error.
		m.a = numeric.RegularizedIdentity(d, lambda)
		m.b = make([]float64, d)
		m.updateCount = 0
	}

	if len(snap.L) == d*d && !numeric.HasInvalidValues(snap.L) && len(snap.A) == d*d {
		m.l = append([]float64(nil), snap.L...)
	} else {
		l, ok := numeric.CholeskyDecompose(m.a, d, lambda)
		if !ok {
			l = make([]float64, d*d)
			sqrtLambda := math.Sqrt(lambda)
			for i := 0; i < d; i++ {
				l[i*d+i] = sqrtLambda
			}
		}
		m.l = l
	}
	return m
}

// #endregion
