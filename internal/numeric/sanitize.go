package numeric

import "math"

// #region scalar-checks

// HasInvalidValues reports whether any entry is NaN or infinite.
func HasInvalidValues(arr []float64) bool {
	for _, v := range arr {
		if !isFinite(v) {
			return true
		}
	}
	return false
}

// SanitizeScalar replaces a non-finite value with 0.
func SanitizeScalar(v float64) float64 {
	if !isFinite(v) {
		return 0
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// #endregion

// #region vector

// SanitizeVector zeroes non-finite entries in place and clamps the rest to
// +-MaxFeatureAbs.
func SanitizeVector(x []float64) {
	for i, v := range x {
		switch {
		case !isFinite(v):
			x[i] = 0
		case v > MaxFeatureAbs:
			x[i] = MaxFeatureAbs
		case v < -MaxFeatureAbs:
			x[i] = -MaxFeatureAbs
		}
	}
}

// #endregion

// #region covariance

// SanitizeCovariance repairs a covariance matrix in place: non-finite entries
// become lambda on the diagonal and 0 elsewhere, magnitudes are capped at
// MaxCovariance, the diagonal is floored to lambda, and the result is
// symmetrized.
func SanitizeCovariance(a []float64, d int, lambda float64) {
	safeLambda := math.Max(lambda, MinLambda)
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			idx := i*d + j
			v := a[idx]
			if !isFinite(v) {
				if i == j {
					a[idx] = safeLambda
				} else {
					a[idx] = 0
				}
				continue
			}
			if math.Abs(v) > MaxCovariance {
				a[idx] = math.Copysign(MaxCovariance, v)
			}
		}
		if a[i*d+i] < safeLambda {
			a[i*d+i] = safeLambda
		}
	}
	for i := 0; i < d; i++ {
		for j := i + 1; j < d; j++ {
			avg := (a[i*d+j] + a[j*d+i]) / 2
			a[i*d+j] = avg
			a[j*d+i] = avg
		}
	}
}

// #endregion
