// Package numeric provides the dense linear-algebra primitives backing the
// contextual bandit. Matrices are flat row-major []float64 slices; every
// routine is allocation-honest and guards against non-finite input so that
// nothing downstream ever consumes NaN or Inf.
package numeric

import "math"

// #region constants

const (
	// Epsilon is the pivot floor for Cholesky recursion and triangular solves.
	Epsilon = 1e-9
	// MinLambda is the smallest accepted ridge regularization.
	MinLambda = 1e-3
	// MaxCovariance caps the magnitude of covariance entries.
	MaxCovariance = 1e9
	// MaxFeatureAbs caps the magnitude of feature-vector entries.
	MaxFeatureAbs = 50.0
)

// #endregion

// #region cholesky

// CholeskyDecompose factors a symmetric positive-definite matrix a (d x d,
// row-major) into the lower-triangular l with l * l^T ~ a. The input is
// copied, symmetrized (non-finite averages discarded to 0) and its diagonal
// floored to at least lambda before the standard recursion runs with an
// Epsilon pivot floor and guarded divisors.
//
// ok is false when the result still contains a non-finite entry; callers must
// then fall back to RegularizedIdentity.
func CholeskyDecompose(a []float64, d int, lambda float64) (l []float64, ok bool) {
	if d <= 0 || len(a) != d*d {
		return nil, false
	}
	safeLambda := math.Max(lambda, MinLambda)

	work := make([]float64, d*d)
	copy(work, a)
	for i := 0; i < d; i++ {
		for j := i + 1; j < d; j++ {
			avg := (work[i*d+j] + work[j*d+i]) / 2
			if !isFinite(avg) {
				avg = 0
			}
			work[i*d+j] = avg
			work[j*d+i] = avg
		}
		if !isFinite(work[i*d+i]) || work[i*d+i] < safeLambda {
			work[i*d+i] = safeLambda
		}
	}

	l = make([]float64, d*d)
	for i := 0; i < d; i++ {
		for j := 0; j <= i; j++ {
			sum := work[i*d+j]
			for k := 0; k < j; k++ {
				sum -= l[i*d+k] * l[j*d+k]
			}
			if i == j {
				if sum < Epsilon {
					sum = Epsilon
				}
				l[i*d+i] = math.Sqrt(sum)
			} else {
				diag := l[j*d+j]
				if math.Abs(diag) > Epsilon {
					l[i*d+j] = sum / diag
				}
			}
		}
	}

	if HasInvalidValues(l) {
		return nil, false
	}
	return l, true
}

// RegularizedIdentity returns lambda * I as a flat d x d matrix.
func RegularizedIdentity(d int, lambda float64) []float64 {
	safeLambda := math.Max(lambda, MinLambda)
	m := make([]float64, d*d)
	for i := 0; i < d; i++ {
		m[i*d+i] = safeLambda
	}
	return m
}

// #endregion

// #region solves

// SolveCholesky solves a * x = b where a = l * l^T, via one forward and one
// backward triangular substitution. Never forms an explicit inverse.
func SolveCholesky(l, b []float64, d int) []float64 {
	y := SolveTriangularLower(l, b, d)
	return solveTriangularUpperTranspose(l, y, d)
}

// SolveTriangularLower solves the lower-triangular system l * x = b by
// forward substitution with a guarded divisor.
func SolveTriangularLower(l, b []float64, d int) []float64 {
	x := make([]float64, d)
	for i := 0; i < d; i++ {
		sum := b[i]
		for j := 0; j < i; j++ {
			sum -= l[i*d+j] * x[j]
		}
		diag := l[i*d+i]
		if math.Abs(diag) > Epsilon {
			x[i] = sum / diag
		}
	}
	return x
}

func solveTriangularUpperTranspose(l, b []float64, d int) []float64 {
	x := make([]float64, d)
	for i := d - 1; i >= 0; i-- {
		sum := b[i]
		for j := i + 1; j < d; j++ {
			sum -= l[j*d+i] * x[j]
		}
		diag := l[i*d+i]
		if math.Abs(diag) > Epsilon {
			x[i] = sum / diag
		}
	}
	return x
}

// QuadraticForm computes x^T * a^{-1} * x for a = l * l^T as the squared norm
// of the forward-substitution solution, the UCB uncertainty term.
func QuadraticForm(l, x []float64, d int) float64 {
	z := SolveTriangularLower(l, x, d)
	sum := 0.0
	for _, v := range z {
		sum += v * v
	}
	return sum
}

// #endregion

// #region vector-ops

// Rank1UpdateMatrix accumulates a += x * x^T.
func Rank1UpdateMatrix(a, x []float64, d int) {
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			a[i*d+j] += x[i] * x[j]
		}
	}
}

// VecAddScaled accumulates a += scale * b.
func VecAddScaled(a, b []float64, scale float64) {
	for i := range a {
		a[i] += scale * b[i]
	}
}

// MatVecMul multiplies a (d x d) by x.
func MatVecMul(a, x []float64, d int) []float64 {
	out := make([]float64, d)
	for i := 0; i < d; i++ {
		sum := 0.0
		for j := 0; j < d; j++ {
			sum += a[i*d+j] * x[j]
		}
		out[i] = sum
	}
	return out
}

// Dot returns the inner product of a and b.
func Dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// #endregion
