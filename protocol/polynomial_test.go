package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluatePolynomialMatchesDirectComputation(t *testing.T) {
	curve := newToyCurve()
	coeffs := []Scalar{scalarOf(5), scalarOf(3), scalarOf(2)} // f(x) = 5 + 3x + 2x^2

	got := EvaluatePolynomial(curve, coeffs, 4)
	// f(4) = 5 + 12 + 32 = 49
	assert.Equal(t, int64(49), got.V.Int64())
}

func TestEvaluatePolynomialAtZeroIsConstantTerm(t *testing.T) {
	curve := newToyCurve()
	coeffs := []Scalar{scalarOf(11), scalarOf(7)}
	got := EvaluatePolynomial(curve, coeffs, 0)
	assert.Equal(t, int64(11), got.V.Int64())
}

func TestVSSCheckCommitmentsMatchEvaluation(t *testing.T) {
	curve := newToyCurve()
	coeffs := []Scalar{scalarOf(5), scalarOf(3), scalarOf(2)}
	commitments := CommitPolynomial(curve, coeffs)

	for _, x := range []uint64{1, 2, 7} {
		share := EvaluatePolynomial(curve, coeffs, x)
		lhs := curve.BasePointMul(share)
		rhs := EvaluateCommitments(curve, commitments, x)
		assert.Equal(t, lhs.X, rhs.X, "VSS check should hold at x=%d", x)
	}
}

func TestVSSCheckFailsForTamperedShare(t *testing.T) {
	curve := newToyCurve()
	coeffs := []Scalar{scalarOf(5), scalarOf(3), scalarOf(2)}
	commitments := CommitPolynomial(curve, coeffs)

	tampered := curve.AddScalars(EvaluatePolynomial(curve, coeffs, 3), scalarOf(1))
	lhs := curve.BasePointMul(tampered)
	rhs := EvaluateCommitments(curve, commitments, 3)
	assert.NotEqual(t, lhs.X, rhs.X)
}
