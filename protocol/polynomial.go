package protocol

// EvaluatePolynomial computes f(x) = Σ coeffs[j]·x^j mod the curve's
// order, the computation spec.md §4.3 step 3 calls
// `f_{self→peer} = Σ coeffⱼ · peerId^j`.
func EvaluatePolynomial(curve Curve, coeffs []Scalar, x uint64) Scalar {
	result := curve.ScalarFromUint64(0)
	xScalar := curve.ScalarFromUint64(x)
	power := curve.ScalarFromUint64(1)
	for _, c := range coeffs {
		term := curve.MulScalars(c, power)
		result = curve.AddScalars(result, term)
		power = curve.MulScalars(power, xScalar)
	}
	return result
}

// CommitPolynomial returns the public commitments cⱼ = coeffⱼ·G for
// each coefficient (spec.md §4.3 step 1).
func CommitPolynomial(curve Curve, coeffs []Scalar) []Point {
	out := make([]Point, len(coeffs))
	for i, c := range coeffs {
		out[i] = curve.BasePointMul(c)
	}
	return out
}

// EvaluateCommitments computes Σ peerId^j · cⱼ, the public-only
// counterpart of EvaluatePolynomial used by the VSS check
// (spec.md §4.3 step 3: "share·G == Σ peerId^j · cⱼ").
func EvaluateCommitments(curve Curve, commitments []Point, x uint64) Point {
	result := curve.Identity()
	xScalar := curve.ScalarFromUint64(x)
	power := curve.ScalarFromUint64(1)
	for _, c := range commitments {
		term := curve.ScalarMul(c, power)
		result = curve.Add(result, term)
		power = curve.MulScalars(power, xScalar)
	}
	return result
}
