package protocol

// LagrangeCoefficient computes λᵢ = Π_{j∈signers, j≠i} j/(j-i), the
// coefficient that recombines signer i's additive share into the
// group secret at x=0 (spec.md §4.4 "Lagrange coefficient λ over
// signers at 0").
func LagrangeCoefficient(curve Curve, signers []ParticipantId, i ParticipantId) Scalar {
	result := curve.ScalarFromUint64(1)
	iScalar := curve.ScalarFromUint64(uint64(i))
	for _, j := range signers {
		if j == i {
			continue
		}
		jScalar := curve.ScalarFromUint64(uint64(j))
		denom := curve.SubScalars(jScalar, iScalar)
		term := curve.MulScalars(jScalar, curve.Invert(denom))
		result = curve.MulScalars(result, term)
	}
	return result
}
