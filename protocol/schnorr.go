package protocol

// ProveKnowledge produces a Schnorr proof of knowledge of secret (the
// constant term of a key-gen polynomial) under the supplied context
// bytes (spec.md §4.3 step 1: "a Schnorr proof of knowledge (r, μ) over
// the constant term"). nonce must be a fresh random scalar supplied by
// the caller (via Curve.RandomScalar) — this function never generates
// randomness itself.
func ProveKnowledge(curve Curve, secret, nonce Scalar, context []byte) SchnorrProof {
	r := curve.BasePointMul(nonce)
	public := curve.BasePointMul(secret)
	challenge := schnorrChallenge(curve, context, r, public)
	mu := curve.AddScalars(nonce, curve.MulScalars(challenge, secret))
	return SchnorrProof{R: r, Mu: mu}
}

// VerifyKnowledge checks a SchnorrProof against the claimed public
// point: μ·G == R + e·public, where e is the same Fiat-Shamir
// challenge ProveKnowledge derived.
func VerifyKnowledge(curve Curve, public Point, proof SchnorrProof, context []byte) bool {
	challenge := schnorrChallenge(curve, context, proof.R, public)
	lhs := curve.BasePointMul(proof.Mu)
	rhs := curve.Add(proof.R, curve.ScalarMul(public, challenge))
	return pointsEqual(curve, lhs, rhs)
}

func schnorrChallenge(curve Curve, context []byte, r, public Point) Scalar {
	digest := hash(tagSchnorrChallenge, context, curve.SerializePoint(r), curve.SerializePoint(public))
	return curve.ScalarFromBytes(digest[:])
}

func pointsEqual(curve Curve, a, b Point) bool {
	sa, sb := curve.SerializePoint(a), curve.SerializePoint(b)
	if len(sa) != len(sb) {
		return false
	}
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}
