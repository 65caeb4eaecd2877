package protocol

import "math/big"

// Point is an opaque move-only handle to a curve point (x, y). The
// curve arithmetic itself is out of scope (spec.md §1): no package in
// this repository ever inspects X/Y directly except the Curve
// collaborator's own implementation and test fixtures. Treat values of
// this type as capabilities to be passed to a Curve, not as data to
// compute over.
type Point struct {
	X, Y *big.Int
}

// IsZero reports whether p is the unset/identity placeholder.
func (p Point) IsZero() bool { return p.X == nil || p.Y == nil }

// Scalar is an opaque move-only handle to an integer mod the curve
// order — e.g. a signing share or a nonce. Like Point, no package but
// a Curve implementation computes over its internals.
type Scalar struct {
	V *big.Int
}

// IsZero reports whether s is unset.
func (s Scalar) IsZero() bool { return s.V == nil }

// Curve is the external collaborator spec.md §1 calls out as
// deliberately out of scope ("the FROST field/curve arithmetic"). Every
// operation the key-gen and signing clients need from the underlying
// group is expressed here so that C3/C4 can be implemented and tested
// without committing to one concrete curve. A production build injects
// a real secp256k1/Ed25519-class implementation; this repository ships
// none.
type Curve interface {
	// Order returns the group order (the modulus scalars live in).
	Order() *big.Int

	// RandomScalar returns a uniformly random non-zero scalar, the
	// collaborator's source of the fresh polynomial coefficients and
	// nonce pairs key-gen/signing need. A production build draws this
	// from a CSPRNG seeded appropriately for the curve; this repository
	// never generates scalar randomness itself (spec.md §1 non-goal).
	RandomScalar() Scalar

	// BasePointMul returns s·G.
	BasePointMul(s Scalar) Point

	// Add returns a+b.
	Add(a, b Point) Point

	// ScalarMul returns s·p.
	ScalarMul(p Point, s Scalar) Point

	// Identity returns the group identity element.
	Identity() Point

	// IsOnCurve reports whether p is a valid non-identity point.
	IsOnCurve(p Point) bool

	// SerializePoint returns the canonical fixed-length encoding of p.
	SerializePoint(p Point) []byte

	// SerializedPointLength returns the length SerializePoint always
	// produces.
	SerializedPointLength() int

	// AddScalars and MulScalars perform field arithmetic mod Order, the
	// primitive key-gen's polynomial evaluation (f(x) = Σ coeffⱼ·xʲ) and
	// signing's binding-factor/challenge combination are built from.
	AddScalars(a, b Scalar) Scalar
	MulScalars(a, b Scalar) Scalar

	// ScalarFromUint64 lifts a small integer (a participant id, typically)
	// into the scalar field, for polynomial evaluation at that id.
	ScalarFromUint64(v uint64) Scalar

	// ScalarFromBytes reduces an arbitrary-length digest mod Order, the
	// standard way a Fiat-Shamir challenge (a Schnorr PoK challenge, a
	// binding factor, a signing challenge) is turned into a scalar.
	ScalarFromBytes(b []byte) Scalar

	// SubScalars returns a-b mod Order.
	SubScalars(a, b Scalar) Scalar

	// Invert returns the multiplicative inverse of s mod Order, the
	// primitive a Lagrange coefficient's (j-i)⁻¹ term is built from.
	Invert(s Scalar) Scalar
}

// EncodeScalar produces the fixed 32-byte big-endian encoding of s, the
// wire format used wherever a scalar has to travel as plain bytes (a
// complaint's plaintext share, a reconstructed signature's s term).
func EncodeScalar(s Scalar) []byte {
	if s.V == nil {
		return make([]byte, 32)
	}
	raw := s.V.Bytes()
	if len(raw) >= 32 {
		return raw[len(raw)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(raw):], raw)
	return out
}
