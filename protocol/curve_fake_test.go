package protocol

import "math/big"

// toyCurve is a trivial test-only stand-in for a real elliptic curve:
// "points" are represented directly by their discrete log mod a large
// prime, so BasePointMul/Add/ScalarMul obey the same linear algebra a
// real curve's exponent arithmetic would, without this repository ever
// implementing production curve math (spec.md §1 non-goal). It exists
// solely so protocol's generic combinators (polynomial evaluation,
// Schnorr proof of knowledge) can be exercised against something that
// actually satisfies group axioms.
type toyCurve struct {
	order *big.Int
}

func newToyCurve() *toyCurve {
	// A conveniently large prime; the specific value doesn't matter for
	// these structural tests.
	p, _ := new(big.Int).SetString("7237005577332262213973186563042994240857116359379907606001950938285454250989", 10)
	return &toyCurve{order: p}
}

func (c *toyCurve) Order() *big.Int { return c.order }

func (c *toyCurve) RandomScalar() Scalar {
	panic("toyCurve: deterministic tests should supply their own scalars")
}

func (c *toyCurve) BasePointMul(s Scalar) Point {
	return Point{X: c.reduce(s.V), Y: big.NewInt(0)}
}

func (c *toyCurve) Add(a, b Point) Point {
	return Point{X: c.reduce(new(big.Int).Add(a.X, b.X)), Y: big.NewInt(0)}
}

func (c *toyCurve) ScalarMul(p Point, s Scalar) Point {
	return Point{X: c.reduce(new(big.Int).Mul(p.X, s.V)), Y: big.NewInt(0)}
}

func (c *toyCurve) Identity() Point { return Point{X: big.NewInt(0), Y: big.NewInt(0)} }

func (c *toyCurve) IsOnCurve(p Point) bool { return p.X != nil }

func (c *toyCurve) SerializePoint(p Point) []byte { return c.reduce(p.X).Bytes() }

func (c *toyCurve) SerializedPointLength() int { return 32 }

func (c *toyCurve) AddScalars(a, b Scalar) Scalar {
	return Scalar{V: c.reduce(new(big.Int).Add(a.V, b.V))}
}

func (c *toyCurve) MulScalars(a, b Scalar) Scalar {
	return Scalar{V: c.reduce(new(big.Int).Mul(a.V, b.V))}
}

func (c *toyCurve) ScalarFromUint64(v uint64) Scalar {
	return Scalar{V: new(big.Int).SetUint64(v)}
}

func (c *toyCurve) ScalarFromBytes(b []byte) Scalar {
	return Scalar{V: c.reduce(new(big.Int).SetBytes(b))}
}

func (c *toyCurve) SubScalars(a, b Scalar) Scalar {
	return Scalar{V: c.reduce(new(big.Int).Sub(a.V, b.V))}
}

func (c *toyCurve) Invert(s Scalar) Scalar {
	return Scalar{V: new(big.Int).ModInverse(c.reduce(s.V), c.order)}
}

func (c *toyCurve) reduce(v *big.Int) *big.Int {
	return new(big.Int).Mod(v, c.order)
}

func scalarOf(v int64) Scalar { return Scalar{V: big.NewInt(v)} }
