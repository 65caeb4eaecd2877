package machine

import (
	"math/big"

	"github.com/shieldnet/validator/protocol"
)

// fakeCurve is a trivial stand-in for a real elliptic curve: points are
// represented by their discrete log mod a large prime, so the group
// operations obey the same linear algebra a production curve's
// exponent arithmetic would, with a deterministic (not
// cryptographically random) source of scalars so tests are
// reproducible.
type fakeCurve struct {
	order   *big.Int
	counter int64
}

func newFakeCurve() *fakeCurve {
	p, _ := new(big.Int).SetString("7237005577332262213973186563042994240857116359379907606001950938285454250989", 10)
	return &fakeCurve{order: p}
}

func (c *fakeCurve) Order() *big.Int { return c.order }

func (c *fakeCurve) RandomScalar() protocol.Scalar {
	c.counter++
	return protocol.Scalar{V: big.NewInt(c.counter * 131)}
}

func (c *fakeCurve) BasePointMul(s protocol.Scalar) protocol.Point {
	return protocol.Point{X: c.reduce(s.V), Y: big.NewInt(0)}
}

func (c *fakeCurve) Add(a, b protocol.Point) protocol.Point {
	return protocol.Point{X: c.reduce(new(big.Int).Add(a.X, b.X)), Y: big.NewInt(0)}
}

func (c *fakeCurve) ScalarMul(p protocol.Point, s protocol.Scalar) protocol.Point {
	return protocol.Point{X: c.reduce(new(big.Int).Mul(p.X, s.V)), Y: big.NewInt(0)}
}

func (c *fakeCurve) Identity() protocol.Point {
	return protocol.Point{X: big.NewInt(0), Y: big.NewInt(0)}
}

func (c *fakeCurve) IsOnCurve(p protocol.Point) bool { return p.X != nil }

func (c *fakeCurve) SerializePoint(p protocol.Point) []byte {
	b := c.reduce(p.X).Bytes()
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

func (c *fakeCurve) SerializedPointLength() int { return 32 }

func (c *fakeCurve) AddScalars(a, b protocol.Scalar) protocol.Scalar {
	return protocol.Scalar{V: c.reduce(new(big.Int).Add(a.V, b.V))}
}

func (c *fakeCurve) MulScalars(a, b protocol.Scalar) protocol.Scalar {
	return protocol.Scalar{V: c.reduce(new(big.Int).Mul(a.V, b.V))}
}

func (c *fakeCurve) ScalarFromUint64(v uint64) protocol.Scalar {
	return protocol.Scalar{V: new(big.Int).SetUint64(v)}
}

func (c *fakeCurve) ScalarFromBytes(b []byte) protocol.Scalar {
	return protocol.Scalar{V: c.reduce(new(big.Int).SetBytes(b))}
}

func (c *fakeCurve) SubScalars(a, b protocol.Scalar) protocol.Scalar {
	return protocol.Scalar{V: c.reduce(new(big.Int).Sub(a.V, b.V))}
}

func (c *fakeCurve) Invert(s protocol.Scalar) protocol.Scalar {
	return protocol.Scalar{V: new(big.Int).ModInverse(c.reduce(s.V), c.order)}
}

func (c *fakeCurve) reduce(v *big.Int) *big.Int {
	return new(big.Int).Mod(v, c.order)
}
