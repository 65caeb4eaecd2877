package main

import (
	"fmt"
	"math/big"

	"github.com/shieldnet/validator/protocol"
)

// unimplementedCurve satisfies protocol.Curve so the daemon wires
// together and starts, but panics the moment any method is actually
// called. The field/curve arithmetic itself is out of scope here
// (protocol/curve.go: "a production build injects a real
// secp256k1/Ed25519-class implementation; this repository ships
// none"), mirroring chain.ABIActionEncoder.Encode and
// chain.ABIDecoder.Decode's "deliberately unimplemented" seams — except
// Curve's methods return no error value to carry that failure through,
// so the seam here panics instead of erroring.
type unimplementedCurve struct{}

func (unimplementedCurve) fail(method string) {
	panic(fmt.Sprintf("cmd/validatord: no Curve implementation wired; %s requires a real secp256k1/Ed25519-class build", method))
}

func (c unimplementedCurve) Order() *big.Int                 { c.fail("Order"); return nil }
func (c unimplementedCurve) RandomScalar() protocol.Scalar   { c.fail("RandomScalar"); return protocol.Scalar{} }
func (c unimplementedCurve) BasePointMul(protocol.Scalar) protocol.Point {
	c.fail("BasePointMul")
	return protocol.Point{}
}
func (c unimplementedCurve) Add(protocol.Point, protocol.Point) protocol.Point {
	c.fail("Add")
	return protocol.Point{}
}
func (c unimplementedCurve) ScalarMul(protocol.Point, protocol.Scalar) protocol.Point {
	c.fail("ScalarMul")
	return protocol.Point{}
}
func (c unimplementedCurve) Identity() protocol.Point { c.fail("Identity"); return protocol.Point{} }
func (c unimplementedCurve) IsOnCurve(protocol.Point) bool {
	c.fail("IsOnCurve")
	return false
}
func (c unimplementedCurve) SerializePoint(protocol.Point) []byte {
	c.fail("SerializePoint")
	return nil
}
func (c unimplementedCurve) SerializedPointLength() int { c.fail("SerializedPointLength"); return 0 }
func (c unimplementedCurve) AddScalars(protocol.Scalar, protocol.Scalar) protocol.Scalar {
	c.fail("AddScalars")
	return protocol.Scalar{}
}
func (c unimplementedCurve) MulScalars(protocol.Scalar, protocol.Scalar) protocol.Scalar {
	c.fail("MulScalars")
	return protocol.Scalar{}
}
func (c unimplementedCurve) ScalarFromUint64(uint64) protocol.Scalar {
	c.fail("ScalarFromUint64")
	return protocol.Scalar{}
}
func (c unimplementedCurve) ScalarFromBytes([]byte) protocol.Scalar {
	c.fail("ScalarFromBytes")
	return protocol.Scalar{}
}
func (c unimplementedCurve) SubScalars(protocol.Scalar, protocol.Scalar) protocol.Scalar {
	c.fail("SubScalars")
	return protocol.Scalar{}
}
func (c unimplementedCurve) Invert(protocol.Scalar) protocol.Scalar {
	c.fail("Invert")
	return protocol.Scalar{}
}

var _ protocol.Curve = unimplementedCurve{}
