package verify

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shieldnet/validator/protocol"
)

// fakeCurve accepts every point whose X is odd, just enough
// discrimination to exercise the IsOnCurve branch deterministically.
type fakeCurve struct{}

func (fakeCurve) Order() *big.Int                      { return big.NewInt(101) }
func (fakeCurve) RandomScalar() protocol.Scalar        { return protocol.Scalar{V: big.NewInt(7)} }
func (fakeCurve) BasePointMul(protocol.Scalar) protocol.Point { return protocol.Point{} }
func (fakeCurve) Add(a, b protocol.Point) protocol.Point      { return protocol.Point{} }
func (fakeCurve) ScalarMul(protocol.Point, protocol.Scalar) protocol.Point { return protocol.Point{} }
func (fakeCurve) Identity() protocol.Point             { return protocol.Point{X: big.NewInt(0), Y: big.NewInt(0)} }
func (fakeCurve) IsOnCurve(p protocol.Point) bool {
	return p.X != nil && p.X.Bit(0) == 1
}
func (fakeCurve) SerializePoint(protocol.Point) []byte { return nil }
func (fakeCurve) SerializedPointLength() int           { return 33 }
func (fakeCurve) AddScalars(a, b protocol.Scalar) protocol.Scalar { return protocol.Scalar{} }
func (fakeCurve) MulScalars(a, b protocol.Scalar) protocol.Scalar { return protocol.Scalar{} }
func (fakeCurve) ScalarFromUint64(v uint64) protocol.Scalar       { return protocol.Scalar{V: new(big.Int).SetUint64(v)} }
func (fakeCurve) ScalarFromBytes(b []byte) protocol.Scalar        { return protocol.Scalar{V: new(big.Int).SetBytes(b)} }
func (fakeCurve) SubScalars(a, b protocol.Scalar) protocol.Scalar { return protocol.Scalar{} }
func (fakeCurve) Invert(s protocol.Scalar) protocol.Scalar        { return protocol.Scalar{} }

var (
	testConsensusAddr   = protocol.Address{1}
	testCoordinatorAddr = protocol.Address{3}
)

func newTestEngine(allowedSelectors ...[4]byte) *Engine {
	return New(fakeCurve{}, testConsensusAddr, testCoordinatorAddr, allowedSelectors)
}

func validRollover() protocol.EpochRolloverPacket {
	return protocol.EpochRolloverPacket{
		ActiveEpoch:   1,
		ProposedEpoch: 2,
		RolloverBlock: 1000,
		GroupKeyX:     big.NewInt(3),
		GroupKeyY:     big.NewInt(4),
		ConsensusAddr: testConsensusAddr,
	}
}

func validAccountTransaction() protocol.AccountTransactionPacket {
	return protocol.AccountTransactionPacket{
		Epoch: 1,
		Transaction: protocol.Transaction{
			ChainId: 1,
			Account: protocol.Address{1},
			To:      protocol.Address{2},
			Value:   big.NewInt(100),
			Nonce:   1,
		},
		ChainAddr: testCoordinatorAddr,
	}
}

func TestVerifyEpochRolloverAccepts(t *testing.T) {
	e := newTestEngine()
	digest, err := e.Verify(validRollover())
	require.NoError(t, err)
	assert.False(t, digest.IsZero())
	assert.True(t, e.IsVerified(digest))
}

func TestVerifyEpochRolloverRejectsNonAdvancingEpoch(t *testing.T) {
	e := newTestEngine()
	p := validRollover()
	p.ProposedEpoch = p.ActiveEpoch
	_, err := e.Verify(p)
	assert.Error(t, err)
}

func TestVerifyEpochRolloverRejectsOffCurveKey(t *testing.T) {
	e := newTestEngine()
	p := validRollover()
	p.GroupKeyX = big.NewInt(4) // even -> fakeCurve rejects
	_, err := e.Verify(p)
	assert.Error(t, err)
}

func TestVerifyEpochRolloverRejectsWrongConsensusAddress(t *testing.T) {
	e := newTestEngine()
	p := validRollover()
	p.ConsensusAddr = protocol.Address{9}
	_, err := e.Verify(p)
	assert.Error(t, err)
}

func TestVerifyAccountTransactionAccepts(t *testing.T) {
	e := newTestEngine()
	digest, err := e.Verify(validAccountTransaction())
	require.NoError(t, err)
	assert.True(t, e.IsVerified(digest))
}

func TestVerifyAccountTransactionRejectsNegativeValue(t *testing.T) {
	e := newTestEngine()
	p := validAccountTransaction()
	p.Transaction.Value = big.NewInt(-1)
	_, err := e.Verify(p)
	assert.Error(t, err)
}

func TestVerifyAccountTransactionRejectsWrongChainAddress(t *testing.T) {
	e := newTestEngine()
	p := validAccountTransaction()
	p.ChainAddr = protocol.Address{9}
	_, err := e.Verify(p)
	assert.Error(t, err)
}

func TestVerifyAccountTransactionRejectsUnsupportedSelector(t *testing.T) {
	e := newTestEngine([4]byte{0xaa, 0xbb, 0xcc, 0xdd})
	p := validAccountTransaction()
	p.Transaction.Data = []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	_, err := e.Verify(p)
	assert.Error(t, err)
}

func TestVerifyAccountTransactionAcceptsAllowedSelector(t *testing.T) {
	selector := [4]byte{0xaa, 0xbb, 0xcc, 0xdd}
	e := newTestEngine(selector)
	p := validAccountTransaction()
	p.Transaction.Data = append(selector[:], 0x05)
	_, err := e.Verify(p)
	assert.NoError(t, err)
}

func TestIsVerifiedFalseForUnseenDigest(t *testing.T) {
	e := newTestEngine()
	assert.False(t, e.IsVerified(protocol.MessageDigest{9, 9, 9}))
}

func TestVerifyDeterministicDigest(t *testing.T) {
	e := newTestEngine()
	d1, err := e.Verify(validRollover())
	require.NoError(t, err)
	d2, err := e.Verify(validRollover())
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}
