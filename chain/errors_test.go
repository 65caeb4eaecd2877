package chain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type rpcErr struct {
	code int
	msg  string
}

func (e *rpcErr) Error() string  { return e.msg }
func (e *rpcErr) ErrorCode() int { return e.code }

func TestClassifyErrorRateLimitByCode(t *testing.T) {
	err := ClassifyError(&rpcErr{code: eip1474LimitExceeded, msg: "limit exceeded"})
	assert.True(t, errors.Is(err, ErrRateLimited))
}

func TestClassifyErrorRateLimitByMessage(t *testing.T) {
	err := ClassifyError(errors.New("http 429 too many requests"))
	assert.True(t, errors.Is(err, ErrRateLimited))
}

func TestClassifyErrorNonceTooLowBare(t *testing.T) {
	err := ClassifyError(errors.New("nonce too low"))
	assert.True(t, errors.Is(err, ErrNonceTooLow))
}

func TestClassifyErrorNonceTooLowWrapped(t *testing.T) {
	err := ClassifyError(errors.New("execution reverted: nonce too low for sender"))
	assert.True(t, errors.Is(err, ErrNonceTooLow))
}

func TestClassifyErrorPassesThroughUnknown(t *testing.T) {
	original := errors.New("connection refused")
	err := ClassifyError(original)
	assert.Equal(t, original, err)
}

func TestClassifyErrorNil(t *testing.T) {
	assert.NoError(t, ClassifyError(nil))
}
