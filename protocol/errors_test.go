package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubmissionError(t *testing.T) {
	inner := errors.New("nonce too low")
	err := error(&SubmissionError{TxHash: "0xab", Reason: "channel closed", Err: inner})

	assert.ErrorIs(t, err, ErrSubmissionFailure)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "submission failure (tx 0xab): reverted: channel closed: nonce too low", err.Error())

	var se *SubmissionError
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, "channel closed", se.Reason)

	bare := error(&SubmissionError{})
	assert.ErrorIs(t, bare, ErrSubmissionFailure)
	assert.Equal(t, "submission failure", bare.Error())
}

func TestFinalityError(t *testing.T) {
	inner := errors.New("quorum not reached")
	err := error(&FinalityError{BlockNumber: 9, StateRoot: Bytes32{0x01}, Err: inner})
	assert.ErrorIs(t, err, ErrFinalityVerification)
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "at block 9")
}
