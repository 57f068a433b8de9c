package protocol

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtocolError_Matching(t *testing.T) {
	cause := errors.New("boom")
	err := NewProtocolError(NoAck, StatusQuery(), StateUnknown, cause)

	require.ErrorIs(t, err, ErrNoAck)
	require.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrDeviceError)
	assert.Equal(t, "protocol: [01S]: NoAck: boom", err.Error())

	var pe *ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, NoAck, pe.Kind)

	err = NewProtocolError(DeviceReportedError, MoveToRatio(178), StateError, nil)
	require.ErrorIs(t, err, ErrDeviceError)
	assert.Contains(t, err.Error(), "last state ERROR")

	err = NewProtocolError(PollBudgetExhausted, MoveToRatio(178), StateMoving, nil)
	require.ErrorIs(t, err, ErrPollBudgetExhausted)
	assert.NotErrorIs(t, err, ErrMotionTimeout)
}

func TestMotionTimeoutError(t *testing.T) {
	err := &MotionTimeoutError{
		Command:   "[01M178]",
		LastState: StateMoving,
		Polls:     4,
		Elapsed:   2 * time.Second,
		Timeout:   2 * time.Second,
	}

	require.ErrorIs(t, err, ErrMotionTimeout)
	assert.NotErrorIs(t, err, ErrPollBudgetExhausted)
	assert.Contains(t, err.Error(), "last state MOVING")
}

func TestCancelled(t *testing.T) {
	err := Cancelled(context.Canceled)
	require.ErrorIs(t, err, ErrCancelled)
	require.ErrorIs(t, err, context.Canceled)

	require.ErrorIs(t, Cancelled(nil), ErrCancelled)
}

func TestDecodeError(t *testing.T) {
	err := newDecodeError("missing protocol version", []byte("[02S]"))
	require.ErrorIs(t, err, ErrMalformedFrame)
	assert.Equal(t, `protocol: missing protocol version: "[02S]"`, err.Error())
}
