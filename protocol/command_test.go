package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommand_Encode(t *testing.T) {
	r123, _ := NewRatio(123)
	r456, _ := NewRatio(456)

	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{"status", StatusQuery(), "[01S]"},
		{"positions", PositionsQuery(), "[01P]"},
		{"sysinfo", SystemInfoQuery(), "[01Y]"},
		{"settings", SettingsQuery(), "[01R]"},
		{"diagnostics", Diagnostics(DiagListSettingsJSON), "[01@D10]"},
		{"move out until limit", MoveOut(MotorTop, MoveUntilLimit), "[01OT]"},
		{"move out jog", MoveOut(MotorLeft, MoveJog), "[01OLJ]"},
		{"move out step", MoveOut(MotorAll, MoveStep), "[01OAM]"},
		{"move in", MoveIn(MotorBottom, MoveUntilLimit), "[01IB]"},
		{"move in jog", MoveIn(MotorRight, MoveJog), "[01IRJ]"},
		{"move to ratio", MoveToRatio(r123), "[01M123]"},
		{"move to ratio zero", MoveToRatio(0), "[01M000]"},
		{"home", Home(MotorTop), "[01AT]"},
		{"home all", Home(MotorAll), "[01AA]"},
		{"halt", Halt(MotorVertical), "[01HV]"},
		{"calibrate", Calibrate(MotorHorizontal), "[01CH]"},
		{"update ratio", UpdateRatio(r456), "[01U456]"},
		{"clear all", ClearSettings(nil), "[01X]"},
		{"clear one", ClearSettings(&r123), "[01X123]"},
		{"raw", mustRaw(t, "Z42 x"), "[01Z42 x]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := tt.cmd.Encode()
			assert.Equal(t, []byte(tt.want), encoded)
			assert.Equal(t, tt.want, tt.cmd.String())

			// decoding the encoding yields the same frame
			rest, frames, errs := Split(nil, encoded)
			assert.Empty(t, rest)
			require.Empty(t, errs)
			require.Len(t, frames, 1)
			assert.Equal(t, encoded, frames[0].Bytes())
			assert.Equal(t, []byte(tt.cmd.Payload()), frames[0].Payload())
		})
	}
}

func TestCommand_Classification(t *testing.T) {
	assert.True(t, StatusQuery().ExpectsReply())
	assert.False(t, StatusQuery().IsMotion())

	assert.True(t, MoveToRatio(178).IsMotion())
	assert.False(t, MoveToRatio(178).ExpectsReply())

	assert.True(t, Halt(MotorAll).IsMotion())
	assert.False(t, UpdateRatio(1).IsMotion())
	assert.False(t, UpdateRatio(1).ExpectsReply())

	assert.True(t, Command{}.IsZero())
	assert.False(t, StatusQuery().IsZero())
}

func TestRaw(t *testing.T) {
	cmd, err := Raw("M178", false)
	require.NoError(t, err)
	assert.Equal(t, CmdMoveToRatio, cmd.Code())
	assert.Equal(t, "178", cmd.Arg())
	assert.False(t, cmd.IsMotion(), "raw commands never run the motion state machine")
	assert.Equal(t, "[01M178]", cmd.String())

	cmd, err = Raw("S", true)
	require.NoError(t, err)
	assert.True(t, cmd.ExpectsReply())

	_, err = Raw("", true)
	require.Error(t, err)

	_, err = Raw("S]", true)
	require.Error(t, err)

	_, err = Raw("S\r", true)
	require.Error(t, err)
}

func TestRatio(t *testing.T) {
	for _, s := range []string{"123", "000", "999"} {
		r, err := ParseRatio(s)
		require.NoError(t, err)
		assert.Equal(t, s, r.String())
	}

	for _, s := range []string{"12", "1234", ""} {
		_, err := ParseRatio(s)
		require.ErrorContains(t, err, "must be three digits long")
	}

	for _, s := range []string{"abc", "12a", "1.2"} {
		_, err := ParseRatio(s)
		require.ErrorContains(t, err, "must be numeric")
	}

	r, err := NewRatio(178)
	require.NoError(t, err)
	assert.Equal(t, "178", r.String())

	_, err = NewRatio(1000)
	require.Error(t, err)
	_, err = NewRatio(-1)
	require.Error(t, err)
}

func TestParseMotorID(t *testing.T) {
	m, err := ParseMotorID("t")
	require.NoError(t, err)
	assert.Equal(t, MotorTop, m)

	m, err = ParseMotorID("horizontal")
	require.NoError(t, err)
	assert.Equal(t, MotorHorizontal, m)

	_, err = ParseMotorID("Z")
	require.Error(t, err)

	assert.Equal(t, "ALL", MotorAll.String())
	assert.False(t, MotorID('Z').Valid())
}

func TestStatusCode_State(t *testing.T) {
	tests := []struct {
		code StatusCode
		want MotionState
	}{
		{StatusStoppedAtRatio, StateStoppedAtRatio},
		{StatusMovingToRatio, StateMoving},
		{StatusHalted, StateHalted},
		{StatusHoming, StateMoving},
		{StatusCalibrating, StateMoving},
		{StatusMovingOutward, StateMoving},
		{StatusMovingInward, StateMoving},
		{StatusError, StateError},
		{StatusCode('Z'), StateUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.code.State(), tt.code.String())
	}

	assert.True(t, StateHalted.IsAtRest())
	assert.True(t, StateStoppedAtRatio.IsAtRest())
	assert.False(t, StateError.IsAtRest())
	assert.True(t, StateError.IsTerminal())
	assert.False(t, StateMoving.IsTerminal())
}

func mustRaw(t *testing.T, payload string) Command {
	t.Helper()

	cmd, err := Raw(payload, true)
	require.NoError(t, err)

	return cmd
}
