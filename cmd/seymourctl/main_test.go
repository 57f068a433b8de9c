package main

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-seymour/seymour/internal/simdevice"
	"github.com/go-seymour/seymour/protocol"
)

func startScreen(t *testing.T) (*simdevice.Screen, []string) {
	t.Helper()

	screen := simdevice.NewScreen()
	srv, err := simdevice.Listen(screen)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	args := []string{
		"-host", "127.0.0.1",
		"-port", strconv.Itoa(srv.Addr().Port),
		"-log-level", "error",
		"-poll", "10ms",
		"-settle", "0s",
		"-timeout", "2s",
	}

	return screen, args
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)

	return code, stdout.String(), stderr.String()
}

func TestRun_Status(t *testing.T) {
	require := require.New(t)

	_, args := startScreen(t)
	code, out, _ := runCLI(t, "", append(args, "status")...)

	require.Equal(exitOK, code)
	require.Equal("STOPPED_AT_RATIO(178)\n", out)
}

func TestRun_Positions(t *testing.T) {
	require := require.New(t)

	_, args := startScreen(t)
	code, out, _ := runCLI(t, "", append(args, "positions")...)

	require.Equal(exitOK, code)
	require.Contains(out, "TOP")
	require.Contains(out, "50.0%")
}

func TestRun_Presets(t *testing.T) {
	require := require.New(t)

	_, args := startScreen(t)
	code, out, _ := runCLI(t, "", append(args, "presets")...)

	require.Equal(exitOK, code)
	require.Contains(out, "TestLbl")
}

func TestRun_Apply(t *testing.T) {
	require := require.New(t)

	screen, args := startScreen(t)
	screen.MovingThen(2, "[01P235]")

	code, out, stderr := runCLI(t, "", append(args, "apply", "235")...)

	require.Equal(exitOK, code, stderr)
	require.Contains(out, "STOPPED_AT_RATIO(235)")
	require.Equal(1, screen.Count(protocol.CmdMoveToRatio))
	require.Contains(screen.Received(), "[01M235]")
}

func TestRun_MoveFlagsAfterMotor(t *testing.T) {
	require := require.New(t)

	screen, args := startScreen(t)
	code, _, stderr := runCLI(t, "", append(args, "in", "top", "-jog")...)

	require.Equal(exitOK, code, stderr)
	require.Contains(screen.Received(), "[01ITJ]")
}

func TestRun_ResetNeedsConfirmation(t *testing.T) {
	require := require.New(t)

	screen, args := startScreen(t)

	code, _, _ := runCLI(t, "n\n", append(args, "reset", "178")...)
	require.Equal(exitError, code)
	require.Zero(screen.Count(protocol.CmdClearSettings))

	code, _, _ = runCLI(t, "y\n", append(args, "reset", "178")...)
	require.Equal(exitOK, code)
	require.Contains(screen.Received(), "[01X178]")
}

func TestRun_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no command", args: nil},
		{name: "unknown command", args: []string{"spin"}},
		{name: "bad ratio", args: []string{"apply", "2.35"}},
		{name: "missing ratio", args: []string{"store"}},
		{name: "bad motor", args: []string{"home", "sideways"}},
		{name: "exclusive movement", args: []string{"out", "-jog", "-limit"}},
		{name: "exclusive step", args: []string{"in", "-step", "-jog"}},
		{name: "bad diag option", args: []string{"diag", "99"}},
		{name: "bad discover target", args: []string{"discover", "usb"}},
		{name: "bad log level", args: []string{"-log-level", "loud", "status"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, _ := runCLI(t, "", tt.args...)
			require.Equal(t, exitUsage, code)
		})
	}
}

func TestMoveArgs(t *testing.T) {
	require := require.New(t)

	motor, mv, err := moveArgs(nil)
	require.NoError(err)
	require.Equal(protocol.MotorAll, motor)
	require.Equal(protocol.MoveStep, mv)

	motor, mv, err = moveArgs([]string{"-limit", "B"})
	require.NoError(err)
	require.Equal(protocol.MotorBottom, motor)
	require.Equal(protocol.MoveUntilLimit, mv)

	_, _, err = moveArgs([]string{"T", "B"})
	require.ErrorIs(err, errUsage)
}
