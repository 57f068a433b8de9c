package protocol

import (
	"errors"
	"fmt"
)

// Command is one semantic request to the controller. Build it with the
// constructors below; the zero value is not a valid command.
type Command struct {
	code        CommandCode
	arg         string
	expectReply bool
	raw         bool
}

// StatusQuery asks for the current status code and ratio.
func StatusQuery() Command { return newCommand(CmdStatus, "") }

// PositionsQuery asks for every mask motor's position in percent.
func PositionsQuery() Command { return newCommand(CmdPositions, "") }

// SystemInfoQuery asks for the screen model, size, serial number and mask ids.
func SystemInfoQuery() Command { return newCommand(CmdReadSystemInfo, "") }

// SettingsQuery asks for every stored ratio setting.
func SettingsQuery() Command { return newCommand(CmdReadSettings, "") }

// Diagnostics asks for a debug dump.
func Diagnostics(opt DiagnosticOption) Command {
	return newCommand(CmdDiagnostics, diagnosticDebugLog+string(opt))
}

// MoveOut moves motor outward by the given movement.
func MoveOut(motor MotorID, mv Movement) Command {
	return newCommand(CmdMoveOut, string(motor)+string(mv))
}

// MoveIn moves motor inward by the given movement.
func MoveIn(motor MotorID, mv Movement) Command {
	return newCommand(CmdMoveIn, string(motor)+string(mv))
}

// MoveToRatio applies a stored preset.
func MoveToRatio(r Ratio) Command { return newCommand(CmdMoveToRatio, r.String()) }

// Home drives motor to its home position.
func Home(motor MotorID) Command { return newCommand(CmdHome, string(motor)) }

// Halt stops motor immediately.
func Halt(motor MotorID) Command { return newCommand(CmdHalt, string(motor)) }

// Calibrate runs the calibration cycle for motor.
func Calibrate(motor MotorID) Command { return newCommand(CmdCalibrate, string(motor)) }

// UpdateRatio stores the current mask positions into preset r.
func UpdateRatio(r Ratio) Command { return newCommand(CmdUpdateRatio, r.String()) }

// ClearSettings resets preset r to its factory default, or every preset when r is nil.
func ClearSettings(r *Ratio) Command {
	if r == nil {
		return newCommand(CmdClearSettings, "")
	}

	return newCommand(CmdClearSettings, r.String())
}

// Raw builds a passthrough command from a payload such as "S" or "M178". The
// payload excludes the brackets and the protocol version.
func Raw(payload string, expectReply bool) (Command, error) {
	if payload == "" {
		return Command{}, errors.New("protocol: empty raw payload")
	}

	for i := range len(payload) {
		b := payload[i]
		if !isPrintableASCII(b) || b == FrameStart || b == FrameEnd {
			return Command{}, fmt.Errorf("protocol: invalid byte 0x%02X in raw payload", b)
		}
	}

	return Command{
		code:        CommandCode(payload[0]),
		arg:         payload[1:],
		expectReply: expectReply,
		raw:         true,
	}, nil
}

func newCommand(code CommandCode, arg string) Command {
	return Command{code: code, arg: arg, expectReply: code.ExpectsReply()}
}

// Code returns the command mnemonic.
func (c Command) Code() CommandCode { return c.code }

// Arg returns the argument text following the mnemonic.
func (c Command) Arg() string { return c.arg }

// ExpectsReply reports whether a reply frame follows this command.
func (c Command) ExpectsReply() bool { return c.expectReply }

// IsMotion reports whether the command moves the masks. Raw commands never
// count as motion.
func (c Command) IsMotion() bool { return !c.raw && c.code.IsMotion() }

// IsZero reports whether c is the zero Command.
func (c Command) IsZero() bool { return c.code == 0 }

// Payload returns the frame payload: mnemonic plus argument.
func (c Command) Payload() string { return string(c.code) + c.arg }

// Encode returns the exact wire bytes of the command.
func (c Command) Encode() []byte { return NewFrame(c.Payload()).Bytes() }

// String returns the wire form, e.g. "[01M178]".
func (c Command) String() string { return string(c.Encode()) }

func isPrintableASCII(b byte) bool {
	return b >= 0x20 && b <= 0x7E
}
