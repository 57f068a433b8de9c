package protocol

import (
	"fmt"
	"strings"
)

// CommandCode is the one-letter command mnemonic.
type CommandCode byte

const (
	CmdMoveOut        CommandCode = 'O'
	CmdMoveIn         CommandCode = 'I'
	CmdMoveToRatio    CommandCode = 'M'
	CmdHome           CommandCode = 'A'
	CmdHalt           CommandCode = 'H'
	CmdCalibrate      CommandCode = 'C'
	CmdStatus         CommandCode = 'S'
	CmdPositions      CommandCode = 'P'
	CmdUpdateRatio    CommandCode = 'U'
	CmdReadSystemInfo CommandCode = 'Y'
	CmdReadSettings   CommandCode = 'R'
	CmdClearSettings  CommandCode = 'X'
	CmdDiagnostics    CommandCode = '@'
)

// IsMotion reports whether the command starts physical movement (or stops it).
// The controller acknowledges nothing for these; completion is observed by
// polling status.
func (c CommandCode) IsMotion() bool {
	switch c {
	case CmdMoveOut, CmdMoveIn, CmdMoveToRatio, CmdHome, CmdHalt, CmdCalibrate:
		return true
	default:
		return false
	}
}

// ExpectsReply reports whether the controller answers the command with a frame.
func (c CommandCode) ExpectsReply() bool {
	switch c {
	case CmdStatus, CmdPositions, CmdReadSystemInfo, CmdReadSettings, CmdDiagnostics:
		return true
	default:
		return false
	}
}

func (c CommandCode) String() string {
	switch c {
	case CmdMoveOut:
		return "MOVE_OUT"
	case CmdMoveIn:
		return "MOVE_IN"
	case CmdMoveToRatio:
		return "MOVE_TO_RATIO"
	case CmdHome:
		return "HOME"
	case CmdHalt:
		return "HALT"
	case CmdCalibrate:
		return "CALIBRATE"
	case CmdStatus:
		return "STATUS"
	case CmdPositions:
		return "POSITIONS"
	case CmdUpdateRatio:
		return "UPDATE_RATIO"
	case CmdReadSystemInfo:
		return "READ_SYSTEM_INFO"
	case CmdReadSettings:
		return "READ_SETTINGS"
	case CmdClearSettings:
		return "CLEAR_SETTINGS"
	case CmdDiagnostics:
		return "DIAGNOSTICS"
	default:
		return fmt.Sprintf("CMD(%q)", byte(c))
	}
}

// MotorID selects the mask motor(s) a command applies to.
type MotorID byte

const (
	MotorTop        MotorID = 'T'
	MotorBottom     MotorID = 'B'
	MotorLeft       MotorID = 'L'
	MotorRight      MotorID = 'R'
	MotorVertical   MotorID = 'V'
	MotorHorizontal MotorID = 'H'
	MotorAll        MotorID = 'A'
)

var motorNames = map[MotorID]string{
	MotorTop:        "TOP",
	MotorBottom:     "BOTTOM",
	MotorLeft:       "LEFT",
	MotorRight:      "RIGHT",
	MotorVertical:   "VERTICAL",
	MotorHorizontal: "HORIZONTAL",
	MotorAll:        "ALL",
}

// Valid reports whether m is one of the controller's motor ids.
func (m MotorID) Valid() bool {
	_, ok := motorNames[m]
	return ok
}

func (m MotorID) String() string {
	if name, ok := motorNames[m]; ok {
		return name
	}

	return fmt.Sprintf("MOTOR(%q)", byte(m))
}

// ParseMotorID accepts a wire letter ("T") or a name ("top").
func ParseMotorID(s string) (MotorID, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) == 1 && MotorID(s[0]).Valid() {
		return MotorID(s[0]), nil
	}

	for id, name := range motorNames {
		if name == s {
			return id, nil
		}
	}

	return 0, fmt.Errorf("protocol: unknown motor %q", s)
}

// Movement selects how far a move-in/move-out command travels.
type Movement string

const (
	// MoveUntilLimit runs the motor until it reaches its limit.
	MoveUntilLimit Movement = ""
	// MoveJog moves by the smallest increment (<0.1%).
	MoveJog Movement = "J"
	// MoveStep moves by 1% of the motor's range; ignored when uncalibrated.
	MoveStep Movement = "M"
)

func (m Movement) String() string {
	switch m {
	case MoveUntilLimit:
		return "UNTIL_LIMIT"
	case MoveJog:
		return "JOG"
	case MoveStep:
		return "STEP"
	default:
		return fmt.Sprintf("MOVEMENT(%q)", string(m))
	}
}

// StatusCode is the one-letter state reported in a status reply.
type StatusCode byte

const (
	StatusStoppedAtRatio StatusCode = 'P'
	StatusMovingToRatio  StatusCode = 'M'
	StatusHalted         StatusCode = 'H'
	StatusHoming         StatusCode = 'A'
	StatusCalibrating    StatusCode = 'C'
	StatusMovingOutward  StatusCode = 'O'
	StatusMovingInward   StatusCode = 'I'
	StatusError          StatusCode = 'E'
)

// Valid reports whether c is a known status code.
func (c StatusCode) Valid() bool {
	return c.State() != StateUnknown
}

// State maps the status code onto the motion state machine.
func (c StatusCode) State() MotionState {
	switch c {
	case StatusStoppedAtRatio:
		return StateStoppedAtRatio
	case StatusHalted:
		return StateHalted
	case StatusError:
		return StateError
	case StatusMovingToRatio, StatusHoming, StatusCalibrating, StatusMovingOutward, StatusMovingInward:
		return StateMoving
	default:
		return StateUnknown
	}
}

func (c StatusCode) String() string {
	switch c {
	case StatusStoppedAtRatio:
		return "STOPPED_AT_RATIO"
	case StatusMovingToRatio:
		return "MOVING_TO_RATIO"
	case StatusHalted:
		return "HALTED"
	case StatusHoming:
		return "HOMING"
	case StatusCalibrating:
		return "CALIBRATING"
	case StatusMovingOutward:
		return "MOVING_OUTWARD"
	case StatusMovingInward:
		return "MOVING_INWARD"
	case StatusError:
		return "ERROR"
	default:
		return fmt.Sprintf("STATUS(%q)", byte(c))
	}
}

// MotionState is the coarse physical state of the screen.
type MotionState uint8

const (
	StateUnknown MotionState = iota
	StateMoving
	StateHalted
	StateStoppedAtRatio
	StateError
)

// IsTerminal reports whether a motion wait ends in this state.
func (s MotionState) IsTerminal() bool {
	return s == StateHalted || s == StateStoppedAtRatio || s == StateError
}

// IsAtRest reports whether the state ends a motion wait successfully.
func (s MotionState) IsAtRest() bool {
	return s == StateHalted || s == StateStoppedAtRatio
}

func (s MotionState) String() string {
	switch s {
	case StateMoving:
		return "MOVING"
	case StateHalted:
		return "HALTED"
	case StateStoppedAtRatio:
		return "STOPPED_AT_RATIO"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// DiagnosticOption selects the debug dump returned by the diagnostics command.
type DiagnosticOption string

const (
	DiagListFS           DiagnosticOption = "00"
	DiagListSettingsJSON DiagnosticOption = "10"
	DiagListSystemJSON   DiagnosticOption = "20"
)

// diagnosticDebugLog is the only diagnostics sub-command the controller knows.
const diagnosticDebugLog = "D"

// Valid reports whether o is a known diagnostics option.
func (o DiagnosticOption) Valid() bool {
	switch o {
	case DiagListFS, DiagListSettingsJSON, DiagListSystemJSON:
		return true
	default:
		return false
	}
}
