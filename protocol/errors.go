package protocol

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMalformedFrame is matched by every *DecodeError.
	ErrMalformedFrame = errors.New("protocol: malformed frame")

	ErrNoAck               = errors.New("protocol: no acknowledgement")
	ErrUnexpectedResponse  = errors.New("protocol: unexpected response")
	ErrDeviceError         = errors.New("protocol: device reported error")
	ErrPollBudgetExhausted = errors.New("protocol: status poll retry budget exhausted")
	ErrMotionTimeout       = errors.New("protocol: motion timeout")

	// ErrCancelled is returned when the caller's context ends a wait. The
	// session stays usable.
	ErrCancelled = errors.New("protocol: cancelled")
)

// DecodeError describes a malformed span dropped by the decoder. It is logged,
// never returned to callers.
type DecodeError struct {
	Reason string
	Data   []byte
}

func newDecodeError(reason string, data []byte) *DecodeError {
	return &DecodeError{Reason: reason, Data: append([]byte(nil), data...)}
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("protocol: %s: %q", e.Reason, e.Data)
}

func (e *DecodeError) Unwrap() error { return ErrMalformedFrame }

// ProtocolErrorKind classifies a ProtocolError.
type ProtocolErrorKind uint8

const (
	// NoAck: no reply arrived within the exchange timeout, after retries.
	NoAck ProtocolErrorKind = iota + 1
	// UnexpectedResponse: a reply arrived but could not be interpreted.
	UnexpectedResponse
	// DeviceReportedError: the controller reported status E.
	DeviceReportedError
	// PollBudgetExhausted: too many consecutive status polls failed during a motion wait.
	PollBudgetExhausted
)

func (k ProtocolErrorKind) String() string {
	switch k {
	case NoAck:
		return "NoAck"
	case UnexpectedResponse:
		return "UnexpectedResponse"
	case DeviceReportedError:
		return "DeviceReportedError"
	case PollBudgetExhausted:
		return "PollBudgetExhausted"
	default:
		return "Unknown"
	}
}

func (k ProtocolErrorKind) sentinel() error {
	switch k {
	case NoAck:
		return ErrNoAck
	case UnexpectedResponse:
		return ErrUnexpectedResponse
	case DeviceReportedError:
		return ErrDeviceError
	default:
		return ErrPollBudgetExhausted
	}
}

// ProtocolError is the result of a specific command that failed at the
// protocol level. LastState carries the most recent motion state observed,
// StateUnknown when none was.
type ProtocolError struct {
	Kind      ProtocolErrorKind
	Command   string
	LastState MotionState
	Err       error
}

func (e *ProtocolError) Error() string {
	msg := "protocol: " + e.Command + ": " + e.Kind.String()
	if e.LastState != StateUnknown {
		msg += " (last state " + e.LastState.String() + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *ProtocolError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}

	return []error{e.Kind.sentinel(), e.Err}
}

// NewProtocolError builds a ProtocolError for cmd.
func NewProtocolError(kind ProtocolErrorKind, cmd Command, last MotionState, err error) *ProtocolError {
	return &ProtocolError{Kind: kind, Command: cmd.String(), LastState: last, Err: err}
}

// MotionTimeoutError reports that the screen was still not at rest when the
// overall motion deadline passed. It is distinct from a device-reported error
// and from an exhausted poll budget.
type MotionTimeoutError struct {
	Command   string
	LastState MotionState
	Polls     int
	Elapsed   time.Duration
	Timeout   time.Duration
}

func (e *MotionTimeoutError) Error() string {
	return fmt.Sprintf("protocol: %s: motion not complete after %v (timeout %v, %d polls, last state %s)",
		e.Command, e.Elapsed.Round(time.Millisecond), e.Timeout, e.Polls, e.LastState)
}

func (e *MotionTimeoutError) Unwrap() error { return ErrMotionTimeout }

// Cancelled wraps a context error into ErrCancelled.
func Cancelled(cause error) error {
	if cause == nil {
		return ErrCancelled
	}

	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}
