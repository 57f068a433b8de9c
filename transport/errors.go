package transport

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net"
	"syscall"

	"go.bug.st/serial"
)

// ErrorKind classifies transport failures.
type ErrorKind uint8

const (
	ConnectionRefused ErrorKind = iota + 1
	Timeout
	DeviceNotFound
	WriteFailed
	ReadFailed
	Closed
)

// Sentinel errors, one per ErrorKind. An *Error matches its kind's sentinel
// with errors.Is.
var (
	ErrConnectionRefused = errors.New("transport: connection refused")
	ErrTimeout           = errors.New("transport: timeout")
	ErrDeviceNotFound    = errors.New("transport: device not found")
	ErrWriteFailed       = errors.New("transport: write failed")
	ErrReadFailed        = errors.New("transport: read failed")
	ErrClosed            = errors.New("transport: closed")

	errNotConnected = errors.New("not connected")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case ConnectionRefused:
		return ErrConnectionRefused
	case Timeout:
		return ErrTimeout
	case DeviceNotFound:
		return ErrDeviceNotFound
	case WriteFailed:
		return ErrWriteFailed
	case ReadFailed:
		return ErrReadFailed
	default:
		return ErrClosed
	}
}

func (k ErrorKind) String() string {
	switch k {
	case ConnectionRefused:
		return "ConnectionRefused"
	case Timeout:
		return "Timeout"
	case DeviceNotFound:
		return "DeviceNotFound"
	case WriteFailed:
		return "WriteFailed"
	case ReadFailed:
		return "ReadFailed"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Error is returned by every Transport operation that fails. A transport
// error means the physical link can no longer be trusted; the link layer
// tears the session down when it sees one.
type Error struct {
	Kind     ErrorKind
	Op       string
	Endpoint string
	Err      error
}

func (e *Error) Error() string {
	msg := "transport: " + e.Op + " " + e.Endpoint + ": " + e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}

	return []error{e.Kind.sentinel(), e.Err}
}

// NewError builds an *Error for ep. Transport implementations outside this
// package use it so the link layer classifies their failures the same way.
func NewError(kind ErrorKind, op string, ep Endpoint, err error) *Error {
	return &Error{Kind: kind, Op: op, Endpoint: ep.String(), Err: err}
}

func newError(kind ErrorKind, op string, ep Endpoint, err error) *Error {
	return NewError(kind, op, ep, err)
}

func classifyDialError(err error) ErrorKind {
	var dnsErr *net.DNSError

	switch {
	case isTimeout(err):
		return Timeout
	case errors.As(err, &dnsErr) && dnsErr.IsNotFound:
		return DeviceNotFound
	default:
		return ConnectionRefused
	}
}

func classifyOpenError(err error) ErrorKind {
	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		switch portErr.Code() {
		case serial.PortNotFound, serial.InvalidSerialPort:
			return DeviceNotFound
		case serial.PortClosed:
			return Closed
		default:
			// busy or permission denied
			return ConnectionRefused
		}
	}

	if errors.Is(err, fs.ErrNotExist) {
		return DeviceNotFound
	}

	return ConnectionRefused
}

// classifyIOError maps a read or write failure to Closed when the peer went
// away and to fallback otherwise.
func classifyIOError(err error, fallback ErrorKind) ErrorKind {
	var portErr *serial.PortError

	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return Closed
	case errors.As(err, &portErr) && portErr.Code() == serial.PortClosed:
		return Closed
	case isTimeout(err):
		return Timeout
	default:
		return fallback
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}
