package transport

import (
	"context"
	"sync/atomic"
	"time"

	"go.bug.st/serial"

	"github.com/go-seymour/seymour/logger"
)

// minSerialReadTimeout keeps an already-expired deadline from turning into a
// blocking read: go.bug.st/serial treats a negative timeout as "wait forever".
const minSerialReadTimeout = time.Millisecond

type serialOpener func(device string, mode *serial.Mode) (serial.Port, error)

func openSerialPort(device string, mode *serial.Mode) (serial.Port, error) {
	return serial.Open(device, mode)
}

// SerialTransport talks to the controller over a local serial port at 115200 8N1.
type SerialTransport struct {
	ep     Endpoint
	opts   *options
	logger logger.Logger
	port   atomic.Pointer[serial.Port]
	buf    []byte
}

var _ Transport = (*SerialTransport)(nil)

func newSerialTransport(ep Endpoint, o *options) *SerialTransport {
	return &SerialTransport{
		ep:     ep,
		opts:   o,
		logger: o.logger.With("endpoint", ep.String()),
		buf:    make([]byte, o.readBufferSize),
	}
}

// Mode returns the fixed line settings of the controller.
func Mode() *serial.Mode {
	return &serial.Mode{
		BaudRate: BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

func (t *SerialTransport) Connect(ctx context.Context) error {
	_ = t.Close()

	if err := ctx.Err(); err != nil {
		return newError(Timeout, "connect", t.ep, err)
	}

	port, err := t.opts.serialOpener(t.ep.Device(), Mode())
	if err != nil {
		t.logger.Debug("transport: open failed", "error", err)
		return newError(classifyOpenError(err), "connect", t.ep, err)
	}

	// Discard whatever the controller said before we were listening.
	if err := port.ResetInputBuffer(); err != nil {
		t.logger.Debug("transport: reset input buffer failed", "error", err)
	}

	t.port.Store(&port)
	t.logger.Debug("transport: serial port opened", "baudRate", BaudRate)

	return nil
}

func (t *SerialTransport) Write(p []byte) error {
	port := t.current()
	if port == nil {
		return newError(Closed, "write", t.ep, errNotConnected)
	}

	for written := 0; written < len(p); {
		n, err := port.Write(p[written:])
		written += n

		if err != nil {
			return newError(classifyIOError(err, WriteFailed), "write", t.ep, err)
		}
	}

	if err := port.Drain(); err != nil {
		return newError(classifyIOError(err, WriteFailed), "write", t.ep, err)
	}

	return nil
}

func (t *SerialTransport) ReadAvailable(deadline time.Time) ([]byte, error) {
	port := t.current()
	if port == nil {
		return nil, newError(Closed, "read", t.ep, errNotConnected)
	}

	timeout := time.Until(deadline)
	if timeout < minSerialReadTimeout {
		timeout = minSerialReadTimeout
	}

	if err := port.SetReadTimeout(timeout); err != nil {
		return nil, newError(classifyIOError(err, ReadFailed), "read", t.ep, err)
	}

	n, err := port.Read(t.buf)
	if n > 0 {
		return append([]byte(nil), t.buf[:n]...), nil
	}

	if err != nil {
		return nil, newError(classifyIOError(err, ReadFailed), "read", t.ep, err)
	}

	// zero bytes and no error: read timeout
	return nil, nil
}

func (t *SerialTransport) Close() error {
	p := t.port.Swap(nil)
	if p == nil {
		return nil
	}

	if err := (*p).Close(); err != nil {
		return newError(Closed, "close", t.ep, err)
	}

	t.logger.Debug("transport: serial port closed")

	return nil
}

func (t *SerialTransport) Endpoint() Endpoint { return t.ep }

func (t *SerialTransport) current() serial.Port {
	if p := t.port.Load(); p != nil {
		return *p
	}

	return nil
}
