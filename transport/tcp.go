package transport

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"github.com/go-seymour/seymour/logger"
)

// TCPTransport reaches the controller through a TCP-to-serial bridge.
type TCPTransport struct {
	ep     Endpoint
	opts   *options
	logger logger.Logger
	conn   atomic.Pointer[net.Conn]
	buf    []byte
}

var _ Transport = (*TCPTransport)(nil)

func newTCPTransport(ep Endpoint, o *options) *TCPTransport {
	return &TCPTransport{
		ep:     ep,
		opts:   o,
		logger: o.logger.With("endpoint", ep.String()),
		buf:    make([]byte, o.readBufferSize),
	}
}

// Connect dials the bridge. Any previous socket is closed first: the bridge
// accepts one client per serial port and a leaked socket blocks every later
// connect.
func (t *TCPTransport) Connect(ctx context.Context) error {
	_ = t.Close()

	dialer := &net.Dialer{Timeout: t.opts.dialTimeout, KeepAlive: 30 * time.Second}

	conn, err := dialer.DialContext(ctx, "tcp", t.ep.Addr())
	if err != nil {
		t.logger.Debug("transport: dial failed", "error", err)
		return newError(classifyDialError(err), "connect", t.ep, err)
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}

	t.conn.Store(&conn)
	t.logger.Debug("transport: connected", "localAddr", conn.LocalAddr(), "remoteAddr", conn.RemoteAddr())

	return nil
}

func (t *TCPTransport) Write(p []byte) error {
	conn := t.current()
	if conn == nil {
		return newError(Closed, "write", t.ep, errNotConnected)
	}

	if err := conn.SetWriteDeadline(time.Now().Add(t.opts.writeTimeout)); err != nil {
		return newError(classifyIOError(err, WriteFailed), "write", t.ep, err)
	}

	for written := 0; written < len(p); {
		n, err := conn.Write(p[written:])
		written += n

		if err != nil {
			return newError(classifyIOError(err, WriteFailed), "write", t.ep, err)
		}
	}

	return nil
}

func (t *TCPTransport) ReadAvailable(deadline time.Time) ([]byte, error) {
	conn := t.current()
	if conn == nil {
		return nil, newError(Closed, "read", t.ep, errNotConnected)
	}

	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, newError(classifyIOError(err, ReadFailed), "read", t.ep, err)
	}

	n, err := conn.Read(t.buf)
	if n > 0 {
		// A trailing error resurfaces on the next read.
		return append([]byte(nil), t.buf[:n]...), nil
	}

	if err != nil {
		if isTimeout(err) {
			return nil, nil
		}

		return nil, newError(classifyIOError(err, ReadFailed), "read", t.ep, err)
	}

	return nil, nil
}

func (t *TCPTransport) Close() error {
	p := t.conn.Swap(nil)
	if p == nil {
		return nil
	}

	conn := *p
	if tcp, ok := conn.(*net.TCPConn); ok {
		// release the bridge slot immediately
		_ = tcp.SetLinger(0)
	}

	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return newError(Closed, "close", t.ep, err)
	}

	t.logger.Debug("transport: closed")

	return nil
}

func (t *TCPTransport) Endpoint() Endpoint { return t.ep }

func (t *TCPTransport) current() net.Conn {
	if p := t.conn.Load(); p != nil {
		return *p
	}

	return nil
}
