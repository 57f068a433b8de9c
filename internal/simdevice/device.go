package simdevice

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-seymour/seymour/internal/pool"
	"github.com/go-seymour/seymour/protocol"
	"github.com/go-seymour/seymour/transport"
)

var errPeerClosed = errors.New("simdevice: peer closed")

// Device is an in-memory transport.Transport wired to a Handler.
type Device struct {
	ep      transport.Endpoint
	handler Handler

	mu        sync.Mutex
	connected bool
	pending   []byte
	chunkSize int
	acc       []byte
	gen       int
	log       []string
	writes    []string
	connects  int

	connectErrs []error
	writeErr    error
	readErr     error

	notify chan struct{}
}

var _ transport.Transport = (*Device)(nil)

// NewDevice returns a disconnected Device answering through h.
func NewDevice(h Handler) *Device {
	return &Device{
		ep:      transport.TCPEndpoint("simdevice", transport.DefaultTCPPort),
		handler: h,
		notify:  make(chan struct{}, 1),
	}
}

// SetChunkSize splits every read into chunks of at most n bytes.
func (d *Device) SetChunkSize(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.chunkSize = n
}

// FailConnect makes the next len(errs) Connect calls fail with the given
// errors, which are wrapped into *transport.Error values.
func (d *Device) FailConnect(errs ...error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.connectErrs = append(d.connectErrs, errs...)
}

// FailNextWrite makes the next Write fail with WriteFailed.
func (d *Device) FailNextWrite(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.writeErr = err
}

// FailNextRead makes the next ReadAvailable fail with ReadFailed.
func (d *Device) FailNextRead(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.readErr = err
}

// Inject queues raw bytes as if the controller had sent them unprompted.
func (d *Device) Inject(data string) {
	d.mu.Lock()
	d.pending = append(d.pending, data...)
	d.log = append(d.log, "< "+data)
	d.mu.Unlock()

	d.signal()
}

// Drop simulates the peer closing the link.
func (d *Device) Drop() {
	d.mu.Lock()
	d.connected = false
	d.pending = nil
	d.mu.Unlock()

	d.signal()
}

// Log returns the link traffic in order: "> frame" for requests and
// "< data" for replies as they became readable.
func (d *Device) Log() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]string(nil), d.log...)
}

// Writes returns every frame written, in order.
func (d *Device) Writes() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]string(nil), d.writes...)
}

// Connects returns how many successful Connect calls happened.
func (d *Device) Connects() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.connects
}

// Connected reports whether the device is currently connected.
func (d *Device) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.connected
}

func (d *Device) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return transport.NewError(transport.Timeout, "connect", d.ep, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.connected = false
	d.pending = nil
	d.acc = nil
	d.gen++

	if len(d.connectErrs) > 0 {
		err := d.connectErrs[0]
		d.connectErrs = d.connectErrs[1:]

		return transport.NewError(transport.ConnectionRefused, "connect", d.ep, err)
	}

	d.connected = true
	d.connects++

	return nil
}

func (d *Device) Write(p []byte) error {
	d.mu.Lock()

	if !d.connected {
		d.mu.Unlock()
		return transport.NewError(transport.Closed, "write", d.ep, errPeerClosed)
	}

	if d.writeErr != nil {
		err := d.writeErr
		d.writeErr = nil
		d.connected = false
		d.mu.Unlock()

		return transport.NewError(transport.WriteFailed, "write", d.ep, err)
	}

	rest, frames, _ := protocol.Split(d.acc, p)
	d.acc = rest
	gen := d.gen

	var replies []Reply
	for _, f := range frames {
		d.writes = append(d.writes, f.String())
		d.log = append(d.log, "> "+f.String())
		replies = append(replies, d.handler.Handle(f.String())...)
	}
	d.mu.Unlock()

	for _, r := range replies {
		d.deliver(gen, r)
	}

	return nil
}

func (d *Device) deliver(gen int, r Reply) {
	push := func() {
		d.mu.Lock()
		if !d.connected || d.gen != gen {
			d.mu.Unlock()
			return
		}
		d.pending = append(d.pending, r.Data...)
		d.log = append(d.log, "< "+r.Data)
		d.mu.Unlock()

		d.signal()
	}

	if r.Delay > 0 {
		time.AfterFunc(r.Delay, push)
		return
	}
	push()
}

func (d *Device) ReadAvailable(deadline time.Time) ([]byte, error) {
	for {
		d.mu.Lock()
		if !d.connected {
			d.mu.Unlock()
			return nil, transport.NewError(transport.Closed, "read", d.ep, errPeerClosed)
		}

		if d.readErr != nil {
			err := d.readErr
			d.readErr = nil
			d.connected = false
			d.mu.Unlock()

			return nil, transport.NewError(transport.ReadFailed, "read", d.ep, err)
		}

		if len(d.pending) > 0 {
			n := len(d.pending)
			if d.chunkSize > 0 && n > d.chunkSize {
				n = d.chunkSize
			}
			out := append([]byte(nil), d.pending[:n]...)
			d.pending = d.pending[n:]
			d.mu.Unlock()

			return out, nil
		}
		d.mu.Unlock()

		t := pool.GetTimer(time.Until(deadline))
		select {
		case <-d.notify:
			pool.PutTimer(t)
		case <-t.C:
			pool.PutTimer(t)
			return nil, nil
		}
	}
}

func (d *Device) Close() error {
	d.mu.Lock()
	d.connected = false
	d.pending = nil
	d.gen++
	d.mu.Unlock()

	d.signal()

	return nil
}

func (d *Device) Endpoint() transport.Endpoint { return d.ep }

func (d *Device) signal() {
	select {
	case d.notify <- struct{}{}:
	default:
	}
}
