package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-seymour/seymour/logger"
)

const (
	DefaultDialTimeout    = 3 * time.Second
	DefaultWriteTimeout   = 3 * time.Second
	DefaultReadBufferSize = 4096
)

// Transport is a connected duplex byte channel to one controller.
//
// Implementations are not safe for concurrent exchanges; callers serialize
// Write/ReadAvailable pairs. Close may be called concurrently with a blocked
// ReadAvailable to unblock it.
type Transport interface {
	// Connect establishes the physical link, releasing any previous one first.
	Connect(ctx context.Context) error
	// Write writes all of p. It fails with WriteFailed on a broken link and
	// Closed when not connected.
	Write(p []byte) error
	// ReadAvailable returns the bytes that arrive before deadline. On timeout
	// it returns an empty slice and a nil error.
	ReadAvailable(deadline time.Time) ([]byte, error)
	// Close releases the underlying resource. It is idempotent.
	Close() error
	// Endpoint returns the target this transport connects to.
	Endpoint() Endpoint
}

// New returns the Transport matching the endpoint's kind. It does not connect.
func New(ep Endpoint, opts ...Option) (Transport, error) {
	if err := ep.Validate(); err != nil {
		return nil, err
	}

	o, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}

	switch ep.Kind() {
	case KindTCP:
		return newTCPTransport(ep, o), nil
	case KindSerial:
		return newSerialTransport(ep, o), nil
	default:
		return nil, fmt.Errorf("transport: unsupported endpoint kind %s", ep.Kind())
	}
}

type options struct {
	dialTimeout    time.Duration
	writeTimeout   time.Duration
	readBufferSize int
	logger         logger.Logger
	serialOpener   serialOpener
}

func newOptions(opts ...Option) (*options, error) {
	o := &options{
		dialTimeout:    DefaultDialTimeout,
		writeTimeout:   DefaultWriteTimeout,
		readBufferSize: DefaultReadBufferSize,
		logger:         logger.GetLogger(),
		serialOpener:   openSerialPort,
	}

	for _, opt := range opts {
		if err := opt.apply(o); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// Option configures a Transport created by New.
type Option interface {
	apply(*options) error
}

type optFunc func(*options) error

func (f optFunc) apply(o *options) error { return f(o) }

// WithDialTimeout bounds how long Connect waits for a TCP connection.
func WithDialTimeout(d time.Duration) Option {
	return optFunc(func(o *options) error {
		if d <= 0 {
			return errors.New("transport: dial timeout must be positive")
		}
		o.dialTimeout = d

		return nil
	})
}

// WithWriteTimeout bounds each Write on a TCP transport.
func WithWriteTimeout(d time.Duration) Option {
	return optFunc(func(o *options) error {
		if d <= 0 {
			return errors.New("transport: write timeout must be positive")
		}
		o.writeTimeout = d

		return nil
	})
}

// WithReadBufferSize sets the size of the buffer used by ReadAvailable.
func WithReadBufferSize(n int) Option {
	return optFunc(func(o *options) error {
		if n < 16 {
			return errors.New("transport: read buffer size must be >= 16")
		}
		o.readBufferSize = n

		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(o *options) error {
		if l == nil {
			return errors.New("transport: logger must not be nil")
		}
		o.logger = l

		return nil
	})
}

func withSerialOpener(open serialOpener) Option {
	return optFunc(func(o *options) error {
		o.serialOpener = open
		return nil
	})
}
