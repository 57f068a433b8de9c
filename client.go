package seymour

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/go-seymour/seymour/link"
	"github.com/go-seymour/seymour/logger"
	"github.com/go-seymour/seymour/protocol"
	"github.com/go-seymour/seymour/transport"
)

// Client controls one masking screen controller.
//
// A Client is safe for concurrent use. Calls are serialized on the link in
// arrival order; a motion call holds the link only while it sends its command
// and during each status poll, so other calls interleave with a motion wait
// at exchange granularity.
type Client struct {
	id      string
	cfg     *Config
	session *link.Session
	logger  logger.Logger

	healthMu     sync.Mutex
	healthCancel context.CancelFunc
	healthDone   chan struct{}

	healthChecks   atomic.Uint64
	healthFailures atomic.Uint64
}

// Connect builds the transport for ep, creates a Client over it and opens the
// link.
func Connect(ctx context.Context, ep transport.Endpoint, opts ...Option) (*Client, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	trOpts := append([]transport.Option{transport.WithLogger(cfg.logger)}, cfg.transportOpts...)
	tr, err := transport.New(ep, trOpts...)
	if err != nil {
		return nil, err
	}

	c, err := newClient(tr, cfg)
	if err != nil {
		return nil, err
	}

	if err := c.Open(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}

	return c, nil
}

// NewClient creates a Client over an existing transport. The link is opened
// by Open or lazily by the first call.
func NewClient(tr transport.Transport, opts ...Option) (*Client, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	return newClient(tr, cfg)
}

func newClient(tr transport.Transport, cfg *Config) (*Client, error) {
	if tr == nil {
		return nil, fmt.Errorf("seymour: transport must not be nil")
	}

	id := uuid.NewString()
	l := cfg.logger.With("client", id)

	linkCfg, err := link.NewConfig(append([]link.Option{link.WithLogger(l)}, cfg.linkOpts...)...)
	if err != nil {
		return nil, err
	}

	session, err := link.NewSession(tr, linkCfg)
	if err != nil {
		return nil, err
	}

	return &Client{
		id:      id,
		cfg:     cfg,
		session: session,
		logger:  l,
	}, nil
}

// Open connects the link.
func (c *Client) Open(ctx context.Context) error {
	return c.session.Connect(ctx)
}

// ID returns the client's unique id, attached to every log record it emits.
func (c *Client) ID() string { return c.id }

// Endpoint returns the controller endpoint.
func (c *Client) Endpoint() transport.Endpoint { return c.session.Endpoint() }

// Config returns the client configuration.
func (c *Client) Config() *Config { return c.cfg }

// IsConnected reports whether the link is believed to be up.
func (c *Client) IsConnected() bool { return c.session.IsConnected() }

// Stats is a snapshot of the client's counters.
type Stats struct {
	Exchanges      uint64
	Retries        uint64
	Errors         uint64
	DroppedFrames  uint64
	DrainedBytes   uint64
	Reconnects     uint64
	HealthChecks   uint64
	HealthFailures uint64
	LastSuccess    time.Time
}

// Stats returns a snapshot of the client's counters.
func (c *Client) Stats() Stats {
	m := c.session.Metrics()

	return Stats{
		Exchanges:      m.ExchangeCount.Load(),
		Retries:        m.RetryCount.Load(),
		Errors:         m.ErrorCount.Load(),
		DroppedFrames:  m.DroppedFrameCount.Load(),
		DrainedBytes:   m.DrainedByteCount.Load(),
		Reconnects:     m.ReconnectCount.Load(),
		HealthChecks:   c.healthChecks.Load(),
		HealthFailures: c.healthFailures.Load(),
		LastSuccess:    m.LastSuccess(),
	}
}

// Close stops the health monitor and releases the link.
func (c *Client) Close() error {
	c.StopHealthMonitor()
	return c.session.Close()
}

// GetStatus returns the controller's current status.
func (c *Client) GetStatus(ctx context.Context) (protocol.Status, error) {
	return query(ctx, c, protocol.StatusQuery(), protocol.ParseStatus)
}

// GetPositions returns every mask motor's position.
func (c *Client) GetPositions(ctx context.Context) ([]protocol.MotorPosition, error) {
	return query(ctx, c, protocol.PositionsQuery(), protocol.ParsePositions)
}

// GetSystemInfo returns the screen model, size, serial number and mask ids.
func (c *Client) GetSystemInfo(ctx context.Context) (protocol.SystemInfo, error) {
	return query(ctx, c, protocol.SystemInfoQuery(), protocol.ParseSystemInfo)
}

// GetRatioSettings returns every stored preset.
func (c *Client) GetRatioSettings(ctx context.Context) ([]protocol.RatioSetting, error) {
	return query(ctx, c, protocol.SettingsQuery(), protocol.ParseSettings)
}

// GetDiagnostics returns a debug dump. The reply text is returned as is.
func (c *Client) GetDiagnostics(ctx context.Context, opt protocol.DiagnosticOption) (string, error) {
	if !opt.Valid() {
		return "", fmt.Errorf("seymour: unknown diagnostics option %q", string(opt))
	}

	return query(ctx, c, protocol.Diagnostics(opt), func(f protocol.Frame) (string, error) {
		return string(f.Payload()), nil
	})
}

// UpdateRatio stores the current mask positions into preset r.
func (c *Client) UpdateRatio(ctx context.Context, r protocol.Ratio) error {
	_, err := c.session.Execute(ctx, protocol.UpdateRatio(r))
	return err
}

// ClearSettings resets preset r to its factory default, or every preset
// when r is nil.
func (c *Client) ClearSettings(ctx context.Context, r *protocol.Ratio) error {
	_, err := c.session.Execute(ctx, protocol.ClearSettings(r))
	return err
}

// Execute sends cmd as is under the link's retry policy and returns the
// reply frame, or the zero Frame when cmd expects none. Motion commands sent
// this way do not wait for the motion to finish.
func (c *Client) Execute(ctx context.Context, cmd protocol.Command) (protocol.Frame, error) {
	if cmd.IsZero() {
		return protocol.Frame{}, fmt.Errorf("seymour: empty command")
	}

	return c.session.Execute(ctx, cmd)
}

func query[T any](ctx context.Context, c *Client, cmd protocol.Command, parse func(protocol.Frame) (T, error)) (T, error) {
	var out T

	_, err := c.session.ExecuteValidated(ctx, cmd, func(f protocol.Frame) error {
		v, err := parse(f)
		if err != nil {
			return err
		}
		out = v

		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	return out, nil
}
