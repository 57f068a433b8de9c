package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/go-seymour/seymour/logger"
	"github.com/go-seymour/seymour/transport"
)

const (
	MulticastGroup  = "239.255.250.250"
	MulticastPort   = 9131
	MaxBeaconSize   = 2048
	DefaultInterval = 12 * time.Second // beacons arrive every ~10s
)

// TCPCandidate is a bridge heard on the discovery group.
type TCPCandidate struct {
	Host string
	Port int
	// Metadata holds the beacon fields; empty when the datagram was not a
	// parsable beacon.
	Metadata  map[string]string
	RawBeacon string
	LastSeen  time.Time
}

// Endpoint returns the bridge's serial data port endpoint.
func (c TCPCandidate) Endpoint() transport.Endpoint {
	return transport.TCPEndpoint(c.Host, c.Port)
}

// Model returns the advertised model, e.g. "iTachIP2SL".
func (c TCPCandidate) Model() string { return c.Metadata["Model"] }

type options struct {
	interval    time.Duration
	interfaceIP net.IP
	listener    net.PacketConn
	logger      logger.Logger
}

// Option configures DiscoverTCP and NewMonitor.
type Option interface {
	apply(*options) error
}

type optFunc func(*options) error

func (f optFunc) apply(o *options) error { return f(o) }

// WithInterval sets how long DiscoverTCP listens.
func WithInterval(d time.Duration) Option {
	return optFunc(func(o *options) error {
		if d <= 0 {
			return errors.New("discovery: interval must be positive")
		}
		o.interval = d

		return nil
	})
}

// WithInterfaceIP joins the multicast group on the interface owning ip.
func WithInterfaceIP(ip string) Option {
	return optFunc(func(o *options) error {
		parsed := net.ParseIP(ip)
		if parsed == nil || parsed.To4() == nil {
			return fmt.Errorf("discovery: invalid IPv4 interface address %q", ip)
		}
		o.interfaceIP = parsed.To4()

		return nil
	})
}

// WithListener reads beacons from pc instead of joining the multicast group.
// The caller keeps ownership of pc.
func WithListener(pc net.PacketConn) Option {
	return optFunc(func(o *options) error {
		if pc == nil {
			return errors.New("discovery: listener must not be nil")
		}
		o.listener = pc

		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(o *options) error {
		if l == nil {
			return errors.New("discovery: logger must not be nil")
		}
		o.logger = l

		return nil
	})
}

func newOptions(opts ...Option) (*options, error) {
	o := &options{
		interval: DefaultInterval,
		logger:   logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(o); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// DiscoverTCP listens on the discovery group for one interval and returns the
// bridges heard, one per host, sorted by host. When ctx ends early the
// candidates heard so far are returned with ctx's error.
func DiscoverTCP(ctx context.Context, opts ...Option) ([]TCPCandidate, error) {
	m, err := NewMonitor(ctx, opts...)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	runCtx, cancel := context.WithTimeout(ctx, m.opts.interval)
	defer cancel()

	err = m.Run(runCtx)
	candidates := m.Candidates()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return candidates, ctxErr
	}
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return candidates, err
	}

	return candidates, nil
}

// Monitor tracks the bridges announcing themselves on the discovery group.
type Monitor struct {
	opts   *options
	pc     net.PacketConn
	owned  bool
	logger logger.Logger

	candidates *xsync.MapOf[string, TCPCandidate]
}

// NewMonitor joins the discovery group, or adopts the listener passed with
// WithListener. Call Run to start collecting beacons.
func NewMonitor(ctx context.Context, opts ...Option) (*Monitor, error) {
	o, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}

	m := &Monitor{
		opts:       o,
		pc:         o.listener,
		logger:     o.logger.With("component", "discovery"),
		candidates: xsync.NewMapOf[string, TCPCandidate](),
	}

	if m.pc == nil {
		group := &net.UDPAddr{IP: net.ParseIP(MulticastGroup), Port: MulticastPort}
		if m.pc, err = listenMulticast(ctx, group, o.interfaceIP); err != nil {
			return nil, fmt.Errorf("discovery: join multicast group %s: %w", group, err)
		}
		m.owned = true
	}

	return m, nil
}

// Run reads beacons until ctx ends, returning ctx's error, or until the
// listener fails.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.pc.SetReadDeadline(time.Time{}); err != nil {
		return fmt.Errorf("discovery: %w", err)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = m.pc.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, MaxBeaconSize)
	for {
		n, addr, err := m.pc.ReadFrom(buf)
		if n > 0 && addr != nil {
			m.observe(buf[:n], addr, time.Now())
		}

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}

			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}

			return fmt.Errorf("discovery: read beacon: %w", err)
		}
	}
}

// Candidates returns the bridges heard so far, sorted by host.
func (m *Monitor) Candidates() []TCPCandidate {
	out := make([]TCPCandidate, 0, m.candidates.Size())
	m.candidates.Range(func(_ string, c TCPCandidate) bool {
		out = append(out, c)
		return true
	})

	sort.Slice(out, func(i, j int) bool { return out[i].Host < out[j].Host })

	return out
}

// Lookup returns the candidate for host.
func (m *Monitor) Lookup(host string) (TCPCandidate, bool) {
	return m.candidates.Load(host)
}

// Forget drops candidates not heard from since before cutoff and returns how
// many were dropped.
func (m *Monitor) Forget(cutoff time.Time) int {
	dropped := 0
	m.candidates.Range(func(host string, c TCPCandidate) bool {
		if c.LastSeen.Before(cutoff) {
			m.candidates.Delete(host)
			dropped++
		}

		return true
	})

	return dropped
}

// Close releases the listener if the Monitor opened it.
func (m *Monitor) Close() error {
	if !m.owned {
		return nil
	}

	return m.pc.Close()
}

func (m *Monitor) observe(payload []byte, addr net.Addr, now time.Time) {
	host := hostOf(addr)
	if host == "" {
		return
	}

	raw := sanitize(payload)
	metadata, err := ParseBeacon(raw)
	if err != nil {
		m.logger.Debug("unparsable beacon", "host", host, "error", err)
		metadata = map[string]string{}
	}

	_, seen := m.candidates.Load(host)
	m.candidates.Store(host, TCPCandidate{
		Host:      host,
		Port:      transport.DefaultTCPPort,
		Metadata:  metadata,
		RawBeacon: raw,
		LastSeen:  now,
	})

	if !seen {
		m.logger.Info("bridge discovered", "host", host, "model", metadata["Model"], "uuid", metadata["UUID"])
	}
}

func hostOf(addr net.Addr) string {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP.String()
	default:
		host, _, err := net.SplitHostPort(addr.String())
		if err != nil {
			return ""
		}

		return host
	}
}
