package link

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-seymour/seymour/internal/pool"
	"github.com/go-seymour/seymour/logger"
	"github.com/go-seymour/seymour/protocol"
	"github.com/go-seymour/seymour/transport"
)

var (
	ErrSessionClosed = errors.New("link: session closed")
	ErrNotConnected  = errors.New("link: not connected")

	errNoReply        = errors.New("link: no reply before exchange deadline")
	errMalformedReply = errors.New("link: malformed reply")
)

// maxDrainReads bounds the stale-input drain so a chattering link cannot
// stall an exchange forever.
const maxDrainReads = 16

// Validator checks a reply frame. A non-nil error makes the attempt count as
// a malformed reply.
type Validator func(protocol.Frame) error

// Session runs exchanges over one Transport.
type Session struct {
	tr     transport.Transport
	cfg    *Config
	logger logger.Logger

	// sem is the exchange slot. Blocked senders are admitted in FIFO order.
	sem chan struct{}
	dec *protocol.Decoder // guarded by sem

	connected     atomic.Bool
	everConnected atomic.Bool
	closed        atomic.Bool

	metrics Metrics
}

// NewSession creates a Session over tr. A nil cfg selects the defaults.
// The transport is not connected until Connect or the first exchange.
func NewSession(tr transport.Transport, cfg *Config) (*Session, error) {
	if tr == nil {
		return nil, errors.New("link: transport must not be nil")
	}

	if cfg == nil {
		var err error
		if cfg, err = NewConfig(); err != nil {
			return nil, err
		}
	}

	l := cfg.GetLogger().With("endpoint", tr.Endpoint().String())

	return &Session{
		tr:     tr,
		cfg:    cfg,
		logger: l,
		sem:    make(chan struct{}, 1),
		dec:    protocol.NewDecoder(l),
	}, nil
}

// Endpoint returns the transport's endpoint.
func (s *Session) Endpoint() transport.Endpoint { return s.tr.Endpoint() }

// Config returns the session configuration.
func (s *Session) Config() *Config { return s.cfg }

// Metrics returns the session counters.
func (s *Session) Metrics() *Metrics { return &s.metrics }

// IsConnected reports whether the link is believed to be up.
func (s *Session) IsConnected() bool { return s.connected.Load() && !s.closed.Load() }

// Connect establishes the link, retrying with exponential backoff.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	return s.connectLocked(ctx)
}

// Execute runs cmd under the retry policy and returns its reply frame. For
// commands that expect no reply the zero Frame is returned once the write
// completes.
func (s *Session) Execute(ctx context.Context, cmd protocol.Command) (protocol.Frame, error) {
	return s.ExecuteValidated(ctx, cmd, nil)
}

// ExecuteValidated is Execute with a reply check: a reply rejected by
// validate is retried like a malformed frame.
func (s *Session) ExecuteValidated(ctx context.Context, cmd protocol.Command, validate Validator) (protocol.Frame, error) {
	if err := s.acquire(ctx); err != nil {
		return protocol.Frame{}, err
	}
	defer s.release()

	initial, maxDelay := s.cfg.RetryBackoff()

	var lastErr error
	for attempt := 0; attempt <= s.cfg.RetryLimit(); attempt++ {
		if attempt > 0 {
			delay := backoff(initial, maxDelay, attempt)
			s.metrics.incRetryCount()
			s.logger.Debug("retrying exchange", "command", cmd.String(), "attempt", attempt+1, "delay", delay, "error", lastErr)

			if err := pool.Sleep(ctx, delay); err != nil {
				return protocol.Frame{}, protocol.Cancelled(err)
			}
		}

		f, err := s.exchangeLocked(ctx, cmd, cmd.ExpectsReply())
		if err == nil && validate != nil && cmd.ExpectsReply() {
			if verr := validate(f); verr != nil {
				err = fmt.Errorf("%w: %w", errMalformedReply, verr)
			}
		}

		if err == nil {
			return f, nil
		}

		if !isRetryable(err) {
			if !errors.Is(err, protocol.ErrCancelled) {
				s.metrics.incErrorCount()
			}

			return protocol.Frame{}, err
		}
		lastErr = err
	}

	s.metrics.incErrorCount()
	s.logger.Warn("exchange failed", "command", cmd.String(), "attempts", s.cfg.RetryLimit()+1, "error", lastErr)

	return protocol.Frame{}, exhausted(cmd, lastErr)
}

// ExecuteOnce runs a single attempt of cmd without retries. expectReply
// overrides the command's own reply expectation.
func (s *Session) ExecuteOnce(ctx context.Context, cmd protocol.Command, expectReply bool) (protocol.Frame, error) {
	if err := s.acquire(ctx); err != nil {
		return protocol.Frame{}, err
	}
	defer s.release()

	f, err := s.exchangeLocked(ctx, cmd, expectReply)
	if err != nil && isRetryable(err) {
		return protocol.Frame{}, exhausted(cmd, err)
	}

	return f, err
}

// MarkDisconnected tears the link down. The next exchange reconnects when
// auto-reconnect is enabled.
func (s *Session) MarkDisconnected() {
	if s.connected.Swap(false) {
		s.logger.Info("link marked disconnected")
	}
	_ = s.tr.Close()
}

// Close releases the transport. A blocked exchange is interrupted and every
// later call fails with ErrSessionClosed.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.connected.Store(false)

	return s.tr.Close()
}

func (s *Session) acquire(ctx context.Context) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return protocol.Cancelled(ctx.Err())
	}

	if s.closed.Load() {
		s.release()
		return ErrSessionClosed
	}

	return nil
}

func (s *Session) release() {
	<-s.sem
}

func (s *Session) connectLocked(ctx context.Context) error {
	initial, maxDelay := s.cfg.ConnectBackoff()

	var err error
	for attempt := 1; attempt <= s.cfg.ConnectRetryLimit(); attempt++ {
		if attempt > 1 {
			delay := backoff(initial, maxDelay, attempt-1)
			s.logger.Debug("retrying connect", "attempt", attempt, "delay", delay, "error", err)

			if serr := pool.Sleep(ctx, delay); serr != nil {
				return protocol.Cancelled(serr)
			}
		}

		if err = s.tr.Connect(ctx); err == nil {
			s.dec.Reset()
			s.connected.Store(true)
			if s.everConnected.Swap(true) {
				s.metrics.incReconnectCount()
				s.logger.Info("link reconnected")
			} else {
				s.logger.Info("link connected")
			}

			return nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return protocol.Cancelled(ctxErr)
		}
	}

	s.logger.Error("connect failed", "attempts", s.cfg.ConnectRetryLimit(), "error", err)

	return fmt.Errorf("link: connect %s: %w", s.tr.Endpoint(), err)
}

func (s *Session) ensureConnectedLocked(ctx context.Context) error {
	if s.connected.Load() {
		return nil
	}

	if !s.cfg.AutoReconnect() {
		return ErrNotConnected
	}

	return s.connectLocked(ctx)
}

// exchangeLocked performs one attempt. The caller holds the exchange slot.
func (s *Session) exchangeLocked(ctx context.Context, cmd protocol.Command, expectReply bool) (protocol.Frame, error) {
	if err := ctx.Err(); err != nil {
		return protocol.Frame{}, protocol.Cancelled(err)
	}

	if err := s.ensureConnectedLocked(ctx); err != nil {
		return protocol.Frame{}, err
	}

	if err := s.drainLocked(); err != nil {
		return protocol.Frame{}, s.teardown(cmd, err)
	}

	if err := s.tr.Write(cmd.Encode()); err != nil {
		return protocol.Frame{}, s.teardown(cmd, err)
	}
	s.metrics.incExchangeCount()

	if !expectReply {
		s.metrics.markSuccess()
		return protocol.Frame{}, nil
	}

	deadline := time.Now().Add(s.cfg.ExchangeTimeout())
	droppedBefore := s.dec.Dropped()

	for {
		if err := ctx.Err(); err != nil {
			return protocol.Frame{}, protocol.Cancelled(err)
		}

		now := time.Now()
		if !now.Before(deadline) {
			return protocol.Frame{}, errNoReply
		}

		readDeadline := minTime(deadline, now.Add(s.cfg.readSlice))
		if ctxDeadline, ok := ctx.Deadline(); ok {
			readDeadline = minTime(readDeadline, ctxDeadline)
		}

		chunk, err := s.tr.ReadAvailable(readDeadline)
		if err != nil {
			return protocol.Frame{}, s.teardown(cmd, err)
		}

		if len(chunk) == 0 {
			continue
		}

		frames := s.dec.Feed(chunk)
		if dropped := s.dec.Dropped() - droppedBefore; dropped > 0 {
			s.metrics.addDroppedFrameCount(dropped)
		}

		if len(frames) > 0 {
			s.metrics.markSuccess()
			if len(frames) > 1 {
				s.logger.Debug("discarding extra frames", "command", cmd.String(), "count", len(frames)-1)
			}

			return frames[0], nil
		}

		if s.dec.Dropped() > droppedBefore {
			return protocol.Frame{}, errMalformedReply
		}
	}
}

// drainLocked discards input left over from an abandoned exchange.
func (s *Session) drainLocked() error {
	if n := s.dec.Reset(); n > 0 {
		s.metrics.addDrainedByteCount(n)
	}

	if s.cfg.DrainTimeout() <= 0 {
		return nil
	}

	drained := 0
	for range maxDrainReads {
		chunk, err := s.tr.ReadAvailable(time.Now().Add(s.cfg.DrainTimeout()))
		if err != nil {
			return err
		}
		if len(chunk) == 0 {
			break
		}
		drained += len(chunk)
	}

	if drained > 0 {
		s.metrics.addDrainedByteCount(drained)
		s.logger.Debug("drained stale input", "bytes", drained)
	}

	return nil
}

func (s *Session) teardown(cmd protocol.Command, err error) error {
	s.connected.Store(false)
	_ = s.tr.Close()

	if s.closed.Load() {
		return ErrSessionClosed
	}

	s.logger.Warn("link torn down", "command", cmd.String(), "error", err)

	return fmt.Errorf("link: %s: %w", cmd, err)
}

func isRetryable(err error) bool {
	return errors.Is(err, errNoReply) || errors.Is(err, errMalformedReply)
}

func exhausted(cmd protocol.Command, err error) error {
	kind := protocol.NoAck
	if errors.Is(err, errMalformedReply) {
		kind = protocol.UnexpectedResponse
	}

	return protocol.NewProtocolError(kind, cmd, protocol.StateUnknown, err)
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}

	return b
}
