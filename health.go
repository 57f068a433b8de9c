package seymour

import (
	"context"
	"time"

	"github.com/go-seymour/seymour/protocol"
)

// StartHealthMonitor probes the link every interval in the background. A
// probe is skipped when an exchange succeeded within the last interval/2.
// A failed probe marks the link disconnected so the next call reconnects;
// while the link is down no probes are sent.
// An interval <= 0 selects DefaultHealthInterval. Starting an already running
// monitor restarts it with the new interval.
func (c *Client) StartHealthMonitor(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultHealthInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.healthMu.Lock()
	prevCancel, prevDone := c.healthCancel, c.healthDone
	c.healthCancel, c.healthDone = cancel, done
	go c.healthLoop(ctx, interval, done)
	c.healthMu.Unlock()

	if prevCancel != nil {
		prevCancel()
		<-prevDone
	}

	c.logger.Debug("health monitor started", "interval", interval)
}

// StopHealthMonitor stops the background monitor and waits for it to exit.
func (c *Client) StopHealthMonitor() {
	c.healthMu.Lock()
	cancel, done := c.healthCancel, c.healthDone
	c.healthCancel, c.healthDone = nil, nil
	c.healthMu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
}

func (c *Client) healthLoop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkHealth(ctx, interval)
		}
	}
}

func (c *Client) checkHealth(ctx context.Context, interval time.Duration) {
	// a down link is reconnected by the next caller, not by the monitor
	if !c.session.IsConnected() {
		return
	}

	if last := c.session.Metrics().LastSuccess(); !last.IsZero() && time.Since(last) < interval/2 {
		return
	}

	c.healthChecks.Add(1)

	probeCtx, cancel := context.WithTimeout(ctx, c.cfg.healthCheckTimeout)
	defer cancel()

	f, err := c.session.ExecuteOnce(probeCtx, protocol.StatusQuery(), true)
	if err == nil {
		_, err = protocol.ParseStatus(f)
	}

	if err == nil || ctx.Err() != nil {
		return
	}

	c.healthFailures.Add(1)
	c.logger.Warn("health check failed, marking link disconnected", "error", err)
	c.session.MarkDisconnected()
}
