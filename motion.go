package seymour

import (
	"context"
	"errors"
	"time"

	"github.com/go-seymour/seymour/internal/pool"
	"github.com/go-seymour/seymour/protocol"
)

// MotionResult describes a completed motion wait.
type MotionResult struct {
	// Final is the status that ended the wait, HALTED or STOPPED_AT_RATIO.
	Final protocol.Status
	// Polls is the number of status queries sent.
	Polls int
	// Elapsed is measured from sending the command (or from the start of
	// WaitForMotion) to the final status.
	Elapsed time.Duration
}

// ApplyPreset moves the masks to preset r and waits until they stop.
func (c *Client) ApplyPreset(ctx context.Context, r protocol.Ratio) (MotionResult, error) {
	return c.runMotion(ctx, protocol.MoveToRatio(r))
}

// MoveHome drives motor to its home position and waits until it stops.
func (c *Client) MoveHome(ctx context.Context, motor protocol.MotorID) (MotionResult, error) {
	if err := validMotor(motor); err != nil {
		return MotionResult{}, err
	}

	return c.runMotion(ctx, protocol.Home(motor))
}

// Calibrate runs the calibration cycle for motor and waits until it ends.
func (c *Client) Calibrate(ctx context.Context, motor protocol.MotorID) (MotionResult, error) {
	if err := validMotor(motor); err != nil {
		return MotionResult{}, err
	}

	return c.runMotion(ctx, protocol.Calibrate(motor))
}

// Halt stops motor and waits until the controller reports it at rest.
func (c *Client) Halt(ctx context.Context, motor protocol.MotorID) (MotionResult, error) {
	if err := validMotor(motor); err != nil {
		return MotionResult{}, err
	}

	return c.runMotion(ctx, protocol.Halt(motor))
}

// MoveIn moves motor inward and waits until it stops.
func (c *Client) MoveIn(ctx context.Context, motor protocol.MotorID, mv protocol.Movement) (MotionResult, error) {
	if err := validMove(motor, mv); err != nil {
		return MotionResult{}, err
	}

	return c.runMotion(ctx, protocol.MoveIn(motor, mv))
}

// MoveOut moves motor outward and waits until it stops.
func (c *Client) MoveOut(ctx context.Context, motor protocol.MotorID, mv protocol.Movement) (MotionResult, error) {
	if err := validMove(motor, mv); err != nil {
		return MotionResult{}, err
	}

	return c.runMotion(ctx, protocol.MoveOut(motor, mv))
}

// WaitForMotion polls the status until the screen is at rest, without
// sending a command or waiting for the settle delay first.
func (c *Client) WaitForMotion(ctx context.Context) (MotionResult, error) {
	start := time.Now()
	return c.waitForMotion(ctx, protocol.StatusQuery(), start, start.Add(c.cfg.motionTimeout))
}

func (c *Client) runMotion(ctx context.Context, cmd protocol.Command) (MotionResult, error) {
	start := time.Now()
	deadline := start.Add(c.cfg.motionTimeout)

	c.logger.Debug("sending motion command", "command", cmd.String())

	if err := c.sendMotion(ctx, cmd); err != nil {
		return MotionResult{}, err
	}

	if settle := min(c.cfg.settleDelay, time.Until(deadline)); settle > 0 {
		if err := pool.Sleep(ctx, settle); err != nil {
			return MotionResult{}, protocol.Cancelled(err)
		}
	}

	return c.waitForMotion(ctx, cmd, start, deadline)
}

// sendMotion writes cmd. Without motion acks the completed write counts as
// acceptance; with them a reply frame must arrive within the ack timeout.
func (c *Client) sendMotion(ctx context.Context, cmd protocol.Command) error {
	if !c.cfg.motionAck {
		_, err := c.session.Execute(ctx, cmd)
		return err
	}

	ackCtx, cancel := context.WithTimeout(ctx, c.cfg.ackTimeout)
	defer cancel()

	f, err := c.session.ExecuteOnce(ackCtx, cmd, true)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return protocol.Cancelled(ctx.Err())
	case errors.Is(err, protocol.ErrCancelled), errors.Is(err, protocol.ErrNoAck):
		return protocol.NewProtocolError(protocol.NoAck, cmd, protocol.StateUnknown, err)
	default:
		return err
	}

	if st, perr := protocol.ParseStatus(f); perr == nil && st.State() == protocol.StateError {
		return protocol.NewProtocolError(protocol.DeviceReportedError, cmd, protocol.StateError, nil)
	}

	return nil
}

// waitForMotion is the polling state machine. It ends on an at-rest status,
// an ERROR status, the deadline, cancellation of ctx, a transport failure or
// more than PollRetryBudget consecutive failed polls.
func (c *Client) waitForMotion(ctx context.Context, cmd protocol.Command, start, deadline time.Time) (MotionResult, error) {
	var (
		polls    int
		failures int
		last     = protocol.StateUnknown
	)

	timeout := func() error {
		return &protocol.MotionTimeoutError{
			Command:   cmd.String(),
			LastState: last,
			Polls:     polls,
			Elapsed:   time.Since(start),
			Timeout:   c.cfg.motionTimeout,
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return MotionResult{}, protocol.Cancelled(err)
		}

		if !time.Now().Before(deadline) {
			return MotionResult{}, timeout()
		}

		st, err := c.poll(ctx, deadline)
		polls++

		switch {
		case err == nil:
			failures = 0
			last = st.State()
			c.logger.Debug("motion status", "command", cmd.String(), "status", st.String(), "poll", polls)

			if last.IsAtRest() {
				return MotionResult{Final: st, Polls: polls, Elapsed: time.Since(start)}, nil
			}

			if last == protocol.StateError {
				return MotionResult{}, protocol.NewProtocolError(protocol.DeviceReportedError, cmd, last, nil)
			}

		case ctx.Err() != nil:
			return MotionResult{}, protocol.Cancelled(ctx.Err())

		case errors.Is(err, protocol.ErrCancelled):
			// The poll was cut short by the motion deadline.
			return MotionResult{}, timeout()

		case errors.Is(err, protocol.ErrNoAck), errors.Is(err, protocol.ErrUnexpectedResponse):
			failures++
			c.logger.Warn("status poll failed", "command", cmd.String(), "consecutive", failures, "error", err)

			if failures > c.cfg.pollRetryBudget {
				return MotionResult{}, protocol.NewProtocolError(protocol.PollBudgetExhausted, cmd, last, err)
			}

		default:
			return MotionResult{}, err
		}

		if wait := min(c.cfg.pollInterval, time.Until(deadline)); wait > 0 {
			if err := pool.Sleep(ctx, wait); err != nil {
				return MotionResult{}, protocol.Cancelled(err)
			}
		}
	}
}

// poll sends one status query bounded by the motion deadline.
func (c *Client) poll(ctx context.Context, deadline time.Time) (protocol.Status, error) {
	pollCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	f, err := c.session.ExecuteOnce(pollCtx, protocol.StatusQuery(), true)
	if err != nil {
		return protocol.Status{}, err
	}

	return protocol.ParseStatus(f)
}

func validMotor(m protocol.MotorID) error {
	if !m.Valid() {
		return errors.New("seymour: invalid motor id " + m.String())
	}

	return nil
}

func validMove(m protocol.MotorID, mv protocol.Movement) error {
	if err := validMotor(m); err != nil {
		return err
	}

	switch mv {
	case protocol.MoveUntilLimit, protocol.MoveJog, protocol.MoveStep:
		return nil
	default:
		return errors.New("seymour: invalid movement " + mv.String())
	}
}
