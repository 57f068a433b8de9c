package seymour

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-seymour/seymour/link"
	"github.com/go-seymour/seymour/logger"
	"github.com/go-seymour/seymour/transport"
)

const (
	DefaultPollInterval    = 500 * time.Millisecond
	DefaultSettleDelay     = 2 * time.Second
	DefaultMotionTimeout   = 60 * time.Second
	DefaultPollRetryBudget = 3
	DefaultAckTimeout      = 2 * time.Second

	DefaultHealthInterval     = 90 * time.Second
	DefaultHealthCheckTimeout = 3 * time.Second

	MinPollInterval = 10 * time.Millisecond
)

// Config holds the Client's motion and health policy plus the options passed
// down to the link and transport layers.
type Config struct {
	pollInterval    time.Duration
	settleDelay     time.Duration
	motionTimeout   time.Duration
	pollRetryBudget int
	motionAck       bool
	ackTimeout      time.Duration

	healthCheckTimeout time.Duration

	linkOpts      []link.Option
	transportOpts []transport.Option

	logger logger.Logger
}

// NewConfig creates a Config with defaults, then applies opts in order.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		pollInterval:       DefaultPollInterval,
		settleDelay:        DefaultSettleDelay,
		motionTimeout:      DefaultMotionTimeout,
		pollRetryBudget:    DefaultPollRetryBudget,
		ackTimeout:         DefaultAckTimeout,
		healthCheckTimeout: DefaultHealthCheckTimeout,
		logger:             logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// PollInterval returns the delay between status polls during a motion wait.
func (cfg *Config) PollInterval() time.Duration { return cfg.pollInterval }

// SettleDelay returns the wait between sending a motion command and the first poll.
func (cfg *Config) SettleDelay() time.Duration { return cfg.settleDelay }

// MotionTimeout returns the overall bound of a motion wait.
func (cfg *Config) MotionTimeout() time.Duration { return cfg.motionTimeout }

// PollRetryBudget returns how many consecutive failed polls are tolerated.
func (cfg *Config) PollRetryBudget() int { return cfg.pollRetryBudget }

// MotionAck reports whether motion commands wait for a reply frame.
func (cfg *Config) MotionAck() bool { return cfg.motionAck }

// AckTimeout returns how long a motion command waits for its reply when MotionAck is on.
func (cfg *Config) AckTimeout() time.Duration { return cfg.ackTimeout }

// HealthCheckTimeout returns the bound of one health probe.
func (cfg *Config) HealthCheckTimeout() time.Duration { return cfg.healthCheckTimeout }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Option is a functional option for configuring a Client.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithPollInterval sets the delay between status polls.
func WithPollInterval(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinPollInterval {
			return fmt.Errorf("seymour: poll interval %v below minimum %v", d, MinPollInterval)
		}
		cfg.pollInterval = d

		return nil
	})
}

// WithSettleDelay sets the wait before the first status poll. The controller
// needs a moment after a motion command before it reports movement.
func WithSettleDelay(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 {
			return errors.New("seymour: settle delay must not be negative")
		}
		cfg.settleDelay = d

		return nil
	})
}

// WithMotionTimeout sets the overall bound of a motion wait.
func WithMotionTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("seymour: motion timeout must be positive")
		}
		cfg.motionTimeout = d

		return nil
	})
}

// WithPollRetryBudget sets how many consecutive failed status polls are
// tolerated before a motion wait gives up.
func WithPollRetryBudget(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 0 {
			return fmt.Errorf("seymour: poll retry budget %d must not be negative", n)
		}
		cfg.pollRetryBudget = n

		return nil
	})
}

// WithMotionAck makes motion commands wait for a reply frame before polling.
// Off by default: the controller does not acknowledge motion commands.
func WithMotionAck(enabled bool) Option {
	return optFunc(func(cfg *Config) error {
		cfg.motionAck = enabled
		return nil
	})
}

// WithAckTimeout sets how long a motion command waits for its reply.
func WithAckTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("seymour: ack timeout must be positive")
		}
		cfg.ackTimeout = d

		return nil
	})
}

// WithHealthCheckTimeout sets the bound of one health probe.
func WithHealthCheckTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("seymour: health check timeout must be positive")
		}
		cfg.healthCheckTimeout = d

		return nil
	})
}

// WithLinkOptions passes options to the underlying link session.
func WithLinkOptions(opts ...link.Option) Option {
	return optFunc(func(cfg *Config) error {
		cfg.linkOpts = append(cfg.linkOpts, opts...)
		return nil
	})
}

// WithTransportOptions passes options to the transport built by Connect.
func WithTransportOptions(opts ...transport.Option) Option {
	return optFunc(func(cfg *Config) error {
		cfg.transportOpts = append(cfg.transportOpts, opts...)
		return nil
	})
}

// WithLogger sets the client logger. It is also handed to the link and
// transport layers unless they are given their own.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("seymour: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
