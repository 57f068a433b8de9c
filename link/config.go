package link

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-seymour/seymour/logger"
)

const (
	DefaultExchangeTimeout = 10 * time.Second // Reply timeout per attempt
	DefaultRetryLimit      = 2                // Retries after the first attempt
	DefaultRetryBackoff    = 500 * time.Millisecond
	DefaultMaxRetryBackoff = 10 * time.Second
	DefaultDrainTimeout    = 10 * time.Millisecond
	DefaultReadSlice       = 50 * time.Millisecond

	DefaultConnectRetryLimit = 3 // Connect attempts per (re)connect
	DefaultConnectBackoff    = time.Second
	DefaultMaxConnectBackoff = 30 * time.Second

	MinExchangeTimeout   = 10 * time.Millisecond
	MaxRetryLimit        = 10
	MaxConnectRetryLimit = 20
)

// Config holds the exchange policy of a Session.
type Config struct {
	exchangeTimeout time.Duration

	retryLimit      int
	retryBackoff    time.Duration
	maxRetryBackoff time.Duration

	drainTimeout time.Duration
	readSlice    time.Duration

	connectRetryLimit int
	connectBackoff    time.Duration
	maxConnectBackoff time.Duration
	autoReconnect     bool

	logger logger.Logger
}

// NewConfig creates a Config with defaults, then applies opts in order.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		exchangeTimeout:   DefaultExchangeTimeout,
		retryLimit:        DefaultRetryLimit,
		retryBackoff:      DefaultRetryBackoff,
		maxRetryBackoff:   DefaultMaxRetryBackoff,
		drainTimeout:      DefaultDrainTimeout,
		readSlice:         DefaultReadSlice,
		connectRetryLimit: DefaultConnectRetryLimit,
		connectBackoff:    DefaultConnectBackoff,
		maxConnectBackoff: DefaultMaxConnectBackoff,
		autoReconnect:     true,
		logger:            logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// --- Getters ---

// ExchangeTimeout returns how long one attempt waits for its reply.
func (cfg *Config) ExchangeTimeout() time.Duration { return cfg.exchangeTimeout }

// RetryLimit returns how many times a failed exchange is retried.
func (cfg *Config) RetryLimit() int { return cfg.retryLimit }

// RetryBackoff returns the initial and maximum delay between retries.
func (cfg *Config) RetryBackoff() (initial, maxDelay time.Duration) {
	return cfg.retryBackoff, cfg.maxRetryBackoff
}

// DrainTimeout returns how long stale input is read before each exchange.
func (cfg *Config) DrainTimeout() time.Duration { return cfg.drainTimeout }

// ConnectRetryLimit returns the number of connect attempts per (re)connect.
func (cfg *Config) ConnectRetryLimit() int { return cfg.connectRetryLimit }

// ConnectBackoff returns the initial and maximum delay between connect attempts.
func (cfg *Config) ConnectBackoff() (initial, maxDelay time.Duration) {
	return cfg.connectBackoff, cfg.maxConnectBackoff
}

// AutoReconnect reports whether a torn-down link is reconnected on the next exchange.
func (cfg *Config) AutoReconnect() bool { return cfg.autoReconnect }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// --- Option ---

// Option is a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithExchangeTimeout sets the per-attempt reply timeout.
func WithExchangeTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinExchangeTimeout {
			return fmt.Errorf("link: exchange timeout %v below minimum %v", d, MinExchangeTimeout)
		}
		cfg.exchangeTimeout = d

		return nil
	})
}

// WithRetryLimit sets how many times a failed exchange is retried. 0 disables retries.
func WithRetryLimit(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 0 || n > MaxRetryLimit {
			return fmt.Errorf("link: retry limit %d out of range [0, %d]", n, MaxRetryLimit)
		}
		cfg.retryLimit = n

		return nil
	})
}

// WithRetryBackoff sets the first retry delay and its cap. The delay doubles
// after every failed attempt.
func WithRetryBackoff(initial, maxDelay time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if initial < 0 || maxDelay < initial {
			return fmt.Errorf("link: invalid retry backoff [%v, %v]", initial, maxDelay)
		}
		cfg.retryBackoff = initial
		cfg.maxRetryBackoff = maxDelay

		return nil
	})
}

// WithDrainTimeout sets how long stale input is read before each exchange.
// 0 disables draining.
func WithDrainTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 {
			return errors.New("link: drain timeout must not be negative")
		}
		cfg.drainTimeout = d

		return nil
	})
}

// WithConnectRetryLimit sets the number of connect attempts per (re)connect.
func WithConnectRetryLimit(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 1 || n > MaxConnectRetryLimit {
			return fmt.Errorf("link: connect retry limit %d out of range [1, %d]", n, MaxConnectRetryLimit)
		}
		cfg.connectRetryLimit = n

		return nil
	})
}

// WithConnectBackoff sets the first delay between connect attempts and its cap.
func WithConnectBackoff(initial, maxDelay time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if initial < 0 || maxDelay < initial {
			return fmt.Errorf("link: invalid connect backoff [%v, %v]", initial, maxDelay)
		}
		cfg.connectBackoff = initial
		cfg.maxConnectBackoff = maxDelay

		return nil
	})
}

// WithAutoReconnect enables or disables lazy reconnection after a transport
// failure. Enabled by default.
func WithAutoReconnect(enabled bool) Option {
	return optFunc(func(cfg *Config) error {
		cfg.autoReconnect = enabled
		return nil
	})
}

// WithLogger sets the session logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("link: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}

// backoff returns the delay before retry number attempt (1-based).
func backoff(initial, maxDelay time.Duration, attempt int) time.Duration {
	d := initial
	for i := 1; i < attempt && d < maxDelay; i++ {
		d *= 2
	}

	return min(d, maxDelay)
}
