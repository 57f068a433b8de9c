package link

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-seymour/seymour/internal/simdevice"
	"github.com/go-seymour/seymour/logger"
)

// fastConfig keeps retries and timeouts short enough for unit tests.
func fastConfig(t *testing.T, opts ...Option) *Config {
	t.Helper()

	base := []Option{
		WithExchangeTimeout(50 * time.Millisecond),
		WithRetryBackoff(time.Millisecond, 4*time.Millisecond),
		WithConnectBackoff(time.Millisecond, 4*time.Millisecond),
		WithDrainTimeout(time.Millisecond),
		WithLogger(logger.Discard()),
	}

	cfg, err := NewConfig(append(base, opts...)...)
	require.NoError(t, err)

	return cfg
}

func newTestSession(t *testing.T, screen *simdevice.Screen, opts ...Option) (*Session, *simdevice.Device) {
	t.Helper()

	dev := simdevice.NewDevice(screen)
	s, err := NewSession(dev, fastConfig(t, opts...))
	require.NoError(t, err)
	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(func() { _ = s.Close() })

	return s, dev
}
