package seymour

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-seymour/seymour/internal/simdevice"
	"github.com/go-seymour/seymour/link"
	"github.com/go-seymour/seymour/logger"
)

func fastOptions(opts ...Option) []Option {
	base := []Option{
		WithLogger(logger.Discard()),
		WithPollInterval(10 * time.Millisecond),
		WithSettleDelay(0),
		WithMotionTimeout(2 * time.Second),
		WithLinkOptions(
			link.WithExchangeTimeout(50*time.Millisecond),
			link.WithRetryBackoff(time.Millisecond, 4*time.Millisecond),
			link.WithConnectBackoff(time.Millisecond, 4*time.Millisecond),
			link.WithDrainTimeout(time.Millisecond),
		),
	}

	return append(base, opts...)
}

func newTestClient(t *testing.T, screen *simdevice.Screen, opts ...Option) (*Client, *simdevice.Device) {
	t.Helper()

	dev := simdevice.NewDevice(screen)
	c, err := NewClient(dev, fastOptions(opts...)...)
	require.NoError(t, err)
	require.NoError(t, c.Open(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	return c, dev
}
