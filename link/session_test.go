package link

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-seymour/seymour/internal/simdevice"
	"github.com/go-seymour/seymour/logger"
	"github.com/go-seymour/seymour/protocol"
	"github.com/go-seymour/seymour/transport"
)

func TestSession_ExecuteQuery(t *testing.T) {
	s, dev := newTestSession(t, simdevice.NewScreen())

	f, err := s.Execute(context.Background(), protocol.StatusQuery())
	require.NoError(t, err)
	assert.Equal(t, simdevice.DefaultStatus, f.String())
	assert.Equal(t, []string{"> [01S]", "< [01P178]"}, dev.Log())
	assert.Equal(t, uint64(1), s.Metrics().ExchangeCount.Load())
	assert.False(t, s.Metrics().LastSuccess().IsZero())
}

func TestSession_ExecuteNoReplyCommand(t *testing.T) {
	s, dev := newTestSession(t, simdevice.NewScreen())

	f, err := s.Execute(context.Background(), protocol.MoveToRatio(178))
	require.NoError(t, err)
	assert.True(t, f.IsZero())
	assert.Equal(t, []string{"[01M178]"}, dev.Writes())
}

func TestSession_ChunkedReply(t *testing.T) {
	screen := simdevice.NewScreen()
	s, dev := newTestSession(t, screen)
	dev.SetChunkSize(1)

	f, err := s.Execute(context.Background(), protocol.SystemInfoQuery())
	require.NoError(t, err)
	assert.Equal(t, simdevice.DefaultSystemInfo, f.String())
}

func TestSession_RetriesMissingReply(t *testing.T) {
	screen := simdevice.NewScreen()
	screen.SetStatus("", "", "[01H]")
	s, dev := newTestSession(t, screen)

	f, err := s.Execute(context.Background(), protocol.StatusQuery())
	require.NoError(t, err)
	assert.Equal(t, "[01H]", f.String())
	assert.Len(t, dev.Writes(), 3)
	assert.Equal(t, uint64(2), s.Metrics().RetryCount.Load())
}

func TestSession_RetryExhaustedNoAck(t *testing.T) {
	screen := simdevice.NewScreen()
	screen.SetStatus("")
	s, dev := newTestSession(t, screen, WithRetryLimit(2))

	_, err := s.Execute(context.Background(), protocol.StatusQuery())
	require.ErrorIs(t, err, protocol.ErrNoAck)

	var pe *protocol.ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, protocol.NoAck, pe.Kind)
	assert.Len(t, dev.Writes(), 3)
	assert.True(t, s.IsConnected(), "missing replies do not tear the link down")
}

func TestSession_RetryExhaustedLogsWarning(t *testing.T) {
	ml := logger.NewMockLogger()
	ml.Tolerate(logger.DebugLevel, logger.InfoLevel)
	ml.Expect(logger.WarnLevel, "exchange failed").Once()

	screen := simdevice.NewScreen()
	screen.SetStatus("")
	s, _ := newTestSession(t, screen, WithRetryLimit(1), WithLogger(ml))

	_, err := s.Execute(context.Background(), protocol.StatusQuery())
	require.ErrorIs(t, err, protocol.ErrNoAck)
	ml.AssertExpectations(t)
}

func TestSession_MalformedReplyRetried(t *testing.T) {
	screen := simdevice.NewScreen()
	screen.SetStatus("[02P178]", "[01P178]")
	s, dev := newTestSession(t, screen)

	f, err := s.Execute(context.Background(), protocol.StatusQuery())
	require.NoError(t, err)
	assert.Equal(t, "[01P178]", f.String())
	assert.Len(t, dev.Writes(), 2)
	assert.Equal(t, uint64(1), s.Metrics().DroppedFrameCount.Load())
}

func TestSession_MalformedExhaustedUnexpectedResponse(t *testing.T) {
	screen := simdevice.NewScreen()
	screen.SetStatus("[01Z]")
	s, _ := newTestSession(t, screen, WithRetryLimit(1))

	validate := func(f protocol.Frame) error {
		_, err := protocol.ParseStatus(f)
		return err
	}

	_, err := s.ExecuteValidated(context.Background(), protocol.StatusQuery(), validate)
	require.ErrorIs(t, err, protocol.ErrUnexpectedResponse)

	var pe *protocol.ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, protocol.UnexpectedResponse, pe.Kind)
}

func TestSession_ExecuteOnceDoesNotRetry(t *testing.T) {
	screen := simdevice.NewScreen()
	screen.SetStatus("")
	s, dev := newTestSession(t, screen)

	_, err := s.ExecuteOnce(context.Background(), protocol.StatusQuery(), true)
	require.ErrorIs(t, err, protocol.ErrNoAck)
	assert.Len(t, dev.Writes(), 1)
}

func TestSession_DrainsStaleInput(t *testing.T) {
	s, dev := newTestSession(t, simdevice.NewScreen())

	dev.Inject("[01M999]")
	f, err := s.Execute(context.Background(), protocol.StatusQuery())
	require.NoError(t, err)
	assert.Equal(t, simdevice.DefaultStatus, f.String())
	assert.Equal(t, uint64(len("[01M999]")), s.Metrics().DrainedByteCount.Load())
}

func TestSession_TransportFailureTearsDownAndReconnects(t *testing.T) {
	s, dev := newTestSession(t, simdevice.NewScreen())

	dev.FailNextWrite(errors.New("broken pipe"))
	_, err := s.Execute(context.Background(), protocol.StatusQuery())
	require.ErrorIs(t, err, transport.ErrWriteFailed)

	var te *transport.Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, transport.WriteFailed, te.Kind)
	assert.False(t, s.IsConnected())

	f, err := s.Execute(context.Background(), protocol.StatusQuery())
	require.NoError(t, err)
	assert.Equal(t, simdevice.DefaultStatus, f.String())
	assert.True(t, s.IsConnected())
	assert.Equal(t, 2, dev.Connects())
	assert.Equal(t, uint64(1), s.Metrics().ReconnectCount.Load())
}

func TestSession_ReadFailureIsFatal(t *testing.T) {
	s, dev := newTestSession(t, simdevice.NewScreen())

	dev.FailNextRead(errors.New("reset"))
	_, err := s.Execute(context.Background(), protocol.StatusQuery())
	require.ErrorIs(t, err, transport.ErrReadFailed)
	assert.NotErrorIs(t, err, protocol.ErrNoAck)
}

func TestSession_NoAutoReconnect(t *testing.T) {
	s, dev := newTestSession(t, simdevice.NewScreen(), WithAutoReconnect(false))

	dev.Drop()
	_, err := s.Execute(context.Background(), protocol.StatusQuery())
	require.ErrorIs(t, err, transport.ErrClosed)

	_, err = s.Execute(context.Background(), protocol.StatusQuery())
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestSession_ConnectRetries(t *testing.T) {
	dev := simdevice.NewDevice(simdevice.NewScreen())
	dev.FailConnect(errors.New("refused"), errors.New("refused"))

	s, err := NewSession(dev, fastConfig(t, WithConnectRetryLimit(3)))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Connect(context.Background()))
	assert.True(t, s.IsConnected())
	assert.Equal(t, 1, dev.Connects())
}

func TestSession_ConnectGivesUp(t *testing.T) {
	dev := simdevice.NewDevice(simdevice.NewScreen())
	dev.FailConnect(errors.New("a"), errors.New("b"), errors.New("c"))

	s, err := NewSession(dev, fastConfig(t, WithConnectRetryLimit(3)))
	require.NoError(t, err)
	defer s.Close()

	err = s.Connect(context.Background())
	require.ErrorIs(t, err, transport.ErrConnectionRefused)
	assert.False(t, s.IsConnected())
}

func TestSession_CancelKeepsSessionUsable(t *testing.T) {
	screen := simdevice.NewScreen()
	screen.SetReplyDelay(30 * time.Millisecond)
	s, _ := newTestSession(t, screen, WithExchangeTimeout(time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := s.Execute(ctx, protocol.StatusQuery())
	require.ErrorIs(t, err, protocol.ErrCancelled)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, s.IsConnected())

	// Let the abandoned reply land so the next exchange has to drain it.
	time.Sleep(60 * time.Millisecond)
	screen.SetReplyDelay(0)
	screen.SetStatus("[01H]")

	f, err := s.Execute(context.Background(), protocol.StatusQuery())
	require.NoError(t, err)
	assert.Equal(t, "[01H]", f.String())
}

func TestSession_AdmissionHonoursCancellation(t *testing.T) {
	screen := simdevice.NewScreen()
	screen.SetReplyDelay(100 * time.Millisecond)
	s, _ := newTestSession(t, screen, WithExchangeTimeout(time.Second))

	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		close(started)
		_, _ = s.Execute(context.Background(), protocol.StatusQuery())
	}()
	<-started
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	begin := time.Now()
	_, err := s.Execute(ctx, protocol.PositionsQuery())
	require.ErrorIs(t, err, protocol.ErrCancelled)
	assert.Less(t, time.Since(begin), 80*time.Millisecond)
	<-done
}

func TestSession_ExchangesNeverInterleave(t *testing.T) {
	screen := simdevice.NewScreen()
	screen.SetReplyDelay(2 * time.Millisecond)
	s, dev := newTestSession(t, screen, WithExchangeTimeout(time.Second))
	dev.SetChunkSize(2)

	cmds := []protocol.Command{
		protocol.StatusQuery(),
		protocol.PositionsQuery(),
		protocol.SystemInfoQuery(),
		protocol.SettingsQuery(),
	}

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(cmd protocol.Command) {
			defer wg.Done()
			_, err := s.Execute(context.Background(), cmd)
			assert.NoError(t, err)
		}(cmds[i%len(cmds)])
	}
	wg.Wait()

	log := dev.Log()
	require.Len(t, log, 40)
	for i := 0; i < len(log); i += 2 {
		assert.True(t, strings.HasPrefix(log[i], "> "), "entry %d: %s", i, log[i])
		assert.True(t, strings.HasPrefix(log[i+1], "< "), "entry %d: %s", i+1, log[i+1])
	}
}

func TestSession_FIFOAdmission(t *testing.T) {
	screen := simdevice.NewScreen()
	screen.SetReplyDelay(20 * time.Millisecond)
	s, dev := newTestSession(t, screen, WithExchangeTimeout(time.Second))

	ratios := []protocol.Ratio{101, 102, 103, 104}

	var wg sync.WaitGroup
	// Hold the slot so the others queue up in a known order.
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = s.Execute(context.Background(), protocol.StatusQuery())
	}()
	time.Sleep(5 * time.Millisecond)

	for _, r := range ratios {
		wg.Add(1)
		go func(r protocol.Ratio) {
			defer wg.Done()
			_, _ = s.Execute(context.Background(), protocol.UpdateRatio(r))
		}(r)
		time.Sleep(3 * time.Millisecond)
	}
	wg.Wait()

	assert.Equal(t, []string{"[01S]", "[01U101]", "[01U102]", "[01U103]", "[01U104]"}, dev.Writes())
}

func TestSession_Close(t *testing.T) {
	s, dev := newTestSession(t, simdevice.NewScreen())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.False(t, s.IsConnected())
	assert.False(t, dev.Connected())

	_, err := s.Execute(context.Background(), protocol.StatusQuery())
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestSession_MarkDisconnected(t *testing.T) {
	s, dev := newTestSession(t, simdevice.NewScreen())

	s.MarkDisconnected()
	assert.False(t, s.IsConnected())

	_, err := s.Execute(context.Background(), protocol.StatusQuery())
	require.NoError(t, err)
	assert.Equal(t, 2, dev.Connects())
}

func TestNewSession_NilTransport(t *testing.T) {
	_, err := NewSession(nil, nil)
	require.Error(t, err)
}
