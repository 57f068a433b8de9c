package simdevice

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-seymour/seymour/protocol"
	"github.com/go-seymour/seymour/transport"
)

func TestDevice_ScriptedStatus(t *testing.T) {
	screen := NewScreen()
	screen.MovingThen(2, "[01H]")

	dev := NewDevice(screen)
	require.NoError(t, dev.Connect(context.Background()))

	for _, want := range []string{"[01M178]", "[01M178]", "[01H]", "[01H]"} {
		require.NoError(t, dev.Write(protocol.StatusQuery().Encode()))
		got, err := dev.ReadAvailable(time.Now().Add(time.Second))
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}

	assert.Equal(t, 4, screen.Count(protocol.CmdStatus))
}

func TestDevice_MotionUnanswered(t *testing.T) {
	dev := NewDevice(NewScreen())
	require.NoError(t, dev.Connect(context.Background()))

	require.NoError(t, dev.Write(protocol.MoveToRatio(178).Encode()))
	got, err := dev.ReadAvailable(time.Now().Add(20 * time.Millisecond))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, []string{"> [01M178]"}, dev.Log())
}

func TestDevice_ChunkedReads(t *testing.T) {
	dev := NewDevice(NewScreen())
	dev.SetChunkSize(3)
	require.NoError(t, dev.Connect(context.Background()))

	require.NoError(t, dev.Write(protocol.StatusQuery().Encode()))

	var got []byte
	for len(got) < len(DefaultStatus) {
		chunk, err := dev.ReadAvailable(time.Now().Add(time.Second))
		require.NoError(t, err)
		require.LessOrEqual(t, len(chunk), 3)
		got = append(got, chunk...)
	}
	assert.Equal(t, DefaultStatus, string(got))
}

func TestDevice_Failures(t *testing.T) {
	dev := NewDevice(NewScreen())

	err := dev.Write([]byte("[01S]"))
	require.ErrorIs(t, err, transport.ErrClosed)

	dev.FailConnect(assert.AnError)
	require.ErrorIs(t, dev.Connect(context.Background()), transport.ErrConnectionRefused)
	require.NoError(t, dev.Connect(context.Background()))
	assert.Equal(t, 1, dev.Connects())

	dev.FailNextWrite(assert.AnError)
	require.ErrorIs(t, dev.Write([]byte("[01S]")), transport.ErrWriteFailed)
	assert.False(t, dev.Connected())

	require.NoError(t, dev.Connect(context.Background()))
	dev.FailNextRead(assert.AnError)
	_, err = dev.ReadAvailable(time.Now().Add(time.Second))
	require.ErrorIs(t, err, transport.ErrReadFailed)

	require.NoError(t, dev.Connect(context.Background()))
	dev.Drop()
	_, err = dev.ReadAvailable(time.Now().Add(time.Second))
	require.ErrorIs(t, err, transport.ErrClosed)
}

func TestDevice_DelayedReplyDroppedAfterReconnect(t *testing.T) {
	screen := NewScreen()
	screen.SetReplyDelay(30 * time.Millisecond)

	dev := NewDevice(screen)
	require.NoError(t, dev.Connect(context.Background()))
	require.NoError(t, dev.Write(protocol.StatusQuery().Encode()))
	require.NoError(t, dev.Connect(context.Background()))

	got, err := dev.ReadAvailable(time.Now().Add(80 * time.Millisecond))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestServe(t *testing.T) {
	srv, err := Listen(NewScreen())
	require.NoError(t, err)
	defer srv.Close()

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("[01"))
	require.NoError(t, err)
	_, err = conn.Write([]byte("S]"))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	buf := make([]byte, len(DefaultStatus))
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, DefaultStatus, string(buf))
}
