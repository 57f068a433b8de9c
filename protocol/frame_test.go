package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-seymour/seymour/logger"
)

func frameStrings(frames []Frame) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.String()
	}

	return out
}

func TestNewFrame(t *testing.T) {
	f := NewFrame("P178")
	assert.Equal(t, "[01P178]", f.String())
	assert.Equal(t, []byte("P178"), f.Payload())
	assert.False(t, f.IsZero())
	assert.True(t, Frame{}.IsZero())
	assert.Nil(t, Frame{}.Payload())
}

func TestSplit_SingleChunk(t *testing.T) {
	rest, frames, errs := Split(nil, []byte("[01P178][01H]"))
	assert.Empty(t, rest)
	assert.Empty(t, errs)
	assert.Equal(t, []string{"[01P178]", "[01H]"}, frameStrings(frames))
}

func TestSplit_MultiLinePayload(t *testing.T) {
	stream := "[01@line one\r\nline two\tend]"

	rest, frames, errs := Split(nil, []byte(stream))
	assert.Empty(t, rest)
	assert.Empty(t, errs)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte("@line one\r\nline two\tend"), frames[0].Payload())

	d := NewDecoder(logger.Discard())
	assert.Empty(t, d.Feed([]byte(stream[:14])))
	assert.Equal(t, []string{stream}, frameStrings(d.Feed([]byte(stream[14:]))))
	assert.Zero(t, d.Dropped())
}

func TestSplit_PartialKeepsRest(t *testing.T) {
	rest, frames, errs := Split(nil, []byte("[01P1"))
	assert.Empty(t, frames)
	assert.Empty(t, errs)
	assert.Equal(t, []byte("[01P1"), rest)

	rest, frames, errs = Split(rest, []byte("78]"))
	assert.Empty(t, rest)
	assert.Empty(t, errs)
	assert.Equal(t, []string{"[01P178]"}, frameStrings(frames))
}

func TestSplit_ChunkBoundaryIndependence(t *testing.T) {
	stream := []byte("noise[01P178]\r\n[013T25.5B75.0L-10.][01H]")
	want := []string{"[01P178]", "[013T25.5B75.0L-10.]", "[01H]"}

	for i := 0; i <= len(stream); i++ {
		for j := i; j <= len(stream); j++ {
			var got []Frame
			var acc []byte
			for _, chunk := range [][]byte{stream[:i], stream[i:j], stream[j:]} {
				var frames []Frame
				var errs []error
				acc, frames, errs = Split(acc, chunk)
				require.Empty(t, errs, "split at %d/%d", i, j)
				got = append(got, frames...)
			}
			require.Equal(t, want, frameStrings(got), "split at %d/%d", i, j)
			require.Empty(t, acc)
		}
	}
}

func TestSplit_NoiseOnly(t *testing.T) {
	rest, frames, errs := Split(nil, []byte("garbage\r\n\x00\xff"))
	assert.Empty(t, rest)
	assert.Empty(t, frames)
	assert.Empty(t, errs)
}

func TestSplit_MalformedRecovery(t *testing.T) {
	tests := []struct {
		name   string
		stream string
		want   []string
		errs   int
	}{
		{"unterminated then valid", "[01P1[01H]", []string{"[01H]"}, 1},
		{"wrong version", "[02P178][01H]", []string{"[01H]"}, 1},
		{"too short", "[0][01H]", []string{"[01H]"}, 1},
		{"non ascii", "[01P\xff178][01A]", []string{"[01A]"}, 1},
		{"latin-1 label", "[01R\xe9][01A]", []string{"[01A]"}, 1},
		{"two bad in a row", "[01[02X][01E]", []string{"[01E]"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rest, frames, errs := Split(nil, []byte(tt.stream))
			assert.Empty(t, rest)
			assert.Equal(t, tt.want, frameStrings(frames))
			require.Len(t, errs, tt.errs)
			for _, err := range errs {
				var decErr *DecodeError
				require.ErrorAs(t, err, &decErr)
				assert.ErrorIs(t, err, ErrMalformedFrame)
			}
		})
	}
}

func TestSplit_Oversize(t *testing.T) {
	big := append([]byte("[01"), bytes.Repeat([]byte("A"), MaxFrameSize)...)
	rest, frames, errs := Split(nil, big)
	assert.Empty(t, rest)
	assert.Empty(t, frames)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrMalformedFrame)
}

func TestSplit_FramesDoNotAliasInput(t *testing.T) {
	chunk := []byte("[01H]")
	_, frames, _ := Split(nil, chunk)
	require.Len(t, frames, 1)

	chunk[3] = 'E'
	assert.Equal(t, "[01H]", frames[0].String())
}

func TestDecoder_FeedAndReset(t *testing.T) {
	d := NewDecoder(logger.Discard())

	assert.Empty(t, d.Feed([]byte("xx[01M")))
	assert.Equal(t, 4, d.Buffered())

	frames := d.Feed([]byte("178][01")) // completes one frame, buffers the next start
	assert.Equal(t, []string{"[01M178]"}, frameStrings(frames))
	assert.Equal(t, 3, d.Buffered())

	assert.Equal(t, 3, d.Reset())
	assert.Equal(t, 0, d.Buffered())

	assert.Equal(t, []string{"[01H]"}, frameStrings(d.Feed([]byte("[01H]"))))
	assert.Zero(t, d.Dropped())
}

func TestDecoder_LogsDroppedFrames(t *testing.T) {
	ml := new(logger.MockLogger)
	ml.Expect(logger.WarnLevel, "protocol: dropped malformed frame").Once()

	d := NewDecoder(ml)
	frames := d.Feed([]byte("[02X][01H]"))

	assert.Equal(t, []string{"[01H]"}, frameStrings(frames))
	assert.Equal(t, uint64(1), d.Dropped())
	ml.AssertExpectations(t)
}
