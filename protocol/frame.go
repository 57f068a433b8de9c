package protocol

import (
	"bytes"

	"github.com/go-seymour/seymour/logger"
)

const (
	FrameStart byte = '['
	FrameEnd   byte = ']'

	// Version is the protocol version field that follows FrameStart in
	// every frame, in both directions.
	Version = "01"

	// MaxFrameSize bounds a single frame. The longest legitimate reply, the
	// full ratio settings table, is well below it.
	MaxFrameSize = 4096
)

// Frame is one complete delimited protocol unit, including the brackets.
type Frame struct {
	raw []byte
}

// NewFrame wraps payload into a frame: '[' + Version + payload + ']'.
func NewFrame(payload string) Frame {
	raw := make([]byte, 0, len(payload)+len(Version)+2)
	raw = append(raw, FrameStart)
	raw = append(raw, Version...)
	raw = append(raw, payload...)
	raw = append(raw, FrameEnd)

	return Frame{raw: raw}
}

// Bytes returns the wire bytes of the frame.
func (f Frame) Bytes() []byte { return f.raw }

// Payload returns the bytes between the version field and the closing bracket.
func (f Frame) Payload() []byte {
	if len(f.raw) < len(Version)+2 {
		return nil
	}

	return f.raw[1+len(Version) : len(f.raw)-1]
}

// IsZero reports whether f holds no frame.
func (f Frame) IsZero() bool { return len(f.raw) == 0 }

func (f Frame) String() string { return string(f.raw) }

// Split is the decoding step: given the bytes left over from earlier calls and
// a new chunk, it returns the complete frames found, the bytes to keep for the
// next call and one *DecodeError per malformed span dropped.
//
// Bytes before a start delimiter are line noise and are discarded without an
// error. Split is a pure function; frames never alias acc or chunk.
func Split(acc, chunk []byte) (rest []byte, frames []Frame, errs []error) {
	buf := make([]byte, 0, len(acc)+len(chunk))
	buf = append(buf, acc...)
	buf = append(buf, chunk...)

	for {
		start := bytes.IndexByte(buf, FrameStart)
		if start < 0 {
			return nil, frames, errs
		}
		buf = buf[start:]

		end := bytes.IndexByte(buf[1:], FrameEnd)
		restart := bytes.IndexByte(buf[1:], FrameStart)

		// A new start delimiter before the end abandons the partial span.
		if restart >= 0 && (end < 0 || restart < end) {
			errs = append(errs, newDecodeError("unterminated frame", buf[:restart+1]))
			buf = buf[restart+1:]

			continue
		}

		if end < 0 {
			if len(buf) > MaxFrameSize {
				errs = append(errs, newDecodeError("frame exceeds maximum size", buf[:64]))
				return nil, frames, errs
			}

			return buf, frames, errs
		}

		span := buf[:end+2]
		buf = buf[end+2:]

		if err := validateFrame(span); err != nil {
			errs = append(errs, err)
			continue
		}

		frames = append(frames, Frame{raw: bytes.Clone(span)})
	}
}

func validateFrame(span []byte) error {
	if len(span) > MaxFrameSize {
		return newDecodeError("frame exceeds maximum size", span[:64])
	}

	if len(span) < len(Version)+2 || string(span[1:1+len(Version)]) != Version {
		return newDecodeError("missing protocol version", span)
	}

	// Diagnostics dumps span several lines, so control characters pass.
	for _, b := range span {
		if b >= 0x80 {
			return newDecodeError("non-ASCII byte in frame", span)
		}
	}

	return nil
}

// Decoder turns a byte stream into frames, keeping partial input between
// calls. Malformed spans are logged and dropped; the stream resynchronizes on
// the next start delimiter.
//
// Decoder is not goroutine-safe.
type Decoder struct {
	buf     []byte
	logger  logger.Logger
	dropped uint64
}

// NewDecoder creates a Decoder logging dropped frames to l. A nil l selects
// the default logger.
func NewDecoder(l logger.Logger) *Decoder {
	if l == nil {
		l = logger.GetLogger()
	}

	return &Decoder{logger: l}
}

// Feed decodes chunk and returns the frames it completes.
func (d *Decoder) Feed(chunk []byte) []Frame {
	rest, frames, errs := Split(d.buf, chunk)
	d.buf = rest

	for _, err := range errs {
		d.dropped++
		d.logger.Warn("protocol: dropped malformed frame", "error", err)
	}

	return frames
}

// Reset discards buffered partial input and returns how many bytes were dropped.
func (d *Decoder) Reset() int {
	n := len(d.buf)
	d.buf = nil

	return n
}

// Buffered returns the number of bytes held for an incomplete frame.
func (d *Decoder) Buffered() int { return len(d.buf) }

// Dropped returns the number of malformed spans discarded so far.
func (d *Decoder) Dropped() uint64 { return d.dropped }
