package simdevice

import (
	"sync"
	"time"

	"github.com/go-seymour/seymour/protocol"
)

// Default canned replies.
const (
	DefaultPositions  = "[012T50.0B50.0]"
	DefaultSystemInfo = "[01PRH-123             0123.00069.1SS-0325-Berg TB]"
	DefaultSettings   = "[01101123TestLbl 160.01092.0050.0-5.0]"
	DefaultStatus     = "[01P178]"
)

// Reply is one chunk of bytes sent back by the simulated controller.
// Data is written verbatim, so it may hold noise or malformed frames.
type Reply struct {
	Data  string
	Delay time.Duration
}

// Handler answers one decoded request frame.
type Handler interface {
	Handle(frame string) []Reply
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(frame string) []Reply

func (f HandlerFunc) Handle(frame string) []Reply { return f(frame) }

// Screen is a scripted controller. Status queries pop the next scripted
// reply; the last one repeats. An empty script entry produces no reply.
type Screen struct {
	mu sync.Mutex

	statuses    []string
	positions   string
	systemInfo  string
	settings    string
	diagnostics string
	motionAck   string
	delay       time.Duration

	received []string
	counts   map[protocol.CommandCode]int
}

// NewScreen returns a Screen at rest at ratio 178 with the default canned replies.
func NewScreen() *Screen {
	return &Screen{
		statuses:    []string{DefaultStatus},
		positions:   DefaultPositions,
		systemInfo:  DefaultSystemInfo,
		settings:    DefaultSettings,
		diagnostics: "[01@ok]",
		counts:      make(map[protocol.CommandCode]int),
	}
}

// SetStatus replaces the status script.
func (s *Screen) SetStatus(replies ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.statuses = append([]string(nil), replies...)
}

// MovingThen scripts n moving-to-ratio replies followed by final.
func (s *Screen) MovingThen(n int, final string) {
	replies := make([]string, 0, n+1)
	for range n {
		replies = append(replies, "[01M178]")
	}
	s.SetStatus(append(replies, final)...)
}

// SetPositions sets the positions reply.
func (s *Screen) SetPositions(reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions = reply
}

// SetSystemInfo sets the system info reply.
func (s *Screen) SetSystemInfo(reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.systemInfo = reply
}

// SetSettings sets the ratio settings reply.
func (s *Screen) SetSettings(reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings = reply
}

// SetDiagnostics sets the diagnostics reply.
func (s *Screen) SetDiagnostics(reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.diagnostics = reply
}

// SetMotionAck makes the screen answer motion commands with reply.
// An empty reply (the default) leaves them unanswered like the real controller.
func (s *Screen) SetMotionAck(reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.motionAck = reply
}

// SetReplyDelay delays every reply by d.
func (s *Screen) SetReplyDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.delay = d
}

// Count returns how many frames with the given command code were received.
func (s *Screen) Count(code protocol.CommandCode) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.counts[code]
}

// Received returns every request frame in arrival order.
func (s *Screen) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.received...)
}

// Handle implements Handler.
func (s *Screen) Handle(frame string) []Reply {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.received = append(s.received, frame)

	if len(frame) < len(protocol.Version)+3 {
		return nil
	}
	payload := frame[1+len(protocol.Version) : len(frame)-1]

	code := protocol.CommandCode(payload[0])
	s.counts[code]++

	var data string
	switch {
	case code == protocol.CmdStatus:
		data = s.statuses[0]
		if len(s.statuses) > 1 {
			s.statuses = s.statuses[1:]
		}
	case code == protocol.CmdPositions && len(payload) == 1:
		data = s.positions
	case code == protocol.CmdReadSystemInfo:
		data = s.systemInfo
	case code == protocol.CmdReadSettings:
		data = s.settings
	case code == protocol.CmdDiagnostics:
		data = s.diagnostics
	case code.IsMotion():
		data = s.motionAck
	}

	if data == "" {
		return nil
	}

	return []Reply{{Data: data, Delay: s.delay}}
}
