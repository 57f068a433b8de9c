package transport

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Kind identifies the physical medium of an Endpoint.
type Kind uint8

const (
	KindTCP Kind = iota + 1
	KindSerial
)

func (k Kind) String() string {
	switch k {
	case KindTCP:
		return "tcp"
	case KindSerial:
		return "serial"
	default:
		return "unknown"
	}
}

const (
	// DefaultTCPPort is the raw serial data port of an IP2SL bridge. The bridge's
	// configuration interface lives on a different port.
	DefaultTCPPort = 4999

	// BaudRate is the controller's fixed line speed (8 data bits, no parity, 1 stop bit).
	BaudRate = 115200
)

// Endpoint identifies a physical target. It is immutable; build one with
// TCPEndpoint, SerialEndpoint or ParseEndpoint.
type Endpoint struct {
	kind   Kind
	host   string
	port   int
	device string
}

// TCPEndpoint returns an endpoint for a TCP-to-serial bridge. A zero port
// selects DefaultTCPPort.
func TCPEndpoint(host string, port int) Endpoint {
	if port == 0 {
		port = DefaultTCPPort
	}

	return Endpoint{kind: KindTCP, host: host, port: port}
}

// SerialEndpoint returns an endpoint for a local serial device. The line
// settings are always 115200 8N1.
func SerialEndpoint(device string) Endpoint {
	return Endpoint{kind: KindSerial, device: device}
}

// ParseEndpoint parses "tcp://host[:port]", "serial://<device>", a bare
// "host[:port]" or a bare device path ("/dev/ttyUSB0", "COM3").
func ParseEndpoint(s string) (Endpoint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Endpoint{}, errors.New("transport: empty endpoint")
	}

	switch {
	case strings.HasPrefix(s, "serial://"):
		ep := SerialEndpoint(strings.TrimPrefix(s, "serial://"))
		return ep, ep.Validate()

	case strings.HasPrefix(s, "tcp://"):
		return parseHostPort(strings.TrimPrefix(s, "tcp://"))

	case strings.HasPrefix(s, "/") || isWindowsComPort(s):
		return SerialEndpoint(s), nil
	}

	return parseHostPort(s)
}

func parseHostPort(s string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		// no port given
		ep := TCPEndpoint(strings.Trim(s, "[]"), 0)
		return ep, ep.Validate()
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Endpoint{}, fmt.Errorf("transport: invalid port %q: %w", portStr, err)
	}

	ep := TCPEndpoint(host, port)

	return ep, ep.Validate()
}

func isWindowsComPort(s string) bool {
	if len(s) < 4 || !strings.EqualFold(s[:3], "COM") {
		return false
	}
	_, err := strconv.Atoi(s[3:])

	return err == nil
}

// Validate reports whether the endpoint is usable.
func (e Endpoint) Validate() error {
	switch e.kind {
	case KindTCP:
		if e.host == "" {
			return errors.New("transport: empty host")
		}
		if e.port < 1 || e.port > 65535 {
			return fmt.Errorf("transport: port %d out of range [1, 65535]", e.port)
		}
	case KindSerial:
		if e.device == "" {
			return errors.New("transport: empty serial device path")
		}
	default:
		return errors.New("transport: endpoint has no kind")
	}

	return nil
}

// Kind returns the endpoint medium.
func (e Endpoint) Kind() Kind { return e.kind }

// Host returns the bridge host for TCP endpoints.
func (e Endpoint) Host() string { return e.host }

// Port returns the bridge port for TCP endpoints.
func (e Endpoint) Port() int { return e.port }

// Device returns the device path for serial endpoints.
func (e Endpoint) Device() string { return e.device }

// BaudRate returns the line speed for serial endpoints and 0 for TCP.
func (e Endpoint) BaudRate() int {
	if e.kind == KindSerial {
		return BaudRate
	}

	return 0
}

// Addr returns "host:port" for TCP endpoints and the device path otherwise.
func (e Endpoint) Addr() string {
	if e.kind == KindTCP {
		return net.JoinHostPort(e.host, strconv.Itoa(e.port))
	}

	return e.device
}

// String returns the endpoint in the form accepted by ParseEndpoint.
func (e Endpoint) String() string {
	switch e.kind {
	case KindTCP:
		return "tcp://" + e.Addr()
	case KindSerial:
		return "serial://" + e.device
	default:
		return "<invalid endpoint>"
	}
}
