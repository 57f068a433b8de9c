package discovery

import (
	"fmt"
	"sort"

	"go.bug.st/serial/enumerator"

	"github.com/go-seymour/seymour/transport"
)

// SerialCandidate is a local serial port.
type SerialCandidate struct {
	Device      string
	BaudRate    int
	Description string
	HardwareID  string
	IsUSB       bool
}

// Endpoint returns the serial endpoint for the port.
func (c SerialCandidate) Endpoint() transport.Endpoint {
	return transport.SerialEndpoint(c.Device)
}

var listPorts = enumerator.GetDetailedPortsList

// DiscoverSerial lists the local serial ports, sorted by device name.
func DiscoverSerial() ([]SerialCandidate, error) {
	ports, err := listPorts()
	if err != nil {
		return nil, fmt.Errorf("discovery: enumerate serial ports: %w", err)
	}

	out := make([]SerialCandidate, 0, len(ports))
	for _, p := range ports {
		if p == nil || p.Name == "" {
			continue
		}

		c := SerialCandidate{
			Device:      p.Name,
			BaudRate:    transport.BaudRate,
			Description: p.Product,
			IsUSB:       p.IsUSB,
		}
		if p.IsUSB {
			c.HardwareID = fmt.Sprintf("USB VID:PID=%s:%s", p.VID, p.PID)
			if p.SerialNumber != "" {
				c.HardwareID += " SER=" + p.SerialNumber
			}
		}

		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Device < out[j].Device })

	return out, nil
}
