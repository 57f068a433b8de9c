//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package discovery

import (
	"context"
	"fmt"
	"net"
)

func listenMulticast(_ context.Context, group *net.UDPAddr, ifaceIP net.IP) (net.PacketConn, error) {
	var iface *net.Interface
	if ifaceIP != nil {
		var err error
		if iface, err = interfaceByIP(ifaceIP); err != nil {
			return nil, err
		}
	}

	return net.ListenMulticastUDP("udp4", iface, group)
}

func interfaceByIP(ip net.IP) (*net.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for i := range ifaces {
		addrs, err := ifaces[i].Addrs()
		if err != nil {
			continue
		}

		for _, a := range addrs {
			if ipNet, ok := a.(*net.IPNet); ok && ipNet.IP.Equal(ip) {
				return &ifaces[i], nil
			}
		}
	}

	return nil, fmt.Errorf("no interface owns %s", ip)
}
