//go:build linux || darwin || freebsd || netbsd || openbsd

package discovery

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// listenMulticast binds the group port with SO_REUSEADDR, so several
// listeners on one host can coexist, and joins group on the interface owning
// ifaceIP (any interface when nil).
func listenMulticast(ctx context.Context, group *net.UDPAddr, ifaceIP net.IP) (net.PacketConn, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var serr error
			err := c.Control(func(fd uintptr) {
				serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}

			return serr
		},
	}

	pc, err := lc.ListenPacket(ctx, "udp4", fmt.Sprintf("0.0.0.0:%d", group.Port))
	if err != nil {
		return nil, err
	}

	udp, ok := pc.(*net.UDPConn)
	if !ok {
		_ = pc.Close()
		return nil, fmt.Errorf("unexpected packet conn %T", pc)
	}

	mreq := &unix.IPMreq{}
	copy(mreq.Multiaddr[:], group.IP.To4())
	if ifaceIP != nil {
		copy(mreq.Interface[:], ifaceIP.To4())
	}

	raw, err := udp.SyscallConn()
	if err != nil {
		_ = pc.Close()
		return nil, err
	}

	var serr error
	err = raw.Control(func(fd uintptr) {
		serr = unix.SetsockoptIPMreq(int(fd), unix.IPPROTO_IP, unix.IP_ADD_MEMBERSHIP, mreq)
	})
	if err == nil {
		err = serr
	}
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("add membership: %w", err)
	}

	return udp, nil
}
