package simdevice

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/go-seymour/seymour/protocol"
)

// Server serves a Handler over stream connections, one at a time, the way an
// IP2SL bridge port does.
type Server struct {
	ln      net.Listener
	handler Handler

	mu    sync.Mutex
	conns []net.Conn
	wg    sync.WaitGroup
}

// Listen starts a Server on a loopback port.
func Listen(h Handler) (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	s := &Server{ln: ln, handler: h}
	s.wg.Add(1)
	go s.acceptLoop()

	return s, nil
}

// Addr returns the listening address.
func (s *Server) Addr() *net.TCPAddr {
	addr, _ := s.ln.Addr().(*net.TCPAddr)
	return addr
}

// Close stops the listener and every open connection.
func (s *Server) Close() error {
	err := s.ln.Close()

	s.mu.Lock()
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()

	return err
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			_ = Serve(conn, s.handler)
		}()
	}
}

// Serve answers frames read from conn until it is closed.
func Serve(conn net.Conn, h Handler) error {
	defer conn.Close()

	var (
		acc   []byte
		wmu   sync.Mutex
		timed sync.WaitGroup
	)
	defer timed.Wait()

	write := func(data string) {
		wmu.Lock()
		defer wmu.Unlock()
		_, _ = conn.Write([]byte(data))
	}

	buf := make([]byte, 1024)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			var frames []protocol.Frame
			acc, frames, _ = protocol.Split(acc, buf[:n])
			for _, f := range frames {
				for _, r := range h.Handle(f.String()) {
					if r.Delay <= 0 {
						write(r.Data)
						continue
					}

					timed.Add(1)
					time.AfterFunc(r.Delay, func() {
						defer timed.Done()
						write(r.Data)
					})
				}
			}
		}

		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}

			return err
		}
	}
}
