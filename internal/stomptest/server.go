// Package stomptest runs a loopback STOMP broker for exercising the client
// against a real socket. It speaks only the subset the client uses.
package stomptest

import (
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/logger"
)

// Server accepts connections on 127.0.0.1 until Close.
type Server struct {
	ln       net.Listener
	manager  *ConnectionManager
	wg       sync.WaitGroup
	closed   atomic.Bool
	messages atomic.Int64

	mu             sync.Mutex
	rejectPasscode string
}

// NewServer starts listening on an ephemeral loopback port.
func NewServer() (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &Server{ln: ln, manager: NewConnectionManager()}
	logger.InfoF("Test broker listening on %s", ln.Addr().String())
	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.ln.Addr().String())
	return host
}

func (s *Server) Port() int {
	_, rawPort, _ := net.SplitHostPort(s.ln.Addr().String())
	port, _ := strconv.Atoi(rawPort)
	return port
}

// Address is host:port as typed in a login command.
func (s *Server) Address() string {
	return s.ln.Addr().String()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.closed.Load() {
				return
			}
			logger.ErrorF("Accept connection error: %v", err)
			continue
		}
		logger.DebugF("Accepted new connection from %s", conn.RemoteAddr().String())

		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			newConnectionHandler(s, c).serve()
		}(conn)
	}
}

// DropAll closes every client connection without a protocol goodbye.
func (s *Server) DropAll() {
	s.manager.CloseAll()
}

// Close stops accepting, drops all clients and waits for their handlers.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := s.ln.Close()
	s.manager.CloseAll()
	s.wg.Wait()
	return err
}

// RejectPasscode makes CONNECT with this passcode fail with an ERROR frame.
func (s *Server) RejectPasscode(passcode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectPasscode = passcode
}

func (s *Server) rejects(passcode string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rejectPasscode != "" && passcode == s.rejectPasscode
}

func (s *Server) nextMessageID() string {
	return strconv.FormatInt(s.messages.Add(1), 10)
}
