// Package transport is the byte channel beneath the frame layer: one TCP
// connection with blocking exact-length and delimiter-based reads and writes.
package transport

import (
	"bufio"
	"io"
	"net"
	"strconv"
	"sync"

	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/logger"
)

type state int

const (
	unbound state = iota
	bound
	closed
)

// Conn is a connect-once TCP transport. Reads and writes issued before a
// successful Connect block on the readiness gate until Connect succeeds or
// Close is called; they never fail merely because the dial has not happened
// yet. Close is idempotent and safe from any goroutine.
type Conn struct {
	mu    sync.Mutex
	ready *sync.Cond
	state state

	conn   net.Conn
	reader *bufio.Reader
	addr   string
}

func New() *Conn {
	c := &Conn{}
	c.ready = sync.NewCond(&c.mu)
	return c
}

// Connect makes one dial attempt. On failure the transport stays unbound
// and may be connected again later.
func (c *Conn) Connect(host string, port int) error {
	c.mu.Lock()
	switch c.state {
	case bound:
		c.mu.Unlock()
		return ErrAlreadyConnected
	case closed:
		c.mu.Unlock()
		return ErrClosed
	}
	c.mu.Unlock()

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	logger.DebugF("Connecting to %s", addr)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		logger.WarnF("Fail to connect to %s, details: %v", addr, err)
		return NewConnectionError("could not connect to "+addr, err)
	}

	c.mu.Lock()
	if current := c.state; current != unbound {
		c.mu.Unlock()
		_ = conn.Close()
		if current == closed {
			return ErrClosed
		}
		return ErrAlreadyConnected
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	c.addr = addr
	c.state = bound
	c.ready.Broadcast()
	c.mu.Unlock()

	logger.InfoF("Connected to %s", addr)
	return nil
}

// await blocks until the transport is bound or closed.
func (c *Conn) await() (net.Conn, *bufio.Reader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.state == unbound {
		c.ready.Wait()
	}
	if c.state == closed {
		return nil, nil, ErrClosed
	}
	return c.conn, c.reader, nil
}

// ReadExact reads exactly n bytes.
func (c *Conn) ReadExact(n int) ([]byte, error) {
	_, reader, err := c.await()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return nil, NewConnectionError("read failed", err)
	}
	return buf, nil
}

// WriteExact writes all of data, looping over short writes.
func (c *Conn) WriteExact(data []byte) error {
	conn, _, err := c.await()
	if err != nil {
		return err
	}
	total := 0
	for total < len(data) {
		n, err := conn.Write(data[total:])
		if err != nil {
			logger.ErrorF("[%s] Fail to send data, details: %v", c.addr, err)
			return NewConnectionError("write failed", err)
		}
		total += n
	}
	logger.DebugF("[%s] Send %d bytes to server", c.addr, total)
	return nil
}

// ReadFrameBytes reads byte by byte up to delimiter and returns everything
// before it. Peer close before the delimiter is a failure.
func (c *Conn) ReadFrameBytes(delimiter byte) (string, error) {
	_, reader, err := c.await()
	if err != nil {
		return "", err
	}
	var frame []byte
	for {
		b, err := reader.ReadByte()
		if err != nil {
			return "", NewConnectionError("read failed", err)
		}
		if b == delimiter {
			return string(frame), nil
		}
		frame = append(frame, b)
	}
}

// WriteFrame writes payload followed by the single delimiter byte.
func (c *Conn) WriteFrame(payload string, delimiter byte) error {
	data := make([]byte, 0, len(payload)+1)
	data = append(data, payload...)
	data = append(data, delimiter)
	return c.WriteExact(data)
}

// Close releases the socket and wakes anything waiting on the gate.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.state == closed {
		c.mu.Unlock()
		return nil
	}
	conn := c.conn
	c.state = closed
	c.conn = nil
	c.reader = nil
	c.ready.Broadcast()
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	logger.DebugF("[%s] Connection closed", c.addr)
	if err := conn.Close(); err != nil && !IsNetClosedError(err) {
		logger.WarnF("[%s] Error occured while closing connection, details: %v", c.addr, err)
		return err
	}
	return nil
}
