package stomptest

import (
	"bufio"
	"net"
	"strings"

	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/logger"
	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/stomp"
	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/transport"
)

type ConnectionHandler struct {
	server *Server
	conn   *Connection
	reader *bufio.Reader
}

func newConnectionHandler(server *Server, conn net.Conn) *ConnectionHandler {
	return &ConnectionHandler{
		server: server,
		conn:   &Connection{Conn: conn, ConnID: conn.RemoteAddr().String()},
		reader: bufio.NewReader(conn),
	}
}

func (c *ConnectionHandler) readFrame() (*stomp.Frame, error) {
	for {
		raw, err := c.reader.ReadString(stomp.FrameDelimiter)
		if err != nil {
			return nil, err
		}
		raw = strings.TrimLeft(strings.TrimSuffix(raw, string(stomp.FrameDelimiter)), "\r\n")
		if raw != "" {
			return stomp.Parse(raw), nil
		}
	}
}

func (c *ConnectionHandler) sendError(message string) {
	_ = c.conn.SendFrame(stomp.NewFrame(stomp.ERROR, map[string]string{stomp.HeaderMessage: message}, ""))
}

func (c *ConnectionHandler) sendReceipt(frame *stomp.Frame) {
	receipt, ok := frame.Header(stomp.HeaderReceipt)
	if !ok {
		return
	}
	if err := c.conn.SendFrame(stomp.NewFrame(stomp.RECEIPT, map[string]string{stomp.HeaderReceiptID: receipt}, "")); err != nil {
		logger.WarnF("[%s] Fail to send RECEIPT, details: %v", c.conn.ConnID, err)
	}
}

func (c *ConnectionHandler) handleFirstFrame() bool {
	frame, err := c.readFrame()
	if err != nil {
		logger.WarnF("[%s] Fail to read first frame, details: %v", c.conn.ConnID, err)
		return false
	}
	if frame.Command() != stomp.CONNECT {
		logger.ErrorF("[%s] Invalid first frame, expected %s but got %q", c.conn.ConnID, stomp.CONNECT, frame.Name())
		c.sendError("expected CONNECT")
		return false
	}
	passcode, _ := frame.Header(stomp.HeaderPasscode)
	if c.server.rejects(passcode) {
		c.sendError("Wrong password")
		return false
	}
	return c.conn.SendFrame(stomp.NewFrame(stomp.CONNECTED, map[string]string{stomp.HeaderVersion: "1.2"}, "")) == nil
}

func (c *ConnectionHandler) serve() {
	connID := c.conn.ConnID
	c.server.manager.AddConnection(c.conn)
	defer func() {
		c.server.manager.RemoveConnection(connID)
		logger.DebugF("[%s] Connection closed", connID)
		if err := c.conn.Conn.Close(); err != nil && !transport.IsNetClosedError(err) {
			logger.WarnF("[%s] Error occured while closing connection, details: %v", connID, err)
		}
	}()

	if !c.handleFirstFrame() {
		return
	}

	for {
		frame, err := c.readFrame()
		if err != nil {
			logger.DebugF("[%s] %s", connID, transport.DescribeReadError(err))
			return
		}
		logger.DebugF("[%s] Receive %s frame", connID, frame.Name())

		switch frame.Command() {
		case stomp.SUBSCRIBE:
			destination, _ := frame.Header(stomp.HeaderDestination)
			id, _ := frame.Header(stomp.HeaderID)
			c.server.manager.Subscribe(destination, c.conn, id)
			c.sendReceipt(frame)
		case stomp.UNSUBSCRIBE:
			id, _ := frame.Header(stomp.HeaderID)
			c.server.manager.Unsubscribe(c.conn, id)
			c.sendReceipt(frame)
		case stomp.SEND:
			c.publish(frame)
			c.sendReceipt(frame)
		case stomp.DISCONNECT:
			c.sendReceipt(frame)
			logger.InfoF("[%s] Client disconnect", connID)
			return
		case stomp.CONNECT:
			logger.ErrorF("[%s] Duplicate CONNECT frame", connID)
			c.sendError("already connected")
			return
		case stomp.CONNECTED, stomp.MESSAGE, stomp.RECEIPT, stomp.ERROR, stomp.UNKNOWN:
			logger.WarnF("[%s] %q frame has not been supported", connID, frame.Name())
			c.sendError("unsupported frame " + frame.Name())
			return
		}
	}
}

func (c *ConnectionHandler) publish(frame *stomp.Frame) {
	destination, _ := frame.Header(stomp.HeaderDestination)
	for _, sub := range c.server.manager.subscribersOf(destination) {
		message := stomp.NewFrame(stomp.MESSAGE, map[string]string{
			stomp.HeaderDestination:  destination,
			stomp.HeaderSubscription: sub.subscriptionID,
			stomp.HeaderMessageID:    c.server.nextMessageID(),
		}, frame.Body())
		if err := sub.conn.SendFrame(message); err != nil {
			logger.WarnF("[%s] Fail to deliver message to %s, details: %v", c.conn.ConnID, sub.conn.ConnID, err)
		}
	}
}
