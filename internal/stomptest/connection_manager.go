package stomptest

import (
	"net"
	"sync"

	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/logger"
	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/stomp"
	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/transport"
)

// Connection is one client socket. Writes are serialised so MESSAGE fan-out
// from other handlers never interleaves with the owner's replies.
type Connection struct {
	Conn   net.Conn
	ConnID string
	mu     sync.Mutex
}

func (c *Connection) SendFrame(frame *stomp.Frame) error {
	payload := append([]byte(stomp.Serialize(frame)), stomp.FrameDelimiter)
	c.mu.Lock()
	defer c.mu.Unlock()
	return send(c.Conn, payload, c.ConnID)
}

func send(conn net.Conn, data []byte, connID string) error {
	total := 0
	for total < len(data) {
		n, err := conn.Write(data[total:])
		if err != nil {
			if !transport.IsNetClosedError(err) {
				logger.ErrorF("[%s] Fail to send data, details: %v", connID, err)
			}
			return err
		}
		total += n
	}
	logger.DebugF("[%s] Send %d bytes to client", connID, total)
	return nil
}

type subscriber struct {
	conn           *Connection
	subscriptionID string
}

// ConnectionManager tracks live connections and who is subscribed where.
type ConnectionManager struct {
	mu            sync.Mutex
	connections   map[string]*Connection
	subscriptions map[string]map[string]subscriber // destination -> connID -> subscriber
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections:   make(map[string]*Connection),
		subscriptions: make(map[string]map[string]subscriber),
	}
}

func (cm *ConnectionManager) AddConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections[conn.ConnID] = conn
	logger.InfoF("Client %s connected", conn.ConnID)
}

// RemoveConnection forgets conn and all of its subscriptions.
func (cm *ConnectionManager) RemoveConnection(connID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.connections, connID)
	for _, subscribers := range cm.subscriptions {
		delete(subscribers, connID)
	}
	logger.InfoF("Client %s disconnected", connID)
}

func (cm *ConnectionManager) Subscribe(destination string, conn *Connection, subscriptionID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	subscribers, ok := cm.subscriptions[destination]
	if !ok {
		subscribers = make(map[string]subscriber)
		cm.subscriptions[destination] = subscribers
	}
	subscribers[conn.ConnID] = subscriber{conn: conn, subscriptionID: subscriptionID}
}

// Unsubscribe removes the subscription with the given id for conn.
func (cm *ConnectionManager) Unsubscribe(conn *Connection, subscriptionID string) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	for _, subscribers := range cm.subscriptions {
		if current, ok := subscribers[conn.ConnID]; ok && current.subscriptionID == subscriptionID {
			delete(subscribers, conn.ConnID)
			return true
		}
	}
	return false
}

func (cm *ConnectionManager) subscribersOf(destination string) []subscriber {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	result := make([]subscriber, 0, len(cm.subscriptions[destination]))
	for _, sub := range cm.subscriptions[destination] {
		result = append(result, sub)
	}
	return result
}

func (cm *ConnectionManager) CloseAll() {
	cm.mu.Lock()
	conns := make([]*Connection, 0, len(cm.connections))
	for _, conn := range cm.connections {
		conns = append(conns, conn)
	}
	cm.mu.Unlock()
	for _, conn := range conns {
		if err := conn.Conn.Close(); err != nil && !transport.IsNetClosedError(err) {
			logger.WarnF("[%s] Error occured while closing connection, details: %v", conn.ConnID, err)
		}
	}
}
