package session

import (
	"strconv"
	"strings"

	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/game"
	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/logger"
	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/stomp"
	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/transport"
)

// readLoop pulls frames off the transport and applies each one before
// reading the next. It exits once the session is terminated.
func (s *Session) readLoop() {
	defer s.readerWG.Done()
	logger.Debug("Reader started")
	for !s.terminate.Load() {
		raw, err := s.transport.ReadFrameBytes(stomp.FrameDelimiter)
		if err != nil {
			if s.terminate.Load() {
				break
			}
			logger.WarnF("Reader stopped: %s", transport.DescribeReadError(err))
			s.out.failure("connection lost")
			s.shutdown("connection lost")
			break
		}
		// servers may put end-of-line bytes between frames
		raw = strings.TrimLeft(raw, "\r\n")
		if raw == "" {
			continue
		}
		s.ProcessFrame(stomp.Parse(raw))
	}
	logger.Debug("Reader stopped")
}

// ProcessFrame applies one inbound frame to the session.
func (s *Session) ProcessFrame(frame *stomp.Frame) {
	logger.DebugF("Received %s frame:\n%s", frame.Name(), frame)
	switch frame.Command() {
	case stomp.CONNECTED:
		s.handleConnected(frame)
	case stomp.RECEIPT:
		s.handleReceipt(frame)
	case stomp.MESSAGE:
		s.handleMessage(frame)
	case stomp.ERROR:
		s.handleError(frame)
	case stomp.CONNECT, stomp.SUBSCRIBE, stomp.UNSUBSCRIBE, stomp.SEND, stomp.DISCONNECT:
		logger.WarnF("Ignoring client-only %s frame from server", frame.Command())
	case stomp.UNKNOWN:
		logger.WarnF("Ignoring unknown frame %q", frame.Name())
	}
}

func (s *Session) handleConnected(frame *stomp.Frame) {
	s.mu.Lock()
	if s.state != Connecting {
		state := s.state
		s.mu.Unlock()
		logger.WarnF("Unexpected CONNECTED frame in state %s", state)
		return
	}
	s.state = Connected
	s.loggedIn = true
	user := s.currentUser
	s.mu.Unlock()

	if version, ok := frame.Header(stomp.HeaderVersion); ok {
		logger.DebugF("Server speaks protocol version %s", version)
	}
	s.out.success("Login successful")
	logger.InfoF("Logged in as %s", user)
}

// handleReceipt resolves the pending action for the receipt id. Unknown or
// repeated ids are ignored.
func (s *Session) handleReceipt(frame *stomp.Frame) {
	raw, ok := frame.Header(stomp.HeaderReceiptID)
	if !ok {
		logger.Warn("RECEIPT frame without receipt-id header")
		return
	}
	receiptID, err := strconv.Atoi(raw)
	if err != nil {
		logger.WarnF("RECEIPT frame with invalid receipt-id %q", raw)
		return
	}

	s.mu.Lock()
	action, ok := s.pendingReceipts[receiptID]
	if ok {
		delete(s.pendingReceipts, receiptID)
	}
	s.mu.Unlock()

	if !ok {
		logger.DebugF("Ignoring receipt %d, nothing pending", receiptID)
		return
	}

	switch action.Kind {
	case ActionJoin:
		s.out.success("Joined channel %s", action.Channel)
	case ActionExit:
		s.out.success("Exited channel %s", action.Channel)
	case ActionLogout:
		s.out.success("Logged out successfully. Closing connection...")
		s.shutdown("logout acknowledged")
	}
}

func (s *Session) handleMessage(frame *stomp.Frame) {
	destination, _ := frame.Header(stomp.HeaderDestination)
	channel := strings.TrimPrefix(destination, "/")
	if channel == "" {
		logger.Warn("MESSAGE frame without destination")
		return
	}

	if messageID, ok := frame.Header(stomp.HeaderMessageID); ok && messageID != "" {
		if s.seen.Contains(messageID) {
			logger.DebugF("Ignoring redelivered message %s", messageID)
			return
		}
		s.seen.Add(messageID, struct{}{})
	}

	user, event, err := game.ParseReport(frame.Body())
	if err != nil {
		logger.WarnF("Dropping message on %s: %v", channel, err)
		return
	}
	if s.store.AddEvent(channel, user, event) {
		logger.DebugF("Stored event %d/%s from %s on %s", event.Time, event.Name, user, channel)
	}
}

// handleError prints the server's error and ends the session.
func (s *Session) handleError(frame *stomp.Frame) {
	message, _ := frame.Header(stomp.HeaderMessage)
	if message == "" {
		message = "server reported an error"
	}
	s.out.failure("%s", message)
	if body := strings.TrimSpace(frame.Body()); body != "" {
		s.out.info("%s", body)
	}
	logger.ErrorF("Server error: %s", message)
	s.shutdown("server error")
}
