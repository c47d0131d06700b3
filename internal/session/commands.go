package session

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"

	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/database"
	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/game"
	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/logger"
	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/stomp"
)

// parseHostPort accepts host:port with a numeric port in 1..65535.
func parseHostPort(address string) (string, int, error) {
	host, rawPort, err := net.SplitHostPort(address)
	if err != nil {
		return "", 0, newCommandError(KindParse, "Invalid address, expected host:port", err)
	}
	port, err := strconv.Atoi(rawPort)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, newCommandError(KindParse, fmt.Sprintf("Invalid port %q", rawPort), nil)
	}
	return host, port, nil
}

func (s *Session) login(address, user, passcode string) error {
	host, port, err := parseHostPort(address)
	if err != nil {
		return err
	}

	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	switch state {
	case Connecting, Connected:
		return errAlreadyLoggedIn
	case Terminated:
		return errTerminated
	case Anonymous:
	}

	frame := stomp.NewFrame(stomp.CONNECT, map[string]string{
		stomp.HeaderAcceptVersion: s.opts.AcceptVersion,
		stomp.HeaderHost:          s.opts.HostHeader,
		stomp.HeaderLogin:         user,
		stomp.HeaderPasscode:      passcode,
	}, "")
	if err := frame.Validate(); err != nil {
		return newCommandError(KindParse, "Login and passcode must be plain text", err)
	}

	if err := s.transport.Connect(host, port); err != nil {
		logger.WarnF("Connect to %s:%d failed: %v", host, port, err)
		return newCommandError(KindTransport, fmt.Sprintf("Could not connect to %s:%d", host, port), err)
	}
	logger.InfoF("Connected to %s:%d as %s", host, port, user)

	s.mu.Lock()
	s.reset(user)
	s.mu.Unlock()
	s.store.Clear()
	s.seen.Purge()

	s.readerWG.Add(1)
	go s.readLoop()

	if err := s.send(frame); err != nil {
		s.shutdown("CONNECT could not be sent")
		return newCommandError(KindTransport, "Could not send login request", err)
	}
	return nil
}

// join always issues a fresh SUBSCRIBE, even for a channel already in the
// table; the newest id replaces the old one.
func (s *Session) join(channel string) error {
	s.mu.Lock()
	if _, err := s.requireConnected(); err != nil {
		s.mu.Unlock()
		return err
	}
	previous, hadPrevious := s.subscriptions[channel]
	subscriptionID := s.nextSubscriptionID
	s.nextSubscriptionID++
	s.subscriptions[channel] = subscriptionID
	receiptID := s.allocateReceipt(JoinAction(channel))
	s.mu.Unlock()

	frame := stomp.NewFrame(stomp.SUBSCRIBE, map[string]string{
		stomp.HeaderDestination: "/" + channel,
		stomp.HeaderID:          strconv.Itoa(subscriptionID),
		stomp.HeaderReceipt:     strconv.Itoa(receiptID),
	}, "")
	if err := s.send(frame); err != nil {
		s.mu.Lock()
		delete(s.pendingReceipts, receiptID)
		if s.subscriptions[channel] == subscriptionID {
			if hadPrevious {
				s.subscriptions[channel] = previous
			} else {
				delete(s.subscriptions, channel)
			}
		}
		s.mu.Unlock()
		return sendFailure("Could not join channel "+channel, err)
	}
	return nil
}

func (s *Session) exit(channel string) error {
	s.mu.Lock()
	if _, err := s.requireConnected(); err != nil {
		s.mu.Unlock()
		return err
	}
	subscriptionID, ok := s.subscriptions[channel]
	if !ok {
		s.mu.Unlock()
		return newCommandError(KindNotSubscribed, "You are not subscribed to channel "+channel, nil)
	}
	delete(s.subscriptions, channel)
	receiptID := s.allocateReceipt(ExitAction(channel))
	s.mu.Unlock()

	frame := stomp.NewFrame(stomp.UNSUBSCRIBE, map[string]string{
		stomp.HeaderID:      strconv.Itoa(subscriptionID),
		stomp.HeaderReceipt: strconv.Itoa(receiptID),
	}, "")
	if err := s.send(frame); err != nil {
		s.mu.Lock()
		delete(s.pendingReceipts, receiptID)
		if _, rejoined := s.subscriptions[channel]; !rejoined {
			s.subscriptions[channel] = subscriptionID
		}
		s.mu.Unlock()
		return sendFailure("Could not exit channel "+channel, err)
	}
	return nil
}

// logout sends DISCONNECT. The session ends when its receipt arrives.
func (s *Session) logout() error {
	s.mu.Lock()
	if _, err := s.requireConnected(); err != nil {
		s.mu.Unlock()
		return err
	}
	receiptID := s.allocateReceipt(LogoutAction())
	s.mu.Unlock()

	frame := stomp.NewFrame(stomp.DISCONNECT, map[string]string{
		stomp.HeaderReceipt: strconv.Itoa(receiptID),
	}, "")
	if err := s.send(frame); err != nil {
		s.mu.Lock()
		delete(s.pendingReceipts, receiptID)
		s.mu.Unlock()
		return sendFailure("Could not send logout request", err)
	}
	return nil
}

// report publishes every event of the file newer than the latest one already
// recorded for this user on the channel, oldest first. A failed send stops
// the batch; events sent before it stay recorded.
func (s *Session) report(path string) error {
	s.mu.Lock()
	user, err := s.requireConnected()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	parsed, err := s.parser.Parse(path)
	if err != nil {
		return newCommandError(KindParse, "Could not read event file "+path, err)
	}

	channel := game.ChannelName(parsed.TeamA, parsed.TeamB)
	latest, hasLatest := s.store.MaxEventTime(channel, user)

	events := make([]game.Event, len(parsed.Events))
	copy(events, parsed.Events)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Time < events[j].Time
	})

	sent, skipped := 0, 0
	for _, event := range events {
		if s.terminate.Load() {
			return newCommandError(KindTerminated, fmt.Sprintf("Session ended after %d events were reported", sent), nil)
		}
		if hasLatest && event.Time <= latest {
			skipped++
			continue
		}
		frame := stomp.NewFrame(stomp.SEND, map[string]string{
			stomp.HeaderDestination: "/" + channel,
		}, game.FormatReport(user, event))
		if err := s.send(frame); err != nil {
			return sendFailure(fmt.Sprintf("Report aborted after %d events", sent), err)
		}
		s.store.AddEvent(channel, user, event)
		sent++
	}

	logger.InfoF("Reported %d events to %s, %d skipped", sent, channel, skipped)
	s.out.success("Reported %d events to channel %s (%d already sent)", sent, channel, skipped)
	return nil
}

func (s *Session) summary(channel, user, path string) error {
	s.mu.Lock()
	_, err := s.requireConnected()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if err := s.store.GenerateSummary(channel, user, path); err != nil {
		if errors.Is(err, database.ErrNoEvents) {
			return newCommandError(KindStore, fmt.Sprintf("No events recorded for %s on channel %s", user, channel), nil)
		}
		return newCommandError(KindStore, "Could not write summary to "+path, err)
	}
	s.out.success("Summary written to %s", path)
	return nil
}

// sendFailure classifies an error from send. A frame refused before reaching
// the wire is a bad argument, anything else is a transport failure.
func sendFailure(message string, err error) error {
	if errors.Is(err, stomp.ErrInvalidFrame) {
		return newCommandError(KindParse, message, err)
	}
	return newCommandError(KindTransport, message, err)
}
