package session

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/logger"
	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/stomp"
)

// Session is the single protocol session of the process. ProcessCommand is
// driven by the console goroutine; inbound frames are applied by the reader
// goroutine started on login. Every field below mu is guarded by it, and mu
// is never held across transport or file I/O.
type Session struct {
	transport Transport
	store     EventStore
	parser    EventFileParser
	opts      Options
	out       *printer

	// message-id values already applied, so a redelivered MESSAGE skips
	// body parsing entirely
	seen *expirable.LRU[string, struct{}]

	mu                 sync.Mutex
	state              State
	loggedIn           bool
	currentUser        string
	subscriptions      map[string]int
	pendingReceipts    map[int]PendingAction
	nextSubscriptionID int
	nextReceiptID      int

	terminate     atomic.Bool
	terminateOnce sync.Once
	done          chan struct{}
	readerWG      sync.WaitGroup
}

// New returns an anonymous session. Console output goes to out.
func New(transport Transport, store EventStore, parser EventFileParser, out io.Writer, opts Options) *Session {
	return &Session{
		transport:       transport,
		store:           store,
		parser:          parser,
		opts:            opts,
		out:             newPrinter(out),
		seen:            expirable.NewLRU[string, struct{}](opts.MessageCacheSize, nil, opts.MessageCacheTTL),
		state:           Anonymous,
		subscriptions:   make(map[string]int),
		pendingReceipts: make(map[int]PendingAction),
		nextReceiptID:   opts.ReceiptBase,
		done:            make(chan struct{}),
	}
}

// Execute runs one console line and prints any error it produces.
func (s *Session) Execute(line string) {
	if err := s.ProcessCommand(line); err != nil {
		s.out.failure("%s", err.Error())
	}
}

// ProcessCommand runs one console line. Blank lines are ignored. Every verb
// but login is refused before CONNECTED, whatever its arguments.
func (s *Session) ProcessCommand(line string) error {
	input := ParseInput(line)
	if input.Name == "" {
		return nil
	}
	if input.Verb != VerbUnknown && input.Verb != VerbLogin && s.State() != Connected {
		logger.DebugF("Rejected command %q: not logged in", input.Name)
		return errNotLoggedIn
	}
	if err := input.validate(); err != nil {
		logger.DebugF("Rejected command %q: %v", input.Name, err)
		return err
	}

	switch input.Verb {
	case VerbLogin:
		return s.login(input.Args[0], input.Args[1], input.Args[2])
	case VerbJoin:
		return s.join(input.Args[0])
	case VerbExit:
		return s.exit(input.Args[0])
	case VerbReport:
		return s.report(input.Args[0])
	case VerbSummary:
		return s.summary(input.Args[0], input.Args[1], input.Args[2])
	case VerbLogout:
		return s.logout()
	case VerbUnknown:
	}
	return newCommandError(KindUnknownCommand, "Unknown command", nil)
}

// requireConnected returns the current user, or errNotLoggedIn. Caller holds mu.
func (s *Session) requireConnected() (string, error) {
	if s.state != Connected {
		return "", errNotLoggedIn
	}
	return s.currentUser, nil
}

// allocateReceipt registers action under a fresh receipt id. Caller holds mu.
func (s *Session) allocateReceipt(action PendingAction) int {
	id := s.nextReceiptID
	s.nextReceiptID++
	s.pendingReceipts[id] = action
	return id
}

// reset starts a new session for user. Caller holds mu.
func (s *Session) reset(user string) {
	s.subscriptions = make(map[string]int)
	s.pendingReceipts = make(map[int]PendingAction)
	s.nextSubscriptionID = 0
	s.nextReceiptID = s.opts.ReceiptBase
	s.currentUser = user
	s.loggedIn = false
	s.state = Connecting
}

func (s *Session) send(frame *stomp.Frame) error {
	if err := frame.Validate(); err != nil {
		logger.WarnF("Refusing to send %s frame: %v", frame.Command(), err)
		return err
	}
	payload := stomp.Serialize(frame)
	logger.DebugF("Sending %s frame:\n%s", frame.Command(), payload)
	return s.transport.WriteFrame(payload, stomp.FrameDelimiter)
}

// shutdown moves the session to Terminated exactly once: pending receipts
// are dropped, the transport is closed and Done is released.
func (s *Session) shutdown(reason string) {
	s.terminateOnce.Do(func() {
		logger.InfoF("Session terminating: %s", reason)
		s.terminate.Store(true)

		s.mu.Lock()
		s.state = Terminated
		s.loggedIn = false
		s.subscriptions = make(map[string]int)
		s.pendingReceipts = make(map[int]PendingAction)
		s.mu.Unlock()

		if err := s.transport.Close(); err != nil {
			logger.WarnF("Error closing transport: %v", err)
		}
		close(s.done)
	})
}

// Close terminates the session without a DISCONNECT exchange.
func (s *Session) Close() {
	s.shutdown("closed locally")
}

// Wait blocks until the reader goroutine, if one was started, has returned.
func (s *Session) Wait() {
	s.readerWG.Wait()
}

// Done is closed once the session is terminated.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Terminated() bool {
	return s.terminate.Load()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) LoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggedIn
}

func (s *Session) CurrentUser() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentUser
}

// AwaitingLogout reports whether a DISCONNECT is waiting for its receipt.
func (s *Session) AwaitingLogout() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, action := range s.pendingReceipts {
		if action.Kind == ActionLogout {
			return true
		}
	}
	return false
}

// Subscriptions returns a copy of the channel to subscription id table.
func (s *Session) Subscriptions() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make(map[string]int, len(s.subscriptions))
	for channel, id := range s.subscriptions {
		result[channel] = id
	}
	return result
}

// PendingReceipts returns a copy of the receipt id to action table.
func (s *Session) PendingReceipts() map[int]PendingAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make(map[int]PendingAction, len(s.pendingReceipts))
	for id, action := range s.pendingReceipts {
		result[id] = action
	}
	return result
}
