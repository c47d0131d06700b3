package session

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/database"
	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/game"
	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/stomp"
	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

// fakeTransport hands the reader whatever the test pushes and records every
// frame written.
type fakeTransport struct {
	mu         sync.Mutex
	connectErr error
	writeErr   error
	connects   []string
	writes     []string
	closeCount int

	inbound   chan string
	readErr   chan error
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbound: make(chan string, 16),
		readErr: make(chan error, 1),
		closed:  make(chan struct{}),
	}
}

func (ft *fakeTransport) Connect(host string, port int) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.connects = append(ft.connects, host)
	return ft.connectErr
}

func (ft *fakeTransport) ReadFrameBytes(_ byte) (string, error) {
	select {
	case raw := <-ft.inbound:
		return raw, nil
	case err := <-ft.readErr:
		return "", err
	case <-ft.closed:
		return "", transport.ErrClosed
	}
}

func (ft *fakeTransport) WriteFrame(payload string, _ byte) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if ft.writeErr != nil {
		return ft.writeErr
	}
	ft.writes = append(ft.writes, payload)
	return nil
}

func (ft *fakeTransport) Close() error {
	ft.mu.Lock()
	ft.closeCount++
	ft.mu.Unlock()
	ft.closeOnce.Do(func() { close(ft.closed) })
	return nil
}

func (ft *fakeTransport) setWriteErr(err error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.writeErr = err
}

func (ft *fakeTransport) frames() []*stomp.Frame {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	result := make([]*stomp.Frame, 0, len(ft.writes))
	for _, raw := range ft.writes {
		result = append(result, stomp.Parse(raw))
	}
	return result
}

func (ft *fakeTransport) lastFrame(t *testing.T) *stomp.Frame {
	frames := ft.frames()
	require.NotEmpty(t, frames)
	return frames[len(frames)-1]
}

func (ft *fakeTransport) closes() int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.closeCount
}

func (ft *fakeTransport) push(command stomp.Command, headers map[string]string, body string) {
	ft.inbound <- stomp.Serialize(stomp.NewFrame(command, headers, body))
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (sb *syncBuffer) Write(p []byte) (int, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.buf.Write(p)
}

func (sb *syncBuffer) String() string {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.buf.String()
}

type fakeParser struct {
	games map[string]*game.Game
}

func (fp *fakeParser) Parse(path string) (*game.Game, error) {
	if g, ok := fp.games[path]; ok {
		return g, nil
	}
	return nil, game.ErrMalformedEventFile
}

type harness struct {
	session   *Session
	transport *fakeTransport
	store     *database.MemoryStore
	parser    *fakeParser
	out       *syncBuffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		transport: newFakeTransport(),
		store:     database.NewMemoryStore(nil),
		parser:    &fakeParser{games: map[string]*game.Game{}},
		out:       &syncBuffer{},
	}
	h.session = New(h.transport, h.store, h.parser, h.out, DefaultOptions())
	t.Cleanup(func() {
		h.session.Close()
		h.session.Wait()
	})
	return h
}

// loggedIn returns a harness whose session has completed the CONNECT exchange.
func loggedIn(t *testing.T, user string) *harness {
	t.Helper()
	h := newHarness(t)
	require.NoError(t, h.session.ProcessCommand("login 127.0.0.1:7777 "+user+" pw"))
	h.transport.push(stomp.CONNECTED, map[string]string{"version": "1.2"}, "")
	require.Eventually(t, func() bool { return h.session.State() == Connected }, waitFor, tick)
	return h
}

func (h *harness) receipt(id string) {
	h.transport.push(stomp.RECEIPT, map[string]string{stomp.HeaderReceiptID: id}, "")
}

func header(t *testing.T, frame *stomp.Frame, key string) string {
	t.Helper()
	value, ok := frame.Header(key)
	require.True(t, ok, "missing header %s in %s", key, frame)
	return value
}

func TestLoginScenario(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, Anonymous, h.session.State())

	require.NoError(t, h.session.ProcessCommand("login 127.0.0.1:7777 alice pw"))
	assert.Equal(t, Connecting, h.session.State())
	assert.False(t, h.session.LoggedIn())

	connect := h.transport.lastFrame(t)
	assert.Equal(t, stomp.CONNECT, connect.Command())
	assert.Equal(t, map[string]string{
		"accept-version": "1.2",
		"host":           "stomp.cs.bgu.ac.il",
		"login":          "alice",
		"passcode":       "pw",
	}, connect.Headers())

	h.transport.push(stomp.CONNECTED, nil, "")
	require.Eventually(t, h.session.LoggedIn, waitFor, tick)
	assert.Equal(t, Connected, h.session.State())
	assert.Contains(t, h.out.String(), "Login successful")

	require.NoError(t, h.session.ProcessCommand("join soccer"))
	subscribe := h.transport.lastFrame(t)
	assert.Equal(t, stomp.SUBSCRIBE, subscribe.Command())
	assert.Equal(t, map[string]string{
		"destination": "/soccer",
		"id":          "0",
		"receipt":     "1000",
	}, subscribe.Headers())
	assert.Equal(t, JoinAction("soccer"), h.session.PendingReceipts()[1000])

	h.receipt("1000")
	require.Eventually(t, func() bool { return len(h.session.PendingReceipts()) == 0 }, waitFor, tick)
	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(h.out.String()), []byte("Joined channel soccer"))
	}, waitFor, tick)

	require.NoError(t, h.session.ProcessCommand("logout"))
	disconnect := h.transport.lastFrame(t)
	assert.Equal(t, stomp.DISCONNECT, disconnect.Command())
	assert.Equal(t, map[string]string{"receipt": "1001"}, disconnect.Headers())
	assert.True(t, h.session.AwaitingLogout())
	assert.False(t, h.session.Terminated(), "logout waits for its receipt")

	h.receipt("1001")
	select {
	case <-h.session.Done():
	case <-time.After(waitFor):
		t.Fatal("session did not terminate on logout receipt")
	}
	h.session.Wait()
	assert.Equal(t, Terminated, h.session.State())
	assert.Equal(t, 1, h.transport.closes())
	assert.Contains(t, h.out.String(), "Logged out successfully")
}

func TestLoginFailures(t *testing.T) {
	tests := []struct {
		name string
		line string
		kind ErrorKind
	}{
		{"missing colon", "login localhost alice pw", KindParse},
		{"non numeric port", "login localhost:abc alice pw", KindParse},
		{"port out of range", "login localhost:70000 alice pw", KindParse},
		{"missing args", "login localhost:7777 alice", KindUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			err := h.session.ProcessCommand(tt.line)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.Equal(t, Anonymous, h.session.State())
			assert.Empty(t, h.transport.frames())
			assert.Empty(t, h.transport.connects)
		})
	}
}

func TestConnectFailureStaysAnonymous(t *testing.T) {
	h := newHarness(t)
	h.transport.connectErr = transport.NewConnectionError("dial failed", errors.New("refused"))

	err := h.session.ProcessCommand("login 127.0.0.1:7777 alice pw")
	assert.Equal(t, KindTransport, KindOf(err))
	assert.Equal(t, Anonymous, h.session.State())
	assert.Empty(t, h.transport.frames())

	// a later attempt may still succeed
	h.transport.connectErr = nil
	require.NoError(t, h.session.ProcessCommand("login 127.0.0.1:7777 alice pw"))
	assert.Equal(t, Connecting, h.session.State())
}

func TestAlreadyLoggedIn(t *testing.T) {
	h := loggedIn(t, "alice")
	before := len(h.transport.frames())

	err := h.session.ProcessCommand("login 127.0.0.1:7777 bob pw")
	assert.Equal(t, KindAlreadyLoggedIn, KindOf(err))
	assert.Len(t, h.transport.frames(), before)
	assert.Equal(t, "alice", h.session.CurrentUser())
}

func TestCommandsRequireLogin(t *testing.T) {
	h := newHarness(t)
	for _, line := range []string{"join a", "exit a", "report f.json", "summary a b c", "logout"} {
		err := h.session.ProcessCommand(line)
		assert.Equal(t, KindNotLoggedIn, KindOf(err), line)
	}
	assert.Empty(t, h.transport.frames())

	// login state is checked before the argument count
	for _, line := range []string{"join", "exit a b", "summary a", "logout now"} {
		err := h.session.ProcessCommand(line)
		assert.Equal(t, KindNotLoggedIn, KindOf(err), line)
	}

	// still refused while CONNECTED has not arrived
	require.NoError(t, h.session.ProcessCommand("login 127.0.0.1:7777 alice pw"))
	assert.Equal(t, KindNotLoggedIn, KindOf(h.session.ProcessCommand("join a")))
	assert.Len(t, h.transport.frames(), 1)
}

func TestUsageCheckedOnceConnected(t *testing.T) {
	h := loggedIn(t, "alice")
	assert.Equal(t, KindUsage, KindOf(h.session.ProcessCommand("join")))
	assert.Equal(t, KindUsage, KindOf(h.session.ProcessCommand("summary a b")))
}

func TestControlCharactersNeverReachTheWire(t *testing.T) {
	h := newHarness(t)
	err := h.session.ProcessCommand("login 127.0.0.1:7777 alice\x00 pw")
	assert.Equal(t, KindParse, KindOf(err))
	assert.ErrorIs(t, err, stomp.ErrInvalidFrame)
	assert.Equal(t, Anonymous, h.session.State())
	h.transport.mu.Lock()
	assert.Empty(t, h.transport.connects)
	h.transport.mu.Unlock()

	h = loggedIn(t, "alice")
	before := len(h.transport.frames())
	err = h.session.ProcessCommand("join a\x00b")
	assert.Equal(t, KindParse, KindOf(err))
	assert.ErrorIs(t, err, stomp.ErrInvalidFrame)
	assert.Len(t, h.transport.frames(), before)
	assert.Empty(t, h.session.Subscriptions())
	assert.Empty(t, h.session.PendingReceipts())
}

func TestUnknownAndBlankCommands(t *testing.T) {
	h := newHarness(t)
	assert.NoError(t, h.session.ProcessCommand("   "))
	assert.Equal(t, KindUnknownCommand, KindOf(h.session.ProcessCommand("dance now")))

	h.session.Execute("dance")
	assert.Contains(t, h.out.String(), "Error: Unknown command")
}

func TestSubscriptionAndReceiptIDs(t *testing.T) {
	h := loggedIn(t, "alice")

	require.NoError(t, h.session.ProcessCommand("join a"))
	require.NoError(t, h.session.ProcessCommand("join b"))
	require.NoError(t, h.session.ProcessCommand("exit a"))
	require.NoError(t, h.session.ProcessCommand("join a"))
	// duplicate join still produces a new subscription
	require.NoError(t, h.session.ProcessCommand("join a"))

	frames := h.transport.frames()[1:]
	require.Len(t, frames, 5)

	var subscriptionIDs []string
	for i, frame := range frames {
		assert.Equal(t, []string{"1000", "1001", "1002", "1003", "1004"}[i], header(t, frame, stomp.HeaderReceipt))
		if frame.Command() == stomp.SUBSCRIBE {
			subscriptionIDs = append(subscriptionIDs, header(t, frame, stomp.HeaderID))
		}
	}
	assert.Equal(t, []string{"0", "1", "2", "3"}, subscriptionIDs)
	assert.Equal(t, stomp.UNSUBSCRIBE, frames[2].Command())
	assert.Equal(t, "0", header(t, frames[2], stomp.HeaderID))

	assert.Equal(t, map[string]int{"a": 3, "b": 1}, h.session.Subscriptions())
	assert.Equal(t, ExitAction("a"), h.session.PendingReceipts()[1002])
}

func TestExitUnknownChannel(t *testing.T) {
	h := loggedIn(t, "alice")
	before := len(h.transport.frames())

	err := h.session.ProcessCommand("exit nowhere")
	assert.Equal(t, KindNotSubscribed, KindOf(err))
	assert.Len(t, h.transport.frames(), before)
	assert.Empty(t, h.session.PendingReceipts())
}

func TestReceiptHandledOnce(t *testing.T) {
	h := loggedIn(t, "alice")
	require.NoError(t, h.session.ProcessCommand("join soccer"))

	h.receipt("1000")
	h.receipt("1000")
	h.receipt("4242")
	h.receipt("not-a-number")
	// a marker frame lets us know the reader has drained the receipts above
	require.NoError(t, h.session.ProcessCommand("join marker"))
	h.receipt("1001")
	require.Eventually(t, func() bool { return len(h.session.PendingReceipts()) == 0 }, waitFor, tick)

	assert.Equal(t, 1, bytes.Count([]byte(h.out.String()), []byte("Joined channel soccer")))
	assert.False(t, h.session.Terminated())
}

func TestExitReceipt(t *testing.T) {
	h := loggedIn(t, "alice")
	require.NoError(t, h.session.ProcessCommand("join soccer"))
	require.NoError(t, h.session.ProcessCommand("exit soccer"))
	h.receipt("1001")
	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(h.out.String()), []byte("Exited channel soccer"))
	}, waitFor, tick)
	assert.Empty(t, h.session.Subscriptions())
}

func TestErrorFrameTerminates(t *testing.T) {
	h := loggedIn(t, "alice")
	require.NoError(t, h.session.ProcessCommand("join soccer"))

	h.transport.push(stomp.ERROR, map[string]string{stomp.HeaderMessage: "malformed frame received"}, "The message:\n-----\nSEND\n")
	select {
	case <-h.session.Done():
	case <-time.After(waitFor):
		t.Fatal("session did not terminate on ERROR")
	}
	h.session.Wait()

	assert.Equal(t, Terminated, h.session.State())
	assert.Empty(t, h.session.PendingReceipts(), "teardown drops pending receipts")
	assert.Equal(t, 1, h.transport.closes())
	assert.Contains(t, h.out.String(), "malformed frame received")
	assert.Contains(t, h.out.String(), "The message:")

	// terminal state
	h.session.Close()
	assert.Equal(t, 1, h.transport.closes())
	assert.Equal(t, KindNotLoggedIn, KindOf(h.session.ProcessCommand("join soccer")))
	assert.Equal(t, KindTerminated, KindOf(h.session.ProcessCommand("login 127.0.0.1:7777 alice pw")))
}

func TestReadFailureTerminates(t *testing.T) {
	h := loggedIn(t, "alice")
	h.transport.readErr <- transport.NewConnectionError("read failed", errors.New("reset by peer"))

	select {
	case <-h.session.Done():
	case <-time.After(waitFor):
		t.Fatal("session did not terminate on read failure")
	}
	h.session.Wait()
	assert.Equal(t, Terminated, h.session.State())
	assert.Equal(t, 1, h.transport.closes())
	assert.Contains(t, h.out.String(), "connection lost")
}

func TestLocalCloseIsQuiet(t *testing.T) {
	h := loggedIn(t, "alice")
	h.session.Close()
	h.session.Wait()
	assert.NotContains(t, h.out.String(), "connection lost")
	assert.Equal(t, 1, h.transport.closes())
}

func TestFailedWriteRollsBack(t *testing.T) {
	h := loggedIn(t, "alice")
	require.NoError(t, h.session.ProcessCommand("join keep"))
	h.transport.setWriteErr(errors.New("broken pipe"))

	assert.Equal(t, KindTransport, KindOf(h.session.ProcessCommand("join other")))
	assert.Equal(t, KindTransport, KindOf(h.session.ProcessCommand("exit keep")))
	assert.Equal(t, KindTransport, KindOf(h.session.ProcessCommand("logout")))

	assert.Equal(t, map[string]int{"keep": 0}, h.session.Subscriptions())
	assert.Equal(t, map[int]PendingAction{1000: JoinAction("keep")}, h.session.PendingReceipts())
	assert.False(t, h.session.AwaitingLogout())

	// ids are not reused after a failed send
	h.transport.setWriteErr(nil)
	require.NoError(t, h.session.ProcessCommand("join other"))
	frame := h.transport.lastFrame(t)
	assert.Equal(t, "2", header(t, frame, stomp.HeaderID))
	assert.Equal(t, "1004", header(t, frame, stomp.HeaderReceipt))
}
