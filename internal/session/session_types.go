// Package session is the client's protocol engine: it turns console input
// into frames, correlates receipts with the actions that requested them and
// applies inbound frames to the session state.
package session

import (
	"time"

	c "github.com/life-stream-dev/life-stream-go-stomp-client/internal/config"
	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/game"
	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/utils"
)

type State byte

const (
	Anonymous State = iota
	Connecting
	Connected
	Terminated
)

var StateMap = map[State]string{
	Anonymous:  "ANONYMOUS",
	Connecting: "CONNECTING",
	Connected:  "CONNECTED",
	Terminated: "TERMINATED",
}

func (s State) String() string {
	return StateMap[s]
}

type ActionKind byte

const (
	ActionJoin ActionKind = iota + 1
	ActionExit
	ActionLogout
)

var ActionKindMap = map[ActionKind]string{
	ActionJoin:   "JOIN",
	ActionExit:   "EXIT",
	ActionLogout: "LOGOUT",
}

func (k ActionKind) String() string {
	return ActionKindMap[k]
}

// PendingAction is what a receipt id was issued for. Channel is empty for
// ActionLogout.
type PendingAction struct {
	Kind    ActionKind
	Channel string
}

func JoinAction(channel string) PendingAction {
	return PendingAction{Kind: ActionJoin, Channel: channel}
}

func ExitAction(channel string) PendingAction {
	return PendingAction{Kind: ActionExit, Channel: channel}
}

func LogoutAction() PendingAction {
	return PendingAction{Kind: ActionLogout}
}

// Transport is the byte channel underneath the frame layer.
type Transport interface {
	Connect(host string, port int) error
	ReadFrameBytes(delimiter byte) (string, error)
	WriteFrame(payload string, delimiter byte) error
	Close() error
}

type EventStore interface {
	AddEvent(channel, user string, event game.Event) bool
	MaxEventTime(channel, user string) (int, bool)
	GenerateSummary(channel, user, path string) error
	Clear()
}

type EventFileParser interface {
	Parse(path string) (*game.Game, error)
}

type Options struct {
	HostHeader       string
	AcceptVersion    string
	ReceiptBase      int
	MessageCacheSize int
	MessageCacheTTL  time.Duration
}

func DefaultOptions() Options {
	return OptionsFromConfig(c.Default())
}

func OptionsFromConfig(config c.Config) Options {
	opts := Options{
		HostHeader:       config.Stomp.HostHeader,
		AcceptVersion:    config.Stomp.AcceptVersion,
		ReceiptBase:      config.Stomp.ReceiptBase,
		MessageCacheSize: config.Stomp.MessageCacheSize,
		MessageCacheTTL:  utils.ParseStringTime(config.Stomp.MessageCacheTTL),
	}
	if opts.MessageCacheSize <= 0 {
		opts.MessageCacheSize = 1024
	}
	if opts.MessageCacheTTL <= 0 {
		opts.MessageCacheTTL = 10 * time.Minute
	}
	return opts
}
