package session

import (
	"errors"
	"fmt"
)

type ErrorKind byte

const (
	KindUnknownCommand ErrorKind = iota + 1
	KindUsage
	KindNotLoggedIn
	KindAlreadyLoggedIn
	KindNotSubscribed
	KindParse
	KindTransport
	KindStore
	KindTerminated
)

var ErrorKindMap = map[ErrorKind]string{
	KindUnknownCommand:  "unknown command",
	KindUsage:           "usage",
	KindNotLoggedIn:     "not logged in",
	KindAlreadyLoggedIn: "already logged in",
	KindNotSubscribed:   "not subscribed",
	KindParse:           "parse",
	KindTransport:       "transport",
	KindStore:           "store",
	KindTerminated:      "terminated",
}

func (k ErrorKind) String() string {
	return ErrorKindMap[k]
}

// CommandError is returned by ProcessCommand. The command it describes had no
// effect on the session unless Kind is KindTransport during report, where the
// events sent before the failure stay recorded.
type CommandError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func newCommandError(kind ErrorKind, message string, cause error) *CommandError {
	return &CommandError{Kind: kind, Message: message, Cause: cause}
}

func (e *CommandError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CommandError) Unwrap() error {
	return e.Cause
}

// KindOf returns the kind of a CommandError anywhere in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var commandErr *CommandError
	if errors.As(err, &commandErr) {
		return commandErr.Kind
	}
	return 0
}

var (
	errNotLoggedIn     = newCommandError(KindNotLoggedIn, "You must login first", nil)
	errAlreadyLoggedIn = newCommandError(KindAlreadyLoggedIn, "The client is already logged in, log out before trying again", nil)
	errTerminated      = newCommandError(KindTerminated, "The session has ended, restart the client to log in again", nil)
)
