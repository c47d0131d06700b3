// Package stomp implements the subset of the STOMP text protocol spoken by
// the event-reporting service: the command set and the frame codec.
package stomp

// Command is the closed set of frame commands the client understands.
type Command byte

const (
	UNKNOWN     Command = iota // anything not listed below, including an empty command line
	CONNECT                    // client opens a session
	CONNECTED                  // server accepts the session
	SUBSCRIBE                  // client joins a channel
	UNSUBSCRIBE                // client leaves a channel
	SEND                       // client publishes to a channel
	MESSAGE                    // server delivers a published body
	RECEIPT                    // server acknowledges a receipt header
	DISCONNECT                 // client ends the session
	ERROR                      // server reports a fatal error
)

// FrameDelimiter terminates every frame on the wire.
const FrameDelimiter byte = 0x00

// Header names used by the client.
const (
	HeaderAcceptVersion = "accept-version"
	HeaderHost          = "host"
	HeaderLogin         = "login"
	HeaderPasscode      = "passcode"
	HeaderDestination   = "destination"
	HeaderID            = "id"
	HeaderReceipt       = "receipt"
	HeaderReceiptID     = "receipt-id"
	HeaderMessage       = "message"
	HeaderMessageID     = "message-id"
	HeaderSubscription  = "subscription"
	HeaderVersion       = "version"
)

var CommandMap = map[Command]string{
	CONNECT:     "CONNECT",
	CONNECTED:   "CONNECTED",
	SUBSCRIBE:   "SUBSCRIBE",
	UNSUBSCRIBE: "UNSUBSCRIBE",
	SEND:        "SEND",
	MESSAGE:     "MESSAGE",
	RECEIPT:     "RECEIPT",
	DISCONNECT:  "DISCONNECT",
	ERROR:       "ERROR",
}

var commandLookup = func() map[string]Command {
	lookup := make(map[string]Command, len(CommandMap))
	for command, name := range CommandMap {
		lookup[name] = command
	}
	return lookup
}()

// String returns the wire name, or "" for UNKNOWN.
func (command Command) String() string {
	return CommandMap[command]
}

// ParseCommand maps a wire name onto the command set. Matching is exact.
func ParseCommand(name string) Command {
	if command, ok := commandLookup[name]; ok {
		return command
	}
	return UNKNOWN
}
