package stomp

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidFrame is returned by Validate for a frame that cannot be put on
// the wire unchanged.
var ErrInvalidFrame = errors.New("invalid frame")

// Frame is one protocol message. It is immutable once built: the header map
// is copied on construction and never handed out.
type Frame struct {
	command Command
	name    string
	headers map[string]string
	body    string
}

// NewFrame builds a frame for one of the known commands.
func NewFrame(command Command, headers map[string]string, body string) *Frame {
	return newFrame(command, command.String(), headers, body)
}

func newFrame(command Command, name string, headers map[string]string, body string) *Frame {
	copied := make(map[string]string, len(headers))
	for key, value := range headers {
		copied[key] = value
	}
	return &Frame{command: command, name: name, headers: copied, body: body}
}

func (f *Frame) Command() Command {
	return f.command
}

// Name is the command line as received. It differs from Command().String()
// only for UNKNOWN frames.
func (f *Frame) Name() string {
	return f.name
}

func (f *Frame) Header(key string) (string, bool) {
	value, ok := f.headers[key]
	return value, ok
}

// Headers returns a copy of the header mapping.
func (f *Frame) Headers() map[string]string {
	copied := make(map[string]string, len(f.headers))
	for key, value := range f.headers {
		copied[key] = value
	}
	return copied
}

func (f *Frame) Body() string {
	return f.body
}

// Validate checks that the frame survives Serialize and Parse: header keys
// and values hold no line breaks or NUL, keys are non-empty and have no ':',
// and the body has no NUL.
func (f *Frame) Validate() error {
	for key, value := range f.headers {
		if key == "" || strings.ContainsAny(key, ":\r\n\x00") {
			return fmt.Errorf("%w: header key %q", ErrInvalidFrame, key)
		}
		if strings.ContainsAny(value, "\r\n\x00") {
			return fmt.Errorf("%w: value of header %q", ErrInvalidFrame, key)
		}
	}
	if strings.IndexByte(f.body, FrameDelimiter) >= 0 {
		return fmt.Errorf("%w: body contains the frame delimiter", ErrInvalidFrame)
	}
	return nil
}

// Parse decodes a frame without its trailing delimiter.
//
// The first line is the command, with one trailing '\r' removed. Header
// lines follow until the first empty line; each is split on its first ':'
// with no trimming, and lines without ':' are skipped. Everything after the
// empty line is the body, lines rejoined with '\n'.
func Parse(raw string) *Frame {
	if raw == "" {
		return newFrame(UNKNOWN, "", nil, "")
	}

	lines := strings.Split(raw, "\n")
	name := strings.TrimSuffix(lines[0], "\r")
	headers := make(map[string]string)

	i := 1
	for ; i < len(lines); i++ {
		line := lines[i]
		if line == "" {
			i++
			break
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		headers[key] = value
	}

	body := ""
	if i < len(lines) {
		body = strings.Join(lines[i:], "\n")
	}

	return newFrame(ParseCommand(name), name, headers, body)
}

// Serialize encodes the frame without the delimiter; the transport appends
// it exactly once per send. Headers are written in key order.
func Serialize(f *Frame) string {
	var sb strings.Builder
	sb.WriteString(f.name)
	sb.WriteByte('\n')

	keys := make([]string, 0, len(f.headers))
	for key := range f.headers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		sb.WriteString(key)
		sb.WriteByte(':')
		sb.WriteString(f.headers[key])
		sb.WriteByte('\n')
	}

	sb.WriteByte('\n')
	sb.WriteString(f.body)
	return sb.String()
}

// String is Serialize, for logging.
func (f *Frame) String() string {
	return Serialize(f)
}
