package session

import (
	"strings"
)

// Verb is the closed set of console commands.
type Verb byte

const (
	VerbUnknown Verb = iota
	VerbLogin
	VerbJoin
	VerbExit
	VerbReport
	VerbSummary
	VerbLogout
)

var VerbMap = map[string]Verb{
	"login":   VerbLogin,
	"join":    VerbJoin,
	"exit":    VerbExit,
	"report":  VerbReport,
	"summary": VerbSummary,
	"logout":  VerbLogout,
}

var verbUsage = map[Verb]string{
	VerbLogin:   "login <host:port> <username> <password>",
	VerbJoin:    "join <channel>",
	VerbExit:    "exit <channel>",
	VerbReport:  "report <file>",
	VerbSummary: "summary <channel> <user> <file>",
	VerbLogout:  "logout",
}

var verbArgs = map[Verb]int{
	VerbLogin:   3,
	VerbJoin:    1,
	VerbExit:    1,
	VerbReport:  1,
	VerbSummary: 3,
	VerbLogout:  0,
}

func (v Verb) Usage() string {
	return verbUsage[v]
}

// Input is one tokenized console line.
type Input struct {
	Verb Verb
	Name string
	Args []string
}

// ParseInput splits line on whitespace. An empty line yields an Input with
// an empty Name.
func ParseInput(line string) Input {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Input{}
	}
	return Input{Verb: VerbMap[fields[0]], Name: fields[0], Args: fields[1:]}
}

func (in Input) validate() error {
	if in.Verb == VerbUnknown {
		return newCommandError(KindUnknownCommand, "Unknown command", nil)
	}
	if len(in.Args) != verbArgs[in.Verb] {
		return newCommandError(KindUsage, "Usage: "+in.Verb.Usage(), nil)
	}
	return nil
}
