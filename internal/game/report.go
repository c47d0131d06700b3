package game

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Section markers of the report body.
const (
	markerGeneral     = "general game updates:"
	markerTeamA       = "team a updates:"
	markerTeamB       = "team b updates:"
	markerDescription = "description:"
)

const (
	fieldUser      = "user"
	fieldTeamA     = "team a"
	fieldTeamB     = "team b"
	fieldEventName = "event name"
	fieldTime      = "time"
)

var ErrMalformedReport = errors.New("malformed report body")

// FormatReport renders the body of a SEND frame reporting event as user:
//
//	user: <user>
//	team a: <team a>
//	team b: <team b>
//	event name: <name>
//	time: <time>
//	general game updates:
//	<key>: <value>
//	team a updates:
//	...
//	team b updates:
//	...
//	description:
//	<free text>
func FormatReport(user string, event Event) string {
	var sb strings.Builder
	writeField(&sb, fieldUser, user)
	writeField(&sb, fieldTeamA, event.TeamA)
	writeField(&sb, fieldTeamB, event.TeamB)
	writeField(&sb, fieldEventName, event.Name)
	writeField(&sb, fieldTime, strconv.Itoa(event.Time))

	writeSection(&sb, markerGeneral, event.GeneralUpdates)
	writeSection(&sb, markerTeamA, event.TeamAUpdates)
	writeSection(&sb, markerTeamB, event.TeamBUpdates)

	sb.WriteString(markerDescription)
	sb.WriteByte('\n')
	sb.WriteString(event.Description)
	return sb.String()
}

func writeField(sb *strings.Builder, key, value string) {
	sb.WriteString(key)
	sb.WriteString(": ")
	sb.WriteString(value)
	sb.WriteByte('\n')
}

func writeSection(sb *strings.Builder, marker string, updates Updates) {
	sb.WriteString(marker)
	sb.WriteByte('\n')
	for _, key := range updates.Keys() {
		writeField(sb, key, updates[key])
	}
}

// ParseReport is the inverse of FormatReport. It returns the reporting user
// and the event.
func ParseReport(body string) (string, Event, error) {
	event := Event{
		GeneralUpdates: Updates{},
		TeamAUpdates:   Updates{},
		TeamBUpdates:   Updates{},
	}
	lines := strings.Split(body, "\n")

	header := make(map[string]string)
	i := 0
	for ; i < len(lines); i++ {
		line := strings.TrimSuffix(lines[i], "\r")
		if line == markerGeneral {
			break
		}
		if key, value, ok := splitField(line); ok {
			header[key] = value
		}
	}
	if i == len(lines) {
		return "", event, fmt.Errorf("%w: missing %q section", ErrMalformedReport, markerGeneral)
	}

	var current Updates
	for i++; i < len(lines); i++ {
		line := strings.TrimSuffix(lines[i], "\r")
		switch line {
		case markerGeneral:
			current = event.GeneralUpdates
			continue
		case markerTeamA:
			current = event.TeamAUpdates
			continue
		case markerTeamB:
			current = event.TeamBUpdates
			continue
		case markerDescription:
			event.Description = strings.Join(lines[i+1:], "\n")
			i = len(lines)
			continue
		}
		if current == nil {
			current = event.GeneralUpdates
		}
		if key, value, ok := splitField(line); ok {
			current[key] = value
		}
	}

	user, ok := header[fieldUser]
	if !ok {
		return "", event, fmt.Errorf("%w: missing %q", ErrMalformedReport, fieldUser)
	}
	event.Name, ok = header[fieldEventName]
	if !ok {
		return "", event, fmt.Errorf("%w: missing %q", ErrMalformedReport, fieldEventName)
	}
	rawTime, ok := header[fieldTime]
	if !ok {
		return "", event, fmt.Errorf("%w: missing %q", ErrMalformedReport, fieldTime)
	}
	t, err := strconv.Atoi(rawTime)
	if err != nil {
		return "", event, fmt.Errorf("%w: invalid time %q", ErrMalformedReport, rawTime)
	}
	event.Time = t
	event.TeamA = header[fieldTeamA]
	event.TeamB = header[fieldTeamB]
	return user, event, nil
}

// splitField splits "key: value" on the first colon and trims the spaces
// around both halves.
func splitField(line string) (string, string, bool) {
	key, value, found := strings.Cut(line, ":")
	if !found {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}
	return key, strings.TrimSpace(value), true
}
