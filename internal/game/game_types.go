// Package game holds the event model exchanged on report channels, the
// event-file parser and the section-tagged body format carried in SEND and
// MESSAGE frames.
package game

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Updates is a set of key/value stat updates carried by one event.
type Updates map[string]string

// UnmarshalJSON accepts any JSON scalar as a value and keeps its text form,
// so {"goals": 2} and {"goals": "2"} decode the same way.
func (u *Updates) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make(Updates, len(raw))
	for key, value := range raw {
		var decoded interface{}
		if err := json.Unmarshal(value, &decoded); err != nil {
			return fmt.Errorf("update %q: %w", key, err)
		}
		switch v := decoded.(type) {
		case string:
			result[key] = v
		case bool:
			result[key] = strconv.FormatBool(v)
		case float64:
			result[key] = string(value)
		case nil:
			result[key] = ""
		default:
			return fmt.Errorf("update %q: value must be a scalar", key)
		}
	}
	*u = result
	return nil
}

// Keys returns the update keys in sorted order.
func (u Updates) Keys() []string {
	keys := make([]string, 0, len(u))
	for key := range u {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Event is one timestamped occurrence in a contest.
type Event struct {
	Name           string  `json:"event name" bson:"name"`
	Time           int     `json:"time" bson:"time"`
	TeamA          string  `json:"-" bson:"team_a"`
	TeamB          string  `json:"-" bson:"team_b"`
	GeneralUpdates Updates `json:"general game updates" bson:"general_updates"`
	TeamAUpdates   Updates `json:"team a updates" bson:"team_a_updates"`
	TeamBUpdates   Updates `json:"team b updates" bson:"team_b_updates"`
	Description    string  `json:"description" bson:"description"`
}

// Key is the identity used for de-duplication.
type Key struct {
	Time int
	Name string
}

func (e Event) Key() Key {
	return Key{Time: e.Time, Name: e.Name}
}

// Game is the content of an event file.
type Game struct {
	TeamA  string  `json:"team a"`
	TeamB  string  `json:"team b"`
	Events []Event `json:"events"`
}

// ChannelName derives the channel both participants report to.
func ChannelName(teamA, teamB string) string {
	return teamA + "_" + teamB
}
