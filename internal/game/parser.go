package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

var ErrMalformedEventFile = errors.New("malformed event file")

// FileParser reads event files from disk.
type FileParser struct{}

func NewFileParser() *FileParser {
	return &FileParser{}
}

// Parse reads path and returns the game with its events sorted by time.
// Events with equal times keep their file order.
func (p *FileParser) Parse(path string) (*Game, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read event file %s: %w", path, err)
	}
	return ParseGame(data)
}

func ParseGame(data []byte) (*Game, error) {
	var game Game
	if err := json.Unmarshal(data, &game); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEventFile, err)
	}
	if game.TeamA == "" || game.TeamB == "" {
		return nil, fmt.Errorf("%w: both team names are required", ErrMalformedEventFile)
	}
	if !singleLine(game.TeamA) || !singleLine(game.TeamB) {
		return nil, fmt.Errorf("%w: team names must be single line", ErrMalformedEventFile)
	}
	for i := range game.Events {
		event := &game.Events[i]
		if event.Name == "" {
			return nil, fmt.Errorf("%w: event #%d has no name", ErrMalformedEventFile, i+1)
		}
		if !singleLine(event.Name) {
			return nil, fmt.Errorf("%w: event #%d name must be single line", ErrMalformedEventFile, i+1)
		}
		if strings.IndexByte(event.Description, 0) >= 0 {
			return nil, fmt.Errorf("%w: event %q description contains NUL", ErrMalformedEventFile, event.Name)
		}
		for _, updates := range []Updates{event.GeneralUpdates, event.TeamAUpdates, event.TeamBUpdates} {
			if err := checkUpdates(updates); err != nil {
				return nil, fmt.Errorf("%w: event %q: %v", ErrMalformedEventFile, event.Name, err)
			}
		}
		event.TeamA = game.TeamA
		event.TeamB = game.TeamB
		if event.GeneralUpdates == nil {
			event.GeneralUpdates = Updates{}
		}
		if event.TeamAUpdates == nil {
			event.TeamAUpdates = Updates{}
		}
		if event.TeamBUpdates == nil {
			event.TeamBUpdates = Updates{}
		}
	}
	sort.SliceStable(game.Events, func(i, j int) bool {
		return game.Events[i].Time < game.Events[j].Time
	})
	return &game, nil
}

// singleLine reports whether s can travel as a header value or report line.
func singleLine(s string) bool {
	return !strings.ContainsAny(s, "\r\n\x00")
}

func checkUpdates(updates Updates) error {
	for key, value := range updates {
		if key == "" || strings.Contains(key, ":") || !singleLine(key) {
			return fmt.Errorf("invalid update key %q", key)
		}
		if !singleLine(value) {
			return fmt.Errorf("update %q must be single line", key)
		}
	}
	return nil
}
