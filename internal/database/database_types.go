package database

import (
	"errors"

	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/game"
)

const (
	EventCollectionName = "events"
)

var (
	ErrNoEvents      = errors.New("no events recorded")
	ErrChannelEmpty  = errors.New("channel is empty")
	ErrArchiveClosed = errors.New("archive is closed")
)

// EventRecord is one event as it was recorded for a (channel, user) pair.
type EventRecord struct {
	Channel string     `bson:"channel"`
	User    string     `bson:"user"`
	Event   game.Event `bson:",inline"`
}

// Archiver receives every event newly accepted by the store. Archive must not
// block for long; it is called from the protocol goroutines.
type Archiver interface {
	Archive(record EventRecord)
}

type EventStore interface {
	AddEvent(channel, user string, event game.Event) bool
	MaxEventTime(channel, user string) (int, bool)
	GenerateSummary(channel, user, path string) error
	Clear()
}
