package database

import (
	"sync"

	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/game"
	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/logger"
)

// MemoryStore keeps every event seen during the process, grouped by channel
// and then by reporting user.
type MemoryStore struct {
	mu       sync.Mutex
	events   map[string]map[string][]game.Event
	archiver Archiver
}

// NewMemoryStore returns an empty store. archiver may be nil.
func NewMemoryStore(archiver Archiver) *MemoryStore {
	return &MemoryStore{
		events:   make(map[string]map[string][]game.Event),
		archiver: archiver,
	}
}

// AddEvent records event unless one with the same time and name is already
// stored for (channel, user). It reports whether the event was added.
func (ms *MemoryStore) AddEvent(channel, user string, event game.Event) bool {
	ms.mu.Lock()
	users, ok := ms.events[channel]
	if !ok {
		users = make(map[string][]game.Event)
		ms.events[channel] = users
	}
	key := event.Key()
	for _, existing := range users[user] {
		if existing.Key() == key {
			ms.mu.Unlock()
			logger.DebugF("Event %d/%s already stored for %s on %s", event.Time, event.Name, user, channel)
			return false
		}
	}
	users[user] = append(users[user], event)
	ms.mu.Unlock()

	if ms.archiver != nil {
		ms.archiver.Archive(EventRecord{Channel: channel, User: user, Event: event})
	}
	return true
}

// MaxEventTime returns the latest event time stored for (channel, user).
func (ms *MemoryStore) MaxEventTime(channel, user string) (int, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	events := ms.events[channel][user]
	if len(events) == 0 {
		return 0, false
	}
	latest := events[0].Time
	for _, event := range events[1:] {
		if event.Time > latest {
			latest = event.Time
		}
	}
	return latest, true
}

// Events returns a copy of the events stored for (channel, user) in arrival
// order.
func (ms *MemoryStore) Events(channel, user string) []game.Event {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	events := ms.events[channel][user]
	result := make([]game.Event, len(events))
	copy(result, events)
	return result
}

func (ms *MemoryStore) Clear() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.events = make(map[string]map[string][]game.Event)
}

// GenerateSummary writes the summary for (channel, user) to path. The lock is
// released before the file is touched.
func (ms *MemoryStore) GenerateSummary(channel, user, path string) error {
	events := ms.Events(channel, user)
	if len(events) == 0 {
		return ErrNoEvents
	}
	return WriteSummaryFile(path, events)
}
