package database

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/game"
)

// WriteSummaryFile creates (or truncates) path and writes the summary of
// events to it.
func WriteSummaryFile(path string, events []game.Event) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to open summary file: %w", err)
	}
	if err := WriteSummary(f, events); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("unable to close summary file: %w", err)
	}
	return nil
}

// WriteSummary renders the stats accumulated over events (later events win
// per key) followed by the chronological event log.
func WriteSummary(w io.Writer, events []game.Event) error {
	if len(events) == 0 {
		return ErrNoEvents
	}
	sorted := make([]game.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time < sorted[j].Time
	})

	general := game.Updates{}
	teamA := game.Updates{}
	teamB := game.Updates{}
	for _, event := range sorted {
		merge(general, event.GeneralUpdates)
		merge(teamA, event.TeamAUpdates)
		merge(teamB, event.TeamBUpdates)
	}

	teamAName := sorted[0].TeamA
	teamBName := sorted[0].TeamB

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s vs %s\n", teamAName, teamBName)
	bw.WriteString("Game stats:\n")
	bw.WriteString("General stats:\n")
	writeStats(bw, general)
	fmt.Fprintf(bw, "%s stats:\n", teamAName)
	writeStats(bw, teamA)
	fmt.Fprintf(bw, "%s stats:\n", teamBName)
	writeStats(bw, teamB)

	bw.WriteString("Game event reports:\n")
	for _, event := range sorted {
		fmt.Fprintf(bw, "%d - %s:\n%s\n\n", event.Time, event.Name, event.Description)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("unable to write summary: %w", err)
	}
	return nil
}

func merge(dst, src game.Updates) {
	for key, value := range src {
		dst[key] = value
	}
}

func writeStats(w *bufio.Writer, stats game.Updates) {
	for _, key := range stats.Keys() {
		fmt.Fprintf(w, "%s: %s\n", key, stats[key])
	}
}
