package utils

import (
	"strconv"
	"strings"
	"time"

	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/logger"
)

var durationUnits = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
}

// ParseStringTime converts config values such as "10s", "5m", "2h" or "1d"
// into a duration. Anything time.ParseDuration accepts also works. Invalid
// input is logged and yields 0.
func ParseStringTime(timeString string) time.Duration {
	trimmed := strings.ToLower(strings.TrimSpace(timeString))
	if trimmed == "" {
		return 0
	}

	unit := trimmed[len(trimmed)-1:]
	if scale, ok := durationUnits[unit]; ok {
		if number, err := strconv.Atoi(trimmed[:len(trimmed)-1]); err == nil {
			return time.Duration(number) * scale
		}
	}

	d, err := time.ParseDuration(trimmed)
	if err != nil {
		logger.ErrorF("invalid time format: %s", timeString)
		return 0
	}
	return d
}
