package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestCleaner() *Cleaner {
	return &Cleaner{stepTimeout: time.Second, exit: func(int) {}}
}

func TestCleanRunsInReverseOrderOnce(t *testing.T) {
	cleaner := newTestCleaner()
	var order []string
	record := func(name string, err error) Callable {
		return CallableFunc(func(ctx context.Context) error {
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			order = append(order, name)
			return err
		})
	}

	cleaner.Add(record("transport", nil))
	cleaner.Add(record("archive", errors.New("flush failed")))
	cleaner.Add(record("session", nil))
	cleaner.loggerShutdown = record("logger", nil)

	cleaner.Clean()
	cleaner.Clean()
	assert.Equal(t, []string{"session", "archive", "transport", "logger"}, order)

	// registrations after shutdown started are ignored
	cleaner.Add(record("late", nil))
	assert.Len(t, cleaner.cleaners, 3)
}

func TestCleanWithoutLogger(t *testing.T) {
	cleaner := newTestCleaner()
	called := false
	cleaner.Add(CallableFunc(func(context.Context) error {
		called = true
		return nil
	}))
	cleaner.Clean()
	assert.True(t, called)
}
