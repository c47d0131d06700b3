package console

import (
	"os"
	"path/filepath"
	"testing"

	c "github.com/life-stream-dev/life-stream-go-stomp-client/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistorySettingsFollowConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	history := filepath.Join(t.TempDir(), "history")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"console":{"history_file":"`+filepath.ToSlash(history)+`","history_limit":25}}`), 0644))
	_, err := c.ReadConfig(path)
	require.NoError(t, err)

	file, limit := historySettings()
	assert.Equal(t, filepath.ToSlash(history), file)
	assert.Equal(t, 25, limit)
}

func TestHistoryPath(t *testing.T) {
	assert.Equal(t, "", historyPath(""))
	assert.Equal(t, "/var/tmp/h", historyPath("/var/tmp/h"))

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	assert.Equal(t, filepath.Join(home, ".history"), historyPath(".history"))
}
