// Package console reads commands from the terminal and feeds them to the
// session.
package console

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ergochat/readline"
	c "github.com/life-stream-dev/life-stream-go-stomp-client/internal/config"
	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/logger"
	"golang.org/x/term"
)

type Editor interface {
	GetLine(prompt string) (string, error)
	Close()
}

// LineEditor uses readline when stdin is a terminal and a plain scanner
// otherwise (pipes, scripts, editor shells).
type LineEditor struct {
	interactive bool
	rl          *readline.Instance
	scanner     *bufio.Scanner
	out         io.Writer
	closeOnce   sync.Once
}

func historyPath(file string) string {
	if file == "" || filepath.IsAbs(file) {
		return file
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return file
	}
	return filepath.Join(home, file)
}

// historySettings reads the history file and limit from the loaded config,
// falling back to the defaults when no config can be read.
func historySettings() (string, int) {
	config, err := c.GetConfig()
	if err != nil {
		logger.WarnF("Config unavailable for input history (%v), using defaults", err)
		config = c.Default()
	}
	return historyPath(config.Console.HistoryFile), config.Console.HistoryLimit
}

// NewLineEditor picks the input mode for the process's stdin.
func NewLineEditor() *LineEditor {
	interactive := term.IsTerminal(int(os.Stdin.Fd())) && os.Getenv("INSIDE_EMACS") == ""
	if !interactive {
		return NewPlainEditor(os.Stdin, os.Stdout)
	}

	historyFile, historyLimit := historySettings()
	rl, err := readline.NewFromConfig(&readline.Config{
		HistoryFile:            historyFile,
		HistoryLimit:           historyLimit,
		DisableAutoSaveHistory: true,
	})
	if err != nil {
		logger.WarnF("readline init failed (%v), using basic input", err)
		return NewPlainEditor(os.Stdin, os.Stdout)
	}
	return &LineEditor{interactive: true, rl: rl, out: os.Stdout}
}

// NewPlainEditor reads lines from in and writes prompts to out.
func NewPlainEditor(in io.Reader, out io.Writer) *LineEditor {
	return &LineEditor{scanner: bufio.NewScanner(in), out: out}
}

// GetLine returns io.EOF at end of input. Ctrl-C is reported as io.EOF too.
func (le *LineEditor) GetLine(prompt string) (string, error) {
	if le.interactive {
		le.rl.SetPrompt(prompt)
		line, err := le.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				return "", io.EOF
			}
			return "", err
		}
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			_ = le.rl.SaveToHistory(trimmed)
		}
		return line, nil
	}

	if prompt != "" {
		_, _ = fmt.Fprint(le.out, prompt)
	}
	if !le.scanner.Scan() {
		if err := le.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return le.scanner.Text(), nil
}

// Close saves history and releases the terminal. It may be called from a
// goroutine other than the one blocked in GetLine.
func (le *LineEditor) Close() {
	le.closeOnce.Do(func() {
		if le.rl != nil {
			_ = le.rl.Close()
		}
	})
}

func (le *LineEditor) IsInteractive() bool {
	return le.interactive
}
