package console

import (
	"errors"
	"io"

	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/logger"
)

const DefaultPrompt = "> "

// Executor is the part of the session the loop drives.
type Executor interface {
	Execute(line string)
	AwaitingLogout() bool
	Done() <-chan struct{}
}

type REPL struct {
	editor  Editor
	session Executor
	prompt  string
}

func NewREPL(editor Editor, session Executor) *REPL {
	return &REPL{editor: editor, session: session, prompt: DefaultPrompt}
}

type readResult struct {
	line string
	err  error
}

// Run feeds lines to the session until input ends or the session
// terminates. After a logout is sent it waits for the session to end instead
// of prompting again.
func (r *REPL) Run() error {
	done := r.session.Done()
	for {
		select {
		case <-done:
			return nil
		default:
		}

		results := make(chan readResult, 1)
		go func() {
			line, err := r.editor.GetLine(r.prompt)
			results <- readResult{line: line, err: err}
		}()

		var result readResult
		select {
		case result = <-results:
		case <-done:
			// unblocks a readline read; a scanner read is left to exit
			r.editor.Close()
			return nil
		}

		if result.err != nil {
			if errors.Is(result.err, io.EOF) {
				logger.Debug("Input closed")
				return nil
			}
			return result.err
		}

		r.session.Execute(result.line)
		if r.session.AwaitingLogout() {
			<-done
			return nil
		}
	}
}
