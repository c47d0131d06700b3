package session

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

// printer serialises console writes from the command and reader goroutines.
// It has its own lock so output never happens under the session mutex.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func newPrinter(w io.Writer) *printer {
	if w == nil {
		w = io.Discard
	}
	return &printer{w: w}
}

func (p *printer) line(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.w, msg)
}

func (p *printer) info(format string, v ...interface{}) {
	p.line(fmt.Sprintf(format, v...))
}

func (p *printer) success(format string, v ...interface{}) {
	p.line(color.GreenString(format, v...))
}

func (p *printer) failure(format string, v ...interface{}) {
	p.line(color.RedString("Error: "+format, v...))
}
