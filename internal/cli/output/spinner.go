package output

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

// Spinner displays a progress animation while a call is in flight.
// A nil *Spinner is valid and does nothing.
type Spinner struct {
	w        io.Writer
	message  string
	frames   []string
	interval time.Duration
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewSpinner creates a new spinner.
func NewSpinner(w io.Writer, message string) *Spinner {
	return &Spinner{
		w:        w,
		message:  message,
		frames:   []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		interval: 100 * time.Millisecond,
		done:     make(chan struct{}),
	}
}

// NewTerminalSpinner returns a spinner on f, or nil when f is not a terminal.
func NewTerminalSpinner(f *os.File, message string) *Spinner {
	if f == nil || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return NewSpinner(f, message)
}

// Start starts the spinner animation.
func (s *Spinner) Start() {
	if s == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for i := 0; ; i++ {
			fmt.Fprintf(s.w, "\r%s %s", s.frames[i%len(s.frames)], s.message)
			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop stops the animation, waits for it to exit and clears the line.
// It is safe to call more than once.
func (s *Spinner) Stop() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		fmt.Fprint(s.w, "\r\033[K")
	})
}
