package ui

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// Spinner animates a one-line status on stdout while a blocking call runs.
// Frames and their rate come from a bubbles spinner preset.
type Spinner struct {
	frames  spinner.Spinner
	message string

	started  atomic.Bool
	stop     chan struct{}
	finished chan struct{}
	stopOnce sync.Once
}

func newSpinner(frames spinner.Spinner, message string) *Spinner {
	return &Spinner{
		frames:   frames,
		message:  message,
		stop:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// NewSpinner returns an unstarted spinner in the Dot style.
func NewSpinner(message string) *Spinner {
	return newSpinner(spinner.Dot, message)
}

// Start begins drawing and returns s for chaining.
func (s *Spinner) Start() *Spinner {
	if s.started.CompareAndSwap(false, true) {
		go s.run()
	}
	return s
}

func (s *Spinner) run() {
	defer close(s.finished)

	interval := s.frames.FPS
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		frame := s.frames.Frames[i%len(s.frames.Frames)]
		fmt.Printf("\r%s %s", SpinnerStyle.Render(frame), s.message)
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}
	}
}

// Stop clears the line. No frame is drawn after it returns.
func (s *Spinner) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		if s.started.Load() {
			<-s.finished
			fmt.Print("\r\033[K")
		}
	})
}

func (s *Spinner) Success(message string) {
	s.Stop()
	fmt.Println(statusLine(IconSuccess, SuccessStyle, message, false))
}

func (s *Spinner) Error(message string) {
	s.Stop()
	fmt.Println(statusLine(IconError, ErrorStyle, message, false))
}

// RunConnectionSpinner shows a Globe spinner until the returned func is called.
func RunConnectionSpinner(message string) func() {
	return newSpinner(spinner.Globe, message).Start().Stop
}

// RunWaitingSpinner shows a Points spinner until the returned func is called.
func RunWaitingSpinner(message string) func() {
	return newSpinner(spinner.Points, message).Start().Stop
}
