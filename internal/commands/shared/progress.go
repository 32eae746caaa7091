// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package shared

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/tombee/cortensor/pkg/completion"
)

const progressTick = 120 * time.Millisecond

var progressFrames = [...]string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Progress draws a single status line on a terminal while a completion
// runs, naming the candidate currently being tried. On anything other
// than a terminal it stays silent.
type Progress struct {
	out   io.Writer
	draw  bool
	label string

	mu      sync.Mutex
	started time.Time
	attempt int
	target  string
	frame   int
	stop    chan struct{}
	stopped chan struct{}
}

// NewProgress returns a Progress writing to stderr.
func NewProgress(label string) *Progress {
	return newProgress(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())), label)
}

func newProgress(out io.Writer, draw bool, label string) *Progress {
	return &Progress{out: out, draw: draw, label: label}
}

// Hook returns a dispatcher option that feeds attempts into p.
func (p *Progress) Hook() completion.Option {
	return completion.WithAttemptHook(p.Attempt)
}

// Attempt records the candidate being tried.
func (p *Progress) Attempt(n int, cand completion.Candidate) {
	p.mu.Lock()
	p.attempt = n
	p.target = cand.URL
	p.mu.Unlock()
}

// Start begins drawing. Calling Start twice is a no-op.
func (p *Progress) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return
	}
	p.started = time.Now()
	p.stop = make(chan struct{})
	p.stopped = make(chan struct{})
	if !p.draw {
		close(p.stopped)
		return
	}
	p.paint()
	go p.loop(p.stop, p.stopped)
}

// Stop erases the line and reports how long the run took.
func (p *Progress) Stop() time.Duration {
	p.mu.Lock()
	stop, stopped := p.stop, p.stopped
	p.stop = nil
	p.mu.Unlock()
	if stop == nil {
		return 0
	}

	close(stop)
	<-stopped

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.draw {
		fmt.Fprint(p.out, "\r\033[K")
	}
	return time.Since(p.started)
}

func (p *Progress) loop(stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	t := time.NewTicker(progressTick)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			p.mu.Lock()
			p.frame++
			p.paint()
			p.mu.Unlock()
		}
	}
}

// Line renders the current status text without control sequences.
func (p *Progress) Line() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.line()
}

func (p *Progress) line() string {
	s := p.label
	if p.attempt > 0 {
		s += fmt.Sprintf(" (attempt %d: %s)", p.attempt, p.target)
	}
	return s + " " + FormatElapsed(time.Since(p.started))
}

// paint requires mu.
func (p *Progress) paint() {
	glyph := "*"
	if ColorEnabled() {
		glyph = progressFrames[p.frame%len(progressFrames)]
	}
	fmt.Fprintf(p.out, "\r\033[K%s %s", Muted.Render(glyph), p.line())
}

// FormatElapsed renders d rounded to the second, as "7s", "3m" or "1m 5s".
func FormatElapsed(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	switch m, r := secs/60, secs%60; {
	case m == 0:
		return fmt.Sprintf("%ds", r)
	case r == 0:
		return fmt.Sprintf("%dm", m)
	default:
		return fmt.Sprintf("%dm %ds", m, r)
	}
}
