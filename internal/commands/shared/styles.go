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
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// ANSI 256 palette indices.
const (
	colorGreen  = lipgloss.Color("42")
	colorAmber  = lipgloss.Color("214")
	colorRed    = lipgloss.Color("196")
	colorGray   = lipgloss.Color("245")
	colorAccent = lipgloss.Color("39")
)

// Text styles shared by every command's human output.
var (
	StatusOK    = lipgloss.NewStyle().Foreground(colorGreen)
	StatusWarn  = lipgloss.NewStyle().Foreground(colorAmber)
	StatusError = lipgloss.NewStyle().Foreground(colorRed)
	Muted       = lipgloss.NewStyle().Foreground(colorGray)
	Bold        = lipgloss.NewStyle().Bold(true)
	Header      = Bold.Foreground(colorAccent)
)

// mark is a status glyph with a plain fallback for dumb terminals.
type mark struct {
	glyph, plain string
	style        lipgloss.Style
}

var (
	markOK    = mark{"✓", "[ok]", StatusOK}
	markWarn  = mark{"⚠", "[warn]", StatusWarn}
	markError = mark{"✗", "[error]", StatusError}
)

func (m mark) prefix(msg string) string {
	if !ColorEnabled() {
		return m.plain + " " + msg
	}
	return m.style.Render(m.glyph) + " " + msg
}

// ColorEnabled is false when NO_COLOR is set or stderr is not a terminal.
func ColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func RenderOK(msg string) string    { return markOK.prefix(msg) }
func RenderWarn(msg string) string  { return markWarn.prefix(msg) }
func RenderError(msg string) string { return markError.prefix(msg) }

// RenderKV lays out "label: value" with the label column padded to width.
func RenderKV(label string, width int, value string) string {
	return Muted.Width(width).Render(label+":") + " " + value
}
