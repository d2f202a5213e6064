package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"media-curator/internal/indexer"
	"media-curator/internal/logging"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

const defaultWidth = 80

// progressLine redraws a single status line on a terminal. On anything else
// progress goes to the debug log.
type progressLine struct {
	w       io.Writer
	tty     bool
	width   int
	lastLen int
}

func newProgressLine(w io.Writer) *progressLine {
	p := &progressLine{w: w, width: defaultWidth}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.tty = true
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			p.width = width
		}
	}
	return p
}

func (p *progressLine) update(ev indexer.Progress) {
	line := formatProgress(ev)
	if !p.tty {
		logging.Debug("%s", line)
		return
	}

	line = truncate(line, p.width-1)
	n := len([]rune(line))
	pad := ""
	if p.lastLen > n {
		pad = strings.Repeat(" ", p.lastLen-n)
	}
	fmt.Fprintf(p.w, "\r%s%s", line, pad)
	p.lastLen = n
}

func (p *progressLine) clear() {
	if !p.tty || p.lastLen == 0 {
		return
	}
	fmt.Fprintf(p.w, "\r%s\r", strings.Repeat(" ", p.lastLen))
	p.lastLen = 0
}

func formatProgress(ev indexer.Progress) string {
	switch ev.Status {
	case indexer.PhaseScanning:
		return "Scanning..."
	case indexer.PhaseIndexing:
		pct := 0
		if ev.Total > 0 {
			pct = ev.Indexed * 100 / ev.Total
		}
		line := fmt.Sprintf("Indexing %s/%s (%d%%)",
			humanize.Comma(int64(ev.Indexed)), humanize.Comma(int64(ev.Total)), pct)
		if ev.CurrentFile != "" {
			line += " " + filepath.Base(ev.CurrentFile)
		}
		return line
	default:
		return string(ev.Status)
	}
}

// truncate shortens s to at most width runes, marking the cut with "...".
func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	if width <= 3 {
		return string(r[:width])
	}
	return string(r[:width-3]) + "..."
}
