package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/kumarnitish378/secureFileTransfer-FTDI/bridge"
)

const barWidth = 24

// meter renders transfer progress as a single terminal line, redrawn in
// place for every confirmed chunk.
type meter struct {
	mu     sync.Mutex
	out    io.Writer
	active bool
}

func newMeter(out io.Writer) *meter {
	return &meter{out: out}
}

func (m *meter) update(r bridge.ProgressReport) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.active = true

	pct := 100.0
	if r.TotalBytes > 0 {
		pct = float64(r.BytesConfirmed) * 100 / float64(r.TotalBytes)
	}

	eta := "--:--"
	if r.ETAValid {
		eta = fmtETA(r.ETA)
	}

	fmt.Fprintf(m.out, "\r%-20s [%s] %5.1f%%  %10s  %9s/s  ETA %s",
		truncName(r.FileName, 20), renderBar(pct), pct,
		fmtBytes(r.BytesConfirmed), fmtBytes(uint64(r.Rate)), eta)
}

// finish terminates the in-place progress line, if one was drawn.
func (m *meter) finish() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active {
		fmt.Fprintln(m.out)
		m.active = false
	}
}

func renderBar(pct float64) string {
	filled := int(pct / 100 * barWidth)
	if filled > barWidth {
		filled = barWidth
	}

	return strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled)
}

func truncName(name string, width int) string {
	if len(name) <= width {
		return name
	}

	return name[:width-3] + "..."
}

func fmtBytes(n uint64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func fmtETA(d time.Duration) string {
	d = d.Round(time.Second)
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60

	return fmt.Sprintf("%02d:%02d", m, s)
}
