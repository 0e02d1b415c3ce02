package bridge

import (
	"sync"
	"time"
)

// defaultRateWindow is the rolling window over which the instantaneous
// throughput is computed. A window smooths the burstiness of chunk
// confirmations without lagging far behind rate changes.
const defaultRateWindow = 3 * time.Second

// ProgressReport is the per-confirmed-chunk progress tuple emitted by the
// engine. The engine does not render progress; any presentation layer
// (terminal line, GUI bar) consumes these reports.
type ProgressReport struct {
	// FileName is the base name of the file in transfer.
	FileName string
	// BytesConfirmed is the number of payload bytes confirmed delivered.
	BytesConfirmed uint64
	// TotalBytes is the file's total size.
	TotalBytes uint64
	// Rate is the instantaneous throughput in bytes per second.
	Rate float64
	// ETA estimates the remaining transfer time. Only meaningful when
	// ETAValid is true; a stalled transfer has an indeterminate ETA.
	ETA      time.Duration
	ETAValid bool
}

// ProgressFunc consumes progress reports. It is called once per confirmed
// chunk from the transfer path and must not block.
type ProgressFunc func(ProgressReport)

// progressSample records one confirmation for the rolling rate window.
type progressSample struct {
	at    time.Time
	bytes uint64
}

// Accountant tracks bytes confirmed delivered for one file transfer and
// derives throughput and ETA.
//
// RecordConfirmed is called once per confirmed chunk. The instantaneous
// rate is the byte count of a rolling window divided by the window span;
// the ETA uses the overall average rate, degrading to indeterminate rather
// than dividing by zero when the transfer has not moved.
type Accountant struct {
	mu        sync.Mutex
	total     uint64
	confirmed uint64
	start     time.Time
	window    time.Duration
	samples   []progressSample

	now func() time.Time // stubbed in tests
}

// NewAccountant creates an Accountant for a transfer of total bytes.
func NewAccountant(total uint64) *Accountant {
	a := &Accountant{
		total:  total,
		window: defaultRateWindow,
		now:    time.Now,
	}
	a.start = a.now()

	return a
}

// RecordConfirmed records n more bytes as confirmed delivered.
func (a *Accountant) RecordConfirmed(n uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	a.confirmed += n
	a.samples = append(a.samples, progressSample{at: now, bytes: n})
	a.prune(now)
}

// prune drops samples older than the rolling window. Caller holds mu.
func (a *Accountant) prune(now time.Time) {
	cutoff := now.Add(-a.window)

	i := 0
	for i < len(a.samples) && a.samples[i].at.Before(cutoff) {
		i++
	}

	if i > 0 {
		a.samples = append(a.samples[:0], a.samples[i:]...)
	}
}

// BytesConfirmed returns the total bytes confirmed so far.
func (a *Accountant) BytesConfirmed() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.confirmed
}

// Total returns the transfer's total byte count.
func (a *Accountant) Total() uint64 {
	return a.total
}

// Rate returns the instantaneous throughput in bytes per second, computed
// over the rolling window.
func (a *Accountant) Rate() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	a.prune(now)

	if len(a.samples) == 0 {
		return 0
	}

	var windowBytes uint64
	for _, s := range a.samples {
		windowBytes += s.bytes
	}

	span := now.Sub(a.samples[0].at)
	if span < time.Millisecond {
		span = time.Millisecond
	}

	return float64(windowBytes) / span.Seconds()
}

// AverageRate returns the overall average throughput since the accountant
// was created, in bytes per second.
func (a *Accountant) AverageRate() float64 {
	a.mu.Lock()
	confirmed := a.confirmed
	start := a.start
	now := a.now()
	a.mu.Unlock()

	elapsed := now.Sub(start)
	if elapsed <= 0 || confirmed == 0 {
		return 0
	}

	return float64(confirmed) / elapsed.Seconds()
}

// ETA estimates the remaining transfer time from the overall average rate.
// The second return value is false when the rate is zero (stalled transfer)
// and the ETA is indeterminate.
func (a *Accountant) ETA() (time.Duration, bool) {
	avg := a.AverageRate()
	if avg <= 0 {
		return 0, false
	}

	a.mu.Lock()
	confirmed := a.confirmed
	a.mu.Unlock()

	if confirmed >= a.total {
		return 0, true
	}

	remaining := a.total - confirmed
	secs := float64(remaining) / avg

	return time.Duration(secs * float64(time.Second)), true
}

// Report builds a ProgressReport snapshot for the named file.
func (a *Accountant) Report(fileName string) ProgressReport {
	eta, ok := a.ETA()

	return ProgressReport{
		FileName:       fileName,
		BytesConfirmed: a.BytesConfirmed(),
		TotalBytes:     a.total,
		Rate:           a.Rate(),
		ETA:            eta,
		ETAValid:       ok,
	}
}
