package bridge

import (
	"sync/atomic"
)

// SessionMetrics contains atomic metrics for a transfer session.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type SessionMetrics struct {
	// FrameSendCount indicates the number of frames sent and confirmed.
	FrameSendCount atomic.Uint64
	// FrameRecvCount indicates the number of frames received intact.
	FrameRecvCount atomic.Uint64
	// FrameRetryCount indicates the total number of frame retransmissions.
	FrameRetryCount atomic.Uint64
	// FrameErrCount indicates the number of corrupt or implausible frames
	// discarded by the deframer.
	FrameErrCount atomic.Uint64

	// FileSendCount indicates the number of files sent to completion.
	FileSendCount atomic.Uint64
	// FileRecvCount indicates the number of files received to completion.
	FileRecvCount atomic.Uint64
	// FileErrCount indicates the number of file tasks abandoned.
	FileErrCount atomic.Uint64

	// BytesConfirmed indicates the total payload bytes confirmed delivered.
	BytesConfirmed atomic.Uint64
}

func (m *SessionMetrics) incFrameSendCount() {
	m.FrameSendCount.Add(1)
}

func (m *SessionMetrics) incFrameRecvCount() {
	m.FrameRecvCount.Add(1)
}

func (m *SessionMetrics) incFrameRetryCount() {
	m.FrameRetryCount.Add(1)
}

func (m *SessionMetrics) incFrameErrCount() {
	m.FrameErrCount.Add(1)
}

func (m *SessionMetrics) incFileSendCount() {
	m.FileSendCount.Add(1)
}

func (m *SessionMetrics) incFileRecvCount() {
	m.FileRecvCount.Add(1)
}

func (m *SessionMetrics) incFileErrCount() {
	m.FileErrCount.Add(1)
}

func (m *SessionMetrics) addBytesConfirmed(n uint64) {
	m.BytesConfirmed.Add(n)
}
