package bridge

import (
	"context"
	"fmt"

	"github.com/kumarnitish378/secureFileTransfer-FTDI/chunk"
	"github.com/kumarnitish378/secureFileTransfer-FTDI/frame"
)

// recvState is the receive-side protocol state. It is owned by the receiver
// goroutine; only lastAccepted is mirrored into the transport for Nak
// generation.
type recvState struct {
	helloSeen    bool
	lastAccepted uint32
	// lastRejectedSeq dedupes side effects of rejected FileMeta retransmits.
	lastRejectedSeq uint32

	writer    *chunk.Writer
	task      *FileTask
	acct      *Accountant
	nextIndex uint64
}

// expected returns the next in-order sequence number, skipping the reserved
// zero on wrap.
func (rs *recvState) expected() uint32 {
	e := rs.lastAccepted + 1
	if e == 0 {
		e = 1
	}

	return e
}

// receiverIteration processes one inbound frame. Returning false stops the
// receiver loop.
func (s *Session) receiverIteration(ctx context.Context) bool {
	f, err := s.transport.recvFrame(ctx)
	if err != nil {
		s.abortPartialFile(fmt.Errorf("session interrupted: %w", err))

		return false
	}

	return s.handleInbound(f)
}

func (s *Session) handleInbound(f *frame.Frame) bool {
	rs := &s.rstate

	// retransmit of the frame we already applied: re-ack, never re-apply
	if rs.lastAccepted != 0 && f.Seq == rs.lastAccepted {
		return s.ackAccepted(f.Seq)
	}

	switch f.Type {
	case frame.TypeHello:
		return s.handleHello(f)
	case frame.TypeFileMeta:
		return s.handleFileMeta(f)
	case frame.TypeData:
		return s.handleData(f)
	case frame.TypeFileEnd:
		return s.handleFileEnd(f)
	case frame.TypeSessionEnd:
		return s.handleSessionEnd(f)
	default:
		s.logger.Debug("ignoring unexpected frame", "type", f.Type.String(), "seq", f.Seq)

		return true
	}
}

// accept records seq as the last accepted frame and acknowledges it.
func (s *Session) accept(seq uint32) bool {
	s.rstate.lastAccepted = seq
	s.transport.setLastAccepted(seq)

	return s.ackAccepted(seq)
}

func (s *Session) ackAccepted(seq uint32) bool {
	return s.transport.sendControl(frame.NewAck(seq)) == nil
}

// rejectFrame answers an unacceptable frame with a Nak carrying the last
// accepted sequence, telling the sender where the receiver stands.
func (s *Session) rejectFrame(f *frame.Frame, reason string) bool {
	s.logger.Debug("rejecting frame",
		"type", f.Type.String(), "seq", f.Seq, "reason", reason)

	return s.transport.sendControl(frame.NewNak(s.rstate.lastAccepted)) == nil
}

// handleHello starts a fresh exchange. Hello opens a new sequence chain, so
// any non-duplicate sequence is acceptable.
func (s *Session) handleHello(f *frame.Frame) bool {
	s.abortPartialFile(fmt.Errorf("new handshake received"))

	s.rstate.helloSeen = true
	s.logger.Info("handshake received", "seq", f.Seq)
	s.setRecvState(ListeningState)

	return s.accept(f.Seq)
}

// handleFileMeta opens the output file for a new incoming transfer. FileMeta
// starts a new chain, so forward sequence jumps are accepted; the sender
// skips ahead after abandoning a file.
func (s *Session) handleFileMeta(f *frame.Frame) bool {
	rs := &s.rstate

	if !rs.helloSeen {
		return s.rejectFrame(f, "no handshake")
	}

	meta, err := frame.DecodeFileMeta(f.Payload)
	if err != nil {
		return s.rejectFrame(f, "bad file meta")
	}

	s.abortPartialFile(fmt.Errorf("superseded by file %q", meta.Name))

	w, err := chunk.NewWriter(s.cfg.outputDir, meta.Name, s.cfg.chunkSize)
	if err != nil {
		if rs.lastRejectedSeq != f.Seq {
			rs.lastRejectedSeq = f.Seq

			s.logger.Error("cannot create output file", "file", meta.Name, "error", err)

			task := newRecvTask(*meta)
			task.fail(err)
			s.addTask(task)
			s.metrics.incFileErrCount()
		}

		return s.rejectFrame(f, "file create failed")
	}

	task := newRecvTask(*meta)
	s.addTask(task)

	rs.writer = w
	rs.task = task
	rs.acct = NewAccountant(meta.Size)
	rs.nextIndex = 0

	s.setRecvState(ReceivingState)
	s.logger.Info("receiving file", "file", meta.Name, "size", meta.Size)

	return s.accept(f.Seq)
}

// handleData appends the next in-order chunk to the open file.
func (s *Session) handleData(f *frame.Frame) bool {
	rs := &s.rstate

	if rs.writer == nil {
		return s.rejectFrame(f, "no file open")
	}

	if f.Seq != rs.expected() {
		return s.rejectFrame(f, "out of order")
	}

	if err := rs.writer.WriteChunk(rs.nextIndex, f.Payload); err != nil {
		s.logger.Error("write failed, dropping file",
			"file", rs.task.Snapshot().Name, "error", err)
		s.abortPartialFile(err)

		return s.rejectFrame(f, "write failed")
	}

	rs.nextIndex++

	n := uint64(len(f.Payload))
	rs.task.addConfirmed(n)
	rs.acct.RecordConfirmed(n)
	s.metrics.addBytesConfirmed(n)
	s.emitProgress(rs.task.Snapshot().Name, rs.acct)

	return s.accept(f.Seq)
}

// handleFileEnd finalizes the open file and returns to listening.
func (s *Session) handleFileEnd(f *frame.Frame) bool {
	rs := &s.rstate

	if rs.writer == nil {
		return s.rejectFrame(f, "no file open")
	}

	if f.Seq != rs.expected() {
		return s.rejectFrame(f, "out of order")
	}

	name := rs.task.Snapshot().Name
	path := rs.writer.Path()

	if err := rs.writer.Close(); err != nil {
		s.logger.Error("cannot finalize file", "file", name, "error", err)
		rs.task.fail(err)
		s.metrics.incFileErrCount()
		s.clearFile()

		return s.rejectFrame(f, "finalize failed")
	}

	rs.task.setState(TaskDone)
	s.metrics.incFileRecvCount()
	s.logger.Info("file received", "file", name, "size", rs.task.bytesDone(), "path", path)

	s.clearFile()
	s.setRecvState(ListeningState)

	return s.accept(f.Seq)
}

// handleSessionEnd acknowledges the remote teardown. A persistent listener
// keeps waiting for the next handshake; a one-shot receiver finishes.
func (s *Session) handleSessionEnd(f *frame.Frame) bool {
	rs := &s.rstate

	if !rs.helloSeen {
		return s.rejectFrame(f, "no handshake")
	}

	s.abortPartialFile(fmt.Errorf("remote session ended"))
	s.logger.Info("remote session ended", "seq", f.Seq)

	ok := s.accept(f.Seq)

	// the next exchange starts with a fresh handshake
	rs.helloSeen = false

	if !s.cfg.persistentListen {
		s.recvFinished.Store(true)

		return false
	}

	s.setRecvState(ListeningState)

	return ok
}

// abortPartialFile drops a half-received file: closes the writer, marks the
// task failed and clears the receive-side file state. No-op when no file is
// open.
func (s *Session) abortPartialFile(cause error) {
	rs := &s.rstate

	if rs.writer == nil {
		return
	}

	_ = rs.writer.Close()
	rs.task.fail(cause)
	s.metrics.incFileErrCount()
	s.logger.Warn("partial file dropped",
		"file", rs.task.Snapshot().Name, "confirmed", rs.task.bytesDone(), "error", cause)

	s.clearFile()
}

func (s *Session) clearFile() {
	rs := &s.rstate
	rs.writer = nil
	rs.task = nil
	rs.acct = nil
	rs.nextIndex = 0
}

// setRecvState updates the session state from the receiver loop. In ModeBoth
// the sender owns the state machine, so the receiver leaves it alone.
func (s *Session) setRecvState(st State) {
	if s.cfg.mode.CanSend() {
		return
	}

	s.stateMgr.Set(st)
}
