package bridge

import (
	"context"
	"errors"
	"io"

	"github.com/kumarnitish378/secureFileTransfer-FTDI/chunk"
	"github.com/kumarnitish378/secureFileTransfer-FTDI/frame"
)

// runSender drives the send side of the protocol: handshake, one file at a
// time from the queue, then SessionEnd. It runs once; returning false stops
// the task loop.
func (s *Session) runSender(ctx context.Context) bool {
	s.stateMgr.Set(HandshakeState)

	hello := &frame.Frame{Type: frame.TypeHello, Seq: s.nextSeq()}
	if err := s.transport.sendAndConfirm(ctx, hello); err != nil {
		if errors.Is(err, ErrRetriesExhausted) {
			s.logger.Error("handshake failed, no receiver answered", "error", err)
			s.failQueued(err)
			s.senderFinished.Store(true)
		}

		return false
	}

	s.stateMgr.Set(SendingState)

	for {
		task, ok := s.dequeueTask()
		if !ok {
			break
		}

		if err := s.sendFile(ctx, task); err != nil {
			// channel failed or session stopping
			return false
		}
	}

	end := &frame.Frame{Type: frame.TypeSessionEnd, Seq: s.nextSeq()}
	if err := s.transport.sendAndConfirm(ctx, end); err != nil {
		if !errors.Is(err, ErrRetriesExhausted) {
			return false
		}
		// best effort: the receiver may already be gone
		s.logger.Warn("session end not acknowledged", "error", err)
	}

	s.senderFinished.Store(true)

	if s.cfg.mode == ModeBoth {
		s.stateMgr.Set(ListeningState)
	}

	return false
}

// sendFile transfers one file: FileMeta, every chunk in order, FileEnd, each
// frame individually acknowledged. Per-file failures mark the task failed and
// return nil so the sender moves on; only channel-level errors propagate.
func (s *Session) sendFile(ctx context.Context, task *FileTask) error {
	r, err := chunk.NewReader(task.path, s.cfg.chunkSize)
	if err != nil {
		s.failTask(task, err)
		s.logger.Error("cannot open file, skipping", "path", task.path, "error", err)

		return nil
	}
	defer r.Close()

	meta := frame.FileMeta{Name: r.Name(), Size: r.Size()}

	payload, err := meta.Encode()
	if err != nil {
		s.failTask(task, err)
		s.logger.Error("cannot encode file meta, skipping", "path", task.path, "error", err)

		return nil
	}

	task.setMeta(meta)
	task.setState(TaskActive)

	mf := &frame.Frame{Type: frame.TypeFileMeta, Seq: s.nextSeq(), Payload: payload}
	if err := s.transport.sendAndConfirm(ctx, mf); err != nil {
		return s.abandonOrFatal(task, err)
	}

	acct := NewAccountant(meta.Size)

	for {
		data, _, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			s.failTask(task, err)
			s.logger.Error("read failed, abandoning file", "file", meta.Name, "error", err)

			return nil
		}

		df := &frame.Frame{Type: frame.TypeData, Seq: s.nextSeq(), Payload: data}
		if err := s.transport.sendAndConfirm(ctx, df); err != nil {
			return s.abandonOrFatal(task, err)
		}

		n := uint64(len(data))
		task.addConfirmed(n)
		acct.RecordConfirmed(n)
		s.metrics.addBytesConfirmed(n)
		s.emitProgress(meta.Name, acct)
	}

	fe := &frame.Frame{Type: frame.TypeFileEnd, Seq: s.nextSeq()}
	if err := s.transport.sendAndConfirm(ctx, fe); err != nil {
		return s.abandonOrFatal(task, err)
	}

	task.setState(TaskDone)
	s.metrics.incFileSendCount()
	s.logger.Info("file sent", "file", meta.Name, "size", meta.Size, "rate", acct.AverageRate())

	return nil
}

// abandonOrFatal classifies a send failure: exhausted retries abandon the
// file and keep the session running, anything else terminates the sender.
func (s *Session) abandonOrFatal(task *FileTask, err error) error {
	if errors.Is(err, ErrRetriesExhausted) {
		s.failTask(task, err)
		s.logger.Warn("file abandoned after retries",
			"file", task.Snapshot().Name, "confirmed", task.bytesDone(), "error", err)

		return nil
	}

	return err
}

func (s *Session) failTask(task *FileTask, err error) {
	task.fail(err)
	s.metrics.incFileErrCount()
}

// failQueued drains the send queue marking every pending task failed.
func (s *Session) failQueued(err error) {
	for {
		task, ok := s.dequeueTask()
		if !ok {
			return
		}

		s.failTask(task, err)
	}
}
