package bridge

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kumarnitish378/secureFileTransfer-FTDI/internal/queue"
	"github.com/kumarnitish378/secureFileTransfer-FTDI/logger"
)

// Session runs the transfer protocol over a half-duplex byte channel.
//
// A session is created with NewSession, fed with QueueFile when its mode can
// send, and started with Open. It runs until the queue is drained and the
// remote session ends (send side), the remote sends SessionEnd (one-shot
// receive side), the channel fails, or Close is called.
type Session struct {
	cfg       *SessionConfig
	logger    logger.Logger
	metrics   SessionMetrics
	transport *transport
	taskMgr   *taskManager
	stateMgr  *stateMgr

	mu        sync.Mutex
	sendQueue queue.Queue[*FileTask]
	tasks     []*FileTask
	err       error

	// sendSeq is owned by the sender goroutine.
	sendSeq uint32

	// receive-side protocol state, owned by the receiver goroutine
	rstate recvState

	senderFinished atomic.Bool
	recvFinished   atomic.Bool

	senderDone chan struct{}
	recvDone   chan struct{}

	closeOnce sync.Once
	done      chan struct{}
}

// NewSession creates a session over ch with the given configuration.
//
// ctx bounds the session lifetime; cancelling it stops the session
// gracefully. A nil cfg gets a default ModeBoth configuration.
func NewSession(ctx context.Context, ch Channel, cfg *SessionConfig) (*Session, error) {
	if cfg == nil {
		var err error

		cfg, err = NewSessionConfig(ModeBoth)
		if err != nil {
			return nil, err
		}
	}

	l := cfg.logger
	if l == nil {
		l = logger.GetLogger()
	}

	s := &Session{
		cfg:        cfg,
		logger:     l,
		taskMgr:    newTaskManager(ctx, l),
		stateMgr:   newStateMgr(),
		sendQueue:  queue.NewSliceQueue[*FileTask](cfg.sendQueueSize),
		senderDone: make(chan struct{}),
		recvDone:   make(chan struct{}),
		done:       make(chan struct{}),
	}
	s.transport = newTransport(ch, cfg, l, &s.metrics)

	return s, nil
}

// QueueFile appends files to the send queue. It returns ErrModeMismatch when
// the session mode cannot send, and ErrSessionClosed after the session closed.
//
// Queue files before Open: the sender drains the queue once and then ends
// its side of the session.
func (s *Session) QueueFile(paths ...string) error {
	if !s.cfg.mode.CanSend() {
		return fmt.Errorf("%w: mode %s cannot send", ErrModeMismatch, s.cfg.mode)
	}

	if s.stateMgr.State().IsClosed() {
		return ErrSessionClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, path := range paths {
		task := newSendTask(path)
		s.sendQueue.Enqueue(task)
		s.tasks = append(s.tasks, task)
	}

	return nil
}

// Open starts the session goroutines: the channel read loop, and the sender
// and/or receiver loops selected by the session mode.
func (s *Session) Open() error {
	if s.stateMgr.State() != IdleState {
		return fmt.Errorf("%w: session already opened", ErrSessionClosed)
	}

	ctx := s.taskMgr.Context()

	s.taskMgr.Start("readLoop", func() bool {
		return s.transport.readLoopIteration(ctx)
	}, nil)

	var done []<-chan struct{}

	if s.cfg.mode.CanRecv() {
		s.taskMgr.Start("receiver", func() bool {
			return s.receiverIteration(ctx)
		}, func() { close(s.recvDone) })
		done = append(done, s.recvDone)
	}

	if s.cfg.mode.CanSend() {
		s.taskMgr.Start("sender", func() bool {
			return s.runSender(ctx)
		}, func() { close(s.senderDone) })
		done = append(done, s.senderDone)
	}

	if s.cfg.mode == ModeRecv {
		s.stateMgr.Set(ListeningState)
	}

	go s.supervise(done)

	return nil
}

// supervise waits for the sub-protocol loops to finish, the channel to fail,
// or the session context to be cancelled, then shuts the session down.
func (s *Session) supervise(loops []<-chan struct{}) {
	allDone := make(chan struct{})

	go func() {
		for _, ch := range loops {
			<-ch
		}
		close(allDone)
	}()

	select {
	case <-allDone:
		s.shutdown(nil)
	case <-s.transport.closed:
		if s.finishedNaturally() {
			s.shutdown(nil)
		} else {
			s.shutdown(s.transport.failErr())
		}
	case <-s.taskMgr.Context().Done():
		s.shutdown(nil)
	}
}

// finishedNaturally reports whether every sub-protocol selected by the mode
// already ran to completion. A channel error arriving after that point is the
// peer tearing down its end and does not fail the session.
func (s *Session) finishedNaturally() bool {
	if s.cfg.mode.CanSend() && !s.senderFinished.Load() {
		return false
	}

	if s.cfg.mode.CanRecv() && !s.recvFinished.Load() {
		return false
	}

	return true
}

func (s *Session) shutdown(err error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()

		s.stateMgr.Set(ClosedState)
		s.taskMgr.Stop()

		// unblocks the read loop
		_ = s.transport.ch.Close()

		go func() {
			s.taskMgr.Wait()
			close(s.done)
		}()
	})
}

// Close stops the session and waits for its goroutines to exit. Closing an
// already-closed session is a no-op. Close always reports a graceful stop;
// use Err for the session's terminal error.
func (s *Session) Close() error {
	s.shutdown(nil)
	<-s.done

	return nil
}

// Wait blocks until the session terminates and returns its terminal error,
// or returns ctx.Err() when ctx expires first.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return s.Err()
	}
}

// Err returns the session's terminal error: nil after a graceful stop, or
// an ErrChannelClosed-wrapped error when the channel failed mid-session.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

// State returns the current session state.
func (s *Session) State() State {
	return s.stateMgr.State()
}

// AddStateChangeHandler registers handlers invoked on every state transition.
func (s *Session) AddStateChangeHandler(handlers ...StateChangeHandler) {
	s.stateMgr.AddHandler(handlers...)
}

// Metrics returns the session's metric counters.
func (s *Session) Metrics() *SessionMetrics {
	return &s.metrics
}

// Tasks returns a snapshot of every file task the session has seen, in both
// directions, queued order first.
func (s *Session) Tasks() []FileTaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]FileTaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		infos = append(infos, t.Snapshot())
	}

	return infos
}

func (s *Session) dequeueTask() (*FileTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sendQueue.Dequeue()
}

func (s *Session) addTask(task *FileTask) {
	s.mu.Lock()
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()
}

// nextSeq advances the sender sequence counter. Sequence 0 is reserved as the
// receiver's "nothing accepted yet" sentinel and is skipped on wrap.
func (s *Session) nextSeq() uint32 {
	s.sendSeq++
	if s.sendSeq == 0 {
		s.sendSeq = 1
	}

	return s.sendSeq
}

func (s *Session) emitProgress(fileName string, acct *Accountant) {
	if s.cfg.progressFn != nil {
		s.cfg.progressFn(acct.Report(fileName))
	}
}
