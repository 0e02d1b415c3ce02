package bridge

import (
	"sync"

	"github.com/kumarnitish378/secureFileTransfer-FTDI/frame"
)

// Direction indicates which way a file task moves content.
type Direction uint8

const (
	// DirectionSend is a file leaving this end.
	DirectionSend Direction = iota + 1
	// DirectionRecv is a file arriving at this end.
	DirectionRecv
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	switch d {
	case DirectionSend:
		return "send"
	case DirectionRecv:
		return "recv"
	default:
		return "unknown"
	}
}

// TaskState represents the lifecycle of a single file transfer task.
type TaskState uint32

const (
	// TaskPending is a queued task that has not started.
	TaskPending TaskState = iota
	// TaskActive is the task currently transferring.
	TaskActive
	// TaskDone is a task whose FileEnd was acknowledged.
	TaskDone
	// TaskFailed is a task abandoned after exhausting retries or a file
	// system failure. A failed task never ends the session.
	TaskFailed
)

// String returns the string representation of the task state.
func (ts TaskState) String() string {
	switch ts {
	case TaskPending:
		return "pending"
	case TaskActive:
		return "active"
	case TaskDone:
		return "done"
	case TaskFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FileTask tracks one file moving through the session, in either direction.
// The session exclusively owns its tasks; callers observe them through
// snapshots.
type FileTask struct {
	mu sync.Mutex

	meta           frame.FileMeta
	direction      Direction
	path           string // source path (send direction only)
	bytesConfirmed uint64
	state          TaskState
	err            error
}

func newSendTask(path string) *FileTask {
	return &FileTask{direction: DirectionSend, path: path, state: TaskPending}
}

func newRecvTask(meta frame.FileMeta) *FileTask {
	return &FileTask{direction: DirectionRecv, meta: meta, state: TaskActive}
}

func (t *FileTask) setMeta(meta frame.FileMeta) {
	t.mu.Lock()
	t.meta = meta
	t.mu.Unlock()
}

func (t *FileTask) setState(state TaskState) {
	t.mu.Lock()
	t.state = state
	t.mu.Unlock()
}

func (t *FileTask) fail(err error) {
	t.mu.Lock()
	t.state = TaskFailed
	t.err = err
	t.mu.Unlock()
}

func (t *FileTask) addConfirmed(n uint64) {
	t.mu.Lock()
	t.bytesConfirmed += n
	t.mu.Unlock()
}

func (t *FileTask) bytesDone() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.bytesConfirmed
}

// FileTaskInfo is an immutable snapshot of a FileTask.
type FileTaskInfo struct {
	Name           string
	Size           uint64
	Path           string
	Direction      Direction
	BytesConfirmed uint64
	State          TaskState
	Err            error
}

// Snapshot returns a copy of the task's current state.
func (t *FileTask) Snapshot() FileTaskInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	return FileTaskInfo{
		Name:           t.meta.Name,
		Size:           t.meta.Size,
		Path:           t.path,
		Direction:      t.direction,
		BytesConfirmed: t.bytesConfirmed,
		State:          t.state,
		Err:            t.err,
	}
}
