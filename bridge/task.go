package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/kumarnitish378/secureFileTransfer-FTDI/logger"
)

// TaskFunc represents one iteration of a task loop run in a goroutine
// managed by the taskManager. It should return true to keep running, or
// false to stop the goroutine.
type TaskFunc func() bool

// taskManager manages the lifecycle of the session's goroutines: the read
// loop and the sender/receiver sub-protocols.
//
// It uses a context to signal cancellation and a sync.WaitGroup to wait for
// all goroutines to terminate. Task functions are invoked with panic
// protection so a failure in one sub-protocol cannot take down the process.
type taskManager struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
}

func newTaskManager(ctx context.Context, l logger.Logger) *taskManager {
	mgr := &taskManager{logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// Context returns the manager's cancellation context. Task functions use it
// for their own blocking waits.
func (mgr *taskManager) Context() context.Context {
	return mgr.ctx
}

// Start launches a goroutine that invokes taskFunc repeatedly until it
// returns false or the manager is stopped. onExit, if non-nil, runs when the
// goroutine terminates for any reason.
func (mgr *taskManager) Start(name string, taskFunc TaskFunc, onExit func()) {
	mgr.logger.Debug("bridge: start task", "name", name)

	mgr.wg.Add(1)

	go func() {
		defer mgr.wg.Done()

		if onExit != nil {
			defer onExit()
		}

		mgr.runTaskLoop(name, taskFunc)
		mgr.logger.Debug("bridge: task terminated", "name", name)
	}()
}

func (mgr *taskManager) runTaskLoop(name string, taskFunc TaskFunc) {
	for {
		select {
		case <-mgr.ctx.Done():
			return
		default:
		}

		if !mgr.callWithRecover(name, taskFunc) {
			return
		}
	}
}

// callWithRecover invokes taskFunc with panic protection. A panicking task
// is treated as terminated.
func (mgr *taskManager) callWithRecover(name string, taskFunc TaskFunc) (cont bool) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("bridge: task panicked", "name", name, "panic", fmt.Sprintf("%v", r))
			cont = false
		}
	}()

	return taskFunc()
}

// Stop signals all tasks to terminate.
func (mgr *taskManager) Stop() {
	mgr.cancel()
}

// Wait blocks until all tasks have terminated.
func (mgr *taskManager) Wait() {
	mgr.wg.Wait()
}
