// Package session runs one proxy session end to end and guarantees that the
// workload it deployed is deleted exactly once, whichever way it ends.
package session

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"time"

	"github.com/kompox/k8socks/domain/model"
	"github.com/kompox/k8socks/internal/logging"
)

// DefaultDeleteTimeout bounds the cleanup delete call.
const DefaultDeleteTimeout = 30 * time.Second

// State is the coordinator's position in the shutdown sequence.
type State int32

const (
	StateRunning State = iota
	StateSignalFired
	StateProxyExited
	StateCleaningUp
	StateDone
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateSignalFired:
		return "signal-fired"
	case StateProxyExited:
		return "proxy-exited"
	case StateCleaningUp:
		return "cleaning-up"
	case StateDone:
		return "done"
	}
	return "unknown"
}

// Reason names the path that requested cleanup.
type Reason string

const (
	ReasonSignal    Reason = "signal"
	ReasonProxyExit Reason = "proxy-exit"
	ReasonError     Reason = "error"
)

// Deleter removes a workload.
type Deleter interface {
	Delete(ctx context.Context, ref *model.WorkloadRef) error
}

// Coordinator owns the single delete of one workload. The claim channel
// holds one token; whoever takes it performs the delete, everyone else
// backs off.
type Coordinator struct {
	Ref           *model.WorkloadRef
	Deleter       Deleter
	DeleteTimeout time.Duration
	Logger        logging.Logger
	// OnCleanup, if set, is called by the winner with the delete result
	// before Done is closed.
	OnCleanup func(reason Reason, err error)

	claim  chan struct{}
	done   chan struct{}
	state  atomic.Int32
	winner atomic.Value // Reason
	result error
}

// NewCoordinator returns a coordinator in StateRunning.
func NewCoordinator(ref *model.WorkloadRef, d Deleter, logger logging.Logger) *Coordinator {
	c := &Coordinator{
		Ref:     ref,
		Deleter: d,
		Logger:  logger,
		claim:   make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	c.claim <- struct{}{}
	return c
}

// State reports the current state.
func (c *Coordinator) State() State { return State(c.state.Load()) }

// Done is closed after the winning cleanup has finished.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Winner is the reason of the cleanup that ran, or "" while none has.
func (c *Coordinator) Winner() Reason {
	r, _ := c.winner.Load().(Reason)
	return r
}

// Result is the delete error of the winning cleanup. Valid after Done.
func (c *Coordinator) Result() error {
	select {
	case <-c.done:
		return c.result
	default:
		return nil
	}
}

// Arm starts watching interrupts. The first signal moves the coordinator to
// StateSignalFired, cancels the returned context so pending setup calls
// abort, and runs cleanup. The watcher exits once cleanup is done or ctx
// ends.
func (c *Coordinator) Arm(ctx context.Context, interrupts <-chan os.Signal) context.Context {
	runCtx, cancel := context.WithCancel(ctx)
	go func() {
		defer cancel()
		select {
		case sig := <-interrupts:
			c.logger().Info(ctx, "interrupt received, shutting down", "signal", sig.String())
			c.state.CompareAndSwap(int32(StateRunning), int32(StateSignalFired))
			// Claim before cancelling so an aborted setup call cannot
			// win cleanup and report the interrupt as a failure.
			if c.claimFor(ReasonSignal) {
				cancel()
				c.cleanup(ReasonSignal)
			}
		case <-c.done:
		case <-ctx.Done():
		}
	}()
	return runCtx
}

// Cleanup deletes the workload if no other caller has. It returns true for
// the caller that performed the delete and false immediately for everyone
// else. Delete failures are logged, never returned.
func (c *Coordinator) Cleanup(reason Reason) bool {
	if !c.claimFor(reason) {
		return false
	}
	c.cleanup(reason)
	return true
}

func (c *Coordinator) claimFor(reason Reason) bool {
	select {
	case <-c.claim:
	default:
		return false
	}
	c.winner.Store(reason)
	c.state.Store(int32(StateCleaningUp))
	return true
}

func (c *Coordinator) cleanup(reason Reason) {
	logger := c.logger()

	timeout := c.DeleteTimeout
	if timeout <= 0 {
		timeout = DefaultDeleteTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Info(ctx, "deleting workload", "reason", string(reason))
	err := c.Deleter.Delete(ctx, c.Ref)
	switch {
	case err == nil:
		logger.Info(ctx, "workload deleted")
	case errors.Is(err, model.ErrWorkloadNotFound):
		logger.Info(ctx, "workload already gone")
	default:
		logger.Error(ctx, "workload delete failed", "error", err)
	}
	c.result = err
	if c.OnCleanup != nil {
		c.OnCleanup(reason, err)
	}
	c.state.Store(int32(StateDone))
	close(c.done)
}

// Wait runs watch in its own goroutine and returns when either it finishes
// or the signal path completes cleanup. A finished watch moves the
// coordinator to StateProxyExited, cleans up and returns the watch error. If
// the signal path already owns cleanup, Wait waits for it and returns nil.
// The watch goroutine is never cancelled.
func (c *Coordinator) Wait(watch func() error) error {
	result := make(chan error, 1)
	go func() { result <- watch() }()

	select {
	case err := <-result:
		c.state.CompareAndSwap(int32(StateRunning), int32(StateProxyExited))
		if c.Cleanup(ReasonProxyExit) {
			return err
		}
		<-c.done
		if c.Winner() == ReasonSignal {
			return nil
		}
		return err
	case <-c.done:
		return nil
	}
}

func (c *Coordinator) logger() logging.Logger {
	if c.Logger == nil {
		return logging.Discard()
	}
	return c.Logger
}
