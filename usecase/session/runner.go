package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/kompox/k8socks/domain"
	"github.com/kompox/k8socks/domain/model"
	"github.com/kompox/k8socks/internal/logging"
	"github.com/kompox/k8socks/usecase/proxy"
	"github.com/kompox/k8socks/usecase/tunnel"
)

// Lifecycle creates, readies and deletes the workload.
type Lifecycle interface {
	Deploy(ctx context.Context) (*model.WorkloadRef, error)
	WaitReady(ctx context.Context, ref *model.WorkloadRef) (*model.WorkloadDetails, error)
	Deleter
}

// TunnelHandle is an open tunnel.
type TunnelHandle interface {
	LocalPort() int
	Done() <-chan struct{}
	io.Closer
}

// Tunnel opens the port-forward bridge to the workload.
type Tunnel interface {
	Open(ctx context.Context, ref *model.WorkloadRef, remotePort, localPort int) (TunnelHandle, error)
}

// Proxy starts and watches the ssh SOCKS proxy.
type Proxy interface {
	Start(ctx context.Context, tunnelPort int) (io.Closer, error)
	Watch(ctx context.Context, h io.Closer) error
}

// BridgeTunnel adapts tunnel.Bridge to Tunnel.
type BridgeTunnel struct{ Bridge *tunnel.Bridge }

func (t BridgeTunnel) Open(ctx context.Context, ref *model.WorkloadRef, remotePort, localPort int) (TunnelHandle, error) {
	h, err := t.Bridge.Open(ctx, ref, remotePort, localPort)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// SupervisorProxy adapts proxy.Supervisor to Proxy.
type SupervisorProxy struct{ Supervisor *proxy.Supervisor }

func (p SupervisorProxy) Start(ctx context.Context, tunnelPort int) (io.Closer, error) {
	h, err := p.Supervisor.Start(ctx, tunnelPort)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (p SupervisorProxy) Watch(ctx context.Context, h io.Closer) error {
	ph, ok := h.(*proxy.Handle)
	if !ok {
		return fmt.Errorf("unexpected proxy handle %T", h)
	}
	return p.Supervisor.Watch(ctx, ph)
}

// Runner drives one session: deploy, wait ready, open the tunnel, start the
// proxy and wait for it or an interrupt, then delete the workload.
type Runner struct {
	Lifecycle Lifecycle
	Tunnel    Tunnel
	Proxy     Proxy
	// Ledger records the session. Nil disables recording.
	Ledger domain.SessionRepository
	Logger logging.Logger
	// Record seeds the ledger entry (context, image, ttl, socks port).
	Record          model.Session
	RemotePort      int
	TunnelLocalPort int
	DeleteTimeout   time.Duration
	Now             func() time.Time
}

// Run blocks until the session ends. A shutdown initiated by an interrupt
// returns nil. Any failure after the workload exists deletes it before Run
// returns.
func (r *Runner) Run(ctx context.Context, interrupts <-chan os.Signal) error {
	logger := r.Logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}

	ref, err := r.Lifecycle.Deploy(ctx)
	if err != nil {
		logger.Error(ctx, "deploy failed", "error", err)
		return err
	}
	logger = logger.With("workload", ref.Name, "namespace", ref.Namespace)
	ctx = logging.WithLogger(ctx, logger)

	entry := r.newEntry(ctx, logger, ref)
	coord := NewCoordinator(ref, r.Lifecycle, logger)
	coord.DeleteTimeout = r.DeleteTimeout
	coord.OnCleanup = func(_ Reason, err error) { entry.deleted(err) }
	runCtx := coord.Arm(ctx, interrupts)

	err = r.serve(runCtx, logger, coord, ref, entry)
	if err == nil {
		<-coord.Done()
		return nil
	}

	coord.Cleanup(ReasonError)
	<-coord.Done()
	if coord.Winner() == ReasonSignal {
		logger.Debug(ctx, "setup aborted by interrupt", "error", err)
		return nil
	}
	logger.Error(ctx, "session failed", "error", err)
	entry.failed(err)
	return err
}

func (r *Runner) serve(ctx context.Context, logger logging.Logger, coord *Coordinator, ref *model.WorkloadRef, entry *ledgerEntry) error {
	details, err := r.Lifecycle.WaitReady(ctx, ref)
	if err != nil {
		return err
	}
	logger.Info(ctx, "workload ready", "pod_ip", details.PodIP, "node", details.Node)
	entry.update(model.SessionReady, "")

	remotePort := r.RemotePort
	if remotePort == 0 {
		remotePort = 22
	}
	th, err := r.Tunnel.Open(ctx, ref, remotePort, r.TunnelLocalPort)
	if err != nil {
		return err
	}
	defer th.Close()
	logger.Info(ctx, "tunnel open", "local_port", th.LocalPort())

	// An interrupt during the tunnel setup must not spawn ssh against a
	// workload that is already being deleted.
	if err := ctx.Err(); err != nil {
		return err
	}
	ph, err := r.Proxy.Start(ctx, th.LocalPort())
	if err != nil {
		return err
	}
	defer ph.Close()
	entry.update(model.SessionProxying, "")

	// Watch gets a context detached from interrupt cancellation so it can
	// still log the exit after a signal.
	watchCtx := context.WithoutCancel(ctx)
	return coord.Wait(func() error { return r.Proxy.Watch(watchCtx, ph) })
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// ledgerEntry serializes best-effort ledger writes from the runner and the
// coordinator's cleanup goroutine.
type ledgerEntry struct {
	mu     sync.Mutex
	ctx    context.Context
	repo   domain.SessionRepository
	logger logging.Logger
	now    func() time.Time
	s      model.Session
	// settled is set once the delete outcome is recorded.
	settled bool
}

func (r *Runner) newEntry(ctx context.Context, logger logging.Logger, ref *model.WorkloadRef) *ledgerEntry {
	e := &ledgerEntry{
		ctx:    context.WithoutCancel(ctx),
		repo:   r.Ledger,
		logger: logger,
		now:    r.now,
		s:      r.Record,
	}
	if e.repo == nil {
		return e
	}
	now := e.now()
	e.s.WorkloadName = ref.Name
	e.s.Namespace = ref.Namespace
	e.s.Status = model.SessionDeployed
	e.s.CreatedAt = now
	e.s.UpdatedAt = now
	if err := e.repo.Create(e.ctx, &e.s); err != nil {
		e.logger.Warn(e.ctx, "session ledger write failed", "error", err)
		e.repo = nil
	}
	return e
}

func (e *ledgerEntry) update(status model.SessionStatus, msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.settled {
		return
	}
	e.s.Status = status
	e.s.Message = msg
	e.saveLocked()
}

// failed records a session error. A delete failure already recorded wins
// since it is the one that needs attention.
func (e *ledgerEntry) failed(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.s.Status == model.SessionDeleteFailed {
		return
	}
	e.s.Status = model.SessionFailed
	e.s.Message = err.Error()
	e.saveLocked()
}

func (e *ledgerEntry) deleted(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settled = true
	if err != nil && !errors.Is(err, model.ErrWorkloadNotFound) {
		e.s.Status = model.SessionDeleteFailed
		e.s.Message = err.Error()
	} else {
		now := e.now()
		e.s.DeletedAt = &now
		if e.s.Status != model.SessionFailed {
			e.s.Status = model.SessionDeleted
		}
	}
	e.saveLocked()
}

func (e *ledgerEntry) saveLocked() {
	if e.repo == nil {
		return
	}
	e.s.UpdatedAt = e.now()
	if err := e.repo.Update(e.ctx, &e.s); err != nil {
		e.logger.Warn(e.ctx, "session ledger write failed", "error", err)
	}
}
