package session

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kompox/k8socks/adapters/store/inmem"
	"github.com/kompox/k8socks/domain/model"
	"github.com/kompox/k8socks/internal/logging"
)

type fakeLifecycle struct {
	deployErr error
	waitErr   error
	waitBlock bool // block until ctx is cancelled
	deleteErr error
	waiting   chan struct{}
	deletes   atomic.Int32
}

func (f *fakeLifecycle) Deploy(context.Context) (*model.WorkloadRef, error) {
	if f.deployErr != nil {
		return nil, f.deployErr
	}
	return testRef, nil
}

func (f *fakeLifecycle) WaitReady(ctx context.Context, ref *model.WorkloadRef) (*model.WorkloadDetails, error) {
	if f.waitBlock {
		close(f.waiting)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.waitErr != nil {
		return nil, f.waitErr
	}
	return &model.WorkloadDetails{Ref: *ref, Phase: "Running", PodIP: "10.0.0.7", Node: "node-1"}, nil
}

func (f *fakeLifecycle) Delete(context.Context, *model.WorkloadRef) error {
	f.deletes.Add(1)
	return f.deleteErr
}

type fakeTunnelHandle struct {
	done   chan struct{}
	closed atomic.Bool
	once   sync.Once
}

func (h *fakeTunnelHandle) LocalPort() int        { return 40022 }
func (h *fakeTunnelHandle) Done() <-chan struct{} { return h.done }
func (h *fakeTunnelHandle) Close() error {
	h.closed.Store(true)
	h.once.Do(func() { close(h.done) })
	return nil
}

type fakeTunnel struct {
	err    error
	handle *fakeTunnelHandle
	onOpen func(ctx context.Context)
}

func (f *fakeTunnel) Open(ctx context.Context, _ *model.WorkloadRef, remotePort, localPort int) (TunnelHandle, error) {
	if f.onOpen != nil {
		f.onOpen(ctx)
	}
	if f.err != nil {
		return nil, f.err
	}
	if remotePort != 22 || localPort != 0 {
		return nil, errors.New("unexpected ports")
	}
	f.handle = &fakeTunnelHandle{done: make(chan struct{})}
	return f.handle, nil
}

type fakeProxyHandle struct {
	killed chan struct{}
	once   sync.Once
}

func (h *fakeProxyHandle) Close() error {
	h.once.Do(func() { close(h.killed) })
	return nil
}

type fakeProxy struct {
	startErr  error
	watchErr  error
	untilKill bool // Watch returns only after Close
	started   chan struct{}
	handle    *fakeProxyHandle
	port      int
}

func (f *fakeProxy) Start(_ context.Context, tunnelPort int) (io.Closer, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.port = tunnelPort
	f.handle = &fakeProxyHandle{killed: make(chan struct{})}
	if f.started != nil {
		close(f.started)
	}
	return f.handle, nil
}

func (f *fakeProxy) Watch(_ context.Context, h io.Closer) error {
	if f.untilKill {
		<-h.(*fakeProxyHandle).killed
		return model.ErrUnexpectedExit
	}
	return f.watchErr
}

type fixture struct {
	lc     *fakeLifecycle
	tun    *fakeTunnel
	px     *fakeProxy
	ledger *inmem.SessionRepository
	runner *Runner
	sigs   chan os.Signal
}

func newFixture() *fixture {
	f := &fixture{
		lc:     &fakeLifecycle{},
		tun:    &fakeTunnel{},
		px:     &fakeProxy{},
		ledger: inmem.NewSessionRepository(),
		sigs:   make(chan os.Signal, 1),
	}
	f.runner = &Runner{
		Lifecycle: f.lc,
		Tunnel:    f.tun,
		Proxy:     f.px,
		Ledger:    f.ledger,
		Logger:    logging.Discard(),
		Record:    model.Session{Image: "linuxserver/openssh-server:latest", TTLSeconds: 900, SocksPort: 1080},
	}
	return f
}

func (f *fixture) run(t *testing.T) error {
	t.Helper()
	result := make(chan error, 1)
	go func() { result <- f.runner.Run(context.Background(), f.sigs) }()
	select {
	case err := <-result:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func (f *fixture) session(t *testing.T) *model.Session {
	t.Helper()
	list, err := f.ledger.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("ledger has %d sessions, want 1", len(list))
	}
	return list[0]
}

func TestRunProxyUnexpectedExit(t *testing.T) {
	f := newFixture()
	f.px.watchErr = model.ErrUnexpectedExit

	err := f.run(t)
	if !errors.Is(err, model.ErrUnexpectedExit) {
		t.Fatalf("Run() error = %v, want ErrUnexpectedExit", err)
	}
	if n := f.lc.deletes.Load(); n != 1 {
		t.Errorf("deletes = %d, want 1", n)
	}
	if f.px.port != 40022 {
		t.Errorf("proxy started on port %d", f.px.port)
	}
	if !f.tun.handle.closed.Load() {
		t.Error("tunnel not closed")
	}
	s := f.session(t)
	if s.Status != model.SessionFailed || s.DeletedAt == nil || s.Live() {
		t.Errorf("session = %+v", s)
	}
	if s.WorkloadName != testRef.Name || s.SocksPort != 1080 {
		t.Errorf("session fields = %+v", s)
	}
}

func TestRunProxyCleanExit(t *testing.T) {
	f := newFixture()
	if err := f.run(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if n := f.lc.deletes.Load(); n != 1 {
		t.Errorf("deletes = %d, want 1", n)
	}
	if s := f.session(t); s.Status != model.SessionDeleted {
		t.Errorf("status = %s", s.Status)
	}
}

func TestRunInterruptWhileProxying(t *testing.T) {
	f := newFixture()
	f.px.untilKill = true
	f.px.started = make(chan struct{})
	go func() {
		<-f.px.started
		f.sigs <- os.Interrupt
	}()

	if err := f.run(t); err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if n := f.lc.deletes.Load(); n != 1 {
		t.Errorf("deletes = %d, want 1", n)
	}
	select {
	case <-f.px.handle.killed:
	default:
		t.Error("proxy not killed")
	}
	if s := f.session(t); s.Status != model.SessionDeleted {
		t.Errorf("status = %s", s.Status)
	}
}

func TestRunInterruptWhileWaiting(t *testing.T) {
	f := newFixture()
	f.lc.waitBlock = true
	f.lc.waiting = make(chan struct{})
	go func() {
		<-f.lc.waiting
		f.sigs <- os.Interrupt
	}()

	if err := f.run(t); err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if n := f.lc.deletes.Load(); n != 1 {
		t.Errorf("deletes = %d, want 1", n)
	}
	if f.tun.handle != nil {
		t.Error("tunnel opened after interrupt")
	}
}

func TestRunSetupFailures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *fixture)
		wantErr error
	}{
		{
			name:    "wait timeout",
			setup:   func(f *fixture) { f.lc.waitErr = model.ErrTimeout },
			wantErr: model.ErrTimeout,
		},
		{
			name:    "tunnel bind",
			setup:   func(f *fixture) { f.tun.err = model.ErrBind },
			wantErr: model.ErrBind,
		},
		{
			name:    "proxy spawn",
			setup:   func(f *fixture) { f.px.startErr = model.ErrSpawn },
			wantErr: model.ErrSpawn,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setup(f)
			err := f.run(t)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Run() error = %v, want %v", err, tt.wantErr)
			}
			if n := f.lc.deletes.Load(); n != 1 {
				t.Errorf("deletes = %d, want 1", n)
			}
			if s := f.session(t); s.Status != model.SessionFailed || s.Message == "" {
				t.Errorf("session = %+v", s)
			}
		})
	}
}

func TestRunDeployFailure(t *testing.T) {
	f := newFixture()
	f.lc.deployErr = model.ErrCredentialRead
	if err := f.run(t); !errors.Is(err, model.ErrCredentialRead) {
		t.Fatalf("Run() error = %v", err)
	}
	if n := f.lc.deletes.Load(); n != 0 {
		t.Errorf("deletes = %d, want 0", n)
	}
	list, _ := f.ledger.List(context.Background())
	if len(list) != 0 {
		t.Errorf("ledger has %d sessions", len(list))
	}
}

func TestRunDeleteFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	f.lc.deleteErr = model.ErrAPI
	if err := f.run(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if s := f.session(t); s.Status != model.SessionDeleteFailed || !s.Live() {
		t.Errorf("session = %+v", s)
	}
}

func TestRunWithoutLedger(t *testing.T) {
	f := newFixture()
	f.runner.Ledger = nil
	if err := f.run(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if n := f.lc.deletes.Load(); n != 1 {
		t.Errorf("deletes = %d", n)
	}
}

func TestRunInterruptDuringTunnelOpenSkipsProxy(t *testing.T) {
	f := newFixture()
	f.tun.onOpen = func(ctx context.Context) {
		f.sigs <- os.Interrupt
		<-ctx.Done()
	}

	if err := f.run(t); err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if f.px.handle != nil {
		t.Error("proxy started after interrupt")
	}
	if n := f.lc.deletes.Load(); n != 1 {
		t.Errorf("deletes = %d, want 1", n)
	}
	if !f.tun.handle.closed.Load() {
		t.Error("tunnel not closed")
	}
	if s := f.session(t); s.Status != model.SessionDeleted || s.DeletedAt == nil {
		t.Errorf("session = %+v", s)
	}
}

func TestLedgerEntryUpdateAfterDelete(t *testing.T) {
	tests := []struct {
		name      string
		deleteErr error
		want      model.SessionStatus
	}{
		{name: "deleted", want: model.SessionDeleted},
		{name: "delete failed", deleteErr: errors.New("boom"), want: model.SessionDeleteFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			e := f.runner.newEntry(context.Background(), logging.Discard(), testRef)
			e.update(model.SessionReady, "")
			e.deleted(tt.deleteErr)
			e.update(model.SessionProxying, "")
			if s := f.session(t); s.Status != tt.want {
				t.Errorf("status = %s, want %s", s.Status, tt.want)
			}
		})
	}
}
