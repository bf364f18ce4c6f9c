// Package proxy runs the local ssh client that turns the tunnel into a
// SOCKS5 proxy and supervises it until it exits.
package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/kompox/k8socks/domain/model"
	"github.com/kompox/k8socks/internal/logging"
)

// DefaultBinary is the ssh client looked up in PATH.
const DefaultBinary = "ssh"

// Supervisor spawns `ssh -N -D` against the tunnel's loopback port.
type Supervisor struct {
	Binary       string
	Username     string
	SocksPort    int
	IdentityFile string // optional, passed with -i
	Verbose      bool
	Logger       logging.Logger // defaults to the context logger
}

// Handle owns a running ssh process and its output pipes.
type Handle struct {
	cmd     *exec.Cmd
	drains  sync.WaitGroup
	watched atomic.Bool
	logger  logging.Logger
}

// Args returns the ssh argument list for a tunnel bound on tunnelPort.
func (s *Supervisor) Args(tunnelPort int) []string {
	args := []string{
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
		"-o", "ExitOnForwardFailure=yes",
		"-N",
		"-D", strconv.Itoa(s.SocksPort),
		"-p", strconv.Itoa(tunnelPort),
	}
	if s.IdentityFile != "" {
		args = append(args, "-i", s.IdentityFile, "-o", "IdentitiesOnly=yes")
	}
	if s.Verbose {
		args = append(args, "-v")
	}
	return append(args, s.Username+"@127.0.0.1")
}

// Start spawns ssh with stdout and stderr piped. Output is logged line by
// line from the moment the process starts: stdout at info, stderr at warn.
// Pipe or exec failures wrap model.ErrSpawn.
func (s *Supervisor) Start(ctx context.Context, tunnelPort int) (*Handle, error) {
	logger := s.Logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}
	binary := s.Binary
	if binary == "" {
		binary = DefaultBinary
	}
	args := s.Args(tunnelPort)

	cmd := exec.Command(binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %w", model.ErrSpawn, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stderr pipe: %w", model.ErrSpawn, err)
	}

	logger.Debug(ctx, "starting ssh", "command", binary+" "+strings.Join(args, " "))
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %s: %w", model.ErrSpawn, binary, err)
	}
	logger.Info(ctx, "SOCKS5 proxy starting", "socks_port", s.SocksPort, "tunnel_port", tunnelPort, "pid", cmd.Process.Pid)

	h := &Handle{cmd: cmd, logger: logger}
	h.drains.Add(2)
	go h.drain(stdout, &lineWriter{ctx: ctx, log: logger.Info, stream: "stdout"})
	go h.drain(stderr, &lineWriter{ctx: ctx, log: logger.Warn, stream: "stderr"})
	return h, nil
}

func (h *Handle) drain(r io.Reader, w *lineWriter) {
	defer h.drains.Done()
	if _, err := io.Copy(w, r); err != nil && !errors.Is(err, os.ErrClosed) {
		h.logger.Debug(w.ctx, "ssh output drain stopped", "stream", w.stream, "error", err)
	}
	w.Flush()
}

// Watch blocks until both output streams reach EOF and the process is
// reaped. A zero exit is nil; a non-zero exit or a kill wraps
// model.ErrUnexpectedExit; other wait failures wrap model.ErrIO. Only one
// caller may watch a handle; later calls fail with model.ErrAlreadyWatched.
func (s *Supervisor) Watch(ctx context.Context, h *Handle) error {
	if !h.watched.CompareAndSwap(false, true) {
		return model.ErrAlreadyWatched
	}
	h.drains.Wait()
	err := h.cmd.Wait()
	if err == nil {
		h.logger.Info(ctx, "ssh exited")
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%w: ssh %s", model.ErrUnexpectedExit, exitErr.ProcessState.String())
	}
	return fmt.Errorf("%w: wait for ssh: %w", model.ErrIO, err)
}

// Pid is the process id of the running ssh.
func (h *Handle) Pid() int { return h.cmd.Process.Pid }

// Close kills the process. Killing a process that already finished is not an
// error, so Close may be called any number of times.
func (h *Handle) Close() error {
	err := h.cmd.Process.Kill()
	if err == nil || errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return fmt.Errorf("kill ssh: %w", err)
}

// lineWriter logs each complete line written to it.
type lineWriter struct {
	ctx    context.Context
	log    func(ctx context.Context, msg string, kv ...any)
	stream string
	buf    []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Flush logs a trailing line without newline.
func (w *lineWriter) Flush() {
	if len(w.buf) > 0 {
		w.emit(w.buf)
		w.buf = nil
	}
}

func (w *lineWriter) emit(b []byte) {
	line := strings.TrimSuffix(string(b), "\r")
	w.log(w.ctx, "ssh", "stream", w.stream, "line", line)
}
