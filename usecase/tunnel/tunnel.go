// Package tunnel bridges one cluster port-forward stream to one local TCP
// connection on the loopback interface.
package tunnel

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kompox/k8socks/adapters/kube"
	"github.com/kompox/k8socks/domain/model"
	"github.com/kompox/k8socks/internal/logging"
)

// ListenHost is the only interface the tunnel listens on.
const ListenHost = "127.0.0.1"

// Dialer opens a byte stream to a port of a workload.
type Dialer interface {
	DialPort(ctx context.Context, namespace, name string, port int) (io.ReadWriteCloser, error)
}

// KubeDialer dials through the pods/portforward subresource.
type KubeDialer struct {
	Client *kube.Client
}

func (d *KubeDialer) DialPort(ctx context.Context, namespace, name string, port int) (io.ReadWriteCloser, error) {
	s, err := d.Client.DialPortForward(ctx, namespace, name, port)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// remoteErrer is implemented by streams that report a far-end failure
// separately from the byte stream, such as the kubelet error stream.
type remoteErrer interface {
	Err() error
}

// Bridge opens tunnels.
type Bridge struct {
	Dialer Dialer
}

// Open dials remotePort of the workload and listens on 127.0.0.1:localPort
// (0 picks a free port). The first accepted connection is relayed to the
// stream; the listener is closed right after, so later connections are
// refused. The relay stops when ctx is cancelled or the handle is closed.
//
// Dial failures wrap model.ErrAPI, listen failures model.ErrBind.
func (b *Bridge) Open(ctx context.Context, ref *model.WorkloadRef, remotePort, localPort int) (*Handle, error) {
	logger := logging.FromContext(ctx).With("workload", ref.Name, "namespace", ref.Namespace)

	stream, err := b.Dialer.DialPort(ctx, ref.Namespace, ref.Name, remotePort)
	if err != nil {
		return nil, fmt.Errorf("%w: open port-forward to %s:%d: %w", model.ErrAPI, ref, remotePort, err)
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(ListenHost, strconv.Itoa(localPort)))
	if err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("%w: listen on %s:%d: %w", model.ErrBind, ListenHost, localPort, err)
	}

	h := &Handle{
		port:   ln.Addr().(*net.TCPAddr).Port,
		ln:     ln,
		stream: stream,
		done:   make(chan struct{}),
	}
	logger.Debug(ctx, "tunnel listening", "local_port", h.port, "remote_port", remotePort)

	go h.serve(ctx, logger)
	go func() {
		select {
		case <-ctx.Done():
			_ = h.Close()
		case <-h.done:
		}
	}()
	return h, nil
}

// Handle is an open tunnel.
type Handle struct {
	port   int
	ln     net.Listener
	stream io.ReadWriteCloser
	done   chan struct{}

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

// LocalPort is the bound loopback port.
func (h *Handle) LocalPort() int { return h.port }

// Done is closed once the relay has stopped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Close stops accepting and closes the stream and the accepted connection.
// It does not wait for Done. Repeated calls are no-ops.
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	conn := h.conn
	h.mu.Unlock()

	_ = h.ln.Close()
	_ = h.stream.Close()
	if conn != nil {
		_ = conn.Close()
	}
	return nil
}

func (h *Handle) serve(ctx context.Context, logger logging.Logger) {
	defer close(h.done)
	defer h.Close()

	conn, err := h.ln.Accept()
	_ = h.ln.Close()
	if err != nil {
		if !h.isClosed() {
			logger.Warn(ctx, "tunnel accept failed", "error", err)
		}
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.conn = conn
	h.mu.Unlock()

	logger.Debug(ctx, "tunnel connection accepted", "peer", conn.RemoteAddr().String())
	up, down, err := relay(conn, h.stream, h.Close)
	if re, ok := h.stream.(remoteErrer); ok {
		if rerr := re.Err(); rerr != nil {
			logger.Warn(ctx, "tunnel remote error", "error", rerr)
		}
	}
	switch {
	case err != nil && !h.isClosed():
		logger.Warn(ctx, "tunnel relay failed", "error", err, "bytes_up", up, "bytes_down", down)
	default:
		logger.Debug(ctx, "tunnel relay finished", "bytes_up", up, "bytes_down", down)
	}
}

func (h *Handle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// relay copies in both directions until both reach EOF or one fails. On EOF
// the opposite side is half-closed when it supports CloseWrite. On error
// abort is called to tear both ends down.
func relay(local net.Conn, remote io.ReadWriteCloser, abort func() error) (up, down int64, err error) {
	var g errgroup.Group
	g.Go(func() error {
		n, err := pipe(remote, local, abort)
		up = n
		return err
	})
	g.Go(func() error {
		n, err := pipe(local, remote, abort)
		down = n
		return err
	})
	err = g.Wait()
	return up, down, err
}

type closeWriter interface {
	CloseWrite() error
}

func pipe(dst io.Writer, src io.Reader, abort func() error) (int64, error) {
	n, err := io.Copy(dst, src)
	if err != nil {
		_ = abort()
		return n, fmt.Errorf("%w: %w", model.ErrIO, err)
	}
	if cw, ok := dst.(closeWriter); ok {
		_ = cw.CloseWrite()
	}
	return n, nil
}
