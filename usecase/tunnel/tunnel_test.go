package tunnel

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/kompox/k8socks/domain/model"
)

// pipeDialer hands out one end of a net.Pipe; the test drives the other
// end as if it were sshd inside the pod.
type pipeDialer struct {
	remote net.Conn
	err    error
	calls  int
}

func (d *pipeDialer) DialPort(_ context.Context, _, _ string, _ int) (io.ReadWriteCloser, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	local, remote := net.Pipe()
	d.remote = remote
	return local, nil
}

var testRef = &model.WorkloadRef{Name: "k8socks-abc123", Namespace: "default"}

func dialTunnel(t *testing.T, h *Handle) *net.TCPConn {
	t.Helper()
	c, err := net.DialTimeout("tcp", net.JoinHostPort(ListenHost, strconv.Itoa(h.LocalPort())), 2*time.Second)
	if err != nil {
		t.Fatalf("dial tunnel: %v", err)
	}
	return c.(*net.TCPConn)
}

func waitDone(t *testing.T, h *Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not finish")
	}
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		t.Fatal(err)
	}
	return b
}

func TestRelayRoundTripInterleaved(t *testing.T) {
	const size = 4 << 20
	up := randomBytes(t, size)
	down := randomBytes(t, size)

	d := &pipeDialer{}
	h, err := (&Bridge{Dialer: d}).Open(context.Background(), testRef, 22, 0)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer h.Close()
	if h.LocalPort() == 0 {
		t.Fatal("LocalPort() = 0")
	}

	client := dialTunnel(t, h)
	defer client.Close()

	var wg sync.WaitGroup
	var remoteGot []byte
	var remoteReadErr, remoteWriteErr error
	wg.Add(1)
	go func() {
		// Remote side: write and read concurrently, then close.
		defer wg.Done()
		var inner sync.WaitGroup
		inner.Add(1)
		go func() {
			defer inner.Done()
			_, remoteWriteErr = d.remote.Write(down)
		}()
		remoteGot = make([]byte, size)
		_, remoteReadErr = io.ReadFull(d.remote, remoteGot)
		inner.Wait()
		d.remote.Close()
	}()

	var clientErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		// Write in uneven chunks to interleave with the other direction.
		for off := 0; off < size; {
			n := 32<<10 + off%7919
			if off+n > size {
				n = size - off
			}
			if _, err := client.Write(up[off : off+n]); err != nil {
				clientErr = err
				return
			}
			off += n
		}
		clientErr = client.CloseWrite()
	}()

	clientGot, err := io.ReadAll(client)
	if err != nil {
		t.Fatalf("client read: %v", err)
	}
	wg.Wait()
	if remoteReadErr != nil || remoteWriteErr != nil || clientErr != nil {
		t.Fatalf("remote read = %v, remote write = %v, client = %v", remoteReadErr, remoteWriteErr, clientErr)
	}
	if sha256.Sum256(clientGot) != sha256.Sum256(down) {
		t.Errorf("downstream corrupted: got %d bytes", len(clientGot))
	}
	if !bytes.Equal(remoteGot, up) {
		t.Errorf("upstream corrupted")
	}
	waitDone(t, h)
}

func TestSingleConnectionOnly(t *testing.T) {
	d := &pipeDialer{}
	h, err := (&Bridge{Dialer: d}).Open(context.Background(), testRef, 22, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	first := dialTunnel(t, h)
	defer first.Close()
	// Round trip proves the first connection was accepted.
	go func() {
		buf := make([]byte, 4)
		if _, err := io.ReadFull(d.remote, buf); err == nil {
			_, _ = d.remote.Write(buf)
		}
	}()
	if _, err := first.Write([]byte("ping")); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 4)
	if _, err := io.ReadFull(first, buf); err != nil || string(buf) != "ping" {
		t.Fatalf("echo = %q, %v", buf, err)
	}

	c, err := net.DialTimeout("tcp", net.JoinHostPort(ListenHost, strconv.Itoa(h.LocalPort())), time.Second)
	if err == nil {
		c.Close()
		t.Fatal("second connection was accepted")
	}
	if d.calls != 1 {
		t.Errorf("dialer calls = %d", d.calls)
	}
}

func TestCloseIdempotent(t *testing.T) {
	h, err := (&Bridge{Dialer: &pipeDialer{}}).Open(context.Background(), testRef, 22, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	waitDone(t, h)
}

func TestCloseStopsRelay(t *testing.T) {
	d := &pipeDialer{}
	h, err := (&Bridge{Dialer: d}).Open(context.Background(), testRef, 22, 0)
	if err != nil {
		t.Fatal(err)
	}
	client := dialTunnel(t, h)
	defer client.Close()
	// Wait until the relay owns the connection.
	go func() { _, _ = d.remote.Write([]byte("x")) }()
	one := make([]byte, 1)
	if _, err := io.ReadFull(client, one); err != nil {
		t.Fatal(err)
	}

	_ = h.Close()
	waitDone(t, h)
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := client.Read(one); err == nil {
		t.Error("client still readable after Close")
	}
}

func TestContextCancelStopsTunnel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h, err := (&Bridge{Dialer: &pipeDialer{}}).Open(ctx, testRef, 22, 0)
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	waitDone(t, h)
}

func TestOpenDialError(t *testing.T) {
	_, err := (&Bridge{Dialer: &pipeDialer{err: errors.New("upgrade failed")}}).Open(context.Background(), testRef, 22, 0)
	if !errors.Is(err, model.ErrAPI) {
		t.Fatalf("err = %v, want ErrAPI", err)
	}
}

type trackingStream struct {
	io.ReadWriter
	closed bool
}

func (s *trackingStream) Close() error { s.closed = true; return nil }

type fixedDialer struct{ s *trackingStream }

func (d fixedDialer) DialPort(context.Context, string, string, int) (io.ReadWriteCloser, error) {
	return d.s, nil
}

func TestOpenBindError(t *testing.T) {
	busy, err := net.Listen("tcp", net.JoinHostPort(ListenHost, "0"))
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()
	port := busy.Addr().(*net.TCPAddr).Port

	s := &trackingStream{ReadWriter: &bytes.Buffer{}}
	_, err = (&Bridge{Dialer: fixedDialer{s}}).Open(context.Background(), testRef, 22, port)
	if !errors.Is(err, model.ErrBind) {
		t.Fatalf("err = %v, want ErrBind", err)
	}
	if !s.closed {
		t.Error("stream not closed after bind failure")
	}
}
