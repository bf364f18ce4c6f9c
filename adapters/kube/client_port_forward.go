package kube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"sync"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/util/httpstream"
	"k8s.io/client-go/tools/portforward"
	"k8s.io/client-go/transport/spdy"
)

// PortForwardStream is one bidirectional byte stream to a pod port carried
// over the pods/portforward subresource. It owns the underlying SPDY
// connection: closing the stream closes the connection.
type PortForwardStream struct {
	conn   httpstream.Connection
	data   httpstream.Stream
	remote chan error

	closeOnce sync.Once
	closeErr  error
}

// DialPortForward opens a single port-forward stream to port of the given pod.
// Unlike a local port forwarder it binds nothing locally; the caller decides
// where the bytes go.
func (c *Client) DialPortForward(ctx context.Context, namespace, pod string, port int) (*PortForwardStream, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace is required")
	}
	if pod == "" {
		return nil, fmt.Errorf("pod name is required")
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("port must be between 1 and 65535")
	}
	if c == nil || c.RESTConfig == nil {
		return nil, fmt.Errorf("kube client is not initialized")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	serverURL, err := portForwardURL(c.RESTConfig.Host, namespace, pod)
	if err != nil {
		return nil, err
	}
	transport, upgrader, err := spdy.RoundTripperFor(c.RESTConfig)
	if err != nil {
		return nil, fmt.Errorf("create SPDY transport: %w", err)
	}
	dialer := spdy.NewDialer(upgrader, &http.Client{Transport: transport}, http.MethodPost, serverURL)

	// The SPDY upgrade takes no context, so race it against ctx.
	type result struct {
		s   *PortForwardStream
		err error
	}
	done := make(chan result, 1)
	go func() {
		s, err := openStreams(dialer, namespace, pod, port)
		done <- result{s, err}
	}()
	select {
	case r := <-done:
		return r.s, r.err
	case <-ctx.Done():
		go func() {
			if r := <-done; r.s != nil {
				r.s.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

func openStreams(dialer httpstream.Dialer, namespace, pod string, port int) (*PortForwardStream, error) {
	conn, protocol, err := dialer.Dial(portforward.PortForwardProtocolV1Name)
	if err != nil {
		return nil, fmt.Errorf("dial port-forward %s/%s: %w", namespace, pod, err)
	}
	if protocol != portforward.PortForwardProtocolV1Name {
		conn.Close()
		return nil, fmt.Errorf("unexpected port-forward protocol %q", protocol)
	}

	headers := http.Header{}
	headers.Set(corev1.StreamType, corev1.StreamTypeError)
	headers.Set(corev1.PortHeader, strconv.Itoa(port))
	headers.Set(corev1.PortForwardRequestIDHeader, "0")
	errorStream, err := conn.CreateStream(headers)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create error stream: %w", err)
	}
	// The error stream is read-only for the client.
	errorStream.Close()

	headers.Set(corev1.StreamType, corev1.StreamTypeData)
	dataStream, err := conn.CreateStream(headers)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create data stream: %w", err)
	}

	s := &PortForwardStream{conn: conn, data: dataStream, remote: make(chan error, 1)}
	go func() {
		msg, err := io.ReadAll(errorStream)
		switch {
		case err != nil:
			s.remote <- fmt.Errorf("read port-forward error stream: %w", err)
		case len(msg) > 0:
			s.remote <- fmt.Errorf("port-forward to %s/%s:%d: %s", namespace, pod, port, string(msg))
		}
		close(s.remote)
	}()
	return s, nil
}

func (s *PortForwardStream) Read(p []byte) (int, error)  { return s.data.Read(p) }
func (s *PortForwardStream) Write(p []byte) (int, error) { return s.data.Write(p) }

// CloseWrite half-closes the stream: the pod sees EOF, reads continue.
func (s *PortForwardStream) CloseWrite() error {
	return s.data.Close()
}

// Close tears down the stream and its connection. Repeated calls return the first result.
func (s *PortForwardStream) Close() error {
	s.closeOnce.Do(func() {
		s.conn.RemoveStreams(s.data)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// Err returns the error reported by the kubelet on the error stream, if any
// has arrived. It does not block.
func (s *PortForwardStream) Err() error {
	select {
	case err, ok := <-s.remote:
		if ok {
			return err
		}
	default:
	}
	return nil
}

// portForwardURL builds the pods/portforward subresource URL, keeping any
// path prefix present in host.
func portForwardURL(host, namespace, pod string) (*url.URL, error) {
	if host == "" {
		return nil, errors.New("API server host is empty")
	}
	u, err := url.Parse(host)
	if err != nil || u.Host == "" {
		// host:port without scheme
		u, err = url.Parse("https://" + host)
		if err != nil {
			return nil, fmt.Errorf("parse API server host %q: %w", host, err)
		}
	}
	u.Path = path.Join("/", u.Path, "api/v1/namespaces", namespace, "pods", pod, "portforward")
	return u, nil
}
