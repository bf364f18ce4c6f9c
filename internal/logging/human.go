package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/fatih/color"
)

// HumanOptions configures HumanHandler.
type HumanOptions struct {
	Level   slog.Leveler
	NoColor bool
}

// HumanHandler is a slog.Handler producing one compact line per record:
//
//	15:04:05 INFO  message key=value ...
//
// The level is colored unless NoColor is set.
type HumanHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	opts   HumanOptions
	attrs  []slog.Attr
	groups []string
}

// NewHumanHandler returns a HumanHandler writing to w.
func NewHumanHandler(w io.Writer, opts *HumanOptions) *HumanHandler {
	h := &HumanHandler{mu: &sync.Mutex{}, w: w}
	if opts != nil {
		h.opts = *opts
	}
	if h.opts.Level == nil {
		h.opts.Level = slog.LevelInfo
	}
	return h
}

func (h *HumanHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.opts.Level.Level()
}

func (h *HumanHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	buf.WriteString(ts.Format("15:04:05"))
	buf.WriteByte(' ')
	buf.WriteString(h.level(r.Level))
	buf.WriteByte(' ')
	buf.WriteString(r.Message)
	for _, a := range h.attrs {
		h.writeAttr(&buf, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&buf, a)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *HumanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	nh.attrs = append(nh.attrs, h.attrs...)
	for _, a := range attrs {
		nh.attrs = append(nh.attrs, h.qualify(a))
	}
	return &nh
}

func (h *HumanHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.groups = append(append([]string{}, h.groups...), name)
	return &nh
}

func (h *HumanHandler) qualify(a slog.Attr) slog.Attr {
	for i := len(h.groups) - 1; i >= 0; i-- {
		a.Key = h.groups[i] + "." + a.Key
	}
	return a
}

func (h *HumanHandler) writeAttr(buf *bytes.Buffer, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			ga.Key = a.Key + "." + ga.Key
			h.writeAttr(buf, ga)
		}
		return
	}
	key := a.Key
	if !h.opts.NoColor {
		key = paint(color.New(color.Faint), key)
	}
	fmt.Fprintf(buf, " %s=%v", key, a.Value.Any())
}

func (h *HumanHandler) level(l slog.Level) string {
	s := fmt.Sprintf("%-5s", l.String())
	if h.opts.NoColor {
		return s
	}
	var c *color.Color
	switch {
	case l >= slog.LevelError:
		c = color.New(color.FgRed, color.Bold)
	case l >= slog.LevelWarn:
		c = color.New(color.FgYellow)
	case l >= slog.LevelInfo:
		c = color.New(color.FgCyan)
	default:
		c = color.New(color.FgHiBlack)
	}
	return paint(c, s)
}

// paint ignores the global color.NoColor; HumanOptions.NoColor decides.
func paint(c *color.Color, s string) string {
	c.EnableColor()
	return c.Sprint(s)
}
