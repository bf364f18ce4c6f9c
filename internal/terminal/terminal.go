// Package terminal holds helpers for the interactive process surface:
// TTY detection, interrupt signals and client-go log noise.
package terminal

import (
	"flag"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
	klog "k8s.io/klog/v2"
)

var quietOnce sync.Once

// QuietKlog limits klog noise from client-go so that it does not interleave
// with the proxy log stream. Safe to call more than once.
func QuietKlog() {
	quietOnce.Do(func() {
		fs := flag.NewFlagSet("klog", flag.ContinueOnError)
		klog.InitFlags(fs)
		_ = fs.Set("stderrthreshold", "FATAL")
		_ = fs.Set("v", "0")
		_ = fs.Set("logtostderr", "false")
		_ = fs.Set("alsologtostderr", "false")
		klog.SetOutput(io.Discard)
	})
}

// IsTerminal reports whether w is a file attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Interactive reports whether both stdin and stderr are terminals.
func Interactive() bool {
	return IsTerminal(os.Stdin) && IsTerminal(os.Stderr)
}
