package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	logFilePrefix = "k8socks-"
	logFileSuffix = ".log"

	// DefaultRetentionDays bounds how long auto-generated log files are kept.
	DefaultRetentionDays = 7
)

// Output is where log records go, resolved from the log_output setting.
//
//	"-"     stderr
//	"none"  discarded
//	"auto"  a new k8socks-<timestamp>.log file in Dir
//	other   that file path, relative paths resolved against Dir
type Output struct {
	// Path is the file being written, empty for stderr or none.
	Path   string
	file   *os.File
	writer io.Writer
}

// OpenOutput resolves spec into an Output. Files are opened in append mode.
func OpenOutput(spec, dir string) (*Output, error) {
	out := &Output{}
	switch strings.ToLower(spec) {
	case "", "-":
		out.writer = os.Stderr
		return out, nil
	case "none":
		out.writer = io.Discard
		return out, nil
	case "auto":
		out.Path = filepath.Join(dir, LogFilename(time.Now().UTC()))
	default:
		out.Path = spec
		if !filepath.IsAbs(spec) {
			out.Path = filepath.Join(dir, spec)
		}
	}

	if err := os.MkdirAll(filepath.Dir(out.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(out.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %q: %w", out.Path, err)
	}
	out.file = f
	out.writer = f
	return out, nil
}

// Writer returns the destination writer.
func (o *Output) Writer() io.Writer { return o.writer }

// IsFile reports whether records go to a file.
func (o *Output) IsFile() bool { return o.file != nil }

// Close closes the file, if any.
func (o *Output) Close() error {
	if o.file == nil {
		return nil
	}
	return o.file.Close()
}

// LogFilename returns k8socks-YYYYMMDD-HHMMSS-mmm.log for t.
func LogFilename(t time.Time) string {
	return fmt.Sprintf("%s%s-%03d%s", logFilePrefix, t.Format("20060102-150405"), t.Nanosecond()/int(time.Millisecond), logFileSuffix)
}

// PruneLogFiles removes k8socks-*.log files in dir last modified before
// now minus retention. Unreadable entries are skipped. A missing dir is not an error.
func PruneLogFiles(dir string, retention time.Duration, now time.Time) (removed []string, err error) {
	if retention <= 0 {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read log directory: %w", err)
	}
	cutoff := now.Add(-retention)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, logFilePrefix) || !strings.HasSuffix(name, logFileSuffix) {
			continue
		}
		info, ierr := e.Info()
		if ierr != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		p := filepath.Join(dir, name)
		if os.Remove(p) == nil {
			removed = append(removed, p)
		}
	}
	return removed, nil
}
