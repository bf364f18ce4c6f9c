package logging

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLogFilename(t *testing.T) {
	tests := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2025, 12, 13, 9, 51, 5, 123000000, time.UTC), "k8socks-20251213-095105-123.log"},
		{time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), "k8socks-20250101-000000-000.log"},
		{time.Date(2025, 6, 15, 12, 30, 45, 456789000, time.UTC), "k8socks-20250615-123045-456.log"},
	}
	for _, tt := range tests {
		if got := LogFilename(tt.in); got != tt.want {
			t.Errorf("LogFilename(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOpenOutput(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(dir, "abs", "custom.log")

	tests := []struct {
		name     string
		spec     string
		wantPath string
		writer   io.Writer
	}{
		{name: "stderr", spec: "-", writer: os.Stderr},
		{name: "empty", spec: "", writer: os.Stderr},
		{name: "none", spec: "none", writer: io.Discard},
		{name: "absolute", spec: abs, wantPath: abs},
		{name: "relative", spec: "rel.log", wantPath: filepath.Join(dir, "rel.log")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := OpenOutput(tt.spec, dir)
			if err != nil {
				t.Fatalf("OpenOutput() error = %v", err)
			}
			defer out.Close()
			if out.Path != tt.wantPath {
				t.Errorf("Path = %q, want %q", out.Path, tt.wantPath)
			}
			if tt.writer != nil && out.Writer() != tt.writer {
				t.Errorf("unexpected writer %T", out.Writer())
			}
			if tt.wantPath != "" {
				if !out.IsFile() {
					t.Error("IsFile() = false")
				}
				if _, err := os.Stat(tt.wantPath); err != nil {
					t.Errorf("log file not created: %v", err)
				}
			}
		})
	}
}

func TestOpenOutputAuto(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	out, err := OpenOutput("auto", dir)
	if err != nil {
		t.Fatalf("OpenOutput() error = %v", err)
	}
	defer out.Close()
	if filepath.Dir(out.Path) != dir {
		t.Errorf("Path %q not in %q", out.Path, dir)
	}
	if _, err := out.Writer().Write([]byte("hello\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestPruneLogFiles(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	files := map[string]time.Time{
		"k8socks-20251201-120000-000.log": now.AddDate(0, 0, -10),
		"k8socks-20251210-120000-000.log": now.AddDate(0, 0, -3),
		"other.log":                       now.AddDate(0, 0, -10),
	}
	for name, mt := range files {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(p, mt, mt); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := PruneLogFiles(dir, 7*24*time.Hour, now)
	if err != nil {
		t.Fatalf("PruneLogFiles() error = %v", err)
	}
	if len(removed) != 1 || filepath.Base(removed[0]) != "k8socks-20251201-120000-000.log" {
		t.Errorf("removed = %v", removed)
	}
	for _, keep := range []string{"k8socks-20251210-120000-000.log", "other.log"} {
		if _, err := os.Stat(filepath.Join(dir, keep)); err != nil {
			t.Errorf("%s should be kept: %v", keep, err)
		}
	}
}

func TestPruneLogFilesNoop(t *testing.T) {
	if removed, err := PruneLogFiles(filepath.Join(t.TempDir(), "missing"), time.Hour, time.Now()); err != nil || removed != nil {
		t.Errorf("missing dir: removed=%v err=%v", removed, err)
	}
	dir := t.TempDir()
	p := filepath.Join(dir, "k8socks-20200101-000000-000.log")
	if err := os.WriteFile(p, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().AddDate(-1, 0, 0)
	_ = os.Chtimes(p, old, old)
	if _, err := PruneLogFiles(dir, 0, time.Now()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(p); err != nil {
		t.Errorf("zero retention removed file: %v", err)
	}
}
