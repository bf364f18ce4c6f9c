package terminal

import (
	"bytes"
	"os"
	"testing"
)

func TestIsTerminalNonFile(t *testing.T) {
	if IsTerminal(&bytes.Buffer{}) {
		t.Error("buffer reported as terminal")
	}
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if IsTerminal(f) {
		t.Error("regular file reported as terminal")
	}
}

func TestQuietKlogIdempotent(t *testing.T) {
	QuietKlog()
	QuietKlog()
}

func TestInterruptSignals(t *testing.T) {
	found := false
	for _, s := range InterruptSignals {
		if s == os.Interrupt {
			found = true
		}
	}
	if !found {
		t.Error("os.Interrupt missing from InterruptSignals")
	}
}
