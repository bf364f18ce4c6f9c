package main

import (
	"fmt"
	"runtime/debug"
)

// Overridden with -ldflags "-X main.version=... -X main.commit=... -X main.date=...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// buildVersion returns the release version, falling back to the module
// version recorded by `go install` when no ldflags were given.
func buildVersion() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return version
}

func versionLine() string {
	return fmt.Sprintf("k8socks version %s (commit %s, built %s)", buildVersion(), commit, date)
}
