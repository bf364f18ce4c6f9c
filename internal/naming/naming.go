// Package naming generates and validates the Kubernetes names k8socks uses.
package naming

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// WorkloadPrefix is the fixed prefix of every generated workload name.
const WorkloadPrefix = "k8socks-"

// suffixBytes random bytes give a 6 hex character suffix.
const suffixBytes = 3

// WorkloadName returns a fresh name of the form k8socks-[0-9a-f]{6}.
// Collisions are left to the API server, which rejects duplicate names.
func WorkloadName() (string, error) {
	b := make([]byte, suffixBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate workload name: %w", err)
	}
	return WorkloadPrefix + hex.EncodeToString(b), nil
}
