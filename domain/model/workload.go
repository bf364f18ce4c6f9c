package model

import (
	"fmt"
	"time"
)

// WorkloadRef identifies the ephemeral pod of a session.
type WorkloadRef struct {
	Name      string
	Namespace string
}

// String returns namespace/name.
func (r WorkloadRef) String() string {
	return fmt.Sprintf("%s/%s", r.Namespace, r.Name)
}

// ResourceRequests are the optional container resource requests.
type ResourceRequests struct {
	CPU    string
	Memory string
}

// WorkloadSpec is the declarative description of the pod to create.
// It is built once from configuration and treated as read-only afterwards.
type WorkloadSpec struct {
	Image             string
	Resources         *ResourceRequests
	Labels            map[string]string
	Annotations       map[string]string
	TTLSeconds        uint64
	InjectedPublicKey []byte
}

// WorkloadDetails describes a workload observed as running.
type WorkloadDetails struct {
	Ref       WorkloadRef
	Phase     string
	PodIP     string
	Node      string
	StartedAt time.Time
}

// WorkloadInfo is a managed workload found in the cluster.
type WorkloadInfo struct {
	Ref        WorkloadRef `json:"ref"`
	Phase      string      `json:"phase"`
	Image      string      `json:"image"`
	CreatedAt  time.Time   `json:"created_at"`
	TTLSeconds uint64      `json:"ttl_seconds"`
	// ExpiresAt is zero when the TTL annotation is missing or invalid.
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the workload outlived its TTL at time now.
func (w *WorkloadInfo) Expired(now time.Time) bool {
	return !w.ExpiresAt.IsZero() && !now.Before(w.ExpiresAt)
}
