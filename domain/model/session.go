package model

import "time"

// SessionStatus tracks where a session is in its lifecycle.
type SessionStatus string

const (
	SessionDeployed     SessionStatus = "deployed"
	SessionReady        SessionStatus = "ready"
	SessionProxying     SessionStatus = "proxying"
	SessionDeleted      SessionStatus = "deleted"
	SessionDeleteFailed SessionStatus = "delete-failed"
	SessionFailed       SessionStatus = "failed"
)

// Session is a ledger record of one deploy run. It lets a later
// `session prune` find workloads whose cleanup never ran.
type Session struct {
	ID           string        `json:"id"`
	WorkloadName string        `json:"workload_name"`
	Namespace    string        `json:"namespace"`
	Context      string        `json:"context,omitempty"`
	Image        string        `json:"image"`
	TTLSeconds   uint64        `json:"ttl_seconds"`
	SocksPort    int           `json:"socks_port"`
	Status       SessionStatus `json:"status"`
	Message      string        `json:"message,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	DeletedAt    *time.Time    `json:"deleted_at,omitempty"`
}

// Ref returns the workload reference recorded in the session.
func (s *Session) Ref() WorkloadRef {
	return WorkloadRef{Name: s.WorkloadName, Namespace: s.Namespace}
}

// Live reports whether the recorded workload may still exist.
func (s *Session) Live() bool {
	return s.DeletedAt == nil && s.Status != SessionDeleted
}
