// Package workload manages the ephemeral sshd pod: manifest construction,
// creation, readiness polling, deletion and housekeeping of leftovers.
package workload

import (
	"time"

	"k8s.io/client-go/kubernetes"

	"github.com/kompox/k8socks/domain/model"
)

const (
	ContainerName      = "sshd"
	ContainerPort      = 22
	ContainerPortName  = "ssh"
	EnvSSHPublicKey    = "SSH_PUBLIC_KEY"
	LabelName          = "app.kubernetes.io/name"
	LabelManagedBy     = "app.kubernetes.io/managed-by"
	LabelValue         = "k8socks"
	LabelSelector      = LabelManagedBy + "=" + LabelValue
	AnnotationTTL      = "k8socks.dev/ttl-seconds"
	TerminationGrace   = 5
	DefaultPollPeriod  = time.Second
	DefaultReadyWindow = 60 * time.Second
)

// UseCase wires dependencies for workload operations.
type UseCase struct {
	// Client talks to the cluster. Only the core/v1 pods API is used.
	Client kubernetes.Interface
	// Namespace hosts the workload.
	Namespace string
	// Spec describes the pod. InjectedPublicKey, when empty, is read from PublicKeyPath.
	Spec model.WorkloadSpec
	// PublicKeyPath is the authorized key file injected into the pod.
	PublicKeyPath string
	// ReadyTimeout bounds WaitReady. Zero means DefaultReadyWindow.
	ReadyTimeout time.Duration
	// PollInterval is the WaitReady polling period. Zero means DefaultPollPeriod.
	PollInterval time.Duration
	// NameFunc generates workload names. Nil means naming.WorkloadName.
	NameFunc func() (string, error)
	// Now returns the current time. Nil means time.Now.
	Now func() time.Time
}

func (u *UseCase) readyTimeout() time.Duration {
	if u.ReadyTimeout > 0 {
		return u.ReadyTimeout
	}
	return DefaultReadyWindow
}

func (u *UseCase) pollInterval() time.Duration {
	if u.PollInterval > 0 {
		return u.PollInterval
	}
	return DefaultPollPeriod
}

func (u *UseCase) now() time.Time {
	if u.Now != nil {
		return u.Now()
	}
	return time.Now()
}
