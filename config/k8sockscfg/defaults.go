package k8sockscfg

import (
	"maps"

	"k8s.io/utils/ptr"
)

// Default values applied beneath every other layer.
const (
	DefaultKubeconfig       = "~/.kube/config"
	DefaultNamespace        = "default"
	DefaultSSHPublicKeyPath = "~/.ssh/id_rsa.pub"
	DefaultSSHUsername      = "k8socks"
	DefaultLocalSocksPort   = 1080
	DefaultPodTTLSeconds    = 900
	DefaultPodImage         = "linuxserver/openssh-server:latest"
	DefaultPodCPU           = "50m"
	DefaultPodMemory        = "64Mi"
	DefaultReadyTimeout     = 60
	DefaultSSHBinary        = "ssh"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "human"
	DefaultLogOutput        = "-"
	DefaultLedger           = "sqlite:~/.k8socks/sessions.db"
	DefaultStateDir         = "~/.k8socks"
)

// Defaults returns the bottom configuration layer with every field set
// except context, private key and aks.
func Defaults() *Config {
	return &Config{
		Kubeconfig:          ptr.To(DefaultKubeconfig),
		Namespace:           ptr.To(DefaultNamespace),
		SSHPublicKeyPath:    ptr.To(DefaultSSHPublicKeyPath),
		SSHUsername:         ptr.To(DefaultSSHUsername),
		LocalSocksPort:      ptr.To(DefaultLocalSocksPort),
		PodTTLSeconds:       ptr.To(uint64(DefaultPodTTLSeconds)),
		PodImage:            ptr.To(DefaultPodImage),
		PodResources:        &Resources{CPU: DefaultPodCPU, Memory: DefaultPodMemory},
		PodLabels:           map[string]string{"app": "k8socks"},
		PodAnnotations:      map[string]string{},
		ReadyTimeoutSeconds: ptr.To(uint64(DefaultReadyTimeout)),
		SSHBinary:           ptr.To(DefaultSSHBinary),
		EphemeralKey:        ptr.To(false),
		LogLevel:            ptr.To(DefaultLogLevel),
		LogFormat:           ptr.To(DefaultLogFormat),
		LogOutput:           ptr.To(DefaultLogOutput),
		Ledger:              ptr.To(DefaultLedger),
	}
}

// Merge returns a new layer where every field present in overlay replaces
// the one in base. Nested pod_resources and aks blocks and the label and
// annotation maps are replaced as a whole. Neither argument is modified and
// either may be nil.
func Merge(base, overlay *Config) *Config {
	if base == nil {
		base = &Config{}
	}
	if overlay == nil {
		overlay = &Config{}
	}
	return &Config{
		Kubeconfig:          pick(base.Kubeconfig, overlay.Kubeconfig),
		Context:             pick(base.Context, overlay.Context),
		Namespace:           pick(base.Namespace, overlay.Namespace),
		SSHPublicKeyPath:    pick(base.SSHPublicKeyPath, overlay.SSHPublicKeyPath),
		SSHPrivateKeyPath:   pick(base.SSHPrivateKeyPath, overlay.SSHPrivateKeyPath),
		SSHUsername:         pick(base.SSHUsername, overlay.SSHUsername),
		LocalSocksPort:      pick(base.LocalSocksPort, overlay.LocalSocksPort),
		PodTTLSeconds:       pick(base.PodTTLSeconds, overlay.PodTTLSeconds),
		PodImage:            pick(base.PodImage, overlay.PodImage),
		PodResources:        pick(base.PodResources, overlay.PodResources),
		PodLabels:           pickMap(base.PodLabels, overlay.PodLabels),
		PodAnnotations:      pickMap(base.PodAnnotations, overlay.PodAnnotations),
		ReadyTimeoutSeconds: pick(base.ReadyTimeoutSeconds, overlay.ReadyTimeoutSeconds),
		SSHBinary:           pick(base.SSHBinary, overlay.SSHBinary),
		EphemeralKey:        pick(base.EphemeralKey, overlay.EphemeralKey),
		AKS:                 pick(base.AKS, overlay.AKS),
		LogLevel:            pick(base.LogLevel, overlay.LogLevel),
		LogFormat:           pick(base.LogFormat, overlay.LogFormat),
		LogOutput:           pick(base.LogOutput, overlay.LogOutput),
		Ledger:              pick(base.Ledger, overlay.Ledger),
	}
}

// MergeAll folds layers left to right.
func MergeAll(layers ...*Config) *Config {
	out := &Config{}
	for _, l := range layers {
		out = Merge(out, l)
	}
	return out
}

func pick[T any](base, overlay *T) *T {
	src := base
	if overlay != nil {
		src = overlay
	}
	if src == nil {
		return nil
	}
	v := *src
	return &v
}

func pickMap(base, overlay map[string]string) map[string]string {
	if overlay != nil {
		return maps.Clone(overlay)
	}
	return maps.Clone(base)
}
