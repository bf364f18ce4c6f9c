package k8sockscfg

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/kompox/k8socks/domain/model"
	"github.com/kompox/k8socks/internal/logging"
	"github.com/kompox/k8socks/internal/naming"
)

const (
	LedgerNone      = "none"
	ledgerSQLite    = "sqlite:"
	maxTTLSeconds   = 7 * 24 * 3600
	maxReadyTimeout = 3600
)

// Resolve merges c over Defaults, expands ~ in path settings and validates
// the result. All failures wrap model.ErrConfig.
func Resolve(c *Config) (*Resolved, error) {
	m := Merge(Defaults(), c)
	r := &Resolved{
		Context:             deref(m.Context),
		Namespace:           deref(m.Namespace),
		SSHUsername:         deref(m.SSHUsername),
		LocalSocksPort:      deref(m.LocalSocksPort),
		PodTTLSeconds:       deref(m.PodTTLSeconds),
		PodImage:            strings.TrimSpace(deref(m.PodImage)),
		PodResources:        m.PodResources,
		PodLabels:           m.PodLabels,
		PodAnnotations:      m.PodAnnotations,
		ReadyTimeoutSeconds: deref(m.ReadyTimeoutSeconds),
		SSHBinary:           deref(m.SSHBinary),
		EphemeralKey:        deref(m.EphemeralKey),
		AKS:                 m.AKS,
		LogLevel:            strings.ToLower(deref(m.LogLevel)),
		LogFormat:           strings.ToLower(deref(m.LogFormat)),
		LogOutput:           deref(m.LogOutput),
	}
	if r.PodLabels == nil {
		r.PodLabels = map[string]string{}
	}
	if r.PodAnnotations == nil {
		r.PodAnnotations = map[string]string{}
	}

	var err error
	if r.Kubeconfig, err = expand("kubeconfig", deref(m.Kubeconfig)); err != nil {
		return nil, err
	}
	if r.SSHPublicKeyPath, err = expand("ssh_public_key_path", deref(m.SSHPublicKeyPath)); err != nil {
		return nil, err
	}
	if r.SSHPrivateKeyPath, err = expand("ssh_private_key_path", deref(m.SSHPrivateKeyPath)); err != nil {
		return nil, err
	}
	if r.StateDir, err = expand("state directory", DefaultStateDir); err != nil {
		return nil, err
	}
	if r.Ledger, err = resolveLedger(deref(m.Ledger)); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks value ranges and Kubernetes syntax of the settings.
func (r *Resolved) Validate() error {
	switch {
	case r.LocalSocksPort < 1 || r.LocalSocksPort > 65535:
		return configErr("local_socks_port must be between 1 and 65535, got %d", r.LocalSocksPort)
	case r.PodTTLSeconds == 0 || r.PodTTLSeconds > maxTTLSeconds:
		return configErr("pod_ttl_seconds must be between 1 and %d, got %d", maxTTLSeconds, r.PodTTLSeconds)
	case r.ReadyTimeoutSeconds == 0 || r.ReadyTimeoutSeconds > maxReadyTimeout:
		return configErr("ready_timeout_seconds must be between 1 and %d, got %d", maxReadyTimeout, r.ReadyTimeoutSeconds)
	case r.PodImage == "":
		return configErr("pod_image must not be empty")
	case r.SSHUsername == "":
		return configErr("ssh_username must not be empty")
	case r.SSHBinary == "":
		return configErr("ssh_binary must not be empty")
	}
	if err := naming.ValidateNamespace(r.Namespace); err != nil {
		return configErr("%v", err)
	}
	if err := naming.ValidateLabels(r.PodLabels); err != nil {
		return configErr("pod_labels: %v", err)
	}
	if err := naming.ValidateAnnotationKeys(r.PodAnnotations); err != nil {
		return configErr("pod_annotations: %v", err)
	}
	if res := r.PodResources; res != nil {
		for name, q := range map[string]string{"cpu": res.CPU, "memory": res.Memory} {
			if q == "" {
				continue
			}
			if _, err := resource.ParseQuantity(q); err != nil {
				return configErr("pod_resources.%s: invalid quantity %q", name, q)
			}
		}
	}
	if a := r.AKS; a != nil {
		if a.SubscriptionID == "" || a.ResourceGroup == "" || a.ClusterName == "" {
			return configErr("aks requires subscription_id, resource_group and cluster_name")
		}
	}
	if _, err := logging.ParseLevel(r.LogLevel); err != nil {
		return configErr("log_level: %v", err)
	}
	switch r.LogFormat {
	case "human", "text", "json":
	default:
		return configErr("log_format must be human, text or json, got %q", r.LogFormat)
	}
	return nil
}

// WorkloadSpec returns the pod description without the injected key, which
// is read at deploy time.
func (r *Resolved) WorkloadSpec() model.WorkloadSpec {
	spec := model.WorkloadSpec{
		Image:       r.PodImage,
		Labels:      r.PodLabels,
		Annotations: r.PodAnnotations,
		TTLSeconds:  r.PodTTLSeconds,
	}
	if r.PodResources != nil {
		spec.Resources = &model.ResourceRequests{CPU: r.PodResources.CPU, Memory: r.PodResources.Memory}
	}
	return spec
}

// LedgerPath returns the sqlite file path, or "" when the ledger is disabled.
func (r *Resolved) LedgerPath() string {
	if r.Ledger == LedgerNone {
		return ""
	}
	return strings.TrimPrefix(r.Ledger, ledgerSQLite)
}

func resolveLedger(s string) (string, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || strings.EqualFold(s, LedgerNone):
		return LedgerNone, nil
	case strings.HasPrefix(s, ledgerSQLite):
		p := strings.TrimPrefix(s, ledgerSQLite)
		if p == ":memory:" {
			return s, nil
		}
		expanded, err := expand("ledger", p)
		if err != nil {
			return "", err
		}
		return ledgerSQLite + filepath.Clean(expanded), nil
	default:
		return "", configErr("ledger must be %q or sqlite:<path>, got %q", LedgerNone, s)
	}
}

func expand(field, p string) (string, error) {
	if p == "" {
		return "", nil
	}
	out, err := homedir.Expand(p)
	if err != nil {
		return "", configErr("%s: %v", field, err)
	}
	return out, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", model.ErrConfig, fmt.Sprintf(format, args...))
}
