// Package k8sockscfg defines the layered k8socks configuration: built-in
// defaults, an optional config file and command line flags, merged
// right-biased and resolved into concrete settings.
package k8sockscfg

// Config is one configuration layer. Nil fields are absent and inherit from
// the layer below when merged.
type Config struct {
	Kubeconfig          *string           `yaml:"kubeconfig,omitempty" json:"kubeconfig,omitempty"`
	Context             *string           `yaml:"context,omitempty" json:"context,omitempty"`
	Namespace           *string           `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	SSHPublicKeyPath    *string           `yaml:"ssh_public_key_path,omitempty" json:"ssh_public_key_path,omitempty"`
	SSHPrivateKeyPath   *string           `yaml:"ssh_private_key_path,omitempty" json:"ssh_private_key_path,omitempty"`
	SSHUsername         *string           `yaml:"ssh_username,omitempty" json:"ssh_username,omitempty"`
	LocalSocksPort      *int              `yaml:"local_socks_port,omitempty" json:"local_socks_port,omitempty"`
	PodTTLSeconds       *uint64           `yaml:"pod_ttl_seconds,omitempty" json:"pod_ttl_seconds,omitempty"`
	PodImage            *string           `yaml:"pod_image,omitempty" json:"pod_image,omitempty"`
	PodResources        *Resources        `yaml:"pod_resources,omitempty" json:"pod_resources,omitempty"`
	PodLabels           map[string]string `yaml:"pod_labels,omitempty" json:"pod_labels,omitempty"`
	PodAnnotations      map[string]string `yaml:"pod_annotations,omitempty" json:"pod_annotations,omitempty"`
	ReadyTimeoutSeconds *uint64           `yaml:"ready_timeout_seconds,omitempty" json:"ready_timeout_seconds,omitempty"`
	SSHBinary           *string           `yaml:"ssh_binary,omitempty" json:"ssh_binary,omitempty"`
	EphemeralKey        *bool             `yaml:"ephemeral_key,omitempty" json:"ephemeral_key,omitempty"`
	AKS                 *AKS              `yaml:"aks,omitempty" json:"aks,omitempty"`
	LogLevel            *string           `yaml:"log_level,omitempty" json:"log_level,omitempty"`
	LogFormat           *string           `yaml:"log_format,omitempty" json:"log_format,omitempty"`
	LogOutput           *string           `yaml:"log_output,omitempty" json:"log_output,omitempty"`
	Ledger              *string           `yaml:"ledger,omitempty" json:"ledger,omitempty"`
}

// Resources are container resource requests. Empty strings are omitted from the pod.
type Resources struct {
	CPU    string `yaml:"cpu,omitempty" json:"cpu,omitempty"`
	Memory string `yaml:"memory,omitempty" json:"memory,omitempty"`
}

// AKS selects an Azure Kubernetes Service cluster as the kubeconfig source.
type AKS struct {
	SubscriptionID string `yaml:"subscription_id" json:"subscription_id"`
	ResourceGroup  string `yaml:"resource_group" json:"resource_group"`
	ClusterName    string `yaml:"cluster_name" json:"cluster_name"`
	// AuthMethod is one of azure_cli (default), azure_developer_cli,
	// client_secret, managed_identity, workload_identity, default.
	AuthMethod string `yaml:"auth_method,omitempty" json:"auth_method,omitempty"`
	TenantID   string `yaml:"tenant_id,omitempty" json:"tenant_id,omitempty"`
	ClientID   string `yaml:"client_id,omitempty" json:"client_id,omitempty"`
	Admin      bool   `yaml:"admin,omitempty" json:"admin,omitempty"`
}

// Resolved is a fully defaulted and validated configuration.
type Resolved struct {
	Kubeconfig          string            `yaml:"kubeconfig"`
	Context             string            `yaml:"context,omitempty"`
	Namespace           string            `yaml:"namespace"`
	SSHPublicKeyPath    string            `yaml:"ssh_public_key_path"`
	SSHPrivateKeyPath   string            `yaml:"ssh_private_key_path,omitempty"`
	SSHUsername         string            `yaml:"ssh_username"`
	LocalSocksPort      int               `yaml:"local_socks_port"`
	PodTTLSeconds       uint64            `yaml:"pod_ttl_seconds"`
	PodImage            string            `yaml:"pod_image"`
	PodResources        *Resources        `yaml:"pod_resources,omitempty"`
	PodLabels           map[string]string `yaml:"pod_labels"`
	PodAnnotations      map[string]string `yaml:"pod_annotations"`
	ReadyTimeoutSeconds uint64            `yaml:"ready_timeout_seconds"`
	SSHBinary           string            `yaml:"ssh_binary"`
	EphemeralKey        bool              `yaml:"ephemeral_key"`
	AKS                 *AKS              `yaml:"aks,omitempty"`
	LogLevel            string            `yaml:"log_level"`
	LogFormat           string            `yaml:"log_format"`
	LogOutput           string            `yaml:"log_output"`
	// Ledger is "none" or an "sqlite:<path>" URL with the path expanded.
	Ledger string `yaml:"ledger"`
	// StateDir holds ledger, logs and ephemeral keys.
	StateDir string `yaml:"-"`
}
