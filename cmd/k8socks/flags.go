package main

import (
	"github.com/spf13/pflag"

	"github.com/kompox/k8socks/config/k8sockscfg"
)

// Flag names. Each configuration field has a flag named after its key with
// dashes; nested blocks are flattened with a prefix.
const (
	flagConfig            = "config"
	flagKubeconfig        = "kubeconfig"
	flagContext           = "context"
	flagNamespace         = "namespace"
	flagSSHPublicKeyPath  = "ssh-public-key-path"
	flagSSHPrivateKeyPath = "ssh-private-key-path"
	flagSSHUsername       = "ssh-username"
	flagLocalSocksPort    = "local-socks-port"
	flagPodTTLSeconds     = "pod-ttl-seconds"
	flagPodImage          = "pod-image"
	flagPodCPU            = "pod-cpu"
	flagPodMemory         = "pod-memory"
	flagPodLabel          = "pod-label"
	flagPodAnnotation     = "pod-annotation"
	flagReadyTimeout      = "ready-timeout-seconds"
	flagSSHBinary         = "ssh-binary"
	flagEphemeralKey      = "ephemeral-key"
	flagAKSSubscriptionID = "aks-subscription-id"
	flagAKSResourceGroup  = "aks-resource-group"
	flagAKSClusterName    = "aks-cluster-name"
	flagAKSAuthMethod     = "aks-auth-method"
	flagAKSTenantID       = "aks-tenant-id"
	flagAKSClientID       = "aks-client-id"
	flagAKSAdmin          = "aks-admin"
	flagLogLevel          = "log-level"
	flagLogFormat         = "log-format"
	flagLogOutput         = "log-output"
	flagLedger            = "ledger"
	flagNoColor           = "no-color"
)

func addConfigFlags(fs *pflag.FlagSet) {
	fs.String(flagConfig, "", "Config file (default: $"+k8sockscfg.EnvConfigPath+", ~/.k8socks/config.{yaml,json}, ./config.json)")
	fs.String(flagKubeconfig, "", "Kubeconfig path (default "+k8sockscfg.DefaultKubeconfig+")")
	fs.String(flagContext, "", "Kubeconfig context (default: current context)")
	fs.StringP(flagNamespace, "n", "", "Namespace for the proxy pod (default "+k8sockscfg.DefaultNamespace+")")
	fs.String(flagSSHPublicKeyPath, "", "Public key installed in the pod (default "+k8sockscfg.DefaultSSHPublicKeyPath+")")
	fs.String(flagSSHPrivateKeyPath, "", "Private key passed to ssh with -i")
	fs.String(flagSSHUsername, "", "Remote ssh user (default "+k8sockscfg.DefaultSSHUsername+")")
	fs.IntP(flagLocalSocksPort, "p", 0, "Local SOCKS5 port (default 1080)")
	fs.Uint64(flagPodTTLSeconds, 0, "Pod self-destruct timer in seconds (default 900)")
	fs.String(flagPodImage, "", "sshd image (default "+k8sockscfg.DefaultPodImage+")")
	fs.String(flagPodCPU, "", "CPU request (default "+k8sockscfg.DefaultPodCPU+")")
	fs.String(flagPodMemory, "", "Memory request (default "+k8sockscfg.DefaultPodMemory+")")
	fs.StringToString(flagPodLabel, nil, "Pod labels (key=value, replaces the configured set)")
	fs.StringToString(flagPodAnnotation, nil, "Pod annotations (key=value, replaces the configured set)")
	fs.Uint64(flagReadyTimeout, 0, "Seconds to wait for the pod to run (default 60)")
	fs.String(flagSSHBinary, "", "ssh client binary (default "+k8sockscfg.DefaultSSHBinary+")")
	fs.Bool(flagEphemeralKey, false, "Generate a throwaway ed25519 key pair for this session")
	fs.String(flagAKSSubscriptionID, "", "AKS subscription ID (enables the AKS kubeconfig source)")
	fs.String(flagAKSResourceGroup, "", "AKS resource group")
	fs.String(flagAKSClusterName, "", "AKS cluster name")
	fs.String(flagAKSAuthMethod, "", "Azure auth method (azure_cli|azure_developer_cli|client_secret|managed_identity|workload_identity|default)")
	fs.String(flagAKSTenantID, "", "Azure tenant ID")
	fs.String(flagAKSClientID, "", "Azure client ID")
	fs.Bool(flagAKSAdmin, false, "Use AKS admin credentials")
	fs.String(flagLogLevel, "", "Log level (debug|info|warn|error)")
	fs.String(flagLogFormat, "", "Log format (human|text|json)")
	fs.String(flagLogOutput, "", "Log output (-|none|auto|<path>)")
	fs.String(flagLedger, "", "Session ledger (none|sqlite:<path>)")
	fs.Bool(flagNoColor, false, "Disable colored log output")
}

// flagLayer returns the configuration layer made of the flags set on the
// command line. Flags left at their zero default stay absent. Resource and
// AKS flags patch base, the layers beneath, instead of replacing the whole
// block, so that --pod-cpu alone keeps the configured memory request.
func flagLayer(fs *pflag.FlagSet, base *k8sockscfg.Config) *k8sockscfg.Config {
	c := &k8sockscfg.Config{}
	str := func(name string, dst **string) {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			*dst = &v
		}
	}
	u64 := func(name string, dst **uint64) {
		if fs.Changed(name) {
			v, _ := fs.GetUint64(name)
			*dst = &v
		}
	}

	str(flagKubeconfig, &c.Kubeconfig)
	str(flagContext, &c.Context)
	str(flagNamespace, &c.Namespace)
	str(flagSSHPublicKeyPath, &c.SSHPublicKeyPath)
	str(flagSSHPrivateKeyPath, &c.SSHPrivateKeyPath)
	str(flagSSHUsername, &c.SSHUsername)
	str(flagPodImage, &c.PodImage)
	str(flagSSHBinary, &c.SSHBinary)
	str(flagLogLevel, &c.LogLevel)
	str(flagLogFormat, &c.LogFormat)
	str(flagLogOutput, &c.LogOutput)
	str(flagLedger, &c.Ledger)
	u64(flagPodTTLSeconds, &c.PodTTLSeconds)
	u64(flagReadyTimeout, &c.ReadyTimeoutSeconds)
	if fs.Changed(flagLocalSocksPort) {
		v, _ := fs.GetInt(flagLocalSocksPort)
		c.LocalSocksPort = &v
	}
	if fs.Changed(flagEphemeralKey) {
		v, _ := fs.GetBool(flagEphemeralKey)
		c.EphemeralKey = &v
	}
	if fs.Changed(flagPodLabel) {
		c.PodLabels, _ = fs.GetStringToString(flagPodLabel)
	}
	if fs.Changed(flagPodAnnotation) {
		c.PodAnnotations, _ = fs.GetStringToString(flagPodAnnotation)
	}

	if fs.Changed(flagPodCPU) || fs.Changed(flagPodMemory) {
		r := k8sockscfg.Resources{}
		if base != nil && base.PodResources != nil {
			r = *base.PodResources
		}
		if fs.Changed(flagPodCPU) {
			r.CPU, _ = fs.GetString(flagPodCPU)
		}
		if fs.Changed(flagPodMemory) {
			r.Memory, _ = fs.GetString(flagPodMemory)
		}
		c.PodResources = &r
	}

	aksFlags := []string{flagAKSSubscriptionID, flagAKSResourceGroup, flagAKSClusterName, flagAKSAuthMethod, flagAKSTenantID, flagAKSClientID, flagAKSAdmin}
	for _, name := range aksFlags {
		if !fs.Changed(name) {
			continue
		}
		a := k8sockscfg.AKS{}
		if base != nil && base.AKS != nil {
			a = *base.AKS
		}
		set := func(name string, dst *string) {
			if fs.Changed(name) {
				*dst, _ = fs.GetString(name)
			}
		}
		set(flagAKSSubscriptionID, &a.SubscriptionID)
		set(flagAKSResourceGroup, &a.ResourceGroup)
		set(flagAKSClusterName, &a.ClusterName)
		set(flagAKSAuthMethod, &a.AuthMethod)
		set(flagAKSTenantID, &a.TenantID)
		set(flagAKSClientID, &a.ClientID)
		if fs.Changed(flagAKSAdmin) {
			a.Admin, _ = fs.GetBool(flagAKSAdmin)
		}
		c.AKS = &a
		break
	}
	return c
}
