// Package aks retrieves kubeconfig for an Azure Kubernetes Service cluster
// through the Azure Resource Manager API.
package aks

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/containerservice/armcontainerservice"

	providerdrv "github.com/kompox/k8socks/adapters/drivers/provider"
)

// Setting keys understood by the AKS driver.
const (
	SettingSubscriptionID     = "AZURE_SUBSCRIPTION_ID"
	SettingResourceGroupName  = "AZURE_RESOURCE_GROUP_NAME"
	SettingClusterName        = "AZURE_AKS_CLUSTER_NAME"
	SettingAuthMethod         = "AZURE_AUTH_METHOD"
	SettingTenantID           = "AZURE_TENANT_ID"
	SettingClientID           = "AZURE_CLIENT_ID"
	SettingClientSecret       = "AZURE_CLIENT_SECRET"
	SettingFederatedTokenFile = "AZURE_FEDERATED_TOKEN_FILE"
	SettingAdminCredentials   = "AZURE_AKS_ADMIN"
	defaultAuthMethod         = "azure_cli"
)

// credentialsClient is the subset of ManagedClustersClient the driver calls.
type credentialsClient interface {
	ListClusterUserCredentials(ctx context.Context, resourceGroupName, resourceName string, options *armcontainerservice.ManagedClustersClientListClusterUserCredentialsOptions) (armcontainerservice.ManagedClustersClientListClusterUserCredentialsResponse, error)
	ListClusterAdminCredentials(ctx context.Context, resourceGroupName, resourceName string, options *armcontainerservice.ManagedClustersClientListClusterAdminCredentialsOptions) (armcontainerservice.ManagedClustersClientListClusterAdminCredentialsResponse, error)
}

// driver implements the AKS provider driver.
type driver struct {
	TokenCredential     azcore.TokenCredential
	AzureSubscriptionId string
	ResourceGroupName   string
	ClusterName         string
	Admin               bool

	client credentialsClient
}

// ID returns the provider identifier.
func (d *driver) ID() string { return "aks" }

// init registers the AKS driver.
func init() {
	providerdrv.Register("aks", func(settings map[string]string) (providerdrv.Driver, error) {
		return newDriver(settings)
	})
}

func newDriver(settings map[string]string) (*driver, error) {
	get := func(k string) string {
		if settings == nil {
			return ""
		}
		return strings.TrimSpace(settings[k])
	}

	d := &driver{
		AzureSubscriptionId: get(SettingSubscriptionID),
		ResourceGroupName:   get(SettingResourceGroupName),
		ClusterName:         get(SettingClusterName),
		Admin:               get(SettingAdminCredentials) == "true",
	}
	missing := make([]string, 0, 3)
	if d.AzureSubscriptionId == "" {
		missing = append(missing, SettingSubscriptionID)
	}
	if d.ResourceGroupName == "" {
		missing = append(missing, SettingResourceGroupName)
	}
	if d.ClusterName == "" {
		missing = append(missing, SettingClusterName)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required AKS settings: %s", strings.Join(missing, ", "))
	}

	cred, err := newCredential(get)
	if err != nil {
		return nil, err
	}
	d.TokenCredential = cred
	return d, nil
}

// newCredential picks the azidentity credential for AZURE_AUTH_METHOD.
func newCredential(get func(string) string) (azcore.TokenCredential, error) {
	authMethod := get(SettingAuthMethod)
	if authMethod == "" {
		authMethod = defaultAuthMethod
	}

	var cred azcore.TokenCredential
	var err error
	switch authMethod {
	case "client_secret":
		tenantID := get(SettingTenantID)
		clientID := get(SettingClientID)
		clientSecret := get(SettingClientSecret)
		if tenantID == "" || clientID == "" || clientSecret == "" {
			return nil, fmt.Errorf("client_secret auth requires %s, %s, %s", SettingTenantID, SettingClientID, SettingClientSecret)
		}
		cred, err = azidentity.NewClientSecretCredential(tenantID, clientID, clientSecret, nil)
	case "managed_identity":
		opts := &azidentity.ManagedIdentityCredentialOptions{}
		if clientID := get(SettingClientID); clientID != "" {
			opts.ID = azidentity.ClientID(clientID)
		}
		cred, err = azidentity.NewManagedIdentityCredential(opts)
	case "workload_identity":
		tenantID := get(SettingTenantID)
		clientID := get(SettingClientID)
		tokenFile := get(SettingFederatedTokenFile)
		if tenantID == "" || clientID == "" || tokenFile == "" {
			return nil, fmt.Errorf("workload_identity auth requires %s, %s, %s", SettingTenantID, SettingClientID, SettingFederatedTokenFile)
		}
		cred, err = azidentity.NewWorkloadIdentityCredential(&azidentity.WorkloadIdentityCredentialOptions{
			TenantID:      tenantID,
			ClientID:      clientID,
			TokenFilePath: tokenFile,
		})
	case "azure_cli":
		opts := &azidentity.AzureCLICredentialOptions{TenantID: get(SettingTenantID)}
		cred, err = azidentity.NewAzureCLICredential(opts)
	case "azure_developer_cli":
		opts := &azidentity.AzureDeveloperCLICredentialOptions{TenantID: get(SettingTenantID)}
		cred, err = azidentity.NewAzureDeveloperCLICredential(opts)
	case "default":
		opts := &azidentity.DefaultAzureCredentialOptions{TenantID: get(SettingTenantID)}
		cred, err = azidentity.NewDefaultAzureCredential(opts)
	default:
		return nil, fmt.Errorf("unsupported %s: %s", SettingAuthMethod, authMethod)
	}
	if err != nil {
		return nil, fmt.Errorf("create Azure credential: %w", err)
	}
	return cred, nil
}
