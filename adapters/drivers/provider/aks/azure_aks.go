package aks

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/containerservice/armcontainerservice"
)

// Kubeconfig fetches cluster user credentials, or cluster admin credentials
// when AZURE_AKS_ADMIN is "true", and returns the first kubeconfig.
func (d *driver) Kubeconfig(ctx context.Context) (_ []byte, err error) {
	ctx, cleanup := d.withMethodLogger(ctx, "Kubeconfig")
	defer func() { cleanup(err) }()

	client, err := d.credentialsClient()
	if err != nil {
		return nil, err
	}

	var results []*armcontainerservice.CredentialResult
	if d.Admin {
		res, err := client.ListClusterAdminCredentials(ctx, d.ResourceGroupName, d.ClusterName, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to get cluster admin credentials: %w", err)
		}
		results = res.Kubeconfigs
	} else {
		res, err := client.ListClusterUserCredentials(ctx, d.ResourceGroupName, d.ClusterName, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to get cluster user credentials: %w", err)
		}
		results = res.Kubeconfigs
	}
	if len(results) == 0 || results[0] == nil || len(results[0].Value) == 0 {
		return nil, fmt.Errorf("no kubeconfig found for cluster %s/%s", d.ResourceGroupName, d.ClusterName)
	}
	return results[0].Value, nil
}

func (d *driver) credentialsClient() (credentialsClient, error) {
	if d.client != nil {
		return d.client, nil
	}
	c, err := armcontainerservice.NewManagedClustersClient(d.AzureSubscriptionId, d.TokenCredential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create AKS client: %w", err)
	}
	d.client = c
	return c, nil
}
