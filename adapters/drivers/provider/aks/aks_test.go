package aks

import (
	"context"
	"errors"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/containerservice/armcontainerservice"
)

type fakeCredentials struct {
	user, admin []byte
	err         error
	adminCalled bool
	userCalled  bool
}

func (f *fakeCredentials) ListClusterUserCredentials(_ context.Context, _, _ string, _ *armcontainerservice.ManagedClustersClientListClusterUserCredentialsOptions) (armcontainerservice.ManagedClustersClientListClusterUserCredentialsResponse, error) {
	f.userCalled = true
	var res armcontainerservice.ManagedClustersClientListClusterUserCredentialsResponse
	if f.user != nil {
		res.Kubeconfigs = []*armcontainerservice.CredentialResult{{Value: f.user}}
	}
	return res, f.err
}

func (f *fakeCredentials) ListClusterAdminCredentials(_ context.Context, _, _ string, _ *armcontainerservice.ManagedClustersClientListClusterAdminCredentialsOptions) (armcontainerservice.ManagedClustersClientListClusterAdminCredentialsResponse, error) {
	f.adminCalled = true
	var res armcontainerservice.ManagedClustersClientListClusterAdminCredentialsResponse
	if f.admin != nil {
		res.Kubeconfigs = []*armcontainerservice.CredentialResult{{Value: f.admin}}
	}
	return res, f.err
}

func baseSettings() map[string]string {
	return map[string]string{
		SettingSubscriptionID:    "00000000-0000-0000-0000-000000000000",
		SettingResourceGroupName: "rg",
		SettingClusterName:       "aks1",
	}
}

func TestNewDriverValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(m map[string]string)
		wantErr bool
	}{
		{name: "defaults to azure_cli", mutate: func(m map[string]string) {}},
		{name: "missing cluster", mutate: func(m map[string]string) { delete(m, SettingClusterName) }, wantErr: true},
		{name: "missing subscription", mutate: func(m map[string]string) { m[SettingSubscriptionID] = " " }, wantErr: true},
		{name: "unsupported auth", mutate: func(m map[string]string) { m[SettingAuthMethod] = "password" }, wantErr: true},
		{name: "client_secret incomplete", mutate: func(m map[string]string) { m[SettingAuthMethod] = "client_secret" }, wantErr: true},
		{name: "workload_identity incomplete", mutate: func(m map[string]string) {
			m[SettingAuthMethod] = "workload_identity"
			m[SettingTenantID] = "t"
		}, wantErr: true},
		{name: "client_secret", mutate: func(m map[string]string) {
			m[SettingAuthMethod] = "client_secret"
			m[SettingTenantID] = "00000000-0000-0000-0000-000000000001"
			m[SettingClientID] = "00000000-0000-0000-0000-000000000002"
			m[SettingClientSecret] = "secret"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := baseSettings()
			tt.mutate(s)
			d, err := newDriver(s)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && d.TokenCredential == nil {
				t.Error("TokenCredential is nil")
			}
		})
	}
}

func TestKubeconfig(t *testing.T) {
	ctx := context.Background()

	t.Run("user credentials", func(t *testing.T) {
		f := &fakeCredentials{user: []byte("user-kubeconfig"), admin: []byte("admin-kubeconfig")}
		d := &driver{ResourceGroupName: "rg", ClusterName: "aks1", client: f}
		got, err := d.Kubeconfig(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "user-kubeconfig" || f.adminCalled {
			t.Errorf("got %q adminCalled=%v", got, f.adminCalled)
		}
	})

	t.Run("admin credentials", func(t *testing.T) {
		f := &fakeCredentials{user: []byte("user-kubeconfig"), admin: []byte("admin-kubeconfig")}
		d := &driver{ResourceGroupName: "rg", ClusterName: "aks1", Admin: true, client: f}
		got, err := d.Kubeconfig(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "admin-kubeconfig" || f.userCalled {
			t.Errorf("got %q userCalled=%v", got, f.userCalled)
		}
	})

	t.Run("empty result", func(t *testing.T) {
		d := &driver{ResourceGroupName: "rg", ClusterName: "aks1", client: &fakeCredentials{}}
		if _, err := d.Kubeconfig(ctx); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("api error", func(t *testing.T) {
		boom := errors.New("forbidden")
		d := &driver{ResourceGroupName: "rg", ClusterName: "aks1", client: &fakeCredentials{err: boom}}
		if _, err := d.Kubeconfig(ctx); !errors.Is(err, boom) {
			t.Errorf("err = %v", err)
		}
	})
}
