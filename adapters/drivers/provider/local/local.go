// Package local reads the kubeconfig from a file on this machine.
package local

import (
	"context"
	"fmt"
	"os"
	"strings"

	providerdrv "github.com/kompox/k8socks/adapters/drivers/provider"
)

// SettingKubeconfig is the kubeconfig file path setting.
const SettingKubeconfig = "KUBECONFIG"

// driver implements the local kubeconfig file provider.
type driver struct {
	path string
}

// ID returns the provider identifier.
func (d *driver) ID() string { return "local" }

// Kubeconfig reads the configured file.
func (d *driver) Kubeconfig(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return nil, fmt.Errorf("read kubeconfig file: %w", err)
	}
	return data, nil
}

// init registers the local driver.
func init() {
	providerdrv.Register("local", func(settings map[string]string) (providerdrv.Driver, error) {
		path := strings.TrimSpace(settings[SettingKubeconfig])
		if path == "" {
			return nil, fmt.Errorf("local provider requires %s", SettingKubeconfig)
		}
		return &driver{path: path}, nil
	})
}
