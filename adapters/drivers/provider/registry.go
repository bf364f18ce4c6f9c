package providerdrv

import (
	"context"
	"fmt"
	"sort"
)

// Driver yields the kubeconfig used to reach the cluster that hosts the
// proxy workload. Implementations live under adapters/drivers/provider/<name>
// and register themselves from init().
type Driver interface {
	// ID returns the provider identifier (e.g., "aks").
	ID() string
	// Kubeconfig returns kubeconfig bytes for the target cluster.
	Kubeconfig(ctx context.Context) ([]byte, error)
}

// driverFactory is a constructor function for a provider driver.
type driverFactory func(settings map[string]string) (Driver, error)

// registry holds registered drivers by name.
var registry = map[string]driverFactory{}

// Register makes a driver available by the given name. Drivers should call
// this from their init() function.
func Register(name string, factory driverFactory) {
	registry[name] = factory
}

// GetDriverFactory returns the driver factory function for the given name.
func GetDriverFactory(name string) (driverFactory, bool) {
	factory, exists := registry[name]
	return factory, exists
}

// New constructs the named driver from settings.
func New(name string, settings map[string]string) (Driver, error) {
	factory, ok := GetDriverFactory(name)
	if !ok {
		return nil, fmt.Errorf("unknown provider driver %q (available: %v)", name, Names())
	}
	return factory(settings)
}

// Names lists registered drivers in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
